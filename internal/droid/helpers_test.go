package droid_test

import "github.com/ziadkadry99/gynoid/internal/acl"

func aclMention(explicit *bool) acl.Config {
	return acl.Config{ExplicitMention: explicit}
}
