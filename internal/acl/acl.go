// Package acl decides whether a listener may respond to a message.
package acl

import "slices"

// Message is the part of an inbound message the filter looks at.
type Message struct {
	UserID      string
	ChannelName string
	IsDM        bool
	Mentioned   bool
}

// Config is the policy as written in an extension definition. Pointer
// fields distinguish "not set" from false so defaults can be applied.
type Config struct {
	Users           []string `yaml:"users" json:"users,omitempty"`
	Channels        []string `yaml:"channels" json:"channels,omitempty"`
	DM              *bool    `yaml:"dm" json:"dm,omitempty"`
	ExplicitMention *bool    `yaml:"explicitMention" json:"explicitMention,omitempty"`
}

// Policy is a resolved access policy. A nil Users or Channels list allows
// everyone.
type Policy struct {
	Users           []string
	Channels        []string
	AcceptsDM       bool
	ExplicitMention bool
}

// Default accepts every message, including direct messages.
func Default() Policy {
	return Policy{AcceptsDM: true}
}

// Policy applies defaults: direct messages are accepted and no explicit
// mention is required unless configured otherwise.
func (c Config) Policy() Policy {
	p := Default()
	if c.Users != nil {
		p.Users = slices.Clone(c.Users)
	}
	if c.Channels != nil {
		p.Channels = slices.Clone(c.Channels)
	}
	if c.DM != nil {
		p.AcceptsDM = *c.DM
	}
	if c.ExplicitMention != nil {
		p.ExplicitMention = *c.ExplicitMention
	}
	return p
}

// ValidFrom reports whether the sender is allowed.
func (p Policy) ValidFrom(m Message) bool {
	return p.Users == nil || slices.Contains(p.Users, m.UserID)
}

// ValidChannel reports whether the channel name is allowed.
func (p Policy) ValidChannel(m Message) bool {
	return p.Channels == nil || slices.Contains(p.Channels, m.ChannelName)
}

// ValidChannelOrDM applies the DM flag to direct messages and the channel
// allow-list to everything else.
func (p Policy) ValidChannelOrDM(m Message) bool {
	if m.IsDM {
		return p.AcceptsDM
	}
	return p.ValidChannel(m)
}

// ValidMention treats a direct message as an implicit mention, so the DM
// flag alone decides it. ExplicitMention cannot block an accepted DM.
func (p Policy) ValidMention(m Message) bool {
	if m.IsDM {
		return p.AcceptsDM
	}
	return !p.ExplicitMention || m.Mentioned
}

// IsValid is the conjunction of all checks.
func (p Policy) IsValid(m Message) bool {
	return p.ValidFrom(m) && p.ValidChannelOrDM(m) && p.ValidMention(m)
}
