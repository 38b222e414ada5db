package cluster

import (
	"errors"
	"fmt"

	"github.com/ziadkadry99/gynoid/internal/registry"
)

var (
	// ErrDuplicateDroid is returned when starting a droid whose name is
	// already live.
	ErrDuplicateDroid = errors.New("droid already exists")
	// ErrNotFound is returned when operating on a droid that is not live
	// or not registered. It is the registry's sentinel so both layers
	// match with errors.Is.
	ErrNotFound = registry.ErrNotFound
	// ErrExtensionNotFound is returned when removing an extension that is
	// not installed.
	ErrExtensionNotFound = errors.New("extension not found")
	// ErrMissingToken is returned when a droid has no platform credential.
	ErrMissingToken = errors.New("missing token")
)

// RepositoryParseError reports a repository specification that cannot be
// split into organization and name.
type RepositoryParseError struct {
	Input  string
	Reason string
}

func (e *RepositoryParseError) Error() string {
	return fmt.Sprintf("unable to parse repository %q: %s", e.Input, e.Reason)
}
