package registry

import (
	"fmt"
	"maps"
	"slices"
)

// AddKey sets a key on a droid and saves.
func (s *Store) AddKey(droid, key, value string) error {
	s.mu.Lock()
	d, ok := s.doc.Gynoids[droid]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, droid)
	}
	d.Keys[key] = value
	s.mu.Unlock()
	return s.Save()
}

// RemoveKey deletes a key from a droid and saves. Removing an absent key
// succeeds.
func (s *Store) RemoveKey(droid, key string) error {
	s.mu.Lock()
	d, ok := s.doc.Gynoids[droid]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, droid)
	}
	delete(d.Keys, key)
	s.mu.Unlock()
	return s.Save()
}

// ListKeys returns the sorted names of the global keys and the droid's own
// keys. Values are never listed.
func (s *Store) ListKeys(droid string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.doc.Gynoids[droid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, droid)
	}
	set := make(map[string]struct{}, len(s.doc.Keys)+len(d.Keys))
	for k := range s.doc.Keys {
		set[k] = struct{}{}
	}
	for k := range d.Keys {
		set[k] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set)), nil
}

// Keys returns the configuration visible to a droid's extensions: the
// global keys overlaid with the droid's own.
func (s *Store) Keys(droid string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := maps.Clone(s.doc.Keys)
	if out == nil {
		out = map[string]string{}
	}
	if d, ok := s.doc.Gynoids[droid]; ok {
		maps.Copy(out, d.Keys)
	}
	return out
}
