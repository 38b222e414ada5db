// Package registry persists droid definitions and configuration keys in a
// single JSON file.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// ErrNotFound is returned when a droid has no persisted definition.
var ErrNotFound = errors.New("droid not found")

// ConfigError reports an unreadable or corrupt registry file.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("registry %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Extension is an extension installed on a droid.
type Extension struct {
	Name       string `json:"name"`
	Repository string `json:"repository"`
}

// Droid is the persisted definition of one droid.
type Droid struct {
	Name       string            `json:"name"`
	Token      string            `json:"token,omitempty"`
	Extensions []Extension       `json:"extensions"`
	Keys       map[string]string `json:"keys"`
}

// Clone returns a deep copy.
func (d Droid) Clone() Droid {
	d.Extensions = slices.Clone(d.Extensions)
	d.Keys = maps.Clone(d.Keys)
	return d
}

// HasExtension reports whether an extension with the given name is installed.
func (d Droid) HasExtension(name string) bool {
	return slices.ContainsFunc(d.Extensions, func(e Extension) bool { return e.Name == name })
}

// document is the on-disk layout.
type document struct {
	Keys    map[string]string `json:"keys"`
	Gynoids map[string]*Droid `json:"gynoids"`
}

// Store is the in-memory view of the registry file. Mutations are only
// durable after Save.
type Store struct {
	mu   sync.RWMutex
	path string
	doc  document
}

// Open loads the registry at path. A missing or malformed file is a
// *ConfigError.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Create writes an empty registry at path, holding the given global keys.
// An existing file is left untouched.
func Create(path string, keys map[string]string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	s := &Store{path: path, doc: document{Keys: maps.Clone(keys)}}
	s.normalize()
	return s.Save()
}

// Path returns the location of the backing file.
func (s *Store) Path() string { return s.path }

// Load re-reads the backing file, replacing the in-memory state.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return &ConfigError{Path: s.path, Err: err}
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return &ConfigError{Path: s.path, Err: fmt.Errorf("parsing JSON: %w", err)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.normalize()
	return nil
}

func (s *Store) normalize() {
	if s.doc.Keys == nil {
		s.doc.Keys = map[string]string{}
	}
	if s.doc.Gynoids == nil {
		s.doc.Gynoids = map[string]*Droid{}
	}
	for name, d := range s.doc.Gynoids {
		if d == nil {
			d = &Droid{}
			s.doc.Gynoids[name] = d
		}
		if d.Name == "" {
			d.Name = name
		}
		if d.Keys == nil {
			d.Keys = map[string]string{}
		}
		if d.Extensions == nil {
			d.Extensions = []Extension{}
		}
	}
}

// Save rewrites the whole backing file. The new content is written to a
// temporary file in the same directory and renamed over the old one.
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.doc, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshalling registry: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".gynoid-registry-*")
	if err != nil {
		return fmt.Errorf("creating temp registry: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing registry: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting registry permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp registry: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing registry %s: %w", s.path, err)
	}
	return nil
}

// Droid returns a copy of the named definition.
func (s *Store) Droid(name string) (Droid, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.doc.Gynoids[name]
	if !ok {
		return Droid{}, false
	}
	return d.Clone(), true
}

// Droids returns copies of every definition, sorted by name.
func (s *Store) Droids() []Droid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Droid, 0, len(s.doc.Gynoids))
	for _, name := range slices.Sorted(maps.Keys(s.doc.Gynoids)) {
		out = append(out, s.doc.Gynoids[name].Clone())
	}
	return out
}

// PutDroid records a definition, replacing any previous one with the same
// name. It does not save.
func (s *Store) PutDroid(d Droid) {
	d = d.Clone()
	if d.Keys == nil {
		d.Keys = map[string]string{}
	}
	if d.Extensions == nil {
		d.Extensions = []Extension{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Gynoids[d.Name] = &d
}

// DeleteDroid forgets a definition. Deleting an unknown name is a no-op.
// It does not save.
func (s *Store) DeleteDroid(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.doc.Gynoids, name)
}

// AppendExtension adds ext to the droid's list, replacing an existing entry
// with the same name so the list never holds duplicates. It does not save.
func (s *Store) AppendExtension(droid string, ext Extension) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.doc.Gynoids[droid]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, droid)
	}
	d.Extensions = slices.DeleteFunc(d.Extensions, func(e Extension) bool { return e.Name == ext.Name })
	d.Extensions = append(d.Extensions, ext)
	return nil
}

// RemoveExtension drops the named extension and reports whether it was
// present. It does not save.
func (s *Store) RemoveExtension(droid, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.doc.Gynoids[droid]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, droid)
	}
	before := len(d.Extensions)
	d.Extensions = slices.DeleteFunc(d.Extensions, func(e Extension) bool { return e.Name == name })
	return len(d.Extensions) != before, nil
}

// GlobalKey returns a key from the top-level keys object.
func (s *Store) GlobalKey(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Keys[name]
}
