package droid

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// DefinitionPattern locates an extension's definition file inside its
// install directory.
const DefinitionPattern = "{droid,gynoid}.{yaml,yml,json}"

// ErrNoDefinition is returned when an extension directory holds no
// definition file.
var ErrNoDefinition = errors.New("no extension definition found")

// Definition is the parsed content of an extension's definition file.
type Definition struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Actions     []Action `yaml:"actions"`
}

// FindDefinition returns the path of the definition file in dir.
func FindDefinition(dir string) (string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), DefinitionPattern)
	if err != nil {
		return "", fmt.Errorf("searching %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoDefinition, dir)
	}
	return filepath.Join(dir, matches[0]), nil
}

// ReadDefinition parses a definition file. JSON files parse as YAML.
func ReadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definition: %w", err)
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing definition %s: %w", path, err)
	}
	if def.Name == "" {
		def.Name = filepath.Base(filepath.Dir(path))
	}
	return &def, nil
}

// Listeners builds the definition's listeners against core.
func (d *Definition) Listeners(core HandlerTable) ([]*Listener, error) {
	out := make([]*Listener, 0, len(d.Actions))
	for _, a := range d.Actions {
		l, err := a.Build(d.Name, core)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}
