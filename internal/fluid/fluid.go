// Package fluid is the registry of underground fluids known to a session.
// Fluids are identified by name; numeric ids only exist for reading caches
// written before names were persisted.
package fluid

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_fluids.yaml
var defaultRegistry []byte

// Fluid is a registered underground fluid.
type Fluid struct {
	Name     string `yaml:"name"`
	LegacyID *int   `yaml:"legacy_id,omitempty"`
}

// Registry resolves fluids by name or legacy numeric id.
type Registry struct {
	byName   map[string]*Fluid
	byLegacy map[int]*Fluid
}

type registryFile struct {
	Fluids []*Fluid `yaml:"fluids"`
}

// LoadRegistry reads a registry from a YAML file. An empty path loads the
// embedded defaults.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return ParseRegistry(defaultRegistry)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fluid registry: %w", err)
	}
	return ParseRegistry(raw)
}

// ParseRegistry decodes a YAML fluid registry.
func ParseRegistry(raw []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fluid registry: %w", err)
	}
	return NewRegistry(f.Fluids...)
}

// NewRegistry builds a registry from fluids with unique names and legacy ids.
func NewRegistry(fluids ...*Fluid) (*Registry, error) {
	r := &Registry{
		byName:   make(map[string]*Fluid, len(fluids)),
		byLegacy: make(map[int]*Fluid),
	}
	for _, f := range fluids {
		if f == nil || f.Name == "" {
			return nil, fmt.Errorf("fluid without name")
		}
		if _, dup := r.byName[f.Name]; dup {
			return nil, fmt.Errorf("duplicate fluid %q", f.Name)
		}
		r.byName[f.Name] = f
		if f.LegacyID != nil {
			if prev, dup := r.byLegacy[*f.LegacyID]; dup {
				return nil, fmt.Errorf("legacy id %d used by %q and %q", *f.LegacyID, prev.Name, f.Name)
			}
			r.byLegacy[*f.LegacyID] = f
		}
	}
	return r, nil
}

// ByName returns the fluid registered under name.
func (r *Registry) ByName(name string) (*Fluid, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// ByLegacyID returns the fluid that used the numeric id in old cache files.
func (r *Registry) ByLegacyID(id int) (*Fluid, bool) {
	f, ok := r.byLegacy[id]
	return f, ok
}
