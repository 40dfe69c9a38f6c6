package veintype

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_veins.yaml
var defaultCatalog []byte

// Catalog is the ordered set of vein types registered for a session.
type Catalog struct {
	types  []*VeinType
	byName map[string]*VeinType
}

type catalogFile struct {
	Veins []*VeinType `yaml:"veins"`
}

// LoadCatalog reads a catalog from a YAML file. An empty path loads the
// embedded default catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalog)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vein catalog: %w", err)
	}
	cat, err := ParseCatalog(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// ParseCatalog decodes a YAML vein catalog.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse vein catalog: %w", err)
	}
	return NewCatalog(f.Veins...)
}

// NewCatalog builds a catalog from vein types. Names must be unique and must
// not collide with NoVein.
func NewCatalog(types ...*VeinType) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]*VeinType, len(types))}
	for _, v := range types {
		if v == nil || v.Name == "" {
			return nil, fmt.Errorf("vein type without name")
		}
		if v.Name == NoVein.Name {
			return nil, fmt.Errorf("vein type name %q is reserved", v.Name)
		}
		if _, dup := c.byName[v.Name]; dup {
			return nil, fmt.Errorf("duplicate vein type %q", v.Name)
		}
		c.byName[v.Name] = v
		c.types = append(c.types, v)
	}
	return c, nil
}

// Types returns the registered vein types in catalog order.
func (c *Catalog) Types() []*VeinType {
	return c.types
}

// Lookup returns the vein type registered under name.
func (c *Catalog) Lookup(name string) (*VeinType, bool) {
	if name == NoVein.Name {
		return NoVein, true
	}
	v, ok := c.byName[name]
	return v, ok
}

// Len returns the number of registered vein types.
func (c *Catalog) Len() int {
	return len(c.types)
}
