// Package catalog holds the static registry of node types known to the
// workflow manager. The catalog is populated once at startup, either from
// the embedded default set or from a YAML file, and is read-only afterwards:
// the graph model consults it to validate node-type names, to seed default
// parameters, and to resolve port names and slot indices.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// UnknownNodeTypeError is returned when a node-type name is not registered.
type UnknownNodeTypeError struct {
	Type string
}

func (e *UnknownNodeTypeError) Error() string {
	return fmt.Sprintf("unknown node type %q", e.Type)
}

// Catalog is an immutable set of node types keyed by name.
type Catalog struct {
	types map[string]NodeType
	names []string
}

// New builds a catalog from a list of entries. Names must be unique and
// non-empty.
func New(types []NodeType) (*Catalog, error) {
	c := &Catalog{types: make(map[string]NodeType, len(types))}
	for _, t := range types {
		if t.Name == "" {
			return nil, fmt.Errorf("catalog entry with empty name")
		}
		if _, exists := c.types[t.Name]; exists {
			return nil, fmt.Errorf("duplicate node type %q", t.Name)
		}
		c.types[t.Name] = t.clone()
		c.names = append(c.names, t.Name)
	}
	sort.Strings(c.names)
	return c, nil
}

// catalogFile models the YAML catalog document.
type catalogFile struct {
	NodeTypes []NodeType `yaml:"node_types"`
}

// Load parses a YAML catalog document.
func Load(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog yaml: %w", err)
	}
	if len(file.NodeTypes) == 0 {
		return nil, fmt.Errorf("catalog declares no node types")
	}
	return New(file.NodeTypes)
}

// LoadFile reads and parses a YAML catalog file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	c, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog file %s: %w", path, err)
	}
	return c, nil
}

// Describe returns the registry entry for the named node type. The returned
// value shares no storage with the catalog.
func (c *Catalog) Describe(name string) (NodeType, error) {
	t, ok := c.types[name]
	if !ok {
		return NodeType{}, &UnknownNodeTypeError{Type: name}
	}
	return t.clone(), nil
}

// Types returns the sorted list of registered type names.
func (c *Catalog) Types() []string {
	return append([]string(nil), c.names...)
}

// Len returns the number of registered node types.
func (c *Catalog) Len() int {
	return len(c.types)
}
