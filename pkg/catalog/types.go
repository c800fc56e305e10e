package catalog

// Port describes one named connection point on a node type. The slice
// index of a port within NodeType.Inputs/Outputs is the slot index used
// by links and by the portable document format.
type Port struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// NodeType is a registry entry: the declared shape of one node class.
// Entries are immutable after the catalog is loaded.
type NodeType struct {
	Name     string         `json:"name" yaml:"name"`
	Inputs   []Port         `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs  []Port         `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Defaults map[string]any `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// InputPort returns the declared input port at the given slot index.
func (t NodeType) InputPort(slot int) (Port, bool) {
	if slot < 0 || slot >= len(t.Inputs) {
		return Port{}, false
	}
	return t.Inputs[slot], true
}

// OutputPort returns the declared output port at the given slot index.
func (t NodeType) OutputPort(slot int) (Port, bool) {
	if slot < 0 || slot >= len(t.Outputs) {
		return Port{}, false
	}
	return t.Outputs[slot], true
}

// InputSlot resolves an input port name to its slot index.
func (t NodeType) InputSlot(name string) (int, bool) {
	for i, p := range t.Inputs {
		if p.Name == name {
			return i, true
		}
	}
	return 0, false
}

// IsInputPort reports whether name is a declared input port of this type.
// The portable document format relies on this to tell connection references
// apart from literal parameter values in the same inputs map.
func (t NodeType) IsInputPort(name string) bool {
	_, ok := t.InputSlot(name)
	return ok
}

// CloneDefaults returns a deep copy of the type's default parameters so
// callers can never mutate the catalog through a handed-out map.
func (t NodeType) CloneDefaults() map[string]any {
	if t.Defaults == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(t.Defaults))
	for k, v := range t.Defaults {
		out[k] = cloneValue(v)
	}
	return out
}

// clone returns a copy of the entry whose slices and maps share no storage
// with the catalog's own.
func (t NodeType) clone() NodeType {
	c := NodeType{
		Name:     t.Name,
		Inputs:   append([]Port(nil), t.Inputs...),
		Outputs:  append([]Port(nil), t.Outputs...),
		Defaults: t.CloneDefaults(),
	}
	return c
}

// cloneValue deep-copies the JSON-ish value shapes that appear in default
// parameter maps (scalars, []any, map[string]any).
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = cloneValue(inner)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, inner := range val {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return val
	}
}
