package catalog

import (
	"errors"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	cat, err := Default()
	if err != nil {
		t.Fatalf("Default() failed: %v", err)
	}

	// The embedded catalog must cover the core pipeline types.
	for _, name := range []string{"LoaderNode", "FilterNode", "SplitNode", "TrainNode"} {
		if _, err := cat.Describe(name); err != nil {
			t.Errorf("expected %s in default catalog: %v", name, err)
		}
	}

	loader, err := cat.Describe("LoaderNode")
	if err != nil {
		t.Fatalf("Describe(LoaderNode) failed: %v", err)
	}
	if len(loader.Inputs) != 0 {
		t.Errorf("LoaderNode should declare no inputs, got %d", len(loader.Inputs))
	}
	out, ok := loader.OutputPort(0)
	if !ok || out.Type != "ANN_LIST" {
		t.Errorf("LoaderNode output slot 0 should be ANN_LIST, got %+v (ok=%v)", out, ok)
	}

	filter, err := cat.Describe("FilterNode")
	if err != nil {
		t.Fatalf("Describe(FilterNode) failed: %v", err)
	}
	in, ok := filter.InputPort(0)
	if !ok || !in.Required || in.Type != "ANN_LIST" {
		t.Errorf("FilterNode input slot 0 should be a required ANN_LIST port, got %+v (ok=%v)", in, ok)
	}
	if !filter.IsInputPort("annotations") {
		t.Errorf("FilterNode should declare 'annotations' as an input port")
	}
	if filter.IsInputPort("threshold") {
		t.Errorf("'threshold' is a parameter, not an input port")
	}
}

func TestDescribeUnknownType(t *testing.T) {
	cat, err := Default()
	if err != nil {
		t.Fatalf("Default() failed: %v", err)
	}

	_, err = cat.Describe("NoSuchNode")
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
	var unknown *UnknownNodeTypeError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownNodeTypeError, got %T", err)
	}
	if unknown.Type != "NoSuchNode" {
		t.Errorf("error should carry the offending name, got %q", unknown.Type)
	}
}

func TestDefaultsAreIsolated(t *testing.T) {
	cat, err := Default()
	if err != nil {
		t.Fatalf("Default() failed: %v", err)
	}

	first, _ := cat.Describe("FilterNode")
	first.Defaults["threshold"] = 0.1
	first.Inputs[0].Name = "mutated"

	second, _ := cat.Describe("FilterNode")
	if second.Defaults["threshold"] == 0.1 {
		t.Error("mutating a described entry leaked into the catalog defaults")
	}
	if second.Inputs[0].Name != "annotations" {
		t.Error("mutating a described entry leaked into the catalog ports")
	}
}

func TestLoadRejectsBadCatalogs(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"invalid yaml", "node_types: ["},
		{"empty catalog", "node_types: []"},
		{"duplicate names", `
node_types:
  - name: A
  - name: A
`},
		{"empty name", `
node_types:
  - name: ""
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load([]byte(tc.yaml)); err == nil {
				t.Errorf("expected Load to reject %s", tc.name)
			}
		})
	}
}

func TestLoadCustomCatalog(t *testing.T) {
	data := []byte(`
node_types:
  - name: CustomNode
    inputs:
      - { name: in, type: BLOB, required: true }
    outputs:
      - { name: out, type: BLOB }
    defaults:
      depth: 3
      tags: [a, b]
`)
	cat, err := Load(data)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cat.Len() != 1 {
		t.Fatalf("expected 1 type, got %d", cat.Len())
	}
	custom, err := cat.Describe("CustomNode")
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	slot, ok := custom.InputSlot("in")
	if !ok || slot != 0 {
		t.Errorf("expected input 'in' at slot 0, got %d (ok=%v)", slot, ok)
	}
	if custom.Defaults["depth"] != 3 {
		t.Errorf("expected depth default 3, got %v", custom.Defaults["depth"])
	}
}
