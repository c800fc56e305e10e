package portable

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"testing"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/loomlab/loom/pkg/catalog"
	"github.com/loomlab/loom/pkg/workflow"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("failed to load default catalog: %v", err)
	}
	return cat
}

func buildPipeline(t *testing.T) *workflow.Graph {
	t.Helper()
	g := workflow.New("A", "demo pipeline", testCatalog(t))
	loader, err := g.AddNode("LoaderNode", nil, map[string]any{"source": "x.parquet", "limit": 100})
	if err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	filter, err := g.AddNode("FilterNode", nil, nil)
	if err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	if _, _, err := g.Connect(loader.ID, 0, filter.ID, 0, "ANN_LIST"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return g
}

// topology flattens a graph's links into comparable strings, ignoring
// link ids.
func topology(g *workflow.Graph) []string {
	var out []string
	for _, l := range g.Links() {
		out = append(out, fmt.Sprintf("%d:%d->%d:%d %s", l.FromNode, l.FromSlot, l.ToNode, l.ToSlot, l.Type))
	}
	sort.Strings(out)
	return out
}

func TestExportShape(t *testing.T) {
	doc, err := Export(buildPipeline(t))
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	top := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data, top); err != nil {
		t.Fatalf("re-decode failed: %v", err)
	}
	var keys []string
	for pair := top.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	if len(keys) != 3 || keys[0] != "1" || keys[1] != "2" || keys[2] != "_meta" {
		t.Fatalf("top-level keys should be node ids in order then _meta, got %v", keys)
	}

	raw, _ := top.Get("2")
	var filter struct {
		ClassType string                              `json:"class_type"`
		Inputs    *orderedmap.OrderedMap[string, any] `json:"inputs"`
		Meta      *NodeMeta                           `json:"_meta"`
	}
	if err := json.Unmarshal(raw, &filter); err != nil {
		t.Fatalf("decoding node 2 failed: %v", err)
	}
	if filter.ClassType != "FilterNode" {
		t.Errorf("unexpected class_type %q", filter.ClassType)
	}

	var inputKeys []string
	for pair := filter.Inputs.Oldest(); pair != nil; pair = pair.Next() {
		inputKeys = append(inputKeys, pair.Key)
	}
	want := []string{"attribute", "threshold", "annotations"}
	if len(inputKeys) != len(want) {
		t.Fatalf("want input keys %v, got %v", want, inputKeys)
	}
	for i := range want {
		if inputKeys[i] != want[i] {
			t.Fatalf("literals must precede connection refs: want %v, got %v", want, inputKeys)
		}
	}

	ref, _ := filter.Inputs.Get("annotations")
	arr, ok := ref.([]any)
	if !ok || len(arr) != 2 || arr[0] != "1" || arr[1] != float64(0) {
		t.Errorf(`connection ref should be ["1", 0], got %#v`, ref)
	}

	if filter.Meta == nil || filter.Meta.Pos == nil || *filter.Meta.Pos != (workflow.Position{X: 450, Y: 50}) {
		t.Errorf("node _meta should carry the position, got %+v", filter.Meta)
	}

	var meta DocMeta
	rawMeta, _ := top.Get("_meta")
	if err := json.Unmarshal(rawMeta, &meta); err != nil {
		t.Fatalf("decoding _meta failed: %v", err)
	}
	if meta.Name != "A" || meta.Description != "demo pipeline" {
		t.Errorf("unexpected document meta %+v", meta)
	}
	if meta.CreatedWith != "loom" || meta.Version != "1.0" {
		t.Errorf("exports should stamp the producer, got %+v", meta)
	}
}

func TestRoundTripReproducesDocument(t *testing.T) {
	g := buildPipeline(t)

	first, err := Export(g)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	data1, err := json.MarshalIndent(first, "", "  ")
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	doc, err := Parse(data1)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	imported, err := Import(doc, g.Catalog())
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	second, err := Export(imported)
	if err != nil {
		t.Fatalf("second Export failed: %v", err)
	}
	data2, err := json.MarshalIndent(second, "", "  ")
	if err != nil {
		t.Fatalf("second Marshal failed: %v", err)
	}

	if string(data1) != string(data2) {
		t.Errorf("export -> import -> export should reproduce the document\nfirst:\n%s\nsecond:\n%s", data1, data2)
	}
}

func TestImportPreservesGraphContent(t *testing.T) {
	g := buildPipeline(t)

	doc, err := Export(g)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	imported, err := Import(doc, g.Catalog())
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if imported.Name() != "A" || imported.Description() != "demo pipeline" {
		t.Errorf("document meta should carry over: %q / %q", imported.Name(), imported.Description())
	}

	nodes := imported.Nodes()
	if len(nodes) != 2 || nodes[0].ID != 1 || nodes[1].ID != 2 {
		t.Fatalf("node ids should be preserved, got %+v", nodes)
	}
	if nodes[0].Type != "LoaderNode" || nodes[1].Type != "FilterNode" {
		t.Errorf("node types should be preserved, got %s/%s", nodes[0].Type, nodes[1].Type)
	}
	if nodes[0].Params["source"] != "x.parquet" {
		t.Errorf("literal params should carry over, got %v", nodes[0].Params["source"])
	}
	if nodes[0].Pos != (workflow.Position{X: 50, Y: 50}) {
		t.Errorf("positions should carry over, got %+v", nodes[0].Pos)
	}

	srcTopo, gotTopo := topology(g), topology(imported)
	if len(gotTopo) != 1 || gotTopo[0] != srcTopo[0] {
		t.Errorf("topology should carry over: want %v, got %v", srcTopo, gotTopo)
	}
	if gotTopo[0] != "1:0->2:0 ANN_LIST" {
		t.Errorf("link type should come from the source output tag, got %v", gotTopo)
	}
}

func TestImportKeepsSparseIDs(t *testing.T) {
	data := []byte(`{
		"3": {"class_type": "LoaderNode", "inputs": {}},
		"7": {"class_type": "FilterNode", "inputs": {"annotations": ["3", 0]}},
		"_meta": {"name": "sparse"}
	}`)
	doc, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	g, err := Import(doc, testCatalog(t))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	nodes := g.Nodes()
	if len(nodes) != 2 || nodes[0].ID != 3 || nodes[1].ID != 7 {
		t.Fatalf("document ids must be preserved, got %+v", nodes)
	}

	// Missing _meta.pos falls back to the auto-layout grid for that id.
	if nodes[0].Pos != workflow.AutoPosition(3) {
		t.Errorf("want auto position for node 3, got %+v", nodes[0].Pos)
	}

	added, err := g.AddNode("SplitNode", nil, nil)
	if err != nil {
		t.Fatalf("AddNode failed: %v", err)
	}
	if added.ID != 8 {
		t.Errorf("id allocation should resume past imported ids, got %d", added.ID)
	}
}

func TestImportNumericRefAccepted(t *testing.T) {
	data := []byte(`{
		"1": {"class_type": "LoaderNode", "inputs": {}},
		"2": {"class_type": "FilterNode", "inputs": {"annotations": [1, 0]}},
		"_meta": {"name": "n"}
	}`)
	doc, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	g, err := Import(doc, testCatalog(t))
	if err != nil {
		t.Fatalf("numeric node ids in refs should be accepted: %v", err)
	}
	if got := topology(g); len(got) != 1 || got[0] != "1:0->2:0 ANN_LIST" {
		t.Errorf("unexpected topology %v", got)
	}
}

func TestImportRefShapedLiteralStaysLiteral(t *testing.T) {
	// "tags" is not an input port of LoaderNode, so the value keeps its
	// literal meaning even though it looks like a connection ref.
	data := []byte(`{
		"1": {"class_type": "LoaderNode", "inputs": {"tags": ["1", 0]}},
		"_meta": {"name": "n"}
	}`)
	doc, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	g, err := Import(doc, testCatalog(t))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if _, links := g.Counts(); links != 0 {
		t.Errorf("no links should be created for literal params, got %d", links)
	}
	n, _ := g.Node(1)
	if _, ok := n.Params["tags"].([]any); !ok {
		t.Errorf("ref-shaped literal should stay a param, got %#v", n.Params["tags"])
	}
}

func TestImportMalformedDocuments(t *testing.T) {
	cat := testCatalog(t)
	cases := []struct {
		name string
		data string
	}{
		{"non-integer node key", `{"x": {"class_type": "LoaderNode", "inputs": {}}, "_meta": {"name": "n"}}`},
		{"zero node key", `{"0": {"class_type": "LoaderNode", "inputs": {}}, "_meta": {"name": "n"}}`},
		{"missing class_type", `{"1": {"inputs": {}}, "_meta": {"name": "n"}}`},
		{"unknown class_type", `{"1": {"class_type": "Bogus", "inputs": {}}, "_meta": {"name": "n"}}`},
		{"ref to missing node", `{"1": {"class_type": "FilterNode", "inputs": {"annotations": ["9", 0]}}, "_meta": {"name": "n"}}`},
		{"ref to out-of-range slot", `{
			"1": {"class_type": "LoaderNode", "inputs": {}},
			"2": {"class_type": "FilterNode", "inputs": {"annotations": ["1", 5]}},
			"_meta": {"name": "n"}
		}`},
		{"non-ref value on port key", `{
			"1": {"class_type": "FilterNode", "inputs": {"annotations": "nope"}},
			"_meta": {"name": "n"}
		}`},
		{"ref with wrong arity", `{
			"1": {"class_type": "LoaderNode", "inputs": {}},
			"2": {"class_type": "FilterNode", "inputs": {"annotations": ["1"]}},
			"_meta": {"name": "n"}
		}`},
		{"negative ref slot", `{
			"1": {"class_type": "LoaderNode", "inputs": {}},
			"2": {"class_type": "FilterNode", "inputs": {"annotations": ["1", -1]}},
			"_meta": {"name": "n"}
		}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := Parse([]byte(tc.data))
			if err != nil {
				t.Fatalf("Parse should succeed for %s (failure belongs to Import): %v", tc.name, err)
			}
			_, err = Import(doc, cat)
			if err == nil {
				t.Fatal("expected Import to fail")
			}
			var malformed *MalformedDocumentError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedDocumentError, got %T: %v", err, err)
			}
		})
	}
}

func TestImportUnknownClassWrapsTypedError(t *testing.T) {
	doc, err := Parse([]byte(`{"1": {"class_type": "Bogus", "inputs": {}}, "_meta": {"name": "n"}}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	_, err = Import(doc, testCatalog(t))
	var unknown *catalog.UnknownNodeTypeError
	if !errors.As(err, &unknown) || unknown.Type != "Bogus" {
		t.Errorf("import errors should keep the typed cause, got %v", err)
	}
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	for _, data := range []string{`{`, `[]`, `not json`, `null`} {
		if _, err := Parse([]byte(data)); err == nil {
			t.Errorf("Parse should reject %q", data)
		} else {
			var malformed *MalformedDocumentError
			if !errors.As(err, &malformed) {
				t.Errorf("expected MalformedDocumentError for %q, got %T", data, err)
			}
		}
	}
}

func TestRepairThenParse(t *testing.T) {
	almost := []byte(`{
		"1": {"class_type": "LoaderNode", "inputs": {"limit": 5,},},
		"_meta": {"name": "fixme"},
	}`)

	if _, err := Parse(almost); err == nil {
		t.Fatal("strict Parse should reject trailing commas")
	}

	fixed, err := Repair(almost)
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	doc, err := Parse(fixed)
	if err != nil {
		t.Fatalf("Parse after Repair failed: %v", err)
	}
	if doc.Meta.Name != "fixme" || doc.Nodes.Len() != 1 {
		t.Errorf("unexpected repaired document: %+v", doc.Meta)
	}
}

func TestEmptyDocumentRoundTrip(t *testing.T) {
	g := workflow.New("empty", "", testCatalog(t))
	doc, err := Export(g)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	back, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if back.Nodes.Len() != 0 || back.Meta.Name != "empty" {
		t.Errorf("unexpected decoded document: %d nodes, meta %+v", back.Nodes.Len(), back.Meta)
	}
}
