package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/loomlab/loom/pkg/catalog"
	"github.com/loomlab/loom/pkg/oplog"
	"github.com/loomlab/loom/pkg/portable"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("failed to load default catalog: %v", err)
	}
	return NewManager(cat, oplog.New(oplog.NewRing(64), nil, nil))
}

func TestCreateActivatesFirstWorkflow(t *testing.T) {
	m := testManager(t)

	first := m.Create("one", "")
	if m.ActiveID() != first {
		t.Errorf("first workflow should become active, got %q", m.ActiveID())
	}

	second := m.Create("two", "")
	if m.ActiveID() != first {
		t.Errorf("creating more workflows must not steal the active pointer, got %q", m.ActiveID())
	}
	if first == second {
		t.Error("workflow ids must be unique")
	}

	g, err := m.Get(second)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if g.Name() != "two" {
		t.Errorf("unexpected name %q", g.Name())
	}
}

func TestCreateDefaultName(t *testing.T) {
	m := testManager(t)
	id := m.Create("", "")
	g, _ := m.Get(id)
	if g.Name() != DefaultName {
		t.Errorf("want default name %q, got %q", DefaultName, g.Name())
	}
}

func TestGetUnknown(t *testing.T) {
	m := testManager(t)

	_, err := m.Get("nope")
	var notFound *GraphNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected GraphNotFoundError, got %v", err)
	}
	if notFound.ID != "nope" {
		t.Errorf("error should carry the id, got %q", notFound.ID)
	}
}

func TestResolveEmptyUsesActive(t *testing.T) {
	m := testManager(t)

	if _, err := m.Resolve(""); !errors.Is(err, ErrNoActiveGraph) {
		t.Errorf("empty session should report ErrNoActiveGraph, got %v", err)
	}

	id := m.Create("a", "")
	g, err := m.Resolve("")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if g.ID() != id {
		t.Errorf("Resolve(\"\") should return the active workflow, got %q", g.ID())
	}
}

func TestSetActive(t *testing.T) {
	m := testManager(t)
	m.Create("a", "")
	b := m.Create("b", "")

	if err := m.SetActive(b); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	if m.ActiveID() != b {
		t.Errorf("active should be %q, got %q", b, m.ActiveID())
	}

	var notFound *GraphNotFoundError
	if err := m.SetActive("nope"); !errors.As(err, &notFound) {
		t.Errorf("expected GraphNotFoundError, got %v", err)
	}
	if m.ActiveID() != b {
		t.Errorf("failed SetActive must not move the pointer, got %q", m.ActiveID())
	}
}

func TestDeleteReassignsActive(t *testing.T) {
	m := testManager(t)
	a := m.Create("a", "")
	b := m.Create("b", "")
	c := m.Create("c", "")

	// Deleting a non-active workflow leaves the pointer alone.
	if err := m.Delete(b); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if m.ActiveID() != a {
		t.Errorf("active should still be %q, got %q", a, m.ActiveID())
	}

	// Deleting the active workflow moves the pointer to the oldest survivor.
	if err := m.Delete(a); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if m.ActiveID() != c {
		t.Errorf("active should move to %q, got %q", c, m.ActiveID())
	}

	// Deleting the last workflow clears the pointer.
	if err := m.Delete(c); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if m.ActiveID() != "" {
		t.Errorf("active should clear, got %q", m.ActiveID())
	}
	if _, err := m.Active(); !errors.Is(err, ErrNoActiveGraph) {
		t.Errorf("expected ErrNoActiveGraph, got %v", err)
	}

	var notFound *GraphNotFoundError
	if err := m.Delete(a); !errors.As(err, &notFound) {
		t.Errorf("expected GraphNotFoundError, got %v", err)
	}
}

func TestListOrderAndCounts(t *testing.T) {
	m := testManager(t)
	a := m.Create("a", "first")
	b := m.Create("b", "second")

	g, _ := m.Get(b)
	loader, _ := g.AddNode("LoaderNode", nil, nil)
	filter, _ := g.AddNode("FilterNode", nil, nil)
	g.Connect(loader.ID, 0, filter.ID, 0, "ANN_LIST")

	list := m.List()
	if len(list) != 2 {
		t.Fatalf("want 2 summaries, got %d", len(list))
	}
	if list[0].ID != a || list[1].ID != b {
		t.Errorf("summaries should keep creation order, got %q,%q", list[0].ID, list[1].ID)
	}
	if !list[0].Active || list[1].Active {
		t.Errorf("active flag should mark %q, got %+v", a, list)
	}
	if list[1].Nodes != 2 || list[1].Links != 1 {
		t.Errorf("counts should reflect graph content, got %d/%d", list[1].Nodes, list[1].Links)
	}
	if list[1].Description != "second" {
		t.Errorf("unexpected description %q", list[1].Description)
	}
}

func TestCloneRegistersCopy(t *testing.T) {
	m := testManager(t)
	src := m.Create("base", "")
	g, _ := m.Get(src)
	g.AddNode("LoaderNode", nil, nil)

	cloneID, err := m.Clone(src, "")
	if err != nil {
		t.Fatalf("Clone failed: %v", err)
	}
	if cloneID == src {
		t.Error("clone must get its own id")
	}
	if m.ActiveID() != src {
		t.Errorf("cloning must not move the active pointer, got %q", m.ActiveID())
	}

	c, err := m.Get(cloneID)
	if err != nil {
		t.Fatalf("Get(clone) failed: %v", err)
	}
	if c.Name() != "base (Copy)" {
		t.Errorf("unexpected clone name %q", c.Name())
	}

	// Mutating the clone never touches the source.
	before := g.Snapshot()
	c.AddNode("FilterNode", nil, nil)
	if g.Snapshot() != before {
		t.Error("mutating the clone changed the source")
	}

	if _, err := m.Clone("nope", ""); err == nil {
		t.Error("cloning an unknown workflow should fail")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	m := testManager(t)
	id := m.Create("pipeline", "round trip")
	g, _ := m.Get(id)
	loader, _ := g.AddNode("LoaderNode", nil, map[string]any{"source": "x.parquet"})
	filter, _ := g.AddNode("FilterNode", nil, nil)
	g.Connect(loader.ID, 0, filter.ID, 0, "ANN_LIST")

	path := filepath.Join(t.TempDir(), "pipeline.json")
	if err := m.Save(context.Background(), id, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loadedID, err := m.Load(context.Background(), path, true, false)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loadedID == id {
		t.Error("loading registers a new workflow, not the saved one")
	}
	if m.ActiveID() != loadedID {
		t.Errorf("Load with setActive should activate the workflow, got %q", m.ActiveID())
	}

	loaded, _ := m.Get(loadedID)
	if loaded.Name() != "pipeline" || loaded.Description() != "round trip" {
		t.Errorf("document meta should survive, got %q/%q", loaded.Name(), loaded.Description())
	}
	nodes, links := loaded.Counts()
	if nodes != 2 || links != 1 {
		t.Errorf("graph content should survive, got %d nodes %d links", nodes, links)
	}
}

func TestSaveActiveByDefault(t *testing.T) {
	m := testManager(t)
	m.Create("active one", "")

	path := filepath.Join(t.TempDir(), "active.json")
	if err := m.Save(context.Background(), "", path); err != nil {
		t.Fatalf("Save with empty id failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file should exist: %v", err)
	}

	if err := m.Save(context.Background(), "nope", path); err == nil {
		t.Error("saving an unknown workflow should fail")
	}
}

func TestLoadNamelessDocumentUsesFilename(t *testing.T) {
	m := testManager(t)
	path := filepath.Join(t.TempDir(), "curation.json")
	data := []byte(`{"1": {"class_type": "LoaderNode", "inputs": {}}, "_meta": {"name": ""}}`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}

	id, err := m.Load(context.Background(), path, false, false)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	g, _ := m.Get(id)
	if g.Name() != "curation" {
		t.Errorf("nameless documents should take the file base name, got %q", g.Name())
	}
}

func TestLoadErrors(t *testing.T) {
	m := testManager(t)

	_, err := m.Load(context.Background(), filepath.Join(t.TempDir(), "absent.json"), false, false)
	var storage *portable.StorageError
	if !errors.As(err, &storage) {
		t.Errorf("expected StorageError, got %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(bad, []byte("{"), 0644)
	_, err = m.Load(context.Background(), bad, false, false)
	var malformedErr *portable.MalformedDocumentError
	if !errors.As(err, &malformedErr) {
		t.Errorf("expected MalformedDocumentError, got %v", err)
	}

	// Failed loads must not disturb the session.
	if len(m.List()) != 0 || m.ActiveID() != "" {
		t.Error("failed loads must not register workflows")
	}
}

func TestStats(t *testing.T) {
	m := testManager(t)
	a := m.Create("a", "")
	b := m.Create("b", "")

	ga, _ := m.Get(a)
	l1, _ := ga.AddNode("LoaderNode", nil, nil)
	f1, _ := ga.AddNode("FilterNode", nil, nil)
	ga.Connect(l1.ID, 0, f1.ID, 0, "ANN_LIST")

	gb, _ := m.Get(b)
	gb.AddNode("LoaderNode", nil, nil)

	workflows, nodes, links := m.Stats()
	if workflows != 2 || nodes != 3 || links != 1 {
		t.Errorf("want stats 2/3/1, got %d/%d/%d", workflows, nodes, links)
	}
}

func TestLifecycleOpsAreLogged(t *testing.T) {
	ring := oplog.NewRing(64)
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog failed: %v", err)
	}
	m := NewManager(cat, oplog.New(ring, nil, nil))

	id := m.Create("logged", "")
	m.SetActive(id)
	cloneID, _ := m.Clone(id, "")
	m.Delete(cloneID)

	stats := ring.Stats()
	for _, op := range []string{"workflow_create", "workflow_set_active", "workflow_clone", "workflow_delete"} {
		if stats.ByOp[op] == 0 {
			t.Errorf("expected an oplog entry for %s, got %v", op, stats.ByOp)
		}
	}
}
