package portable

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadFileRoundTrip(t *testing.T) {
	g := buildPipeline(t)
	path := filepath.Join(t.TempDir(), "nested", "pipeline.json")

	if err := WriteFile(context.Background(), g, path); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	loaded, err := ReadFile(context.Background(), path, g.Catalog(), false)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	want, _ := Export(g)
	got, _ := Export(loaded)
	wantJSON, _ := json.Marshal(want)
	gotJSON, _ := json.Marshal(got)
	if string(wantJSON) != string(gotJSON) {
		t.Errorf("file round trip changed the document\nwant: %s\ngot:  %s", wantJSON, gotJSON)
	}
}

func TestWriteFileLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wf.json")

	if err := WriteFile(context.Background(), buildPipeline(t), path); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	// Overwrites go through the same temp+rename path.
	if err := WriteFile(context.Background(), buildPipeline(t), path); err != nil {
		t.Fatalf("second WriteFile failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "wf.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only wf.json in %s, got %v", dir, names)
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(context.Background(), filepath.Join(t.TempDir(), "absent.json"), testCatalog(t), false)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	var storage *StorageError
	if !errors.As(err, &storage) {
		t.Fatalf("expected StorageError, got %T: %v", err, err)
	}
	if storage.Op != "read" {
		t.Errorf("unexpected op %q", storage.Op)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("cause should unwrap to ErrNotExist, got %v", err)
	}
}

func TestReadFileRepairOptIn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sloppy.json")
	sloppy := []byte(`{"1": {"class_type": "LoaderNode", "inputs": {},}, "_meta": {"name": "s"},}`)
	if err := os.WriteFile(path, sloppy, 0644); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}
	cat := testCatalog(t)

	if _, err := ReadFile(context.Background(), path, cat, false); err == nil {
		t.Fatal("strict read should reject sloppy JSON")
	} else {
		var malformed *MalformedDocumentError
		if !errors.As(err, &malformed) {
			t.Fatalf("expected MalformedDocumentError, got %T", err)
		}
	}

	g, err := ReadFile(context.Background(), path, cat, true)
	if err != nil {
		t.Fatalf("repairing read failed: %v", err)
	}
	if nodes, _ := g.Counts(); nodes != 1 {
		t.Errorf("expected 1 node after repair, got %d", nodes)
	}
	if g.Name() != "s" {
		t.Errorf("unexpected name %q", g.Name())
	}
}

func TestFileOpsHonorContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "wf.json")
	err := WriteFile(ctx, buildPipeline(t), path)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("WriteFile should refuse a canceled context, got %v", err)
	}
	if _, statErr := os.Stat(path); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("nothing should be written under a canceled context")
	}

	if _, err := ReadFile(ctx, path, testCatalog(t), false); !errors.Is(err, context.Canceled) {
		t.Errorf("ReadFile should refuse a canceled context, got %v", err)
	}
}
