package portable

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loomlab/loom/pkg/catalog"
	"github.com/loomlab/loom/pkg/workflow"
)

// WriteFile exports g and writes the indented document to path. The
// write goes through a temp file in the target directory followed by a
// rename, so readers never observe a partial document.
func WriteFile(ctx context.Context, g *workflow.Graph, path string) error {
	if err := ctx.Err(); err != nil {
		return &StorageError{Path: path, Op: "write", Err: err}
	}

	doc, err := Export(g)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &StorageError{Path: path, Op: "write", Err: fmt.Errorf("failed to encode document: %w", err)}
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &StorageError{Path: path, Op: "write", Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".loom-*.json")
	if err != nil {
		return &StorageError{Path: path, Op: "write", Err: fmt.Errorf("failed to create temp file: %w", err)}
	}
	defer tmp.Close()

	if _, err := tmp.Write(data); err != nil {
		os.Remove(tmp.Name())
		return &StorageError{Path: path, Op: "write", Err: fmt.Errorf("failed to write temp file: %w", err)}
	}
	if err := tmp.Sync(); err != nil {
		os.Remove(tmp.Name())
		return &StorageError{Path: path, Op: "write", Err: fmt.Errorf("failed to sync temp file: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &StorageError{Path: path, Op: "write", Err: fmt.Errorf("failed to close temp file: %w", err)}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return &StorageError{Path: path, Op: "write", Err: fmt.Errorf("failed to rename temp file: %w", err)}
	}
	return nil
}

// ReadFile loads the portable document at path and materializes it
// against cat. With repair set, almost-JSON input is run through Repair
// before parsing; strict input passes through repair unchanged. A
// document without a _meta name takes the file's base name.
func ReadFile(ctx context.Context, path string, cat *catalog.Catalog, repair bool) (*workflow.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StorageError{Path: path, Op: "read", Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &StorageError{Path: path, Op: "read", Err: err}
	}
	if repair {
		if data, err = Repair(data); err != nil {
			return nil, err
		}
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if doc.Meta.Name == "" {
		doc.Meta.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return Import(doc, cat)
}
