package snapshot

import (
	"context"
	"errors"
	"testing"

	"github.com/matzehuels/kintree/pkg/layout"
	"github.com/matzehuels/kintree/pkg/lineage"
)

func testTree(t *testing.T) *lineage.Tree {
	t.Helper()
	tree, err := lineage.FromRecord(&lineage.Record{
		Name: "Elena",
		Children: []*lineage.Record{
			{Name: "Marta"},
			{Name: "Jorge"},
		},
	})
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	return tree
}

func TestFileStoreTreeRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	tree := testTree(t)
	if err := store.SaveTree(ctx, "familia", tree); err != nil {
		t.Fatalf("SaveTree: %v", err)
	}

	got, err := store.LoadTree(ctx, "familia")
	if err != nil {
		t.Fatalf("LoadTree: %v", err)
	}
	if got.Hash() != tree.Hash() {
		t.Errorf("hash mismatch after round trip: %s != %s", got.Hash(), tree.Hash())
	}
	if got.Len() != 3 {
		t.Errorf("Len = %d, want 3", got.Len())
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.LoadTree(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestFileStoreNameValidation(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()
	tree := testTree(t)

	if err := store.SaveTree(ctx, "  ", tree); !errors.Is(err, ErrEmptyName) {
		t.Errorf("blank name: want ErrEmptyName, got %v", err)
	}
	if err := store.SaveTree(ctx, "../escape", tree); err == nil {
		t.Error("path traversal name should be rejected")
	}
	if err := store.SaveTree(ctx, "ok", nil); !errors.Is(err, lineage.ErrEmptyTree) {
		t.Errorf("nil tree: want ErrEmptyTree, got %v", err)
	}
}

func TestFileStorePositionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	tree := testTree(t)

	ov := layout.Overrides{}
	ov.Set(1, layout.Point{X: 120, Y: 340})
	ov.Set(2, layout.Point{X: 500, Y: 340})
	if err := store.SavePositions(ctx, tree.Hash(), ov); err != nil {
		t.Fatalf("SavePositions: %v", err)
	}

	got, err := store.LoadPositions(ctx, tree.Hash())
	if err != nil {
		t.Fatalf("LoadPositions: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("Len = %d, want 2", got.Len())
	}
	if p, ok := got.Get(1); !ok || p.X != 120 || p.Y != 340 {
		t.Errorf("node 1 position = %+v, %v", p, ok)
	}

	// Missing positions come back empty, not as an error.
	empty, err := store.LoadPositions(ctx, "deadbeef")
	if err != nil {
		t.Fatalf("LoadPositions(missing): %v", err)
	}
	if empty.Len() != 0 {
		t.Errorf("expected empty set, got %d entries", empty.Len())
	}
}

func TestFileStoreSaveEmptyPositionsClears(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	ov := layout.Overrides{}
	ov.Set(0, layout.Point{X: 1, Y: 2})
	if err := store.SavePositions(ctx, "abc", ov); err != nil {
		t.Fatalf("SavePositions: %v", err)
	}
	if err := store.SavePositions(ctx, "abc", layout.Overrides{}); err != nil {
		t.Fatalf("SavePositions(empty): %v", err)
	}
	got, err := store.LoadPositions(ctx, "abc")
	if err != nil {
		t.Fatalf("LoadPositions: %v", err)
	}
	if got.Len() != 0 {
		t.Errorf("positions not cleared: %d entries", got.Len())
	}
}

func TestFileStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	tree := testTree(t)

	if err := store.SaveTree(ctx, "a", tree); err != nil {
		t.Fatalf("SaveTree: %v", err)
	}
	if err := store.SaveTree(ctx, "b", tree); err != nil {
		t.Fatalf("SaveTree: %v", err)
	}
	ov := layout.Overrides{}
	ov.Set(1, layout.Point{X: 9, Y: 9})
	if err := store.SavePositions(ctx, tree.Hash(), ov); err != nil {
		t.Fatalf("SavePositions: %v", err)
	}

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Persons != 3 || e.TreeHash != tree.Hash() || !e.Positions {
			t.Errorf("unexpected entry: %+v", e)
		}
	}

	if err := store.DeleteTree(ctx, "a"); err != nil {
		t.Fatalf("DeleteTree: %v", err)
	}
	entries, err = store.List(ctx)
	if err != nil {
		t.Fatalf("List after delete: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "b" {
		t.Fatalf("unexpected entries after delete: %+v", entries)
	}
	// Deleting again is a no-op.
	if err := store.DeleteTree(ctx, "a"); err != nil {
		t.Fatalf("second DeleteTree: %v", err)
	}
}
