package layout

import (
	"errors"
	"reflect"
	"testing"

	"github.com/matzehuels/kintree/pkg/lineage"
)

var testFrame = Frame{Width: 800, Height: 600}

func buildTree(t *testing.T, root *lineage.Record) *lineage.Tree {
	t.Helper()
	tree, err := lineage.FromRecord(root)
	if err != nil {
		t.Fatalf("FromRecord error: %v", err)
	}
	return tree
}

func threeGenerations(t *testing.T) *lineage.Tree {
	return buildTree(t, &lineage.Record{
		Name: "Elena",
		Children: []*lineage.Record{
			{Name: "Marta", Children: []*lineage.Record{
				{Name: "Ana"},
				{Name: "Luis"},
			}},
			{Name: "Jorge"},
		},
	})
}

func TestBuildEdgeCount(t *testing.T) {
	tree := threeGenerations(t)
	l, err := Build(tree, testFrame, nil)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if len(l.Nodes) != tree.Len() {
		t.Errorf("nodes = %d, want %d", len(l.Nodes), tree.Len())
	}
	if len(l.Edges) != tree.Len()-1 {
		t.Errorf("edges = %d, want %d (nodes-1)", len(l.Edges), tree.Len()-1)
	}
}

func TestBuildEmptyTree(t *testing.T) {
	if _, err := Build(nil, testFrame, nil); !errors.Is(err, lineage.ErrEmptyTree) {
		t.Errorf("Build(nil) = %v, want ErrEmptyTree", err)
	}
}

func TestBuildSingleNodeCentered(t *testing.T) {
	tree := buildTree(t, &lineage.Record{Name: "Solo"})
	l, err := Build(tree, testFrame, nil)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if len(l.Nodes) != 1 || len(l.Edges) != 0 {
		t.Fatalf("nodes=%d edges=%d, want 1 node and 0 edges", len(l.Nodes), len(l.Edges))
	}
	want := Point{X: 400, Y: 300}
	if l.Nodes[0].Pos != want {
		t.Errorf("position = %+v, want %+v", l.Nodes[0].Pos, want)
	}
}

func TestBuildDepthPass(t *testing.T) {
	tree := threeGenerations(t)
	l, err := Build(tree, testFrame, nil)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	// maxDepth=2: depth 0 -> y=0, depth 1 -> y=300, depth 2 -> y=600.
	wantY := map[int]float64{0: 0, 1: 300, 2: 600}
	for _, n := range l.Nodes {
		if n.Pos.Y != wantY[n.Depth] {
			t.Errorf("node %d depth %d: y = %v, want %v", n.ID, n.Depth, n.Pos.Y, wantY[n.Depth])
		}
	}
}

func TestBuildSiblingPass(t *testing.T) {
	tree := threeGenerations(t)
	l, err := Build(tree, testFrame, nil)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	// Root splits [0,800) into two slices. Marta's slice [0,400) splits into
	// [0,200) and [200,400): Ana at 100, Luis at 300, Marta centered at 200.
	// Jorge is a leaf centered in [400,800) at 600. Root centered over 200
	// and 600 at 400.
	byName := positionsByName(t, tree, l)
	wantX := map[string]float64{"Ana": 100, "Luis": 300, "Marta": 200, "Jorge": 600, "Elena": 400}
	for name, want := range wantX {
		if got := byName[name].X; got != want {
			t.Errorf("%s: x = %v, want %v", name, got, want)
		}
	}
}

func TestBuildIdempotent(t *testing.T) {
	tree := threeGenerations(t)
	ov := Overrides{}
	ov.Set(2, Point{X: 50, Y: 75})

	first, err := Build(tree, testFrame, ov)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	second, err := Build(tree, testFrame, ov)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	if !reflect.DeepEqual(first.Nodes, second.Nodes) {
		t.Error("repeated Build with identical inputs should produce bit-identical nodes")
	}
	if !reflect.DeepEqual(first.Edges, second.Edges) {
		t.Error("repeated Build with identical inputs should produce bit-identical edges")
	}
}

func TestBuildOverride(t *testing.T) {
	tree := threeGenerations(t)

	// Override Ana (pre-order index 2: Elena, Marta, Ana, ...).
	const ana = lineage.NodeID(2)
	ov := Overrides{}
	ov.Set(ana, Point{X: 50, Y: 75})

	l, err := Build(tree, testFrame, ov)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	n, ok := l.Node(ana)
	if !ok {
		t.Fatal("overridden node missing from layout")
	}
	if !n.Overridden {
		t.Error("node should be flagged as overridden")
	}
	if n.Pos != (Point{X: 50, Y: 75}) {
		t.Errorf("overridden pos = %+v, want {50 75}", n.Pos)
	}

	// Ana is excluded from Marta's centering: Marta centers over Luis alone.
	byName := positionsByName(t, tree, l)
	if got := byName["Marta"].X; got != 300 {
		t.Errorf("Marta x = %v, want 300 (centered over Luis only)", got)
	}

	// Edges still reference the overridden node so links follow it.
	found := false
	for _, e := range l.Edges {
		if e.To == ana {
			found = true
		}
	}
	if !found {
		t.Error("edge toward overridden node missing")
	}
}

func TestBuildAllChildrenOverridden(t *testing.T) {
	tree := buildTree(t, &lineage.Record{
		Name:     "Root",
		Children: []*lineage.Record{{Name: "Only"}},
	})

	ov := Overrides{}
	ov.Set(1, Point{X: 10, Y: 10})

	l, err := Build(tree, testFrame, ov)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	// With every child overridden the parent falls back to its slice center.
	root, _ := l.Node(tree.Root())
	if root.Pos.X != 400 {
		t.Errorf("root x = %v, want 400 (slice center fallback)", root.Pos.X)
	}
}

func TestBuildZeroFrameUsesDefault(t *testing.T) {
	tree := buildTree(t, &lineage.Record{Name: "Solo"})
	l, err := Build(tree, Frame{}, nil)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if l.Frame != DefaultFrame {
		t.Errorf("frame = %+v, want DefaultFrame", l.Frame)
	}
}

func TestOverrides(t *testing.T) {
	ov := Overrides{}
	if _, ok := ov.Get(1); ok {
		t.Error("empty overrides should have no entries")
	}

	ov.Set(1, Point{X: 1, Y: 2})
	ov.Set(2, Point{X: 3, Y: 4})
	if ov.Len() != 2 {
		t.Errorf("Len = %d, want 2", ov.Len())
	}

	clone := ov.Clone()
	ov.Delete(1)
	if clone.Len() != 2 {
		t.Error("Clone should be independent of the original")
	}

	ov.Clear()
	if ov.Len() != 0 {
		t.Error("Clear should remove all entries")
	}

	// Nil map reads are safe.
	var nilOv Overrides
	if _, ok := nilOv.Get(1); ok {
		t.Error("nil overrides should have no entries")
	}
}

func TestOverridesHash(t *testing.T) {
	a := Overrides{1: {X: 1, Y: 2}, 2: {X: 3, Y: 4}}
	b := Overrides{2: {X: 3, Y: 4}, 1: {X: 1, Y: 2}}
	if a.Hash() != b.Hash() {
		t.Error("hash should be independent of insertion order")
	}

	var empty Overrides
	if empty.Hash() != (Overrides{}).Hash() {
		t.Error("nil and empty overrides should hash identically")
	}

	c := Overrides{1: {X: 9, Y: 9}}
	if a.Hash() == c.Hash() {
		t.Error("different overrides should hash differently")
	}
}

func positionsByName(t *testing.T, tree *lineage.Tree, l *Layout) map[string]Point {
	t.Helper()
	out := make(map[string]Point)
	for _, n := range l.Nodes {
		p, err := tree.Person(n.ID)
		if err != nil {
			t.Fatalf("Person(%d): %v", n.ID, err)
		}
		out[p.Name] = n.Pos
	}
	return out
}
