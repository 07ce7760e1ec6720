package render

import (
	"strings"
	"testing"

	"github.com/matzehuels/kintree/pkg/lineage"
)

func TestCanvasRendersLabels(t *testing.T) {
	tree := sampleTree(t)
	l := sampleLayout(t, tree, nil)

	c := NewCanvas(tree, l, 60, 12)
	out := c.Render()
	for _, name := range []string{"[Elena]", "[Marta]", "[Jorge]"} {
		if !strings.Contains(out, name) {
			t.Errorf("canvas missing %s:\n%s", name, out)
		}
	}
	if got := strings.Count(out, "\n"); got != 11 {
		t.Errorf("expected 11 newlines for 12 rows, got %d", got)
	}
}

func TestCanvasNodeAt(t *testing.T) {
	tree := sampleTree(t)
	l := sampleLayout(t, tree, nil)
	c := NewCanvas(tree, l, 60, 12)

	// Root label sits centered on the top row.
	rootX := scale(400, 800, 60)
	id, ok := c.NodeAt(rootX, 0)
	if !ok || id != tree.Root() {
		t.Fatalf("NodeAt(%d, 0) = %v, %v; want root", rootX, id, ok)
	}

	if _, ok := c.NodeAt(0, 5); ok {
		t.Error("expected miss on empty cell")
	}
	if _, ok := c.NodeAt(-1, -1); ok {
		t.Error("expected miss outside grid")
	}
}

func TestCanvasTinyGrid(t *testing.T) {
	tree := sampleTree(t)
	l := sampleLayout(t, tree, nil)

	// Degenerate sizes are clamped instead of panicking.
	c := NewCanvas(tree, l, 1, 1)
	if c.Width < 4 || c.Height < 3 {
		t.Fatalf("grid not clamped: %dx%d", c.Width, c.Height)
	}
	_ = c.Render()
}

func TestCanvasSelection(t *testing.T) {
	tree := sampleTree(t)
	l := sampleLayout(t, tree, nil)
	c := NewCanvas(tree, l, 60, 12)

	c.SetSelected(tree.Root(), true)
	_ = c.Render()
	c.SetSelected(0, false)
	_ = c.Render()
}

func TestCanvasEmpty(t *testing.T) {
	c := NewCanvas(nil, nil, 20, 5)
	if _, ok := c.NodeAt(3, 3); ok {
		t.Error("empty canvas should miss")
	}
	out := c.Render()
	if strings.TrimSpace(strings.ReplaceAll(out, "\n", "")) != "" {
		t.Errorf("empty canvas should render blanks: %q", out)
	}
}

func TestCanvasNonASCIILabels(t *testing.T) {
	tree, err := lineage.FromRecord(&lineage.Record{
		Name:     "José",
		Children: []*lineage.Record{{Name: "Zoë"}},
	})
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	l := sampleLayout(t, tree, nil)
	c := NewCanvas(tree, l, 40, 10)

	out := c.Render()
	for _, label := range []string{"[José]", "[Zoë]"} {
		if !strings.Contains(out, label) {
			t.Errorf("canvas missing %s:\n%s", label, out)
		}
	}

	// The hit box spans the rune width of the label, not its byte width:
	// "[José]" is 6 cells, centered on the root column.
	rootX := scale(400, 800, 40)
	for _, dx := range []int{-3, 0, 2} {
		if id, ok := c.NodeAt(rootX+dx, 0); !ok || id != tree.Root() {
			t.Errorf("NodeAt(%d, 0) = %v, %v; want root", rootX+dx, id, ok)
		}
	}
	if _, ok := c.NodeAt(rootX+4, 0); ok {
		t.Error("hit box wider than the rune count of the label")
	}
}
