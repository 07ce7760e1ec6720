package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/kintree/pkg/layout"
	"github.com/matzehuels/kintree/pkg/lineage"
)

// Canvas projects a layout onto a terminal cell grid. It renders node labels
// and connector lines, and answers hit tests so pointer events can be mapped
// back to the node under the cursor.
type Canvas struct {
	Width  int
	Height int

	runes  [][]rune
	styles [][]cellStyle
	boxes  []nodeBox

	selected   lineage.NodeID
	hasSelect  bool
	styleSet   CanvasStyles
	overridden map[lineage.NodeID]bool
}

type cellStyle uint8

const (
	styleNone cellStyle = iota
	styleEdge
	styleNode
	styleOverridden
	styleSelected
)

type nodeBox struct {
	id             lineage.NodeID
	x0, y0, x1, y1 int
}

// CanvasStyles holds the lipgloss styles applied when rendering.
type CanvasStyles struct {
	Edge       lipgloss.Style
	Node       lipgloss.Style
	Overridden lipgloss.Style
	Selected   lipgloss.Style
}

// DefaultCanvasStyles matches the palette used elsewhere in the tool.
func DefaultCanvasStyles() CanvasStyles {
	return CanvasStyles{
		Edge:       lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Node:       lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Overridden: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Selected:   lipgloss.NewStyle().Foreground(lipgloss.Color("45")).Bold(true),
	}
}

// NewCanvas renders the tree/layout pair into a width x height cell grid.
// Layout coordinates are scaled to fit the grid; labels are clamped so they
// never run off the edges.
func NewCanvas(t *lineage.Tree, l *layout.Layout, width, height int) *Canvas {
	if width < 4 {
		width = 4
	}
	if height < 3 {
		height = 3
	}

	c := &Canvas{
		Width:      width,
		Height:     height,
		styleSet:   DefaultCanvasStyles(),
		overridden: make(map[lineage.NodeID]bool),
	}
	c.runes = make([][]rune, height)
	c.styles = make([][]cellStyle, height)
	for y := range c.runes {
		c.runes[y] = make([]rune, width)
		c.styles[y] = make([]cellStyle, width)
		for x := range c.runes[y] {
			c.runes[y][x] = ' '
		}
	}
	if t == nil || l == nil || len(l.Nodes) == 0 {
		return c
	}

	centers := make(map[lineage.NodeID][2]int, len(l.Nodes))
	for _, n := range l.Nodes {
		cx := scale(n.Pos.X, l.Frame.Width, width)
		cy := scale(n.Pos.Y, l.Frame.Height, height)
		centers[n.ID] = [2]int{cx, cy}
		if n.Overridden {
			c.overridden[n.ID] = true
		}
	}

	// Edges first so node labels paint over them.
	for _, e := range l.Edges {
		from, to := centers[e.From], centers[e.To]
		c.drawLine(from[0], from[1], to[0], to[1])
	}
	for _, n := range l.Nodes {
		p, err := t.Person(n.ID)
		if err != nil {
			continue
		}
		ctr := centers[n.ID]
		c.drawNode(n.ID, p.Name, ctr[0], ctr[1])
	}
	return c
}

func scale(v, span float64, cells int) int {
	if span <= 0 {
		return 0
	}
	i := int(v / span * float64(cells-1))
	if i < 0 {
		i = 0
	}
	if i > cells-1 {
		i = cells - 1
	}
	return i
}

func (c *Canvas) drawLine(x0, y0, x1, y1 int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	glyph := '·'
	if dx == 0 {
		glyph = '│'
	} else if dy == 0 {
		glyph = '─'
	}
	err := dx + dy
	x, y := x0, y0
	for {
		c.set(x, y, glyph, styleEdge)
		if x == x1 && y == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func (c *Canvas) drawNode(id lineage.NodeID, name string, cx, cy int) {
	// Cell math must count runes, not bytes, or non-ASCII names drift.
	label := []rune("[" + name + "]")
	if len(label) > c.Width {
		label = label[:c.Width]
	}
	x0 := cx - len(label)/2
	if x0 < 0 {
		x0 = 0
	}
	if x0+len(label) > c.Width {
		x0 = c.Width - len(label)
	}
	st := styleNode
	if c.overridden[id] {
		st = styleOverridden
	}
	for i, r := range label {
		c.set(x0+i, cy, r, st)
	}
	c.boxes = append(c.boxes, nodeBox{id: id, x0: x0, y0: cy, x1: x0 + len(label) - 1, y1: cy})
}

func (c *Canvas) set(x, y int, r rune, st cellStyle) {
	if x < 0 || x >= c.Width || y < 0 || y >= c.Height {
		return
	}
	c.runes[y][x] = r
	c.styles[y][x] = st
}

// SetSelected highlights one node when rendering. Pass ok=false to clear.
func (c *Canvas) SetSelected(id lineage.NodeID, ok bool) {
	c.selected, c.hasSelect = id, ok
}

// NodeAt returns the node whose label occupies the given cell. Later-drawn
// nodes win when labels overlap.
func (c *Canvas) NodeAt(x, y int) (lineage.NodeID, bool) {
	for i := len(c.boxes) - 1; i >= 0; i-- {
		b := c.boxes[i]
		if x >= b.x0 && x <= b.x1 && y >= b.y0 && y <= b.y1 {
			return b.id, true
		}
	}
	return 0, false
}

// Render returns the styled grid as a string, one line per row.
func (c *Canvas) Render() string {
	selBoxes := make(map[int]nodeBox)
	if c.hasSelect {
		for _, b := range c.boxes {
			if b.id == c.selected {
				selBoxes[b.y0] = b
			}
		}
	}

	var out strings.Builder
	for y := 0; y < c.Height; y++ {
		var run strings.Builder
		cur := styleNone
		flush := func() {
			if run.Len() == 0 {
				return
			}
			out.WriteString(c.style(cur).Render(run.String()))
			run.Reset()
		}
		for x := 0; x < c.Width; x++ {
			st := c.styles[y][x]
			if b, ok := selBoxes[y]; ok && x >= b.x0 && x <= b.x1 {
				st = styleSelected
			}
			if st != cur {
				flush()
				cur = st
			}
			run.WriteRune(c.runes[y][x])
		}
		flush()
		if y < c.Height-1 {
			out.WriteByte('\n')
		}
	}
	return out.String()
}

func (c *Canvas) style(st cellStyle) lipgloss.Style {
	switch st {
	case styleEdge:
		return c.styleSet.Edge
	case styleNode:
		return c.styleSet.Node
	case styleOverridden:
		return c.styleSet.Overridden
	case styleSelected:
		return c.styleSet.Selected
	}
	return lipgloss.NewStyle()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
