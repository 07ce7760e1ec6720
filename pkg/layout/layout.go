// Package layout computes 2-D coordinates for lineage trees.
//
// The engine performs a two-pass tidy-tree placement: a depth pass that maps
// each node's depth to the vertical axis, and a post-order sibling pass that
// partitions the horizontal space among subtrees and centers each parent over
// the midpoint of its children. Nodes with an active manual override are
// placed at their overridden coordinates and excluded from the automatic
// sibling placement, while edges still terminate at the overridden position.
//
// Build is deterministic: the same tree, frame, and overrides always produce
// bit-identical coordinates, which makes layouts cacheable by content hash.
package layout

import (
	"fmt"
	"time"

	"github.com/matzehuels/kintree/pkg/lineage"
	"github.com/matzehuels/kintree/pkg/observability"
)

// Frame is the bounded drawing area layouts are computed for.
type Frame struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultFrame is used when no frame dimensions are configured.
var DefaultFrame = Frame{Width: 800, Height: 600}

// Point is a position in layout space. The origin is the top-left corner of
// the frame; Y grows downward (root above descendants).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is the ephemeral per-layout coordinate wrapper around one entity.
// Nodes are recomputed on every Build call; only override positions survive
// across passes.
type Node struct {
	ID         lineage.NodeID `json:"id"`
	Pos        Point          `json:"pos"`
	Depth      int            `json:"depth"`
	Overridden bool           `json:"overridden,omitempty"`
}

// Edge connects a parent to one of its children. Endpoint coordinates are
// resolved through the node positions at render time, so an edge toward an
// overridden node follows the override.
type Edge struct {
	From lineage.NodeID `json:"from"`
	To   lineage.NodeID `json:"to"`
}

// Layout holds the result of one placement pass. Nodes appear in pre-order
// (root first); Edges appear in the same order their child endpoints are
// visited, so both orders are deterministic.
type Layout struct {
	Frame Frame  `json:"frame"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`

	index map[lineage.NodeID]int
}

// Position returns the computed position of the given node.
func (l *Layout) Position(id lineage.NodeID) (Point, bool) {
	i, ok := l.index[id]
	if !ok {
		return Point{}, false
	}
	return l.Nodes[i].Pos, true
}

// Node returns the layout node for the given entity ID.
func (l *Layout) Node(id lineage.NodeID) (Node, bool) {
	i, ok := l.index[id]
	if !ok {
		return Node{}, false
	}
	return l.Nodes[i], true
}

// Build computes a layout for the tree within the frame, honoring the given
// manual overrides. Passing a nil or empty tree returns
// [lineage.ErrEmptyTree]; a single-node tree is placed at the frame center.
//
// Overrides may be nil. Build never mutates the tree or the override map.
func Build(t *lineage.Tree, frame Frame, ov Overrides) (*Layout, error) {
	start := time.Now()
	nodeCount := 0
	if t != nil {
		nodeCount = t.Len()
	}
	observability.Layout().OnLayoutStart(nodeCount)

	l, err := build(t, frame, ov)
	observability.Layout().OnLayoutComplete(nodeCount, time.Since(start), err)
	return l, err
}

func build(t *lineage.Tree, frame Frame, ov Overrides) (*Layout, error) {
	if t == nil || t.Len() == 0 {
		return nil, fmt.Errorf("layout: %w", lineage.ErrEmptyTree)
	}
	if frame.Width <= 0 || frame.Height <= 0 {
		frame = DefaultFrame
	}

	l := &Layout{
		Frame: frame,
		Nodes: make([]Node, 0, t.Len()),
		index: make(map[lineage.NodeID]int, t.Len()),
	}

	// Pre-order node list and edges; positions are filled in below.
	for id, depth := range t.Walk() {
		l.index[id] = len(l.Nodes)
		l.Nodes = append(l.Nodes, Node{ID: id, Depth: depth})
		for _, child := range t.Children(id) {
			l.Edges = append(l.Edges, Edge{From: id, To: child})
		}
	}

	if t.Len() == 1 {
		l.Nodes[0].Pos = Point{X: frame.Width / 2, Y: frame.Height / 2}
		if p, ok := ov.Get(t.Root()); ok {
			l.Nodes[0].Pos = p
			l.Nodes[0].Overridden = true
		}
		return l, nil
	}

	// Depth pass: vertical position proportional to depth/maxDepth.
	maxDepth := t.MaxDepth()
	for i := range l.Nodes {
		l.Nodes[i].Pos.Y = frame.Height * float64(l.Nodes[i].Depth) / float64(maxDepth)
	}

	// Sibling pass: post-order horizontal placement. Each subtree receives an
	// equal slice of its parent's span; parents center over the midpoint of
	// their automatically placed children. Overridden nodes take their stored
	// position and do not participate in the centering mean.
	var place func(id lineage.NodeID, lo, hi float64) (x float64, auto bool)
	place = func(id lineage.NodeID, lo, hi float64) (float64, bool) {
		kids := t.Children(id)

		var sum float64
		var counted int
		if n := len(kids); n > 0 {
			slice := (hi - lo) / float64(n)
			for i, kid := range kids {
				kidLo := lo + float64(i)*slice
				x, auto := place(kid, kidLo, kidLo+slice)
				if auto {
					sum += x
					counted++
				}
			}
		}

		i := l.index[id]
		if p, ok := ov.Get(id); ok {
			l.Nodes[i].Pos = p
			l.Nodes[i].Overridden = true
			return 0, false
		}

		x := (lo + hi) / 2
		if counted > 0 {
			x = sum / float64(counted)
		}
		l.Nodes[i].Pos.X = x
		return x, true
	}
	place(t.Root(), 0, frame.Width)

	return l, nil
}
