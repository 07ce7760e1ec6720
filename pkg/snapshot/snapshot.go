// Package snapshot persists lineage trees and the manual position overrides
// a user has applied to them, so a layout survives across sessions.
//
// Two backends are provided:
//   - file: JSON files in a config directory, for CLI use
//   - mongo: MongoDB collections, for shared deployments
//
// Position overrides are keyed by the tree's content hash. Editing the tree
// produces a new hash and therefore a fresh override slate, which avoids
// stale positions silently attaching to renumbered nodes.
package snapshot

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/matzehuels/kintree/pkg/layout"
	"github.com/matzehuels/kintree/pkg/lineage"
)

// Sentinel errors for snapshot operations.
var (
	// ErrNotFound is returned when a named tree or position set does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmptyName is returned when a tree name is blank.
	ErrEmptyName = errors.New("empty snapshot name")
)

// Entry describes a stored tree without its full contents.
type Entry struct {
	Name      string    `json:"name" bson:"name"`
	TreeHash  string    `json:"tree_hash" bson:"tree_hash"`
	Persons   int       `json:"persons" bson:"persons"`
	SavedAt   time.Time `json:"saved_at" bson:"saved_at"`
	Positions bool      `json:"positions" bson:"positions"`
}

// Positions is a stored override set bound to a specific tree revision.
// Overrides are flattened to a slice so both JSON and BSON codecs handle
// them without string-keyed map contortions.
type Positions struct {
	TreeHash string       `json:"tree_hash" bson:"tree_hash"`
	Points   []PointEntry `json:"points" bson:"points"`
	SavedAt  time.Time    `json:"saved_at" bson:"saved_at"`
}

// PointEntry is one pinned node position.
type PointEntry struct {
	ID lineage.NodeID `json:"id" bson:"id"`
	X  float64        `json:"x" bson:"x"`
	Y  float64        `json:"y" bson:"y"`
}

// Store persists trees and position overrides.
type Store interface {
	// SaveTree stores the tree under the given name, overwriting any
	// previous revision.
	SaveTree(ctx context.Context, name string, t *lineage.Tree) error

	// LoadTree retrieves a tree by name. Returns ErrNotFound when absent.
	LoadTree(ctx context.Context, name string) (*lineage.Tree, error)

	// DeleteTree removes a stored tree and its positions.
	DeleteTree(ctx context.Context, name string) error

	// List enumerates stored trees.
	List(ctx context.Context) ([]Entry, error)

	// SavePositions stores the override set for a tree revision.
	SavePositions(ctx context.Context, treeHash string, ov layout.Overrides) error

	// LoadPositions retrieves the override set for a tree revision.
	// Returns an empty set (not ErrNotFound) when none is stored.
	LoadPositions(ctx context.Context, treeHash string) (layout.Overrides, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}

func newPositions(treeHash string, ov layout.Overrides) *Positions {
	pts := make([]PointEntry, 0, ov.Len())
	for id, p := range ov {
		pts = append(pts, PointEntry{ID: id, X: p.X, Y: p.Y})
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].ID < pts[j].ID })
	return &Positions{TreeHash: treeHash, Points: pts, SavedAt: time.Now().UTC()}
}

func (p *Positions) overrides() layout.Overrides {
	ov := layout.Overrides{}
	if p == nil {
		return ov
	}
	for _, pt := range p.Points {
		ov[pt.ID] = layout.Point{X: pt.X, Y: pt.Y}
	}
	return ov
}
