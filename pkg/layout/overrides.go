package layout

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"

	"github.com/matzehuels/kintree/pkg/lineage"
)

// Overrides maps entities to user-set positions that Build must respect
// instead of computing automatically. The map is owned by the gesture
// interpreter and layout engine pair for the duration of a session; it is not
// safe for concurrent use without external synchronization.
//
// Overrides persist for the session only unless an external store saves them
// (see the snapshot package).
type Overrides map[lineage.NodeID]Point

// Set records a manual position for the node.
func (o Overrides) Set(id lineage.NodeID, p Point) { o[id] = p }

// Get returns the override for the node, if one is active.
// A nil Overrides map has no entries.
func (o Overrides) Get(id lineage.NodeID) (Point, bool) {
	p, ok := o[id]
	return p, ok
}

// Delete clears the override for a single node.
func (o Overrides) Delete(id lineage.NodeID) { delete(o, id) }

// Clear removes all overrides.
func (o Overrides) Clear() {
	for id := range o {
		delete(o, id)
	}
}

// Len returns the number of active overrides.
func (o Overrides) Len() int { return len(o) }

// Clone returns an independent copy for handing to renderers or stores.
func (o Overrides) Clone() Overrides {
	if o == nil {
		return nil
	}
	out := make(Overrides, len(o))
	for id, p := range o {
		out[id] = p
	}
	return out
}

// Hash returns a SHA-256 hash over the overrides in ascending ID order,
// suitable as a cache key component. An empty or nil map hashes identically.
func (o Overrides) Hash() string {
	type entry struct {
		ID lineage.NodeID `json:"id"`
		P  Point          `json:"p"`
	}
	entries := make([]entry, 0, len(o))
	for id, p := range o {
		entries = append(entries, entry{ID: id, P: p})
	}
	slices.SortFunc(entries, func(a, b entry) int { return int(a.ID - b.ID) })

	data, _ := json.Marshal(entries)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
