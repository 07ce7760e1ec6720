package lineage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
)

var (
	// ErrEmptyTree is returned by [FromRecord] and the snapshot readers when
	// no root record is supplied. A lineage without a root cannot be laid out
	// or rendered, so loading fails immediately.
	ErrEmptyTree = errors.New("empty tree: no root entity")

	// ErrUnknownNode is returned by [Tree.Person] when the node ID is out of
	// range for the tree's arena.
	ErrUnknownNode = errors.New("unknown node")
)

// MalformedTreeError describes a structural defect found while building a
// tree: a record without a name, a negative age, or a record that appears as
// its own ancestor. Path identifies the offending record as a slash-separated
// chain of names from the root (unnamed records appear as "?").
type MalformedTreeError struct {
	Path   string // e.g. "root/Ana/Luis"
	Reason string // e.g. "cycle detected"
}

// Error implements the error interface.
func (e *MalformedTreeError) Error() string {
	return fmt.Sprintf("malformed tree at %s: %s", e.Path, e.Reason)
}

// NodeID addresses a person inside a [Tree]. IDs are stable for the lifetime
// of the tree: position overrides, layout nodes, and gesture targets all refer
// to entities by NodeID rather than by name (names are not unique).
type NodeID int

// RootID is the NodeID of the root entity in every non-empty tree.
const RootID NodeID = 0

// Person is one member of the lineage. All descriptive fields except Name are
// optional. Children holds arena indices in insertion order, which is also
// display order.
type Person struct {
	Name     string
	Age      *int
	Category string
	Notes    string
	Children []NodeID
}

// Well-known category tags. Category is an open string field - snapshots in
// the wild carry arbitrary tags - but these two cover the common case.
const (
	CategoryMale   = "male"
	CategoryFemale = "female"
)

// Record is the nested exchange shape for lineage snapshots, matching the
// on-disk JSON format {name, age?, category?, notes?, children?}. Records are
// only a transport: use [FromRecord] to obtain a validated [Tree].
type Record struct {
	Name     string    `json:"name" bson:"name"`
	Age      *int      `json:"age,omitempty" bson:"age,omitempty"`
	Category string    `json:"category,omitempty" bson:"category,omitempty"`
	Notes    string    `json:"notes,omitempty" bson:"notes,omitempty"`
	Children []*Record `json:"children,omitempty" bson:"children,omitempty"`
}

// Tree is an arena of persons forming a rooted tree. The root lives at index
// 0 and parent-child edges are stored as index lists, so no entity owns
// another by reference and traversal cannot recurse into a cycle.
//
// A Tree is structurally immutable after construction: sessions may override
// display positions (owned by the layout/gesture pair), but never add or
// remove members. Tree is safe for concurrent readers.
type Tree struct {
	persons []Person
}

// FromRecord builds a validated Tree from a nested record structure.
// It returns ErrEmptyTree if root is nil, or a *MalformedTreeError if any
// record is unnamed, carries a negative age, or appears as its own ancestor.
//
// Cycle detection uses a visited set of record pointers along the current
// ancestor chain, so a self-referential structure is reported with its path
// instead of recursing forever.
func FromRecord(root *Record) (*Tree, error) {
	if root == nil {
		return nil, ErrEmptyTree
	}

	t := &Tree{}
	onPath := make(map[*Record]bool)

	var build func(r *Record, path []string) (NodeID, error)
	build = func(r *Record, path []string) (NodeID, error) {
		path = append(path, displayName(r))
		if onPath[r] {
			return 0, &MalformedTreeError{Path: joinPath(path), Reason: "cycle detected"}
		}
		if strings.TrimSpace(r.Name) == "" {
			return 0, &MalformedTreeError{Path: joinPath(path), Reason: "unnamed node"}
		}
		if r.Age != nil && *r.Age < 0 {
			return 0, &MalformedTreeError{Path: joinPath(path), Reason: "age must be non-negative"}
		}

		id := NodeID(len(t.persons))
		t.persons = append(t.persons, Person{
			Name:     r.Name,
			Age:      r.Age,
			Category: r.Category,
			Notes:    r.Notes,
		})

		onPath[r] = true
		for _, child := range r.Children {
			if child == nil {
				continue
			}
			childID, err := build(child, path)
			if err != nil {
				return 0, err
			}
			t.persons[id].Children = append(t.persons[id].Children, childID)
		}
		onPath[r] = false

		return id, nil
	}

	if _, err := build(root, nil); err != nil {
		return nil, err
	}
	return t, nil
}

// Root returns the ID of the root entity.
func (t *Tree) Root() NodeID { return RootID }

// Len returns the number of entities in the tree.
func (t *Tree) Len() int { return len(t.persons) }

// EdgeCount returns the number of parent-child edges. For any valid tree this
// is exactly Len()-1.
func (t *Tree) EdgeCount() int {
	if len(t.persons) == 0 {
		return 0
	}
	return len(t.persons) - 1
}

// Person returns the entity with the given ID. The returned pointer refers to
// the tree's arena; callers must treat it as read-only.
func (t *Tree) Person(id NodeID) (*Person, error) {
	if id < 0 || int(id) >= len(t.persons) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	return &t.persons[id], nil
}

// Children returns the child IDs of the given node in display order.
// The returned slice is a read-only view into the arena.
func (t *Tree) Children(id NodeID) []NodeID {
	if id < 0 || int(id) >= len(t.persons) {
		return nil
	}
	return t.persons[id].Children
}

// Walk returns a lazy pre-order traversal yielding (NodeID, depth) pairs,
// root first. The sequence is finite and restartable: ranging over it twice
// visits the same nodes in the same order. Traversal is iterative, so tree
// height does not grow the call stack.
func (t *Tree) Walk() iter.Seq2[NodeID, int] {
	return func(yield func(NodeID, int) bool) {
		if len(t.persons) == 0 {
			return
		}
		type frame struct {
			id    NodeID
			depth int
		}
		stack := []frame{{RootID, 0}}
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(f.id, f.depth) {
				return
			}
			// Push children reversed so the first child is visited first.
			kids := t.persons[f.id].Children
			for i := len(kids) - 1; i >= 0; i-- {
				stack = append(stack, frame{kids[i], f.depth + 1})
			}
		}
	}
}

// WalkPersons is like [Tree.Walk] but yields the person records directly.
func (t *Tree) WalkPersons() iter.Seq2[*Person, int] {
	return func(yield func(*Person, int) bool) {
		for id, depth := range t.Walk() {
			if !yield(&t.persons[id], depth) {
				return
			}
		}
	}
}

// MaxDepth returns the depth of the deepest entity (root = 0).
func (t *Tree) MaxDepth() int {
	max := 0
	for _, depth := range t.Walk() {
		if depth > max {
			max = depth
		}
	}
	return max
}

// ToRecord converts the tree back to its nested exchange shape.
// Round trip is lossless: FromRecord(t.ToRecord()) reproduces the tree.
func (t *Tree) ToRecord() *Record {
	if len(t.persons) == 0 {
		return nil
	}
	var convert func(id NodeID) *Record
	convert = func(id NodeID) *Record {
		p := t.persons[id]
		r := &Record{
			Name:     p.Name,
			Age:      p.Age,
			Category: p.Category,
			Notes:    p.Notes,
		}
		for _, c := range p.Children {
			r.Children = append(r.Children, convert(c))
		}
		return r
	}
	return convert(RootID)
}

// Hash returns a SHA-256 content hash of the tree's canonical JSON form.
// Trees with identical structure and attributes hash identically, which makes
// the hash usable as a cache key component.
func (t *Tree) Hash() string {
	data, _ := json.Marshal(t.ToRecord())
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func displayName(r *Record) string {
	if strings.TrimSpace(r.Name) == "" {
		return "?"
	}
	return r.Name
}

func joinPath(path []string) string {
	return strings.Join(path, "/")
}
