// Package gesture classifies pointer interactions over diagram nodes.
//
// A gesture is one complete pointer-down → pointer-move* → pointer-up
// sequence over a single node. The interpreter is an explicit two-state
// machine (Idle, Tracking) with a single mutable gesture slot: there is at
// most one tracked gesture per interpreter, and a pointer-down arriving while
// another gesture is tracked is ignored.
//
// Classification is time-only by design: a gesture is a click when it
// completes within ClickThreshold of its pointer-down, regardless of how far
// the pointer moved, and a drag otherwise - even with zero movement. A fast
// tap with accidental jitter therefore still selects, and a slow stationary
// press commits a (no-op) position override instead of opening the detail
// view. This tradeoff is intentional and must not be replaced with a
// distance-based rule.
//
// The interpreter is intended to run on a single UI event loop and is not
// safe for concurrent use.
package gesture

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/kintree/pkg/layout"
	"github.com/matzehuels/kintree/pkg/lineage"
	"github.com/matzehuels/kintree/pkg/observability"
)

// Default tuning values. Both are configurable via Options.
const (
	// DefaultClickThreshold is the hold duration below which a gesture is a
	// click. At or above it the gesture is a drag.
	DefaultClickThreshold = 200 * time.Millisecond

	// DefaultStuckTimeout bounds how long a gesture may track without a
	// pointer-up before it is considered stuck and force-reset.
	DefaultStuckTimeout = 30 * time.Second
)

// State is the interpreter's machine state.
type State int

const (
	// StateIdle means no gesture is tracked. Initial and terminal state.
	StateIdle State = iota
	// StateTracking means a pointer-down was observed and the interpreter is
	// waiting for the matching pointer-up.
	StateTracking
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTracking:
		return "tracking"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StuckGestureError reports a tracked gesture whose pointer-up never arrived
// within the stuck timeout. It is recovered locally by force-resetting to
// Idle and only surfaces through diagnostic logging and hooks.
type StuckGestureError struct {
	Target lineage.NodeID
	Held   time.Duration
}

// Error implements the error interface.
func (e *StuckGestureError) Error() string {
	return fmt.Sprintf("stuck gesture on node %d: no pointer-up after %s", e.Target, e.Held.Round(time.Millisecond))
}

// Selection is the concretely-typed detail record dispatched to the external
// detail-view collaborator when a node is clicked.
type Selection struct {
	Name     string `json:"name"`
	Age      *int   `json:"age,omitempty"`
	Category string `json:"category,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// SelectionSink receives selection events. The collaborator owns presentation
// and has no further contract with the interpreter.
type SelectionSink interface {
	ShowDetail(sel Selection)
}

// Kind classifies a completed gesture.
type Kind int

const (
	// KindNone means no gesture completed (out-of-order event, cancel).
	KindNone Kind = iota
	// KindClick means the gesture selected a node.
	KindClick
	// KindDrag means the gesture committed a position override.
	KindDrag
)

// Result describes the outcome of a pointer-up.
type Result struct {
	Kind      Kind
	Target    lineage.NodeID
	Selection Selection    // populated for KindClick
	Pos       layout.Point // committed override position for KindDrag
	Held      time.Duration
}

// Gesture is the single tracked interaction. At most one exists at a time.
type Gesture struct {
	ID       string // diagnostic identifier, unique per gesture
	Target   lineage.NodeID
	Start    time.Time
	Dragging bool
	Pos      layout.Point
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithClickThreshold overrides the click/drag decision boundary. Zero is a
// valid boundary: with held < threshold deciding clicks, a zero threshold
// classifies every press as a hold. Negative values are ignored.
func WithClickThreshold(d time.Duration) Option {
	return func(i *Interpreter) {
		if d >= 0 {
			i.clickThreshold = d
		}
	}
}

// WithStuckTimeout overrides the stuck-gesture recovery timeout.
func WithStuckTimeout(d time.Duration) Option {
	return func(i *Interpreter) {
		if d > 0 {
			i.stuckTimeout = d
		}
	}
}

// WithClock injects a time source. Tests use this to drive classification
// deterministically.
func WithClock(now func() time.Time) Option {
	return func(i *Interpreter) {
		if now != nil {
			i.now = now
		}
	}
}

// WithLogger sets the diagnostic logger. Stuck-gesture recoveries are logged
// at debug level; nothing is surfaced to the user.
func WithLogger(l *log.Logger) Option {
	return func(i *Interpreter) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithSelectionSink registers the external detail-view collaborator.
func WithSelectionSink(sink SelectionSink) Option {
	return func(i *Interpreter) { i.sink = sink }
}

// Interpreter turns raw pointer events into click or drag outcomes.
// It owns the override map together with the layout engine: drags write to
// it, clicks never do.
type Interpreter struct {
	tree      *lineage.Tree
	overrides layout.Overrides

	clickThreshold time.Duration
	stuckTimeout   time.Duration
	now            func() time.Time
	logger         *log.Logger
	sink           SelectionSink

	state   State
	current Gesture
}

// New creates an interpreter for the given tree, writing committed drag
// positions into overrides. The override map must be the same one handed to
// [layout.Build] so re-layout respects committed drags.
func New(tree *lineage.Tree, overrides layout.Overrides, opts ...Option) *Interpreter {
	i := &Interpreter{
		tree:           tree,
		overrides:      overrides,
		clickThreshold: DefaultClickThreshold,
		stuckTimeout:   DefaultStuckTimeout,
		now:            time.Now,
		logger:         log.NewWithOptions(io.Discard, log.Options{}),
		state:          StateIdle,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// State returns the current machine state.
func (i *Interpreter) State() State { return i.state }

// Current returns a copy of the tracked gesture, if any.
func (i *Interpreter) Current() (Gesture, bool) {
	if i.state != StateTracking {
		return Gesture{}, false
	}
	return i.current, true
}

// PointerDown begins tracking a gesture over the target node. It reports
// whether tracking began: a pointer-down over an unknown node is ignored, and
// so is one arriving while another gesture is tracked - unless that gesture
// is stuck past the timeout, in which case it is force-reset first.
func (i *Interpreter) PointerDown(target lineage.NodeID, pos layout.Point) bool {
	if i.state == StateTracking {
		if i.reapStuck() == nil {
			return false
		}
	}
	if _, err := i.tree.Person(target); err != nil {
		return false
	}

	i.current = Gesture{
		ID:     uuid.NewString(),
		Target: target,
		Start:  i.now(),
		Pos:    pos,
	}
	i.state = StateTracking
	observability.Gesture().OnGestureStart(i.current.ID, int(target))
	return true
}

// PointerMove updates the tracked gesture with a new pointer position and
// returns it for continuous visual feedback. Movement marks the gesture as
// dragging but does not commit anything: the live position is discarded if
// the gesture ends up classified as a click. In Idle the event is a no-op.
func (i *Interpreter) PointerMove(pos layout.Point) (layout.Point, bool) {
	if i.state != StateTracking {
		return layout.Point{}, false
	}
	i.current.Dragging = true
	i.current.Pos = pos
	return pos, true
}

// PointerUp completes the tracked gesture and classifies it. The decision is
// purely elapsed time: held < ClickThreshold is a click (Selection emitted,
// live position discarded), anything else is a drag (override committed at
// pos, no Selection). A pointer-up with no tracked gesture is a no-op.
func (i *Interpreter) PointerUp(pos layout.Point) Result {
	if i.state != StateTracking {
		return Result{Kind: KindNone}
	}

	g := i.current
	held := i.now().Sub(g.Start)
	i.reset()

	if held < i.clickThreshold {
		sel := i.selection(g.Target)
		if i.sink != nil {
			i.sink.ShowDetail(sel)
		}
		observability.Gesture().OnClick(g.ID, int(g.Target), held)
		return Result{Kind: KindClick, Target: g.Target, Selection: sel, Held: held}
	}

	i.overrides.Set(g.Target, pos)
	observability.Gesture().OnDrag(g.ID, int(g.Target), held)
	return Result{Kind: KindDrag, Target: g.Target, Pos: pos, Held: held}
}

// Cancel force-resets the interpreter to Idle, discarding any tracked
// gesture. Use it when the pointer leaves the tracked surface or the view is
// torn down.
func (i *Interpreter) Cancel() {
	i.reset()
}

// CheckStuck force-resets a gesture whose pointer-up never arrived within the
// stuck timeout and returns the resulting *StuckGestureError, or nil if no
// recovery was needed. Callers typically invoke this on a periodic tick so a
// lost pointer-up cannot wedge the interpreter in Tracking.
func (i *Interpreter) CheckStuck() error {
	if i.state != StateTracking {
		return nil
	}
	return i.reapStuck()
}

// reapStuck resets the tracked gesture if it exceeded the stuck timeout.
// Returns the recovery error, or nil if the gesture is still live.
func (i *Interpreter) reapStuck() error {
	held := i.now().Sub(i.current.Start)
	if held < i.stuckTimeout {
		return nil
	}

	err := &StuckGestureError{Target: i.current.Target, Held: held}
	i.logger.Debug("recovered stuck gesture", "gesture", i.current.ID, "target", i.current.Target, "held", held)
	observability.Gesture().OnStuckReset(i.current.ID, int(i.current.Target), held)
	i.reset()
	return err
}

func (i *Interpreter) reset() {
	i.state = StateIdle
	i.current = Gesture{}
}

func (i *Interpreter) selection(id lineage.NodeID) Selection {
	p, err := i.tree.Person(id)
	if err != nil {
		return Selection{}
	}
	return Selection{Name: p.Name, Age: p.Age, Category: p.Category, Notes: p.Notes}
}
