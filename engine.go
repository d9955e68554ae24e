// Package ringmenu implements a rotary selection engine: the state machine
// behind a "watermill" style ring of selectable items that rotates about an
// axis. It normalizes heterogeneous input (wheel deltas, clicks, animation
// completions) into discrete selection moves, always takes the shortest
// angular path to a target, and guarantees mutual exclusion between
// concurrent animations, scroll requests, and highlight updates.
//
// The engine owns no rendering and no timing. A renderer consumes the events
// the engine emits, animates toward announced target angles, and reports back
// through OnAnimationComplete.
package ringmenu

import (
	"fmt"
	"time"
)

// Engine animation duration defaults. Scroll nudges deliberately animate
// faster than explicit click-selects.
const (
	DefaultSelectDuration = 600 * time.Millisecond
	DefaultScrollDuration = 250 * time.Millisecond
)

// EngineConfig configures one engine instance.
type EngineConfig struct {
	// ItemCount is the fixed number of selectable items. Must be >= 1.
	ItemCount int

	// InitialIndex is the selected index at creation. Default 0.
	InitialIndex int

	// SelectDuration / ScrollDuration are the suggested animation durations
	// attached to RotationTargetChanged events. Zero selects the defaults.
	SelectDuration time.Duration
	ScrollDuration time.Duration

	// MaxHold is the guard's auto-repair timeout. Zero selects DefaultMaxHold.
	MaxHold time.Duration

	// FrontAngle is the reference angle (radians) items are viewed from; the
	// highlight follows whichever item is nearest it. Default 0.
	FrontAngle float64

	// Emit receives engine events. May be nil (events are dropped).
	Emit func(Event)

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Engine is the public-facing orchestrator of one rotary selector: the only
// component a renderer or UI layer talks to. It composes the input
// normalizer's impulses, the shortest-path solver, and the selection guard.
//
// One Engine owns its ring state and guard exclusively. All methods are
// intended to be called only by the owning event-loop goroutine
// (single-owner); multiple independent engines coexist without shared state.
type Engine struct {
	itemCount    int
	initialIndex int

	currentAngle   float64
	targetAngle    float64
	currentIndex   int
	highlightIndex int
	isAnimating    bool

	guard *Guard
	emit  func(Event)

	selectDur  time.Duration
	scrollDur  time.Duration
	frontAngle float64
	clock      func() time.Time

	pendingRelease func()
	disposed       bool
}

// NewEngine constructs an engine with a fresh ring state and guard. Fails
// with ErrInvalidConfig if ItemCount < 1 or InitialIndex is out of range.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.ItemCount < 1 {
		return nil, fmt.Errorf("%w: item count must be >= 1, got %d", ErrInvalidConfig, cfg.ItemCount)
	}
	if cfg.InitialIndex < 0 || cfg.InitialIndex >= cfg.ItemCount {
		return nil, fmt.Errorf("%w: initial index %d not in [0,%d)", ErrInvalidConfig, cfg.InitialIndex, cfg.ItemCount)
	}

	if cfg.SelectDuration <= 0 {
		cfg.SelectDuration = DefaultSelectDuration
	}
	if cfg.ScrollDuration <= 0 {
		cfg.ScrollDuration = DefaultScrollDuration
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	e := &Engine{
		itemCount:      cfg.ItemCount,
		initialIndex:   cfg.InitialIndex,
		currentIndex:   cfg.InitialIndex,
		highlightIndex: cfg.InitialIndex,
		emit:           cfg.Emit,
		selectDur:      cfg.SelectDuration,
		scrollDur:      cfg.ScrollDuration,
		frontAngle:     cfg.FrontAngle,
		clock:          cfg.Clock,
	}
	e.currentAngle = float64(cfg.InitialIndex) * AngleStep(cfg.ItemCount)
	e.targetAngle = e.currentAngle

	e.guard = NewGuard(cfg.MaxHold, e.repairStuckLock)
	e.guard.clock = cfg.Clock

	return e, nil
}

// SelectIndex requests rotation to targetIndex.
//
// An out-of-range index fails with ErrIndexOutOfRange and leaves state
// untouched. A request arriving while the guard is held is dropped, not
// queued: (false, nil). This at-most-one-in-flight policy favors
// responsiveness over guaranteed delivery; a double-click during animation is
// expected to only honor the first.
//
// With animate=false the selection settles synchronously with no animation
// round-trip. With animate=true the engine stays locked until the renderer
// calls OnAnimationComplete.
func (e *Engine) SelectIndex(targetIndex int, animate bool) (bool, error) {
	if e.disposed {
		return false, nil
	}
	if targetIndex < 0 || targetIndex >= e.itemCount {
		return false, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, targetIndex, e.itemCount)
	}
	if !e.guard.CanSelect() {
		return false, nil
	}
	return e.admit(targetIndex, animate, e.selectDur), nil
}

// ScrollByImpulse advances the selection one slot in the direction of sign,
// wrapping around the ring. Dropped when the guard denies scrolling (same
// non-queuing policy as SelectIndex). sign 0 is ignored.
func (e *Engine) ScrollByImpulse(sign int) bool {
	if e.disposed || sign == 0 {
		return false
	}
	if !e.guard.CanScroll() {
		return false
	}

	step := 1
	if sign < 0 {
		step = -1
	}
	// Euclidean modulo so negative neighbors wrap correctly.
	next := ((e.currentIndex+step)%e.itemCount + e.itemCount) % e.itemCount

	return e.admit(next, true, e.scrollDur)
}

// admit is the single admission path for selections and scrolls.
func (e *Engine) admit(targetIndex int, animate bool, dur time.Duration) bool {
	release, ok := e.guard.LockSelection()
	if !ok {
		return false
	}

	rot := Solve(e.currentAngle, e.itemCount, targetIndex)
	e.targetAngle = rot.TargetAngle
	e.currentIndex = targetIndex
	e.highlightIndex = targetIndex

	e.emitEvent(RotationTargetChanged{
		Index:       targetIndex,
		TargetAngle: rot.TargetAngle,
		Direction:   rot.Direction,
		Duration:    dur,
	})

	if !animate {
		e.currentAngle = e.targetAngle
		release()
		e.emitEvent(SelectionSettled{Index: targetIndex})
		return true
	}

	e.isAnimating = true
	e.pendingRelease = release
	return true
}

// OnAnimationComplete is the renderer's re-entry point after it finishes
// animating an admitted rotation. It releases the guard, snaps the current
// angle to the target, and emits SelectionSettled.
//
// Calling this when not animating is a no-op; duplicate completion callbacks
// from animation libraries are routine.
func (e *Engine) OnAnimationComplete() {
	if e.disposed || !e.isAnimating {
		return
	}

	e.isAnimating = false
	e.currentAngle = e.targetAngle
	if e.pendingRelease != nil {
		e.pendingRelease()
		e.pendingRelease = nil
	}

	e.emitEvent(SelectionSettled{Index: e.currentIndex})
}

// UpdateHighlightTarget recomputes which item is nearest the front reference
// angle, for continuous-scroll scenarios where the item facing the viewer
// should be highlighted without an explicit select.
//
// Highlight refresh is cosmetic and must never preempt an authoritative
// selection, so this is a silent no-op (never an error) while the guard
// denies it, or while animating unless force is set.
func (e *Engine) UpdateHighlightTarget(force bool) (int, bool) {
	if e.disposed {
		return e.highlightIndex, false
	}
	if !e.guard.CanUpdateHighlight() {
		return e.highlightIndex, false
	}
	if e.isAnimating && !force {
		return e.highlightIndex, false
	}

	idx := NearestIndex(e.currentAngle-e.frontAngle, e.itemCount)
	if idx != e.highlightIndex {
		e.highlightIndex = idx
		e.emitEvent(HighlightChanged{Index: idx})
	}
	return idx, true
}

// BeginTransition takes the whole-menu transition lock (e.g. while swapping
// to a different submenu). While held, selection and scrolling are blocked.
// Returns a no-op release and false if a transition is already in progress.
func (e *Engine) BeginTransition() (release func(), ok bool) {
	if e.disposed {
		return func() {}, false
	}
	return e.guard.BeginTransition()
}

// SetRotationLocked blocks or unblocks scroll impulses without affecting
// explicit selection.
func (e *Engine) SetRotationLocked(v bool) {
	if e.disposed {
		return
	}
	e.guard.SetRotationLocked(v)
}

// SetHighlightSuppressed blocks or unblocks highlight refreshes.
func (e *Engine) SetHighlightSuppressed(v bool) {
	if e.disposed {
		return
	}
	e.guard.SetHighlightSuppressed(v)
}

// Tick drives the guard's auto-repair sweep. Call it at a fixed cadence from
// the owning event loop; without ticks, repair still happens lazily at the
// next admission attempt.
func (e *Engine) Tick(now time.Time) {
	if e.disposed {
		return
	}
	e.guard.MaybeExpire(now)
}

// repairStuckLock runs when the guard auto-releases a lock held past its
// maximum duration. The in-flight selection is resolved logically (every
// admitted selection must reach SelectionSettled); the renderer's visual
// angle may disagree with the logical angle until the next operation
// resynchronizes them. That degraded window is accepted, not hidden.
func (e *Engine) repairStuckLock(held time.Duration) {
	e.emitEvent(RecoverableError{
		Reason: fmt.Sprintf("lock auto-released after %s: animation completion was never reported", held),
	})

	if e.isAnimating {
		e.isAnimating = false
		e.pendingRelease = nil
		e.currentAngle = e.targetAngle
		e.emitEvent(SelectionSettled{Index: e.currentIndex})
	}
}

// Reset unconditionally forces the guard idle, abandons any in-flight
// animation without a settle event, and returns the ring to its initial
// selection. External error recovery only.
func (e *Engine) Reset() {
	if e.disposed {
		return
	}
	e.isAnimating = false
	e.pendingRelease = nil
	e.currentIndex = e.initialIndex
	e.highlightIndex = e.initialIndex
	e.currentAngle = float64(e.initialIndex) * AngleStep(e.itemCount)
	e.targetAngle = e.currentAngle
	e.guard.Reset()
}

// Dispose releases all locks and detaches the event sink. Idempotent and safe
// to call multiple times; every operation on a disposed engine is a no-op.
func (e *Engine) Dispose() {
	if e.disposed {
		return
	}
	e.disposed = true
	e.isAnimating = false
	e.pendingRelease = nil
	e.guard.Reset()
	e.emit = nil
}

func (e *Engine) emitEvent(ev Event) {
	if e.emit != nil {
		e.emit(ev)
	}
}

// Read-only accessors. The renderer must never mutate ring state directly;
// these are the only window into it.

func (e *Engine) ItemCount() int        { return e.itemCount }
func (e *Engine) CurrentIndex() int     { return e.currentIndex }
func (e *Engine) HighlightIndex() int   { return e.highlightIndex }
func (e *Engine) CurrentAngle() float64 { return e.currentAngle }
func (e *Engine) TargetAngle() float64  { return e.targetAngle }
func (e *Engine) IsAnimating() bool     { return e.isAnimating }

// Snapshot is a coherent copy of the ring state, safe to hand to other
// goroutines (e.g. for a state_init message to a newly connected renderer).
type Snapshot struct {
	ItemCount      int     `json:"item_count"`
	CurrentIndex   int     `json:"current_index"`
	HighlightIndex int     `json:"highlight_index"`
	CurrentAngle   float64 `json:"current_angle"`
	TargetAngle    float64 `json:"target_angle"`
	IsAnimating    bool    `json:"is_animating"`
}

// Snapshot returns the current ring state.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		ItemCount:      e.itemCount,
		CurrentIndex:   e.currentIndex,
		HighlightIndex: e.highlightIndex,
		CurrentAngle:   e.currentAngle,
		TargetAngle:    e.targetAngle,
		IsAnimating:    e.isAnimating,
	}
}
