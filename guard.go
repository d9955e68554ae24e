package ringmenu

import "time"

// GuardState enumerates the guard's mutual-exclusion states.
//
// Transitioning is a superset lock used for whole-menu swaps (opening a
// different submenu); while active it also blocks selection.
type GuardState int

const (
	GuardIdle GuardState = iota
	GuardSelectLocked
	GuardTransitioning
)

func (s GuardState) String() string {
	switch s {
	case GuardSelectLocked:
		return "select_locked"
	case GuardTransitioning:
		return "transitioning"
	default:
		return "idle"
	}
}

// DefaultMaxHold is the auto-repair timeout before a stuck lock is forcibly
// released.
const DefaultMaxHold = 5 * time.Second

// Guard serializes access to selection/scroll/highlight state so overlapping
// asynchronous operations (an in-flight click animation, a scroll impulse
// arriving mid-animation, an unrelated highlight refresh) cannot corrupt the
// ring state or act on stale assumptions.
//
// One Guard belongs to exactly one Engine. There is no multi-goroutine access
// in this design; all methods are intended to be called only by the owning
// event-loop goroutine (single-owner), so no locking primitives beyond the
// guard's own flags are needed.
type Guard struct {
	maxHold time.Duration
	clock   func() time.Time

	state          GuardState
	lockAcquiredAt time.Time

	// gen invalidates stale release handles: every acquisition and every
	// forced release bumps it, so a release closure only fires for the
	// acquisition that created it. Calling a release twice is harmless.
	gen uint64

	rotationLocked      bool
	highlightSuppressed bool

	// onAutoRelease fires exactly once per stuck-lock episode, from
	// MaybeExpire or from the next acquisition attempt, whichever comes first.
	onAutoRelease func(held time.Duration)
}

// NewGuard constructs a guard. maxHold <= 0 selects DefaultMaxHold.
// onAutoRelease may be nil.
func NewGuard(maxHold time.Duration, onAutoRelease func(held time.Duration)) *Guard {
	if maxHold <= 0 {
		maxHold = DefaultMaxHold
	}
	return &Guard{
		maxHold:       maxHold,
		clock:         time.Now,
		onAutoRelease: onAutoRelease,
	}
}

// expired reports whether the current lock has been held past maxHold.
// Queries use this so a stuck lock reads as released even before the repair
// side effects have run.
func (g *Guard) expired(now time.Time) bool {
	return g.state != GuardIdle && now.Sub(g.lockAcquiredAt) > g.maxHold
}

// MaybeExpire force-releases a lock held past the maximum duration and fires
// onAutoRelease. Returns true when a repair happened. No lock may be held
// indefinitely: a caller that acquires and never releases (a renderer whose
// animation library silently failed to fire completion) must not freeze the
// component forever.
func (g *Guard) MaybeExpire(now time.Time) bool {
	if !g.expired(now) {
		return false
	}
	held := now.Sub(g.lockAcquiredAt)
	g.forceIdle()
	if g.onAutoRelease != nil {
		g.onAutoRelease(held)
	}
	return true
}

func (g *Guard) forceIdle() {
	g.state = GuardIdle
	g.lockAcquiredAt = time.Time{}
	g.gen++
}

// LockSelection attempts Idle -> SelectLocked and returns a release handle.
//
// Under contention it fails silently: a no-op release and ok=false, not an
// error. Callers are expected to check CanSelect first, but the call itself
// must be safe to make blindly. Nested acquisition is rejected, never queued.
func (g *Guard) LockSelection() (release func(), ok bool) {
	g.MaybeExpire(g.clock())

	if g.state != GuardIdle {
		return func() {}, false
	}
	return g.acquire(GuardSelectLocked), true
}

// BeginTransition attempts Idle/SelectLocked -> Transitioning and returns a
// release handle. Transitioning supersedes a held selection lock; the
// superseded lock's release handle becomes a no-op. Re-entrant transitions
// are rejected.
func (g *Guard) BeginTransition() (release func(), ok bool) {
	g.MaybeExpire(g.clock())

	if g.state == GuardTransitioning {
		return func() {}, false
	}
	return g.acquire(GuardTransitioning), true
}

func (g *Guard) acquire(s GuardState) func() {
	g.state = s
	g.lockAcquiredAt = g.clock()
	g.gen++
	gen := g.gen

	return func() {
		if g.gen == gen && g.state == s {
			g.forceIdle()
		}
	}
}

// CanSelect reports whether a selection may be admitted. Pure; no side
// effects.
func (g *Guard) CanSelect() bool {
	return g.state == GuardIdle || g.expired(g.clock())
}

// CanScroll reports whether a scroll impulse may be admitted.
func (g *Guard) CanScroll() bool {
	return g.CanSelect() && !g.rotationLocked
}

// CanUpdateHighlight reports whether a cosmetic highlight refresh may run.
// The engine additionally skips refreshes while animating unless forced.
func (g *Guard) CanUpdateHighlight() bool {
	if g.highlightSuppressed {
		return false
	}
	return g.state == GuardIdle || g.expired(g.clock())
}

// SetRotationLocked blocks/unblocks scroll impulses without touching the
// selection path.
func (g *Guard) SetRotationLocked(v bool) {
	g.rotationLocked = v
}

// SetHighlightSuppressed blocks/unblocks highlight refreshes.
func (g *Guard) SetHighlightSuppressed(v bool) {
	g.highlightSuppressed = v
}

// Reset unconditionally forces Idle and clears all flags. An escape hatch for
// external error recovery, not for normal flow.
func (g *Guard) Reset() {
	g.forceIdle()
	g.rotationLocked = false
	g.highlightSuppressed = false
}

// State returns the current state, accounting for expiry.
func (g *Guard) State() GuardState {
	if g.expired(g.clock()) {
		return GuardIdle
	}
	return g.state
}
