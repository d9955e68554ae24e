package ringmenu

import (
	"errors"
	"math"
	"testing"
	"time"
)

// eventSink records engine emissions in order.
type eventSink struct {
	events []Event
}

func (s *eventSink) record(ev Event) {
	s.events = append(s.events, ev)
}

func (s *eventSink) settles() []SelectionSettled {
	var out []SelectionSettled
	for _, ev := range s.events {
		if settled, ok := ev.(SelectionSettled); ok {
			out = append(out, settled)
		}
	}
	return out
}

func (s *eventSink) targets() []RotationTargetChanged {
	var out []RotationTargetChanged
	for _, ev := range s.events {
		if tc, ok := ev.(RotationTargetChanged); ok {
			out = append(out, tc)
		}
	}
	return out
}

func (s *eventSink) recoverables() []RecoverableError {
	var out []RecoverableError
	for _, ev := range s.events {
		if re, ok := ev.(RecoverableError); ok {
			out = append(out, re)
		}
	}
	return out
}

// newTestEngine builds an engine with a recording sink and a settable clock.
func newTestEngine(t *testing.T, itemCount, initialIndex int) (*Engine, *eventSink, *time.Time) {
	t.Helper()

	now := time.Unix(1000, 0)
	sink := &eventSink{}
	e, err := NewEngine(EngineConfig{
		ItemCount:    itemCount,
		InitialIndex: initialIndex,
		MaxHold:      time.Second,
		Emit:         sink.record,
		Clock:        func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e, sink, &now
}

func TestNewEngine_RejectsBadConfig(t *testing.T) {
	if _, err := NewEngine(EngineConfig{ItemCount: 0}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("itemCount=0: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewEngine(EngineConfig{ItemCount: 4, InitialIndex: 4}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("initialIndex out of range: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewEngine(EngineConfig{ItemCount: 1}); err != nil {
		t.Errorf("single-item ring should be valid, got %v", err)
	}
}

// TestEngine_SelectIndex_Immediate covers the animate=false path: target and
// settle emitted synchronously, angle snapped, guard released.
func TestEngine_SelectIndex_Immediate(t *testing.T) {
	e, sink, _ := newTestEngine(t, 6, 0)

	admitted, err := e.SelectIndex(1, false)
	if err != nil || !admitted {
		t.Fatalf("expected admission, got admitted=%v err=%v", admitted, err)
	}

	if e.IsAnimating() {
		t.Errorf("immediate select must not leave the engine animating")
	}
	if e.CurrentIndex() != 1 {
		t.Errorf("expected index 1, got %d", e.CurrentIndex())
	}
	if math.Abs(e.CurrentAngle()-math.Pi/3) > angleEps {
		t.Errorf("expected angle π/3, got %f", e.CurrentAngle())
	}
	if e.CurrentAngle() != e.TargetAngle() {
		t.Errorf("current and target angle must agree when idle")
	}

	if len(sink.targets()) != 1 || len(sink.settles()) != 1 {
		t.Fatalf("expected one target + one settle event, got %v", sink.events)
	}
	if sink.settles()[0].Index != 1 {
		t.Errorf("settle reported index %d, want 1", sink.settles()[0].Index)
	}

	// A follow-up selection is immediately possible.
	if admitted, _ := e.SelectIndex(3, false); !admitted {
		t.Errorf("engine should be idle after an immediate select")
	}
}

// TestEngine_SelectIndex_AnimatedLifecycle covers admission, lock-out during
// animation, and settle on completion.
func TestEngine_SelectIndex_AnimatedLifecycle(t *testing.T) {
	e, sink, _ := newTestEngine(t, 8, 0)

	admitted, err := e.SelectIndex(2, true)
	if err != nil || !admitted {
		t.Fatalf("expected admission, got admitted=%v err=%v", admitted, err)
	}
	if !e.IsAnimating() {
		t.Fatalf("animated select should leave the engine animating")
	}

	targets := sink.targets()
	if len(targets) != 1 {
		t.Fatalf("expected one target event, got %d", len(targets))
	}
	if targets[0].Index != 2 || targets[0].Direction != Clockwise {
		t.Errorf("unexpected target event %+v", targets[0])
	}
	if targets[0].Duration != DefaultSelectDuration {
		t.Errorf("click-select should use the select duration, got %s", targets[0].Duration)
	}
	if len(sink.settles()) != 0 {
		t.Errorf("settle must not fire before the animation completes")
	}

	// A second request mid-animation is dropped, not queued.
	admitted, err = e.SelectIndex(5, true)
	if err != nil {
		t.Fatalf("contention must not be an error, got %v", err)
	}
	if admitted {
		t.Fatalf("select during animation should be dropped")
	}

	e.OnAnimationComplete()
	if e.IsAnimating() {
		t.Errorf("completion should clear animating state")
	}
	if e.CurrentAngle() != e.TargetAngle() {
		t.Errorf("completion should snap current angle to target")
	}

	settles := sink.settles()
	if len(settles) != 1 || settles[0].Index != 2 {
		t.Fatalf("expected single settle for index 2, got %v", settles)
	}

	// The dropped request can be retried now.
	if admitted, _ := e.SelectIndex(5, true); !admitted {
		t.Errorf("retry after settle should be admitted")
	}
}

func TestEngine_SelectIndex_OutOfRange(t *testing.T) {
	e, sink, _ := newTestEngine(t, 4, 0)

	if _, err := e.SelectIndex(4, true); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := e.SelectIndex(-1, true); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange for negative index, got %v", err)
	}

	// State untouched: no events, no animation, index unchanged.
	if len(sink.events) != 0 || e.IsAnimating() || e.CurrentIndex() != 0 {
		t.Errorf("out-of-range select must not alter state")
	}
}

// TestEngine_AtMostOneInFlight verifies two rapid selects produce exactly one
// settle, for the first admitted index only.
func TestEngine_AtMostOneInFlight(t *testing.T) {
	e, sink, _ := newTestEngine(t, 8, 0)

	first, _ := e.SelectIndex(3, true)
	second, _ := e.SelectIndex(6, true)
	if !first || second {
		t.Fatalf("expected first admitted and second dropped, got %v/%v", first, second)
	}

	e.OnAnimationComplete()

	settles := sink.settles()
	if len(settles) != 1 {
		t.Fatalf("expected exactly one settle, got %d", len(settles))
	}
	if settles[0].Index != 3 {
		t.Errorf("settle should carry the first admitted index 3, got %d", settles[0].Index)
	}
}

// TestEngine_ScrollByImpulse_WrapsForward reproduces the reference scenario:
// itemCount=6, index 5, +1 impulse wraps to index 0 with a small positive
// delta rather than a large backward jump.
func TestEngine_ScrollByImpulse_WrapsForward(t *testing.T) {
	e, sink, _ := newTestEngine(t, 6, 5)

	if !e.ScrollByImpulse(1) {
		t.Fatalf("scroll should be admitted on an idle engine")
	}
	if e.CurrentIndex() != 0 {
		t.Errorf("expected wrap to index 0, got %d", e.CurrentIndex())
	}

	targets := sink.targets()
	if len(targets) != 1 {
		t.Fatalf("expected one target event, got %d", len(targets))
	}
	delta := targets[0].TargetAngle - 5*math.Pi/3
	if math.Abs(delta-math.Pi/3) > angleEps {
		t.Errorf("expected small forward delta π/3, got %f", delta)
	}
	if targets[0].Duration != DefaultScrollDuration {
		t.Errorf("scroll nudge should use the shorter scroll duration, got %s", targets[0].Duration)
	}
}

func TestEngine_ScrollByImpulse_WrapsBackward(t *testing.T) {
	e, _, _ := newTestEngine(t, 6, 0)

	if !e.ScrollByImpulse(-1) {
		t.Fatalf("scroll should be admitted")
	}
	if e.CurrentIndex() != 5 {
		t.Errorf("expected wrap to index 5, got %d", e.CurrentIndex())
	}
}

func TestEngine_ScrollDroppedWhileAnimating(t *testing.T) {
	e, sink, _ := newTestEngine(t, 6, 0)

	_, _ = e.SelectIndex(2, true)
	if e.ScrollByImpulse(1) {
		t.Errorf("scroll during animation should be dropped")
	}

	e.OnAnimationComplete()
	if len(sink.settles()) != 1 {
		t.Errorf("dropped scroll must not produce extra settles")
	}
}

func TestEngine_RotationLockBlocksScrollNotSelect(t *testing.T) {
	e, _, _ := newTestEngine(t, 6, 0)

	e.SetRotationLocked(true)
	if e.ScrollByImpulse(1) {
		t.Errorf("rotation lock should drop scroll impulses")
	}
	if admitted, _ := e.SelectIndex(2, false); !admitted {
		t.Errorf("rotation lock must not block explicit selection")
	}
}

func TestEngine_OnAnimationComplete_DuplicateSafe(t *testing.T) {
	e, sink, _ := newTestEngine(t, 6, 0)

	_, _ = e.SelectIndex(3, true)
	e.OnAnimationComplete()
	e.OnAnimationComplete() // duplicate callback from the animation library

	if len(sink.settles()) != 1 {
		t.Errorf("duplicate completion produced extra settle events: %v", sink.settles())
	}

	// Completion with nothing in flight is also a no-op.
	before := len(sink.events)
	e.OnAnimationComplete()
	if len(sink.events) != before {
		t.Errorf("idle completion emitted events")
	}
}

// TestEngine_AutoRepair verifies the stuck-lock path: recoverable-error fires
// exactly once, the in-flight selection resolves to a settle, and the engine
// accepts new work.
func TestEngine_AutoRepair(t *testing.T) {
	e, sink, now := newTestEngine(t, 6, 0)

	_, _ = e.SelectIndex(2, true)
	// The renderer never reports completion.
	*now = now.Add(1500 * time.Millisecond)
	e.Tick(*now)

	recov := sink.recoverables()
	if len(recov) != 1 {
		t.Fatalf("expected exactly one recoverable-error, got %d", len(recov))
	}

	settles := sink.settles()
	if len(settles) != 1 || settles[0].Index != 2 {
		t.Fatalf("auto-repair should resolve the in-flight selection, got %v", settles)
	}
	if e.IsAnimating() {
		t.Errorf("auto-repair should clear animating state")
	}
	if e.CurrentAngle() != e.TargetAngle() {
		t.Errorf("auto-repair should snap the logical angle")
	}

	// Exactly one recoverable-error per episode; later ticks are quiet.
	e.Tick(now.Add(time.Second))
	if len(sink.recoverables()) != 1 {
		t.Errorf("repeated ticks re-fired the recoverable-error")
	}

	if admitted, _ := e.SelectIndex(4, true); !admitted {
		t.Errorf("engine should accept new selections after repair")
	}
}

// TestEngine_AutoRepairWithoutTick verifies liveness holds lazily: the next
// selection attempt repairs and is admitted even with no sweep running.
func TestEngine_AutoRepairWithoutTick(t *testing.T) {
	e, sink, now := newTestEngine(t, 6, 0)

	_, _ = e.SelectIndex(2, true)
	*now = now.Add(2 * time.Second)

	admitted, err := e.SelectIndex(4, true)
	if err != nil || !admitted {
		t.Fatalf("expected lazy repair + admission, got admitted=%v err=%v", admitted, err)
	}
	if len(sink.recoverables()) != 1 {
		t.Errorf("lazy repair should emit one recoverable-error")
	}
	// Both the forced settle of index 2 and the new target for index 4 exist.
	if len(sink.settles()) != 1 || sink.settles()[0].Index != 2 {
		t.Errorf("expected forced settle of index 2, got %v", sink.settles())
	}
	if got := sink.targets()[len(sink.targets())-1].Index; got != 4 {
		t.Errorf("expected new target index 4, got %d", got)
	}
}

func TestEngine_UpdateHighlightTarget(t *testing.T) {
	e, sink, _ := newTestEngine(t, 6, 0)

	// Nudge the angle between slots 1 and 2, closer to 1 (white-box).
	e.currentAngle = 1.2 * math.Pi / 3

	idx, ok := e.UpdateHighlightTarget(false)
	if !ok || idx != 1 {
		t.Fatalf("expected highlight 1, got idx=%d ok=%v", idx, ok)
	}

	var changed []HighlightChanged
	for _, ev := range sink.events {
		if hc, ok := ev.(HighlightChanged); ok {
			changed = append(changed, hc)
		}
	}
	if len(changed) != 1 || changed[0].Index != 1 {
		t.Fatalf("expected one HighlightChanged for index 1, got %v", changed)
	}

	// Unchanged highlight emits nothing.
	before := len(sink.events)
	if _, ok := e.UpdateHighlightTarget(false); !ok {
		t.Fatalf("highlight refresh should run while idle")
	}
	if len(sink.events) != before {
		t.Errorf("no-change refresh emitted events")
	}
}

func TestEngine_UpdateHighlight_SuppressedAndAnimating(t *testing.T) {
	e, _, _ := newTestEngine(t, 6, 0)

	e.SetHighlightSuppressed(true)
	if _, ok := e.UpdateHighlightTarget(false); ok {
		t.Errorf("suppressed highlight refresh should be a silent no-op")
	}
	e.SetHighlightSuppressed(false)

	_, _ = e.SelectIndex(2, true)
	if _, ok := e.UpdateHighlightTarget(false); ok {
		t.Errorf("highlight refresh must not run mid-animation without force")
	}
	if _, ok := e.UpdateHighlightTarget(true); ok {
		// Mid-animation the select lock is held, so even force is gated by
		// the guard flags; force only bypasses the animating check.
		t.Errorf("select lock should still gate a forced refresh")
	}
}

func TestEngine_BeginTransition_BlocksSelection(t *testing.T) {
	e, _, _ := newTestEngine(t, 6, 0)

	end, ok := e.BeginTransition()
	if !ok {
		t.Fatalf("transition should start on an idle engine")
	}

	if admitted, _ := e.SelectIndex(2, true); admitted {
		t.Errorf("selection during a menu transition should be dropped")
	}
	if e.ScrollByImpulse(1) {
		t.Errorf("scroll during a menu transition should be dropped")
	}

	end()
	if admitted, _ := e.SelectIndex(2, true); !admitted {
		t.Errorf("selection should resume after the transition ends")
	}
}

func TestEngine_Dispose_Idempotent(t *testing.T) {
	e, sink, _ := newTestEngine(t, 6, 0)

	_, _ = e.SelectIndex(2, true)
	e.Dispose()
	e.Dispose() // safe to call multiple times

	before := len(sink.events)
	if admitted, err := e.SelectIndex(1, false); admitted || err != nil {
		t.Errorf("disposed engine must drop selections silently")
	}
	if e.ScrollByImpulse(1) {
		t.Errorf("disposed engine must drop scrolls")
	}
	e.OnAnimationComplete()
	e.Tick(time.Now().Add(time.Hour))

	if len(sink.events) != before {
		t.Errorf("disposed engine emitted events")
	}
}
