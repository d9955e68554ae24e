package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"ringmenu"
)

// captureSink is a test double for the hub: it records broadcast frames
// instead of fanning them out.
type captureSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *captureSink) BroadcastBytes(msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, msg)
}

// typed returns the decoded envelopes matching typ, in broadcast order.
func (s *captureSink) typed(t *testing.T, typ string) []EventEnvelope {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []EventEnvelope
	for _, f := range s.frames {
		var env EventEnvelope
		if err := json.Unmarshal(f, &env); err != nil {
			t.Fatalf("broadcast frame is not an envelope: %v (%s)", err, f)
		}
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

func (s *captureSink) count(t *testing.T, typ string) int {
	return len(s.typed(t, typ))
}

// startTestDaemon spins up a daemon loop with one 6-item menu and returns the
// event channel plus the broadcast recorder. The loop is torn down with the
// test.
func startTestDaemon(t *testing.T) (chan Event, *captureSink) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Menus = []MenuConfig{{
		ID:               "main",
		ItemCount:        6,
		SelectDurationMS: defaultSelectDurationMS,
		ScrollDurationMS: defaultScrollDurationMS,
		MaxHoldMS:        defaultMaxHoldMS,
	}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}

	sink := &captureSink{}
	logger := slog.Default()

	menus, err := newMenuRuntimes(&cfg, sink, logger)
	if err != nil {
		t.Fatalf("newMenuRuntimes: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event, 64)

	done := make(chan struct{})
	go func() {
		defer close(done)
		runDaemon(ctx, events, menus, &cfg, logger)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(1 * time.Second):
			t.Errorf("timeout waiting for daemon to stop")
		}
	})

	return events, sink
}

// snapshotState round-trips a requestSnapshot through the daemon loop and
// decodes the state_init payload.
func snapshotState(t *testing.T, events chan Event) wsStateInitData {
	t.Helper()

	reply := make(chan []byte, 1)
	events <- requestSnapshot{Reply: reply}

	select {
	case msg := <-reply:
		if len(msg) == 0 {
			t.Fatalf("empty snapshot reply")
		}
		var env struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(msg, &env); err != nil {
			t.Fatalf("snapshot envelope: %v", err)
		}
		if env.Type != "state_init" {
			t.Fatalf("snapshot type = %q, want state_init", env.Type)
		}
		var data wsStateInitData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("snapshot data: %v", err)
		}
		return data

	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for snapshot reply")
		return wsStateInitData{}
	}
}

func menuSnapshot(t *testing.T, events chan Event, id string) ringmenu.Snapshot {
	t.Helper()
	state := snapshotState(t, events)
	for _, m := range state.Menus {
		if m.Menu == id {
			return m.Snapshot
		}
	}
	t.Fatalf("menu %q missing from snapshot", id)
	return ringmenu.Snapshot{}
}

func TestDaemon_ImmediateSelectBroadcastsAndSettles(t *testing.T) {
	events, sink := startTestDaemon(t)

	events <- SelectIndex{Index: 2, Immediate: true}

	waitUntil(t, time.Second, func() bool {
		return sink.count(t, "selection_settled") >= 1
	}, "no selection_settled broadcast")

	if got := sink.count(t, "rotation_target"); got != 1 {
		t.Errorf("rotation_target broadcasts = %d, want 1", got)
	}

	var data wsRotationTargetData
	env := sink.typed(t, "rotation_target")[0]
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("rotation_target data: %v", err)
	}
	if data.Menu != "main" || data.Index != 2 {
		t.Errorf("rotation_target = %+v, want menu=main index=2", data)
	}

	snap := menuSnapshot(t, events, "main")
	if snap.CurrentIndex != 2 {
		t.Errorf("CurrentIndex = %d, want 2", snap.CurrentIndex)
	}
	if snap.IsAnimating {
		t.Errorf("immediate select left the menu animating")
	}
}

func TestDaemon_WheelBurstAdmitsOneImpulseWhileAnimating(t *testing.T) {
	events, sink := startTestDaemon(t)

	// 400px at 50px/threshold would be 8 impulses; max_burst caps at 3, and
	// only the first is admitted because the engine is animating by the time
	// the second is dispatched. Drop-not-queue.
	events <- WheelDelta{Delta: 400, Unit: ringmenu.UnitPixel}

	waitUntil(t, time.Second, func() bool {
		return sink.count(t, "rotation_target") >= 1
	}, "no rotation_target from wheel burst")

	snap := menuSnapshot(t, events, "main")
	if !snap.IsAnimating {
		t.Fatalf("expected menu to be animating after wheel impulse")
	}
	if got := sink.count(t, "rotation_target"); got != 1 {
		t.Errorf("rotation_target broadcasts = %d, want 1 (burst must not queue)", got)
	}
	if snap.CurrentIndex != 1 {
		t.Errorf("CurrentIndex = %d, want 1", snap.CurrentIndex)
	}

	// Scroll nudges advertise the shorter duration.
	var data wsRotationTargetData
	env := sink.typed(t, "rotation_target")[0]
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("rotation_target data: %v", err)
	}
	if data.DurationMs != int64(defaultScrollDurationMS) {
		t.Errorf("DurationMs = %d, want %d", data.DurationMs, defaultScrollDurationMS)
	}

	// Renderer acknowledges; the menu settles and accepts input again.
	events <- AnimationComplete{}
	waitUntil(t, time.Second, func() bool {
		return sink.count(t, "selection_settled") >= 1
	}, "no selection_settled after animation_complete")

	events <- ScrollImpulse{Sign: -1}
	waitUntil(t, time.Second, func() bool {
		return sink.count(t, "rotation_target") >= 2
	}, "scroll not admitted after settle")
}

func TestDaemon_TransitionBlocksSelection(t *testing.T) {
	events, sink := startTestDaemon(t)

	events <- BeginTransition{}
	events <- SelectIndex{Index: 3, Immediate: true}

	// Give the loop a chance to (wrongly) emit before asserting silence.
	waitUntil(t, time.Second, func() bool {
		snap := menuSnapshot(t, events, "main")
		return snap.CurrentIndex == 0
	}, "snapshot round-trip failed")

	if got := sink.count(t, "rotation_target"); got != 0 {
		t.Fatalf("selection admitted during transition (%d broadcasts)", got)
	}

	events <- EndTransition{}
	events <- SelectIndex{Index: 3, Immediate: true}

	waitUntil(t, time.Second, func() bool {
		return sink.count(t, "rotation_target") == 1
	}, "selection not admitted after end_transition")
}

func TestDaemon_UnknownMenuEventsDropped(t *testing.T) {
	events, sink := startTestDaemon(t)

	events <- SelectIndex{Menu: "no-such-menu", Index: 2, Immediate: true}
	events <- ScrollImpulse{Menu: "no-such-menu", Sign: 1}

	snap := menuSnapshot(t, events, "main")
	if snap.CurrentIndex != 0 {
		t.Errorf("CurrentIndex = %d, want 0 (unknown-menu events must not leak)", snap.CurrentIndex)
	}
	if got := sink.count(t, "rotation_target"); got != 0 {
		t.Errorf("rotation_target broadcasts = %d, want 0", got)
	}
}

func TestDaemon_ResetReturnsMenuToInitialState(t *testing.T) {
	events, sink := startTestDaemon(t)

	events <- SelectIndex{Index: 4, Immediate: true}
	waitUntil(t, time.Second, func() bool {
		return sink.count(t, "selection_settled") >= 1
	}, "select did not settle")

	events <- ResetMenu{}

	waitUntil(t, time.Second, func() bool {
		snap := menuSnapshot(t, events, "main")
		return snap.CurrentIndex == 0 && !snap.IsAnimating
	}, "reset did not restore initial state")
}
