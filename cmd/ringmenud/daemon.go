package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"ringmenu"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// The loop is the single owner of every menu engine and normalizer. All
// sources (evdev, IPC, WebSocket renderers) funnel Events into one channel;
// the loop processes them one at a time, so the engines never need locks.
//
// Design rules enforced here:
//   - Engines are only touched from this goroutine.
//   - Engine emissions are serialized immediately and handed to the hub,
//     which fans them out without blocking the loop.
//   - WheelDelta events expand into individual ScrollImpulse events at the
//     back of the queue, so a large gesture is paced across loop iterations
//     instead of being applied as one jump.
//
// ============================================================================

// broadcaster is the outbound side of the renderer transport. Satisfied by
// *Hub; kept small so tests can substitute a recorder.
type broadcaster interface {
	BroadcastBytes(msg []byte)
}

// menuRuntime bundles one menu's engine with its input accumulator and the
// release handle for an externally-owned transition, if one is active.
type menuRuntime struct {
	id     string
	engine *ringmenu.Engine
	wheel  *ringmenu.Normalizer

	// endTransition releases an active BeginTransition lock. Nil when no
	// transition is in progress.
	endTransition func()
}

// ============================================================================
// Outbound wire payloads
// ============================================================================
// Messages to renderers are JSON text frames with an envelope {type, ts, data}.
// The menu id travels inside data so one socket can serve several menus.
// ============================================================================

type wsRotationTargetData struct {
	Menu        string  `json:"menu"`
	Index       int     `json:"index"`
	TargetAngle float64 `json:"target_angle"`
	Direction   string  `json:"direction"`
	DurationMs  int64   `json:"duration_ms"`
}

type wsSelectionSettledData struct {
	Menu  string `json:"menu"`
	Index int    `json:"index"`
}

type wsHighlightChangedData struct {
	Menu  string `json:"menu"`
	Index int    `json:"index"`
}

type wsRecoverableErrorData struct {
	Menu   string `json:"menu"`
	Reason string `json:"reason"`
}

// wsMenuSnapshot is one menu's entry in the "state_init" payload.
type wsMenuSnapshot struct {
	Menu string `json:"menu"`
	ringmenu.Snapshot
}

type wsStateInitData struct {
	Menus []wsMenuSnapshot `json:"menus"`
}

// envelope is the wire format envelope for WS and IPC messages.
type envelope struct {
	Type string      `json:"type"`
	Ts   *time.Time  `json:"ts,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

func marshalOutbound(typ string, data any) ([]byte, error) {
	now := time.Now().UTC()
	return json.Marshal(envelope{Type: typ, Ts: &now, Data: data})
}

// convertEngineEvent maps an engine emission to its wire type and payload.
func convertEngineEvent(menuID string, ev ringmenu.Event) (typ string, data any, ok bool) {
	switch ev := ev.(type) {
	case ringmenu.RotationTargetChanged:
		return "rotation_target", wsRotationTargetData{
			Menu:        menuID,
			Index:       ev.Index,
			TargetAngle: ev.TargetAngle,
			Direction:   ev.Direction.String(),
			DurationMs:  ev.Duration.Milliseconds(),
		}, true

	case ringmenu.SelectionSettled:
		return "selection_settled", wsSelectionSettledData{Menu: menuID, Index: ev.Index}, true

	case ringmenu.HighlightChanged:
		return "highlight_changed", wsHighlightChangedData{Menu: menuID, Index: ev.Index}, true

	case ringmenu.RecoverableError:
		return "recoverable_error", wsRecoverableErrorData{Menu: menuID, Reason: ev.Reason}, true

	default:
		return "", nil, false
	}
}

// newMenuRuntimes builds the engines and normalizers declared by cfg.
// Engine emissions are serialized and broadcast through sink as they happen.
func newMenuRuntimes(cfg *Config, sink broadcaster, logger *slog.Logger) (map[string]*menuRuntime, error) {
	menus := make(map[string]*menuRuntime, len(cfg.Menus))

	for _, mc := range cfg.Menus {
		wheel, err := ringmenu.NewNormalizer(cfg.ToWheelConfig())
		if err != nil {
			return nil, fmt.Errorf("menu %q: %w", mc.ID, err)
		}

		id := mc.ID
		ec := mc.ToEngineConfig()
		ec.Emit = func(ev ringmenu.Event) {
			typ, data, ok := convertEngineEvent(id, ev)
			if !ok {
				return
			}
			if ev, isErr := ev.(ringmenu.RecoverableError); isErr {
				logger.Warn("menu auto-repair", "menu", id, "reason", ev.Reason)
			}
			msg, err := marshalOutbound(typ, data)
			if err != nil {
				logger.Warn("marshal engine event failed", "menu", id, "type", typ, "error", err)
				return
			}
			sink.BroadcastBytes(msg)
		}

		engine, err := ringmenu.NewEngine(ec)
		if err != nil {
			return nil, fmt.Errorf("menu %q: %w", mc.ID, err)
		}

		menus[id] = &menuRuntime{id: id, engine: engine, wheel: wheel}
	}

	return menus, nil
}

// snapshotAll serializes a "state_init" frame covering every menu.
func snapshotAll(menus map[string]*menuRuntime, order []MenuConfig) ([]byte, error) {
	data := wsStateInitData{Menus: make([]wsMenuSnapshot, 0, len(menus))}
	for _, mc := range order {
		m, ok := menus[mc.ID]
		if !ok {
			continue
		}
		data.Menus = append(data.Menus, wsMenuSnapshot{Menu: m.id, Snapshot: m.engine.Snapshot()})
	}
	return marshalOutbound("state_init", data)
}

// runDaemon is the main daemon loop. It exits when ctx is canceled or the
// events channel is closed, disposing every engine on the way out.
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	menus map[string]*menuRuntime,
	cfg *Config,
	logger *slog.Logger,
) {
	updateInterval := time.Second / time.Duration(cfg.UpdateHz)
	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()

	defaultMenu := cfg.inputMenuID()

	// Explicit FIFO queue so handlers can enqueue follow-up events (wheel
	// deltas fanning out into impulses) without recursing.
	var queue []Event

	enqueue := func(ev Event) {
		queue = append(queue, ev)
	}

	menuFor := func(name string) *menuRuntime {
		if name == "" {
			name = defaultMenu
		}
		m, ok := menus[name]
		if !ok {
			logger.Warn("event for unknown menu dropped", "menu", name)
			return nil
		}
		return m
	}

	dispatch := func(ev Event) {
		switch ev := ev.(type) {
		case WheelDelta:
			m := menuFor(ev.Menu)
			if m == nil {
				return
			}
			for _, sign := range m.wheel.Ingest(ev.Delta, ev.Unit) {
				enqueue(ScrollImpulse{Menu: m.id, Sign: sign})
			}

		case ScrollImpulse:
			m := menuFor(ev.Menu)
			if m == nil {
				return
			}
			if !m.engine.ScrollByImpulse(ev.Sign) {
				logger.Debug("scroll impulse dropped", "menu", m.id, "sign", ev.Sign)
			}

		case SelectIndex:
			m := menuFor(ev.Menu)
			if m == nil {
				return
			}
			accepted, err := m.engine.SelectIndex(ev.Index, !ev.Immediate)
			if err != nil {
				logger.Warn("select rejected", "menu", m.id, "index", ev.Index, "error", err)
			} else if !accepted {
				logger.Debug("select dropped (busy)", "menu", m.id, "index", ev.Index)
			}

		case AnimationComplete:
			if m := menuFor(ev.Menu); m != nil {
				m.engine.OnAnimationComplete()
			}

		case BeginTransition:
			m := menuFor(ev.Menu)
			if m == nil {
				return
			}
			release, ok := m.engine.BeginTransition()
			if !ok {
				// Refused only when a transition is already active; a held
				// selection lock is superseded, not a refusal.
				logger.Debug("transition refused (already transitioning)", "menu", m.id)
				return
			}
			// Releases are generation-checked, so overwriting a handle that
			// was invalidated by auto-repair is safe.
			m.endTransition = release

		case EndTransition:
			m := menuFor(ev.Menu)
			if m == nil {
				return
			}
			if m.endTransition != nil {
				m.endTransition()
				m.endTransition = nil
			}

		case SetRotationLock:
			if m := menuFor(ev.Menu); m != nil {
				m.engine.SetRotationLocked(ev.Locked)
			}

		case SuppressHighlight:
			if m := menuFor(ev.Menu); m != nil {
				m.engine.SetHighlightSuppressed(ev.Suppressed)
			}

		case UpdateHighlight:
			if m := menuFor(ev.Menu); m != nil {
				m.engine.UpdateHighlightTarget(ev.Force)
			}

		case ResetMenu:
			m := menuFor(ev.Menu)
			if m == nil {
				return
			}
			if m.endTransition != nil {
				m.endTransition()
				m.endTransition = nil
			}
			m.engine.Reset()

		case requestSnapshot:
			msg, err := snapshotAll(menus, cfg.Menus)
			if err != nil {
				logger.Warn("snapshot marshal failed", "error", err)
				close(ev.Reply)
				return
			}
			// Reply is buffered by the requester; never block the loop.
			select {
			case ev.Reply <- msg:
			default:
			}

		default:
			logger.Warn("unhandled event type", "type", fmt.Sprintf("%T", ev))
		}
	}

	flush := func() {
		for len(queue) > 0 {
			ev := queue[0]
			queue = queue[1:]
			dispatch(ev)
		}
	}

	disposeAll := func() {
		for _, m := range menus {
			m.engine.Dispose()
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			disposeAll()
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				disposeAll()
				return
			}
			enqueue(ev)
			flush()

		case now := <-ticker.C:
			for _, m := range menus {
				// Drives the guard's auto-repair sweep. A transition handle
				// invalidated by repair stays safe to call later: releases
				// are generation-checked no-ops once stale.
				m.engine.Tick(now)
			}
			flush()
		}
	}
}
