package main

import (
	"encoding/json"
	"fmt"

	"ringmenu"
)

// ============================================================================
// Daemon Events
// ============================================================================
// Events represent intent from the daemon's sources (evdev wheels, IPC,
// WebSocket renderers). The central daemon loop consumes them one at a time
// and applies policy through the menu engines.
// ============================================================================

// Event is a marker interface for everything the daemon loop can process.
type Event interface {
	eventMarker()
}

// WheelDelta is a raw scroll gesture. The loop routes it through a menu's
// normalizer, which may emit zero or more discrete impulses.
type WheelDelta struct {
	Menu  string             `json:"menu,omitempty"` // empty = default menu
	Delta float64            `json:"delta"`
	Unit  ringmenu.DeltaUnit `json:"unit"`
}

func (WheelDelta) eventMarker() {}

// ScrollImpulse is a single pre-normalized step (sign -1 or +1). The daemon
// also synthesizes these from WheelDelta so bursts are paced one per loop
// iteration.
type ScrollImpulse struct {
	Menu string `json:"menu,omitempty"`
	Sign int    `json:"sign"`
}

func (ScrollImpulse) eventMarker() {}

// SelectIndex requests a direct selection of an item.
type SelectIndex struct {
	Menu      string `json:"menu,omitempty"`
	Index     int    `json:"index"`
	Immediate bool   `json:"immediate,omitempty"` // skip the animation
}

func (SelectIndex) eventMarker() {}

// AnimationComplete is the renderer's acknowledgement that the rotation it
// was asked to play has finished.
type AnimationComplete struct {
	Menu string `json:"menu,omitempty"`
}

func (AnimationComplete) eventMarker() {}

// BeginTransition marks the start of an externally-owned UI transition
// (e.g. a page swap). Selection and scrolling are refused until
// EndTransition or the guard's auto-repair fires.
type BeginTransition struct {
	Menu string `json:"menu,omitempty"`
}

func (BeginTransition) eventMarker() {}

// EndTransition releases a transition lock previously taken with
// BeginTransition. Safe to send even if no transition is active.
type EndTransition struct {
	Menu string `json:"menu,omitempty"`
}

func (EndTransition) eventMarker() {}

// SetRotationLock toggles the rotation input lock. While locked, scroll
// impulses are dropped but direct selection still works.
type SetRotationLock struct {
	Menu   string `json:"menu,omitempty"`
	Locked bool   `json:"locked"`
}

func (SetRotationLock) eventMarker() {}

// SuppressHighlight toggles highlight recomputation suppression.
type SuppressHighlight struct {
	Menu       string `json:"menu,omitempty"`
	Suppressed bool   `json:"suppressed"`
}

func (SuppressHighlight) eventMarker() {}

// UpdateHighlight asks the engine to recompute which item faces the viewer.
type UpdateHighlight struct {
	Menu  string `json:"menu,omitempty"`
	Force bool   `json:"force,omitempty"`
}

func (UpdateHighlight) eventMarker() {}

// ResetMenu returns a menu to idle at its initial index.
type ResetMenu struct {
	Menu string `json:"menu,omitempty"`
}

func (ResetMenu) eventMarker() {}

// requestSnapshot is an internal request for the full daemon state, used by
// the WebSocket layer to send state_init to newly-connected clients. It is
// never part of the wire protocol.
type requestSnapshot struct {
	Reply chan []byte
}

func (requestSnapshot) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================
// EventEnvelope wraps events with a type discriminator, since Go has no
// union types. The same envelope format is used on the IPC socket and on
// the renderer WebSocket (both directions).
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "wheel_delta":
		var e WheelDelta
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal WheelDelta: %w", err)
		}
		return e, nil

	case "scroll_impulse":
		var e ScrollImpulse
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal ScrollImpulse: %w", err)
		}
		return e, nil

	case "select_index":
		var e SelectIndex
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal SelectIndex: %w", err)
		}
		return e, nil

	case "animation_complete":
		var e AnimationComplete
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &e); err != nil {
				return nil, fmt.Errorf("unmarshal AnimationComplete: %w", err)
			}
		}
		return e, nil

	case "begin_transition":
		var e BeginTransition
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &e); err != nil {
				return nil, fmt.Errorf("unmarshal BeginTransition: %w", err)
			}
		}
		return e, nil

	case "end_transition":
		var e EndTransition
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &e); err != nil {
				return nil, fmt.Errorf("unmarshal EndTransition: %w", err)
			}
		}
		return e, nil

	case "set_rotation_lock":
		var e SetRotationLock
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal SetRotationLock: %w", err)
		}
		return e, nil

	case "suppress_highlight":
		var e SuppressHighlight
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal SuppressHighlight: %w", err)
		}
		return e, nil

	case "update_highlight":
		var e UpdateHighlight
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &e); err != nil {
				return nil, fmt.Errorf("unmarshal UpdateHighlight: %w", err)
			}
		}
		return e, nil

	case "reset_menu":
		var e ResetMenu
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &e); err != nil {
				return nil, fmt.Errorf("unmarshal ResetMenu: %w", err)
			}
		}
		return e, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	marshal := func(typ string, v any) error {
		env.Type = typ
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		env.Data = data
		return nil
	}

	var err error
	switch e := e.(type) {
	case WheelDelta:
		err = marshal("wheel_delta", e)
	case ScrollImpulse:
		err = marshal("scroll_impulse", e)
	case SelectIndex:
		err = marshal("select_index", e)
	case AnimationComplete:
		err = marshal("animation_complete", e)
	case BeginTransition:
		err = marshal("begin_transition", e)
	case EndTransition:
		err = marshal("end_transition", e)
	case SetRotationLock:
		err = marshal("set_rotation_lock", e)
	case SuppressHighlight:
		err = marshal("suppress_highlight", e)
	case UpdateHighlight:
		err = marshal("update_highlight", e)
	case ResetMenu:
		err = marshal("reset_menu", e)
	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}
	if err != nil {
		return nil, err
	}

	return json.Marshal(env)
}
