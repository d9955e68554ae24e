package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"

	"ringmenu"
)

// ============================================================================
// Local input devices (evdev)
// ============================================================================
// ringmenud can drive the default menu directly from Linux input devices:
// mouse wheels, USB dials and rotary encoders all show up as EV_REL events.
// Each detent becomes a line-unit WheelDelta, so the engine-side normalizer
// owns all sensitivity and burst policy; this layer only translates.
// ============================================================================

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// readInputEvents reads input events from a single device and sends them to a
// channel. Used as the portable fallback when epoll is unavailable; runs in a
// dedicated goroutine and blocks on read operations.
func readInputEvents(f *os.File, events chan<- inputEvent, readErr chan<- error) {
	evSize := binary.Size(inputEvent{})
	buf := make([]byte, evSize)
	reader := bytes.NewReader(buf) // Reusable reader, reset on each iteration

	for {
		if _, err := io.ReadFull(f, buf); err != nil {
			readErr <- err
			return
		}

		reader.Reset(buf)
		var ev inputEvent
		if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
			// Skip malformed events
			continue
		}

		events <- ev
	}
}

// wheelDeltaFromRaw translates one raw device event into a WheelDelta, or
// returns false for events that don't carry wheel motion.
//
// Detents are positive for "up"/clockwise on all three axes, so the sign
// passes straight through.
func wheelDeltaFromRaw(ev inputEvent, menuID string) (WheelDelta, bool) {
	if ev.Type != EV_REL {
		return WheelDelta{}, false
	}
	switch ev.Code {
	case REL_WHEEL, REL_DIAL, REL_HWHEEL:
		return WheelDelta{
			Menu:  menuID,
			Delta: float64(ev.Value) * evdevDetentLines,
			Unit:  ringmenu.UnitLine,
		}, true
	default:
		return WheelDelta{}, false
	}
}

// runInputReader opens the configured devices and forwards their wheel motion
// to the daemon as WheelDelta events until ctx is canceled.
//
// A device error is fatal for the reader; the caller decides whether that
// takes the daemon down (it does, matching the fail-fast handling of the
// other sources).
func runInputReader(ctx context.Context, devices []string, menuID string, events chan<- Event, logger *slog.Logger) error {
	if len(devices) == 0 {
		return nil
	}

	files := make([]*os.File, 0, len(devices))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	for _, path := range devices {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input device %s: %w", path, err)
		}
		files = append(files, f)
		logger.Info("input device opened", "device", path)
	}

	rawEvents := make(chan inputEvent, 64)
	readErr := make(chan error, 1)

	// On Linux a single goroutine multiplexes all devices via epoll; other
	// platforms fall back to one blocking reader per device.
	go readInputEventsMulti(files, rawEvents, readErr)

	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-readErr:
			return fmt.Errorf("input reader: %w", err)

		case raw := <-rawEvents:
			wd, ok := wheelDeltaFromRaw(raw, menuID)
			if !ok {
				continue
			}
			select {
			case events <- wd:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
