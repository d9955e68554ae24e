package ringmenu

import "time"

// Event is the marker interface for everything the engine emits toward its
// renderer. The engine never owns timing or easing; it only announces targets
// and settle points, and the renderer animates between them.
type Event interface {
	engineEventMarker()
}

// RotationTargetChanged announces a newly admitted rotation. The renderer
// should animate toward TargetAngle over roughly Duration and then call
// Engine.OnAnimationComplete exactly once.
type RotationTargetChanged struct {
	// Index is the admitted selection target.
	Index int

	// TargetAngle is the absolute angle (radians, unnormalized) to animate to.
	TargetAngle float64

	// Direction is the shortest-path travel direction.
	Direction Direction

	// Duration is the suggested animation duration. Scroll nudges use a
	// shorter duration than explicit click-selects so a nudge feels snappier
	// than a jump.
	Duration time.Duration
}

func (RotationTargetChanged) engineEventMarker() {}

// SelectionSettled fires once per admitted selection, when the target angle
// becomes the current angle and the engine returns to idle.
type SelectionSettled struct {
	Index int
}

func (SelectionSettled) engineEventMarker() {}

// HighlightChanged fires when the item nearest the front reference angle
// changes during continuous scrolling. Cosmetic; no lock is involved.
type HighlightChanged struct {
	Index int
}

func (HighlightChanged) engineEventMarker() {}

// RecoverableError fires when the guard's auto-repair force-releases a lock
// that was held past its maximum duration. It indicates a bug elsewhere
// (typically a renderer whose completion callback never fired) and is meant
// for logging/telemetry, not crashing.
type RecoverableError struct {
	Reason string
}

func (RecoverableError) engineEventMarker() {}
