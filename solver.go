package ringmenu

import "math"

// Direction is the travel direction of a solved rotation, viewed from the
// renderer's reference frame (positive angular delta = clockwise).
type Direction int

const (
	Clockwise Direction = iota
	CounterClockwise
)

func (d Direction) String() string {
	if d == CounterClockwise {
		return "counter_clockwise"
	}
	return "clockwise"
}

// Rotation is the output of Solve: the minimal signed rotation from a current
// angle to a target item's resting angle.
type Rotation struct {
	// Delta is the signed angular travel in radians. Always |Delta| <= π.
	Delta float64

	// TargetAngle is currentAngle + Delta, applied to the unnormalized input
	// angle so accumulated full turns are preserved (wrapping the stored angle
	// would cause visible snapping during continuous multi-step scrolling).
	TargetAngle float64

	// Direction is the travel direction implied by Delta. A zero delta reports
	// Clockwise, matching the positive tie-break policy.
	Direction Direction

	// Distance is |Delta|.
	Distance float64
}

const twoPi = 2 * math.Pi

// normalizeAngle maps an angle into [0, 2π).
func normalizeAngle(a float64) float64 {
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	return a
}

// AngleStep returns the angular spacing between adjacent items on a ring of
// itemCount items.
func AngleStep(itemCount int) float64 {
	return twoPi / float64(itemCount)
}

// Solve computes the shortest signed rotation from currentAngle to the resting
// angle of targetIndex on a ring of itemCount items.
//
// The function is pure and total over its documented domain. Inputs are
// range-validated by the caller (the engine); itemCount < 1 or an
// out-of-range targetIndex is a caller contract violation, not a runtime
// error handled here.
//
// When both directions are exactly half a turn apart, the positive
// (clockwise) option wins deterministically. Leaving that to floating-point
// chance would make animation direction unpredictable and untestable.
func Solve(currentAngle float64, itemCount, targetIndex int) Rotation {
	step := AngleStep(itemCount)

	current := normalizeAngle(currentAngle)
	target := normalizeAngle(float64(targetIndex) * step)

	delta := target - current

	// The "other way around" equivalent of the same move.
	wrap := delta - twoPi
	if delta < 0 {
		wrap = delta + twoPi
	}

	if math.Abs(wrap) < math.Abs(delta) {
		delta = wrap
	} else if math.Abs(wrap) == math.Abs(delta) && wrap > delta {
		// Exact π tie: prefer the clockwise option.
		delta = wrap
	}

	dir := Clockwise
	if delta < 0 {
		dir = CounterClockwise
	}

	return Rotation{
		Delta:       delta,
		TargetAngle: currentAngle + delta,
		Direction:   dir,
		Distance:    math.Abs(delta),
	}
}

// NearestIndex returns the item index whose resting angle is closest to the
// given angle. Used for highlight recomputation during continuous scrolling.
func NearestIndex(angle float64, itemCount int) int {
	step := AngleStep(itemCount)
	return int(math.Round(normalizeAngle(angle)/step)) % itemCount
}
