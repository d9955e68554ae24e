package ringmenu

import "fmt"

// DeltaUnit identifies the unit of a raw wheel/trackpad delta. Browsers and
// toolkits report wheel motion in mixed units; the normalizer maps everything
// to an approximate pixel delta before accumulating.
type DeltaUnit int

const (
	UnitPixel DeltaUnit = iota
	UnitLine
	UnitPage
)

func (u DeltaUnit) String() string {
	switch u {
	case UnitLine:
		return "line"
	case UnitPage:
		return "page"
	default:
		return "pixel"
	}
}

// Wheel normalizer defaults.
const (
	DefaultSensitivity = 1.0
	DefaultThresholdPx = 50.0
	DefaultMaxBurst    = 3

	// DefaultLinePx approximates one line-unit delta in pixels.
	DefaultLinePx = 16.0

	// DefaultPagePx approximates one page-unit delta in pixels. The real value
	// is viewport-dependent, so callers should supply their own.
	DefaultPagePx = 800.0
)

// WheelConfig contains the tunable parameters of the input normalizer.
type WheelConfig struct {
	// Sensitivity multiplies the pixel-equivalent delta before accumulation.
	// Higher means more impulses per physical scroll distance. Must be > 0.
	Sensitivity float64

	// ThresholdPx is the accumulated magnitude required to emit one impulse.
	// Must be > 0.
	ThresholdPx float64

	// MaxBurst caps the number of impulses emitted from a single raw input
	// event, so one large fling cannot spin the ring several full turns at
	// once. Must be >= 1.
	MaxBurst int

	// LinePx and PagePx are the pixel equivalents of one line/page delta.
	// Zero selects the defaults above.
	LinePx float64
	PagePx float64
}

// Normalizer converts a continuous raw delta stream into discrete ±1 impulses
// with hysteresis. Sub-threshold motion is carried over rather than discarded,
// so slow steady input eventually produces an impulse instead of never
// triggering.
//
// This is intended to be called only by the owning event-loop goroutine
// (single-owner).
type Normalizer struct {
	cfg         WheelConfig
	accumulated float64
}

// NewNormalizer validates cfg and returns a normalizer. Non-positive bounds
// fail with ErrConfig.
func NewNormalizer(cfg WheelConfig) (*Normalizer, error) {
	if cfg.Sensitivity == 0 {
		cfg.Sensitivity = DefaultSensitivity
	}
	if cfg.ThresholdPx == 0 {
		cfg.ThresholdPx = DefaultThresholdPx
	}
	if cfg.MaxBurst == 0 {
		cfg.MaxBurst = DefaultMaxBurst
	}
	if cfg.LinePx == 0 {
		cfg.LinePx = DefaultLinePx
	}
	if cfg.PagePx == 0 {
		cfg.PagePx = DefaultPagePx
	}

	if cfg.Sensitivity < 0 {
		return nil, fmt.Errorf("%w: sensitivity must be > 0, got %g", ErrConfig, cfg.Sensitivity)
	}
	if cfg.ThresholdPx < 0 {
		return nil, fmt.Errorf("%w: threshold_px must be > 0, got %g", ErrConfig, cfg.ThresholdPx)
	}
	if cfg.MaxBurst < 1 {
		return nil, fmt.Errorf("%w: max_burst must be >= 1, got %d", ErrConfig, cfg.MaxBurst)
	}
	if cfg.LinePx < 0 || cfg.PagePx < 0 {
		return nil, fmt.Errorf("%w: line_px and page_px must be > 0", ErrConfig)
	}

	return &Normalizer{cfg: cfg}, nil
}

// Ingest accumulates one raw delta and returns the impulses it produced, in
// FIFO order. Zero deltas are silently ignored.
//
// The returned slice holds at most MaxBurst entries of +1 or -1. Callers that
// pace consumption (one impulse per loop iteration or animation frame) should
// enqueue each entry as an independent task rather than processing the slice
// synchronously, so a large burst plays out over several frames instead of
// snapping.
//
// After the call |accumulated| < ThresholdPx unless the burst cap was hit, in
// which case the excess is carried whole into the next call. The remainder is
// never zeroed; dropping it would read as perceptibly "lost" motion.
func (n *Normalizer) Ingest(rawDelta float64, unit DeltaUnit) []int {
	if rawDelta == 0 {
		return nil
	}

	px := rawDelta
	switch unit {
	case UnitLine:
		px *= n.cfg.LinePx
	case UnitPage:
		px *= n.cfg.PagePx
	}

	n.accumulated += px * n.cfg.Sensitivity

	var impulses []int
	for len(impulses) < n.cfg.MaxBurst {
		// Positive side first: ties in sign break toward positive.
		if n.accumulated >= n.cfg.ThresholdPx {
			impulses = append(impulses, 1)
			n.accumulated -= n.cfg.ThresholdPx
		} else if n.accumulated <= -n.cfg.ThresholdPx {
			impulses = append(impulses, -1)
			n.accumulated += n.cfg.ThresholdPx
		} else {
			break
		}
	}

	return impulses
}

// Accumulated returns the carried sub-threshold remainder (plus any
// burst-capped excess awaiting the next ingest).
func (n *Normalizer) Accumulated() float64 {
	return n.accumulated
}
