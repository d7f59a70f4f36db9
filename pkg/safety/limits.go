package safety

import (
	"fmt"
	"strings"
	"time"
)

// Servo hardware bounds. Commands outside these are never meaningful.
const (
	HardMinDeg = 0
	HardMaxDeg = 180
)

// Slew shaping floors.
const (
	// minSlewDt guards the elapsed-time term against zero or negative
	// clock readings.
	minSlewDt = 20 * time.Millisecond

	// minSlewStep is the smallest per-command step, so low rates cannot
	// stall a servo short of its target forever.
	minSlewStep = 1.0
)

// Range bounds a servo's commanded angle.
type Range struct {
	// Min and Max are in degrees, Min <= Max after normalization.
	Min int
	Max int
}

// Normalize clamps the range to the hardware bounds and swaps inverted
// limits.
func (r Range) Normalize() Range {
	lo := Clamp(r.Min, HardMinDeg, HardMaxDeg)
	hi := Clamp(r.Max, HardMinDeg, HardMaxDeg)
	if lo > hi {
		lo, hi = hi, lo
	}
	return Range{Min: lo, Max: hi}
}

// Clamp forces v into [lo,hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SlewLimit caps the step from last toward target at rate*dt degrees,
// preserving direction. A rate of zero or below disables shaping.
func SlewLimit(last, target int, rate float64, dt time.Duration) int {
	if rate <= 0 {
		return target
	}
	if dt < minSlewDt {
		dt = minSlewDt
	}

	maxDelta := rate * dt.Seconds()
	if maxDelta < minSlewStep {
		maxDelta = minSlewStep
	}

	delta := target - last
	if abs(delta) <= int(maxDelta+0.5) {
		return target
	}

	step := int(maxDelta + 0.5)
	if delta < 0 {
		step = -step
	}
	return last + step
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// LimitMode selects the behavior when servo commands arrive faster than
// the configured rate.
type LimitMode uint8

const (
	// LimitReject fails early commands with a rate-limited error.
	LimitReject LimitMode = iota

	// LimitSleep holds early commands until the interval elapses.
	LimitSleep
)

// String returns the mode name.
func (m LimitMode) String() string {
	switch m {
	case LimitReject:
		return "reject"
	case LimitSleep:
		return "sleep"
	default:
		return "unknown"
	}
}

// ParseLimitMode parses a mode name. Empty defaults to reject.
func ParseLimitMode(s string) (LimitMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return LimitReject, nil
	case "sleep":
		return LimitSleep, nil
	default:
		return LimitReject, fmt.Errorf("invalid rate limit mode %q", s)
	}
}
