package safety

import (
	"testing"
	"time"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name      string
		v, lo, hi int
		want      int
	}{
		{"Below", -45, 0, 180, 0},
		{"Above", 270, 0, 180, 180},
		{"Inside", 90, 0, 180, 90},
		{"AtMin", 0, 0, 180, 0},
		{"AtMax", 180, 0, 180, 180},
		{"NarrowRange", 90, 30, 60, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clamp(tt.v, tt.lo, tt.hi)
			if got != tt.want {
				t.Errorf("Clamp(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
			}
			// Clamping a clamped value is a no-op.
			if again := Clamp(got, tt.lo, tt.hi); again != got {
				t.Errorf("Clamp not idempotent: %d -> %d", got, again)
			}
		})
	}
}

func TestRangeNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Range
		want Range
	}{
		{"Identity", Range{0, 180}, Range{0, 180}},
		{"OutOfBounds", Range{-20, 300}, Range{0, 180}},
		{"Inverted", Range{120, 40}, Range{40, 120}},
		{"InvertedOutOfBounds", Range{200, -5}, Range{0, 180}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Normalize(); got != tt.want {
				t.Errorf("Normalize(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSlewLimit(t *testing.T) {
	tests := []struct {
		name   string
		last   int
		target int
		rate   float64
		dt     time.Duration
		want   int
	}{
		// 120 deg/s over 100ms allows a 12 degree step.
		{"StepCapped", 0, 100, 120, 100 * time.Millisecond, 12},
		{"StepCappedDown", 100, 0, 120, 100 * time.Millisecond, 88},
		{"WithinBudget", 90, 95, 120, 100 * time.Millisecond, 95},
		{"Disabled", 0, 180, 0, time.Millisecond, 180},
		{"AtTarget", 90, 90, 120, 100 * time.Millisecond, 90},
		// Tiny dt is floored so a burst of commands cannot freeze motion.
		{"DtFloored", 0, 100, 120, 0, 2},
		// Very low rates still advance at least one degree.
		{"MinStep", 0, 100, 0.5, 100 * time.Millisecond, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SlewLimit(tt.last, tt.target, tt.rate, tt.dt)
			if got != tt.want {
				t.Errorf("SlewLimit(%d, %d, %v, %v) = %d, want %d",
					tt.last, tt.target, tt.rate, tt.dt, got, tt.want)
			}
		})
	}
}

func TestSlewLimitConverges(t *testing.T) {
	// Repeated shaping must reach the target, never oscillate past it.
	pos := 0
	for i := 0; i < 100; i++ {
		next := SlewLimit(pos, 180, 120, 100*time.Millisecond)
		if next == pos {
			t.Fatalf("stalled at %d after %d steps", pos, i)
		}
		pos = next
		if pos == 180 {
			return
		}
		if pos > 180 {
			t.Fatalf("overshot to %d", pos)
		}
	}
	t.Fatalf("did not converge, stuck at %d", pos)
}

func TestParseLimitMode(t *testing.T) {
	tests := []struct {
		in      string
		want    LimitMode
		wantErr bool
	}{
		{"reject", LimitReject, false},
		{"REJECT", LimitReject, false},
		{"sleep", LimitSleep, false},
		{" Sleep ", LimitSleep, false},
		{"", LimitReject, false},
		{"throttle", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseLimitMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLimitMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseLimitMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
