package safety

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config holds the servo safety configuration. Read-only after startup.
type Config struct {
	// ServoCount is the number of configured servos, ids 1..ServoCount.
	ServoCount int

	// DefaultRange applies to servos without an explicit range.
	DefaultRange Range

	// Ranges holds per-servo clamp ranges.
	Ranges map[int]Range

	// CenterDeg is the fallback safe angle.
	CenterDeg int

	// SafePose maps servo id to its safe angle; servos not listed use
	// CenterDeg.
	SafePose map[int]int

	// SlewRateDPS caps angle change in degrees/second. Zero disables.
	SlewRateDPS float64

	// MaxCmdHz caps the per-servo command rate. Zero disables.
	MaxCmdHz float64

	// Mode selects reject or sleep behavior at the rate limit.
	Mode LimitMode
}

// ServoState is a telemetry snapshot of one servo's bookkeeping.
type ServoState struct {
	// ID is the servo id.
	ID int

	// LastDeg is the last applied angle. Valid only when HasLast.
	LastDeg int
	HasLast bool

	// LastUpdate is when LastDeg was applied.
	LastUpdate time.Time

	// Range is the servo's normalized clamp range.
	Range Range
}

// servoState is the engine's mutable per-servo record.
type servoState struct {
	lastDeg    int
	hasLast    bool
	lastUpdate time.Time
	nextFree   time.Time // earliest instant the next command may proceed
}

// Engine applies clamp, slew shaping and rate limiting per servo.
// It is safe for concurrent use; the engine is the only writer of servo
// state.
type Engine struct {
	cfg Config

	// now and sleep are injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	servos map[int]*servoState
}

// NewEngine creates an Engine for the given configuration.
func NewEngine(cfg Config) *Engine {
	cfg.DefaultRange = cfg.DefaultRange.Normalize()
	return &Engine{
		cfg:    cfg,
		now:    time.Now,
		sleep:  sleepCtx,
		servos: make(map[int]*servoState),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RangeFor returns the normalized clamp range for a servo.
func (e *Engine) RangeFor(id int) Range {
	if r, ok := e.cfg.Ranges[id]; ok {
		return r.Normalize()
	}
	return e.cfg.DefaultRange
}

// ValidateID checks a servo id against the configured count.
func (e *Engine) ValidateID(id int) error {
	if id < 1 || id > e.cfg.ServoCount {
		return &ValidationError{
			Field:  "servo id",
			Reason: fmt.Sprintf("%d out of range (allowed 1..%d)", id, e.cfg.ServoCount),
		}
	}
	return nil
}

// Prepare validates and transforms a requested angle: clamp, slew shaping,
// then rate limiting. Under the sleep policy the call blocks until the
// servo's interval elapses; concurrent callers for the same servo are
// serialized on that cadence. The returned angle is what must be sent to
// the device; callers Commit it after a successful exchange.
func (e *Engine) Prepare(ctx context.Context, id, deg int) (int, error) {
	if err := e.ValidateID(id); err != nil {
		return 0, err
	}

	r := e.RangeFor(id)
	target := Clamp(deg, r.Min, r.Max)

	e.mu.Lock()
	s := e.state(id)
	now := e.now()

	if s.hasLast {
		target = SlewLimit(s.lastDeg, target, e.cfg.SlewRateDPS, now.Sub(s.lastUpdate))
	}

	wait, err := e.reserveLocked(s, id, now)
	e.mu.Unlock()
	if err != nil {
		return 0, err
	}

	if wait > 0 {
		if err := e.sleep(ctx, wait); err != nil {
			return 0, err
		}
	}
	return target, nil
}

// reserveLocked applies the rate limiter for one command. Under sleep mode
// it reserves the servo's next free slot and returns how long the caller
// must wait; under reject mode an early command fails.
func (e *Engine) reserveLocked(s *servoState, id int, now time.Time) (time.Duration, error) {
	if e.cfg.MaxCmdHz <= 0 {
		return 0, nil
	}
	interval := time.Duration(float64(time.Second) / e.cfg.MaxCmdHz)

	if e.cfg.Mode == LimitReject {
		if now.Before(s.nextFree) {
			return 0, &RateLimitedError{ServoID: id, RetryAfter: s.nextFree.Sub(now)}
		}
		s.nextFree = now.Add(interval)
		return 0, nil
	}

	// Sleep mode: take the next cadence slot, queueing behind earlier
	// reservations for this servo.
	start := s.nextFree
	if start.Before(now) {
		start = now
	}
	s.nextFree = start.Add(interval)
	return start.Sub(now), nil
}

// Commit records an applied angle after a successful exchange.
func (e *Engine) Commit(id, deg int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state(id)
	s.lastDeg = deg
	s.hasLast = true
	s.lastUpdate = e.now()
}

// state returns the record for a servo, creating it on first use.
// Callers hold e.mu.
func (e *Engine) state(id int) *servoState {
	s, ok := e.servos[id]
	if !ok {
		s = &servoState{}
		e.servos[id] = s
	}
	return s
}

// Snapshot returns a consistent copy of all servo state for telemetry.
func (e *Engine) Snapshot() []ServoState {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]ServoState, 0, e.cfg.ServoCount)
	for id := 1; id <= e.cfg.ServoCount; id++ {
		st := ServoState{ID: id, Range: e.RangeFor(id)}
		if s, ok := e.servos[id]; ok {
			st.LastDeg = s.lastDeg
			st.HasLast = s.hasLast
			st.LastUpdate = s.lastUpdate
		}
		out = append(out, st)
	}
	return out
}

// SafePose returns the configured safe angle for every servo, in id order.
// Servos without an explicit safe-pose entry use CenterDeg, clamped to the
// servo's range.
func (e *Engine) SafePose() []struct{ ID, Deg int } {
	out := make([]struct{ ID, Deg int }, 0, e.cfg.ServoCount)
	for id := 1; id <= e.cfg.ServoCount; id++ {
		deg, ok := e.cfg.SafePose[id]
		if !ok {
			deg = e.cfg.CenterDeg
		}
		r := e.RangeFor(id)
		out = append(out, struct{ ID, Deg int }{id, Clamp(deg, r.Min, r.Max)})
	}
	return out
}
