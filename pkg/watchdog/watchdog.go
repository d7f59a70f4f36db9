// Package watchdog stops idle actuators.
//
// A recurring tick compares the current time against the bridge's
// activity clock. When the motors have been idle past their threshold the
// watchdog issues a stop-all command; when enabled and the servos have
// been idle past theirs it issues the safe-pose batch. Both go through
// the normal command pipeline, including the emergency-stop gate, but
// flagged so they do not advance the activity clock — otherwise the
// watchdog would perpetually re-arm itself.
//
// One command per idle period: after firing, the watchdog stays quiet
// until fresh activity starts a new period. Exchange failures are logged
// and swallowed; the loop never terminates on a failed tick.
package watchdog

import (
	"context"
	"time"

	"github.com/motorbridge/bridge-go/pkg/bridge"
	"github.com/motorbridge/bridge-go/pkg/log"
)

// DefaultTick is the tick interval when none is configured.
const DefaultTick = 1 * time.Second

// Config holds the watchdog thresholds. Read-only after startup.
type Config struct {
	// Tick is the check interval (default 1s).
	Tick time.Duration

	// MotorIdle is the motor idle threshold. Zero disables the motor
	// watchdog.
	MotorIdle time.Duration

	// ServoIdle is the servo idle threshold. Zero disables it even when
	// ServoSafe is set.
	ServoIdle time.Duration

	// ServoSafe enables the servo safe-pose watchdog.
	ServoSafe bool
}

// Actuators is the command surface the watchdog drives.
// *bridge.Bridge satisfies it.
type Actuators interface {
	StopAllMotors(ctx context.Context, markActivity bool) error
	SafePose(ctx context.Context) ([]bridge.ServoResult, error)
}

// ActivitySource reports last actuator activity.
// *bridge.ActivityClock satisfies it.
type ActivitySource interface {
	LastMotor() time.Time
	LastServo() time.Time
}

// Watchdog issues stop/safe-pose commands for idle actuators.
type Watchdog struct {
	cfg      Config
	act      Actuators
	activity ActivitySource
	logger   log.Logger

	// now is injectable for tests.
	now func() time.Time

	// applied flags mark that this idle period has been handled.
	motorApplied bool
	servoApplied bool
}

// New creates a Watchdog. Call Run to start it.
func New(cfg Config, act Actuators, activity ActivitySource, logger log.Logger) *Watchdog {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	return &Watchdog{
		cfg:      cfg,
		act:      act,
		activity: activity,
		logger:   log.OrNoop(logger),
		now:      time.Now,
	}
}

// Run ticks until the context is cancelled. Intended as a background
// goroutine; it only ever returns the context's error.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick runs one check. Failures are swallowed: the latch may be active,
// the device may be briefly unreachable — the next period retries.
func (w *Watchdog) tick(ctx context.Context) {
	now := w.now()

	if w.idle(now, w.activity.LastMotor(), w.cfg.MotorIdle) {
		if !w.motorApplied {
			w.fire(ctx, "motor_idle", func() error {
				return w.act.StopAllMotors(ctx, false)
			})
			// Set even on failure so a dead device is not flooded
			// with one stop per tick.
			w.motorApplied = true
		}
	} else {
		w.motorApplied = false
	}

	if w.cfg.ServoSafe {
		if w.idle(now, w.activity.LastServo(), w.cfg.ServoIdle) {
			if !w.servoApplied {
				w.fire(ctx, "servo_idle", func() error {
					_, err := w.act.SafePose(ctx)
					return err
				})
				w.servoApplied = true
			}
		} else {
			w.servoApplied = false
		}
	}
}

// idle reports whether an actuator class has been idle past its
// threshold. A zero threshold disables; a zero last-activity time means
// the actuator was never used, which is not idleness.
func (w *Watchdog) idle(now, last time.Time, threshold time.Duration) bool {
	if threshold <= 0 || last.IsZero() {
		return false
	}
	return now.Sub(last) >= threshold
}

func (w *Watchdog) fire(ctx context.Context, reason string, cmd func() error) {
	err := cmd()

	ev := log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerBridge,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.EntityWatchdog,
			NewState: "FIRED",
			Reason:   reason,
		},
	}
	if err != nil {
		ev.Category = log.CategoryError
		ev.StateChange = nil
		ev.Error = &log.ErrorEventData{
			Layer:   log.LayerBridge,
			Message: err.Error(),
			Context: "watchdog " + reason,
		}
	}
	w.logger.Log(ev)
}
