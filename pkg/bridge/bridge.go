package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/motorbridge/bridge-go/pkg/caps"
	"github.com/motorbridge/bridge-go/pkg/channel"
	"github.com/motorbridge/bridge-go/pkg/estop"
	"github.com/motorbridge/bridge-go/pkg/log"
	"github.com/motorbridge/bridge-go/pkg/proto"
	"github.com/motorbridge/bridge-go/pkg/safety"
)

// MotorSpeed bounds.
const (
	MinSpeed = -255
	MaxSpeed = 255
)

// MotorResult reports one accepted motor command.
type MotorResult struct {
	// Channel is the addressed motor channel.
	Channel proto.MotorChannel

	// Speed is the commanded speed.
	Speed int

	// Sent and Reply are the wire lines of the exchange.
	Sent  string
	Reply string
}

// ServoResult reports the outcome of one servo command. In batch
// operations each item carries its own outcome; Err is set on failure.
type ServoResult struct {
	// ID is the servo id.
	ID int

	// RequestedDeg is the caller's angle before safety transforms.
	RequestedDeg int

	// AppliedDeg is the angle actually sent after clamp and slew.
	AppliedDeg int

	// Sent and Reply are the wire lines of the exchange.
	Sent  string
	Reply string

	// Err is the item's failure, nil on success.
	Err error
}

// Health reports the outcome of a health probe.
type Health struct {
	// OK indicates the device answered the no-op round trip.
	OK bool

	// PowerMode is the last servo power mode applied, if any.
	PowerMode proto.PowerMode

	// Err describes the failure when OK is false.
	Err string
}

// Bridge is the device bridge core. Construct with New; all methods are
// safe for concurrent use.
type Bridge struct {
	ch       *channel.Manager
	caps     *caps.Cache
	engine   *safety.Engine
	latch    *estop.Latch
	activity *ActivityClock
	logger   log.Logger

	mu struct {
		sync.Mutex
		motorSpeeds  map[proto.MotorChannel]int
		motorLastCmd time.Time
		powerMode    proto.PowerMode
	}
}

// New wires a Bridge from its parts.
func New(ch *channel.Manager, cache *caps.Cache, engine *safety.Engine, logger log.Logger) *Bridge {
	b := &Bridge{
		ch:       ch,
		caps:     cache,
		engine:   engine,
		latch:    estop.NewLatch(),
		activity: NewActivityClock(),
		logger:   log.OrNoop(logger),
	}
	b.mu.motorSpeeds = make(map[proto.MotorChannel]int)
	return b
}

// Channel returns the underlying channel manager (for health collaborators).
func (b *Bridge) Channel() *channel.Manager { return b.ch }

// Activity returns the watchdog activity clock.
func (b *Bridge) Activity() *ActivityClock { return b.activity }

// Engine returns the safety engine (for telemetry snapshots).
func (b *Bridge) Engine() *safety.Engine { return b.engine }

// SetMotor commands one motor channel to a speed in [-255,255].
// markActivity controls whether the command advances the watchdog clock.
func (b *Bridge) SetMotor(ctx context.Context, ch proto.MotorChannel, speed int, markActivity bool) (MotorResult, error) {
	if err := b.latch.Gate(); err != nil {
		return MotorResult{}, err
	}
	if speed < MinSpeed || speed > MaxSpeed {
		return MotorResult{}, &safety.ValidationError{
			Field:  "speed",
			Reason: "out of range [-255,255]",
		}
	}
	if err := b.caps.Gate(ch.Verb()); err != nil {
		return MotorResult{}, err
	}

	line := proto.SetMotorLine(ch, speed)
	reply, err := b.ch.Execute(ctx, channel.Request{Line: line})
	if err != nil {
		return MotorResult{}, err
	}

	b.mu.Lock()
	if ch == proto.MotorAll {
		b.mu.motorSpeeds[proto.MotorA] = speed
		b.mu.motorSpeeds[proto.MotorB] = speed
	} else {
		b.mu.motorSpeeds[ch] = speed
	}
	b.mu.motorLastCmd = time.Now()
	b.mu.Unlock()

	if markActivity {
		b.activity.MarkMotor()
	}
	return MotorResult{Channel: ch, Speed: speed, Sent: line, Reply: reply.Raw}, nil
}

// StopAllMotors commands both motor channels to zero under a single
// channel acquisition, so no other caller's command can interleave.
func (b *Bridge) StopAllMotors(ctx context.Context, markActivity bool) error {
	if err := b.latch.Gate(); err != nil {
		return err
	}
	return b.stopAllMotorsUngated(ctx, markActivity)
}

// stopAllMotorsUngated bypasses the estop gate; the estop trip path uses
// it to stop motors while latching.
func (b *Bridge) stopAllMotorsUngated(ctx context.Context, markActivity bool) error {
	_, err := b.ch.ExecuteAll(ctx, []channel.Request{
		{Line: proto.SetMotorLine(proto.MotorA, 0)},
		{Line: proto.SetMotorLine(proto.MotorB, 0)},
	})
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.mu.motorSpeeds[proto.MotorA] = 0
	b.mu.motorSpeeds[proto.MotorB] = 0
	b.mu.motorLastCmd = time.Now()
	b.mu.Unlock()

	if markActivity {
		b.activity.MarkMotor()
	}
	return nil
}

// MotorSpeeds returns the last commanded speed per channel.
func (b *Bridge) MotorSpeeds() map[proto.MotorChannel]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[proto.MotorChannel]int, len(b.mu.motorSpeeds))
	for k, v := range b.mu.motorSpeeds {
		out[k] = v
	}
	return out
}

// SetServo commands one servo to an angle, applying the full safety
// pipeline. The applied angle may differ from the request (clamp, slew).
func (b *Bridge) SetServo(ctx context.Context, id, deg int, markActivity bool) (ServoResult, error) {
	if err := b.latch.Gate(); err != nil {
		return ServoResult{}, err
	}
	return b.setServoUngated(ctx, id, deg, markActivity)
}

func (b *Bridge) setServoUngated(ctx context.Context, id, deg int, markActivity bool) (ServoResult, error) {
	res := ServoResult{ID: id, RequestedDeg: deg}

	if err := b.caps.Gate(proto.VerbSetServo); err != nil {
		return res, err
	}

	applied, err := b.engine.Prepare(ctx, id, deg)
	if err != nil {
		return res, err
	}
	res.AppliedDeg = applied

	line := proto.SetServoLine(id, applied)
	res.Sent = line
	reply, err := b.ch.Execute(ctx, channel.Request{Line: line, Timeout: 3500 * time.Millisecond})
	if err != nil {
		return res, err
	}
	res.Reply = reply.Raw

	b.engine.Commit(id, applied)
	if markActivity {
		b.activity.MarkServo()
	}
	return res, nil
}

// SetServosBatch commands several servos, applying the safety pipeline to
// each item independently. The result has one entry per item with its own
// outcome; a failed item does not abort the rest.
func (b *Bridge) SetServosBatch(ctx context.Context, items []proto.ServoTarget) ([]ServoResult, error) {
	if err := b.latch.Gate(); err != nil {
		return nil, err
	}
	return b.batchUngated(ctx, items, true), nil
}

func (b *Bridge) batchUngated(ctx context.Context, items []proto.ServoTarget, markActivity bool) []ServoResult {
	out := make([]ServoResult, 0, len(items))
	for _, it := range items {
		res, err := b.setServoUngated(ctx, it.ID, it.Deg, markActivity)
		res.Err = err
		out = append(out, res)
	}
	return out
}

// CenterServos drives every configured servo to its safe pose. Per-item
// outcomes, like SetServosBatch.
func (b *Bridge) CenterServos(ctx context.Context) ([]ServoResult, error) {
	if err := b.latch.Gate(); err != nil {
		return nil, err
	}
	return b.batchUngated(ctx, b.safePoseTargets(), true), nil
}

// SafePose is the watchdog's entry point: the same safe-pose batch, but
// without advancing the activity clock. It shares the estop gate with
// every other motion command.
func (b *Bridge) SafePose(ctx context.Context) ([]ServoResult, error) {
	if err := b.latch.Gate(); err != nil {
		return nil, err
	}
	return b.batchUngated(ctx, b.safePoseTargets(), false), nil
}

func (b *Bridge) safePoseTargets() []proto.ServoTarget {
	pose := b.engine.SafePose()
	items := make([]proto.ServoTarget, 0, len(pose))
	for _, p := range pose {
		items = append(items, proto.ServoTarget{ID: p.ID, Deg: p.Deg})
	}
	return items
}

// SetServoPower selects the servo power source.
func (b *Bridge) SetServoPower(ctx context.Context, mode proto.PowerMode) error {
	if err := b.caps.Gate(proto.VerbServoPwr); err != nil {
		return err
	}
	_, err := b.ch.Execute(ctx, channel.Request{
		Line:    proto.ServoPwrLine(mode),
		Timeout: 3 * time.Second,
	})
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.mu.powerMode = mode
	b.mu.Unlock()
	return nil
}

// PowerMode returns the last applied servo power mode, or "" if none.
func (b *Bridge) PowerMode() proto.PowerMode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mu.powerMode
}

// SetServoAttached attaches or detaches one servo. Gated by capability
// enforcement; older firmware does not implement these verbs.
func (b *Bridge) SetServoAttached(ctx context.Context, id int, attach bool) error {
	if err := b.engine.ValidateID(id); err != nil {
		return err
	}
	verb := proto.VerbServoDetach
	if attach {
		verb = proto.VerbServoAttach
	}
	if err := b.caps.Gate(verb); err != nil {
		return err
	}
	_, err := b.ch.Execute(ctx, channel.Request{Line: proto.ServoAttachLine(id, attach)})
	if err != nil {
		return err
	}
	b.activity.MarkServo()
	return nil
}

// Estop sets the emergency-stop latch and best-effort stops the device.
// The latch is authoritative: it is set before any exchange, and transport
// failures are logged, never escalated.
func (b *Bridge) Estop(ctx context.Context, reason string) estop.Status {
	before := b.latch.State()
	b.latch.Trip(reason)
	b.logEstop(before, estop.StateLatched, reason)

	if err := b.stopAllMotorsUngated(ctx, false); err != nil {
		b.logError("estop motor stop", err)
	}
	if _, err := b.ch.Execute(ctx, channel.Request{
		Line:            proto.EStopLine(false),
		KeepOpenOnError: true,
	}); err != nil {
		b.logError("estop device notify", err)
	}
	return b.latch.Status()
}

// EstopReset clears the latch and best-effort notifies the device.
func (b *Bridge) EstopReset(ctx context.Context) estop.Status {
	before := b.latch.State()
	b.latch.Reset()
	b.logEstop(before, estop.StateNormal, "")

	if _, err := b.ch.Execute(ctx, channel.Request{
		Line:            proto.EStopLine(true),
		Expect:          []string{"OK ESTOP"},
		KeepOpenOnError: true,
	}); err != nil {
		b.logError("estop reset notify", err)
	}
	return b.latch.Status()
}

// EstopStatus returns the latch state without touching the device.
func (b *Bridge) EstopStatus() estop.Status {
	return b.latch.Status()
}

// Capabilities returns the cached capability snapshot, if one exists.
func (b *Bridge) Capabilities() (caps.DeviceCapabilities, bool) {
	return b.caps.Get()
}

// RefreshCapabilities re-probes the device and replaces the cache.
func (b *Bridge) RefreshCapabilities(ctx context.Context) (caps.DeviceCapabilities, error) {
	return b.caps.Probe(ctx)
}

// Telemetry fetches the device's telemetry document, passed through raw.
// One quick retry on failure; telemetry is polled and a single miss is
// usually transient.
func (b *Bridge) Telemetry(ctx context.Context) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(50 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		reply, err := b.ch.Execute(ctx, channel.Request{Line: proto.VerbTelem})
		if err != nil {
			lastErr = err
			continue
		}
		doc, err := proto.DecodeTelemetry(reply)
		if err != nil {
			lastErr = err
			continue
		}
		return doc, nil
	}
	return nil, lastErr
}

// HealthCheck issues a no-op round trip and reports channel liveness.
func (b *Bridge) HealthCheck(ctx context.Context) Health {
	h := Health{PowerMode: b.PowerMode()}
	if err := b.ch.Ping(ctx); err != nil {
		h.Err = err.Error()
		return h
	}
	h.OK = true
	return h
}

func (b *Bridge) logEstop(before, after estop.State, reason string) {
	b.logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerBridge,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.EntityEstop,
			OldState: before.String(),
			NewState: after.String(),
			Reason:   reason,
		},
	})
}

func (b *Bridge) logError(context string, err error) {
	b.logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerBridge,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerBridge,
			Message: err.Error(),
			Context: context,
		},
	})
}
