package bridge

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/motorbridge/bridge-go/pkg/channel"
	"github.com/motorbridge/bridge-go/pkg/proto"
	"github.com/motorbridge/bridge-go/pkg/safety"
)

// JoystickInput is a raw two-axis drive input.
type JoystickInput struct {
	// X is turn: left(-) .. right(+), in [-255,255].
	X int

	// Y is throttle: back(-) .. forward(+), in [-255,255].
	Y int

	// Deadzone zeroes inputs within this distance of center.
	Deadzone int

	// Scale attenuates the input, in [0,1]. Zero means full scale.
	Scale float64
}

// MixTank converts a joystick input into per-channel motor speeds using
// the classic tank mix: A = Y + X, B = Y - X, clamped to the speed range.
func MixTank(in JoystickInput) (a, b int) {
	x := deadzone(in.X, in.Deadzone)
	y := deadzone(in.Y, in.Deadzone)

	scale := in.Scale
	if scale <= 0 || scale > 1 {
		scale = 1
	}
	x = int(math.Round(float64(x) * scale))
	y = int(math.Round(float64(y) * scale))

	a = safety.Clamp(y+x, MinSpeed, MaxSpeed)
	b = safety.Clamp(y-x, MinSpeed, MaxSpeed)
	return a, b
}

func deadzone(v, dz int) int {
	if v > -dz && v < dz {
		return 0
	}
	return v
}

// Drive applies a joystick input: both motor channels are commanded under
// a single channel acquisition so they cannot interleave with another
// caller's commands.
func (b *Bridge) Drive(ctx context.Context, in JoystickInput) (a, bSpeed int, err error) {
	a, bSpeed = MixTank(in)
	err = b.driveAB(ctx, a, bSpeed)
	return a, bSpeed, err
}

func (b *Bridge) driveAB(ctx context.Context, a, bs int) error {
	if err := b.latch.Gate(); err != nil {
		return err
	}
	_, err := b.ch.ExecuteAll(ctx, []channel.Request{
		{Line: proto.SetMotorLine(proto.MotorA, a)},
		{Line: proto.SetMotorLine(proto.MotorB, bs)},
	})
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.mu.motorSpeeds[proto.MotorA] = a
	b.mu.motorSpeeds[proto.MotorB] = bs
	b.mu.motorLastCmd = time.Now()
	b.mu.Unlock()

	b.activity.MarkMotor()
	return nil
}

// Action is a named drive preset. Power scales the preset's base speeds.
type Action struct {
	// Name is the preset identifier.
	Name string

	// Title is a human-readable description.
	Title string

	// mix produces per-channel speeds from a power level.
	mix func(p int) (a, b int)
}

// actions are the built-in drive presets.
var actions = map[string]Action{
	"stop":       {Name: "stop", Title: "Stop", mix: func(p int) (int, int) { return 0, 0 }},
	"forward":    {Name: "forward", Title: "Forward", mix: func(p int) (int, int) { return p, p }},
	"backward":   {Name: "backward", Title: "Backward", mix: func(p int) (int, int) { return -p, -p }},
	"turn_left":  {Name: "turn_left", Title: "Turn left", mix: func(p int) (int, int) { return int(float64(p) * 0.4), p }},
	"turn_right": {Name: "turn_right", Title: "Turn right", mix: func(p int) (int, int) { return p, int(float64(p) * 0.4) }},
	"spin_left":  {Name: "spin_left", Title: "Spin left", mix: func(p int) (int, int) { return -p, p }},
	"spin_right": {Name: "spin_right", Title: "Spin right", mix: func(p int) (int, int) { return p, -p }},
	"slow_mode":  {Name: "slow_mode", Title: "Slow mode", mix: func(p int) (int, int) { return int(float64(p) * 0.3), int(float64(p) * 0.3) }},
}

// Actions lists the available drive presets, sorted by name.
func Actions() []Action {
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RunAction executes a drive preset at the given power. When hold is
// positive the preset runs for that duration and then both motors stop.
func (b *Bridge) RunAction(ctx context.Context, name string, power int, hold time.Duration) error {
	action, ok := actions[name]
	if !ok {
		return &safety.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", name)}
	}
	power = safety.Clamp(power, 0, MaxSpeed)

	a, bs := action.mix(power)
	if err := b.driveAB(ctx, a, bs); err != nil {
		return err
	}

	if hold > 0 {
		select {
		case <-time.After(hold):
		case <-ctx.Done():
			return ctx.Err()
		}
		return b.driveAB(ctx, 0, 0)
	}
	return nil
}
