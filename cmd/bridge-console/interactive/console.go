// Package interactive provides the interactive command-line interface
// for bridge-console.
package interactive

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/motorbridge/bridge-go/pkg/bridge"
	"github.com/motorbridge/bridge-go/pkg/channel"
	"github.com/motorbridge/bridge-go/pkg/proto"
	"github.com/motorbridge/bridge-go/pkg/version"
)

// Console handles interactive mode for bridge-console.
type Console struct {
	br *bridge.Bridge
	rl *readline.Instance
}

// New creates a new interactive console handler.
func New(br *bridge.Bridge) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "bridge> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Console{br: br, rl: rl}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "motor", "m":
			c.cmdMotor(ctx, args)

		case "stop":
			c.cmdStop(ctx)

		case "servo", "s":
			c.cmdServo(ctx, args)

		case "servos":
			c.cmdServos(ctx, args)

		case "center":
			c.cmdCenter(ctx)

		case "safe":
			c.cmdSafe(ctx)

		case "drive", "d":
			c.cmdDrive(ctx, args)

		case "action", "a":
			c.cmdAction(ctx, args)

		case "actions":
			c.cmdActions()

		case "attach":
			c.cmdAttach(ctx, args, true)

		case "detach":
			c.cmdAttach(ctx, args, false)

		case "power":
			c.cmdPower(ctx, args)

		case "estop", "e":
			c.cmdEstop(ctx, args)

		case "reset":
			c.cmdReset(ctx)

		case "caps":
			c.cmdCaps(ctx, args)

		case "telem", "t":
			c.cmdTelem(ctx)

		case "ping":
			c.cmdPing(ctx)

		case "status":
			c.cmdStatus()

		case "raw":
			c.cmdRaw(ctx, args)

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Bridge Commands:
  Motors:
    motor <A|B|ALL> <speed>  - Set motor speed (-255..255)
    stop                     - Stop both motors
    drive <x> <y>            - Tank-mix a joystick input (-255..255 each)
    action <name> [power] [hold-ms] - Run a drive preset
    actions                  - List drive presets

  Servos:
    servo <id> <deg>         - Move one servo (0..180)
    servos <id=deg> ...      - Move several servos in one batch
    center                   - Center all servos
    safe                     - Drive the configured safe pose
    attach <id> / detach <id> - (Re)attach or release a servo
    power <arduino|external> - Select the servo power rail

  Safety:
    estop [reason]           - Latch the emergency stop
    reset                    - Clear the emergency stop

  Device:
    caps [refresh]           - Show (or re-probe) device capabilities
    telem                    - Fetch telemetry
    ping                     - Round-trip health check
    status                   - Show bridge status
    raw <line>               - Send a raw protocol line

  General:
    help                     - Show this help
    quit                     - Exit`)
}

func (c *Console) cmdMotor(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: motor <A|B|ALL> <speed>")
		return
	}

	var ch proto.MotorChannel
	switch strings.ToUpper(args[0]) {
	case "A":
		ch = proto.MotorA
	case "B":
		ch = proto.MotorB
	case "ALL", "*":
		ch = proto.MotorAll
	default:
		fmt.Fprintf(c.rl.Stdout(), "Unknown motor channel: %s\n", args[0])
		return
	}

	speed, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid speed: %v\n", err)
		return
	}

	res, err := c.br.SetMotor(ctx, ch, speed, true)
	if err != nil {
		c.printErr(err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Motor %s -> %d (%s)\n", ch, res.Speed, res.Reply)
}

func (c *Console) cmdStop(ctx context.Context) {
	if err := c.br.StopAllMotors(ctx, true); err != nil {
		c.printErr(err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Motors stopped")
}

func (c *Console) cmdServo(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: servo <id> <deg>")
		return
	}

	id, err1 := strconv.Atoi(args[0])
	deg, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		fmt.Fprintln(c.rl.Stdout(), "Servo id and angle must be integers")
		return
	}

	res, err := c.br.SetServo(ctx, id, deg, true)
	if err != nil {
		c.printErr(err)
		return
	}
	if res.AppliedDeg != res.RequestedDeg {
		fmt.Fprintf(c.rl.Stdout(), "Servo %d -> %d (limited from %d)\n", id, res.AppliedDeg, res.RequestedDeg)
	} else {
		fmt.Fprintf(c.rl.Stdout(), "Servo %d -> %d\n", id, res.AppliedDeg)
	}
}

func (c *Console) cmdServos(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: servos <id=deg> [id=deg ...]")
		return
	}

	targets := make([]proto.ServoTarget, 0, len(args))
	for _, arg := range args {
		var id, deg int
		if _, err := fmt.Sscanf(arg, "%d=%d", &id, &deg); err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid target %q (want id=deg)\n", arg)
			return
		}
		targets = append(targets, proto.ServoTarget{ID: id, Deg: deg})
	}

	results, err := c.br.SetServosBatch(ctx, targets)
	if err != nil {
		c.printErr(err)
		return
	}
	c.printServoResults(results)
}

func (c *Console) cmdCenter(ctx context.Context) {
	results, err := c.br.CenterServos(ctx)
	if err != nil {
		c.printErr(err)
		return
	}
	c.printServoResults(results)
}

func (c *Console) cmdSafe(ctx context.Context) {
	results, err := c.br.SafePose(ctx)
	if err != nil {
		c.printErr(err)
		return
	}
	c.printServoResults(results)
}

func (c *Console) printServoResults(results []bridge.ServoResult) {
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(c.rl.Stdout(), "  servo %d: FAILED: %v\n", r.ID, r.Err)
			continue
		}
		fmt.Fprintf(c.rl.Stdout(), "  servo %d -> %d\n", r.ID, r.AppliedDeg)
	}
}

func (c *Console) cmdDrive(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: drive <x> <y>")
		return
	}

	x, err1 := strconv.Atoi(args[0])
	y, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		fmt.Fprintln(c.rl.Stdout(), "Joystick values must be integers in -255..255")
		return
	}

	a, b, err := c.br.Drive(ctx, bridge.JoystickInput{X: x, Y: y, Deadzone: 10})
	if err != nil {
		c.printErr(err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Drive A=%d B=%d\n", a, b)
}

func (c *Console) cmdAction(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: action <name> [power] [hold-ms]")
		return
	}

	power := 200
	if len(args) >= 2 {
		p, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid power: %v\n", err)
			return
		}
		power = p
	}

	var hold time.Duration
	if len(args) >= 3 {
		ms, err := strconv.Atoi(args[2])
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Invalid hold: %v\n", err)
			return
		}
		hold = time.Duration(ms) * time.Millisecond
	}

	if err := c.br.RunAction(ctx, args[0], power, hold); err != nil {
		c.printErr(err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Action %s done\n", args[0])
}

func (c *Console) cmdActions() {
	fmt.Fprintln(c.rl.Stdout(), "Drive presets:")
	for _, a := range bridge.Actions() {
		fmt.Fprintf(c.rl.Stdout(), "  %-12s %s\n", a.Name, a.Title)
	}
}

func (c *Console) cmdAttach(ctx context.Context, args []string, attach bool) {
	verb := "detach"
	if attach {
		verb = "attach"
	}
	if len(args) < 1 {
		fmt.Fprintf(c.rl.Stdout(), "Usage: %s <id>\n", verb)
		return
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Invalid servo id: %v\n", err)
		return
	}

	if err := c.br.SetServoAttached(ctx, id, attach); err != nil {
		c.printErr(err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Servo %d %sed\n", id, verb)
}

func (c *Console) cmdPower(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: power <arduino|external>")
		return
	}

	mode, err := proto.ParsePowerMode(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "%v\n", err)
		return
	}

	if err := c.br.SetServoPower(ctx, mode); err != nil {
		c.printErr(err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Servo power: %s\n", mode)
}

func (c *Console) cmdEstop(ctx context.Context, args []string) {
	reason := "console"
	if len(args) > 0 {
		reason = strings.Join(args, " ")
	}

	st := c.br.Estop(ctx, reason)
	fmt.Fprintf(c.rl.Stdout(), "EMERGENCY STOP latched (%s)\n", st.Reason)
}

func (c *Console) cmdReset(ctx context.Context) {
	st := c.br.EstopReset(ctx)
	if st.Latched {
		fmt.Fprintln(c.rl.Stdout(), "Emergency stop still latched")
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Emergency stop cleared")
}

func (c *Console) cmdCaps(ctx context.Context, args []string) {
	if len(args) > 0 && args[0] == "refresh" {
		if _, err := c.br.RefreshCapabilities(ctx); err != nil {
			c.printErr(err)
			return
		}
	}

	snap, ok := c.br.Capabilities()
	if !ok {
		fmt.Fprintln(c.rl.Stdout(), "No capability snapshot (use 'caps refresh')")
		return
	}

	fmt.Fprintln(c.rl.Stdout(), "\nDevice Capabilities")
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	fmt.Fprintf(c.rl.Stdout(), "  Device:     %s\n", snap.Device)
	fwLabel := snap.Firmware
	if fw, _, err := version.Extract(snap.Firmware); err == nil {
		fwLabel = fw.String()
	}
	fmt.Fprintf(c.rl.Stdout(), "  Firmware:   %s (via %s)\n", fwLabel, snap.FirmwareVerb)
	fmt.Fprintf(c.rl.Stdout(), "  Servos:     %d (%d..%d deg)\n", snap.ServoCount, snap.DegMin, snap.DegMax)
	if len(snap.Features) > 0 {
		fmt.Fprintf(c.rl.Stdout(), "  Features:   %s\n", strings.Join(slices.Sorted(maps.Keys(snap.Features)), ", "))
	}
	if cmds := snap.Commands; cmds != nil {
		fmt.Fprintf(c.rl.Stdout(), "  Commands:   %s\n", strings.Join(cmds, ", "))
	}
	fmt.Fprintf(c.rl.Stdout(), "  Captured:   %s\n\n", snap.CapturedAt.Format("15:04:05"))
}

func (c *Console) cmdTelem(ctx context.Context) {
	doc, err := c.br.Telemetry(ctx)
	if err != nil {
		c.printErr(err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "%s\n", string(doc))
}

func (c *Console) cmdPing(ctx context.Context) {
	h := c.br.HealthCheck(ctx)
	if !h.OK {
		fmt.Fprintf(c.rl.Stdout(), "Device not responding: %v\n", h.Err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Device responding")
}

func (c *Console) cmdStatus() {
	fmt.Fprintln(c.rl.Stdout(), "\nBridge Status")
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")

	mgr := c.br.Channel()
	connected := "closed"
	if mgr.Connected() {
		connected = "open"
	}
	fmt.Fprintf(c.rl.Stdout(), "  Channel:    %s (session %s)\n", connected, shortID(mgr.SessionID()))

	st := c.br.EstopStatus()
	if st.Latched {
		fmt.Fprintf(c.rl.Stdout(), "  E-stop:     LATCHED (%s, since %s)\n", st.Reason, st.Since.Format("15:04:05"))
	} else {
		fmt.Fprintln(c.rl.Stdout(), "  E-stop:     clear")
	}

	speeds := c.br.MotorSpeeds()
	fmt.Fprintf(c.rl.Stdout(), "  Motors:     A=%d B=%d\n", speeds[proto.MotorA], speeds[proto.MotorB])

	for _, s := range c.br.Engine().Snapshot() {
		if !s.HasLast {
			continue
		}
		fmt.Fprintf(c.rl.Stdout(), "  Servo %d:    %d deg (%s)\n", s.ID, s.LastDeg, s.LastUpdate.Format("15:04:05"))
	}

	if mode := c.br.PowerMode(); mode != "" {
		fmt.Fprintf(c.rl.Stdout(), "  Servo pwr:  %s\n", mode)
	}
	fmt.Fprintln(c.rl.Stdout())
}

func (c *Console) cmdRaw(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: raw <protocol line>")
		return
	}

	line := strings.Join(args, " ")
	reply, err := c.br.Channel().Execute(ctx, channel.Request{Line: line, Expect: []string{"OK", "ERR"}})
	if err != nil {
		c.printErr(err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "<- %s\n", reply.Raw)
}

func (c *Console) printErr(err error) {
	fmt.Fprintf(c.rl.Stdout(), "Error [%s]: %v\n", bridge.CodeOf(err), err)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}
