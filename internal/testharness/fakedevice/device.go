// Package fakedevice implements an in-memory motor controller speaking
// the wire protocol over the channel.Port interface. Tests plug it into
// a channel.Manager through a PortOpener and drive the full pipeline
// without hardware.
package fakedevice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/motorbridge/bridge-go/pkg/channel"
)

// Device is a scripted fake controller. The zero value is not usable;
// call New.
type Device struct {
	// Caps is the JSON payload returned for CAPS. Empty uses a stock
	// four-servo descriptor.
	Caps string

	// Telemetry is the JSON payload returned for TELEM. Empty uses a
	// small default.
	Telemetry string

	// FirmwareVerb is the version verb this device understands
	// (FWVER, VERSION or VER). Others get ERR UnknownCmd. Empty
	// accepts all three.
	FirmwareVerb string

	// Firmware is the version string.
	Firmware string

	// BootLines are emitted once on open, before any command.
	BootLines []string

	// ReplyDelay delays every reply. Used to provoke timeouts.
	ReplyDelay time.Duration

	// DropReplies swallows replies for the first N commands.
	DropReplies int

	// FailCommands maps a verb to an ERR code returned instead of OK.
	FailCommands map[string]string

	// Handlers overrides reply generation per verb. A handler returns
	// the full reply line, or "" to fall through to the default.
	Handlers map[string]func(fields []string) string

	mu struct {
		sync.Mutex
		closed    bool
		motors    map[string]int
		servos    map[int]int
		estop     bool
		powerMode string
		sent      []string
		rx        bytes.Buffer
	}
}

// New creates a fake device with stock behavior.
func New() *Device {
	d := &Device{
		Firmware: "fake-1.0.0",
	}
	d.mu.motors = make(map[string]int)
	d.mu.servos = make(map[int]int)
	return d
}

// Opener returns a channel.PortOpener that hands out this device. The
// boot lines are queued on each open.
func (d *Device) Opener() channel.PortOpener {
	return func(name string, baud int) (channel.Port, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.mu.closed = false
		d.mu.rx.Reset()
		for _, line := range d.BootLines {
			d.mu.rx.WriteString(line + "\n")
		}
		return d, nil
	}
}

// Sent returns all command lines the device received, in order.
func (d *Device) Sent() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.mu.sent))
	copy(out, d.mu.sent)
	return out
}

// MotorSpeed returns the last speed set on a motor channel ("A"/"B").
func (d *Device) MotorSpeed(ch string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mu.motors[ch]
}

// ServoDeg returns the last angle written to a servo.
func (d *Device) ServoDeg(id int) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	deg, ok := d.mu.servos[id]
	return deg, ok
}

// EstopLatched reports the device-side estop flag.
func (d *Device) EstopLatched() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mu.estop
}

// PowerMode returns the last power mode set via ServoPwr.
func (d *Device) PowerMode() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mu.powerMode
}

// Read implements channel.Port.
func (d *Device) Read(p []byte) (int, error) {
	// Poll the buffer briefly; the manager reads in short timed slices
	// and treats 0 bytes as a poll timeout.
	deadline := time.Now().Add(20 * time.Millisecond)
	for {
		d.mu.Lock()
		if d.mu.closed {
			d.mu.Unlock()
			return 0, io.EOF
		}
		if d.mu.rx.Len() > 0 {
			n, _ := d.mu.rx.Read(p)
			d.mu.Unlock()
			return n, nil
		}
		d.mu.Unlock()
		if time.Now().After(deadline) {
			return 0, nil
		}
		time.Sleep(time.Millisecond)
	}
}

// Write implements channel.Port. Each full line is handled as one
// command; the reply is queued for the next Read.
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	if d.mu.closed {
		d.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	d.mu.Unlock()

	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		d.handle(line)
	}
	return len(p), nil
}

// Close implements channel.Port.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mu.closed = true
	return nil
}

// SetReadTimeout implements channel.Port. The fake polls internally.
func (d *Device) SetReadTimeout(time.Duration) error { return nil }

// ResetInputBuffer implements channel.Port.
func (d *Device) ResetInputBuffer() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mu.rx.Reset()
	return nil
}

// ResetOutputBuffer implements channel.Port.
func (d *Device) ResetOutputBuffer() error { return nil }

func (d *Device) handle(line string) {
	d.mu.Lock()
	d.mu.sent = append(d.mu.sent, line)
	drop := d.DropReplies > 0
	if drop {
		d.DropReplies--
	}
	d.mu.Unlock()

	reply := d.reply(line)
	if drop || reply == "" {
		return
	}
	if d.ReplyDelay > 0 {
		// Deliver late, after Write has returned, so callers see a
		// quiet wire until the delay elapses.
		go func() {
			time.Sleep(d.ReplyDelay)
			d.InjectLine(reply)
		}()
		return
	}
	d.InjectLine(reply)
}

// InjectLine queues a raw line as if the device had emitted it
// unsolicited.
func (d *Device) InjectLine(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mu.rx.WriteString(line + "\n")
}

func (d *Device) reply(line string) string {
	fields := strings.Fields(line)
	verb := strings.ToUpper(fields[0])

	if h, ok := d.Handlers[fields[0]]; ok {
		if r := h(fields); r != "" {
			return r
		}
	}
	if code, ok := d.FailCommands[fields[0]]; ok {
		return "ERR " + code + " scripted failure"
	}

	switch verb {
	case "PING":
		return "OK PONG"

	case "CAPS":
		if d.Caps != "" {
			return "OK CAPS " + d.Caps
		}
		return `OK CAPS {"device":"fake","servo_count":4,"deg_min":0,"deg_max":180}`

	case "TELEM":
		if d.Telemetry != "" {
			return "OK TELEM " + d.Telemetry
		}
		return `OK TELEM {"vbat":7.4,"uptime_ms":1234}`

	case "FWVER", "VERSION", "VER":
		if d.FirmwareVerb != "" && verb != strings.ToUpper(d.FirmwareVerb) {
			return "ERR UnknownCmd " + fields[0]
		}
		return "OK " + verb + " " + d.Firmware

	case "SETAENGINE", "SETBENGINE":
		return d.setMotor(verb[3:4], fields)

	case "SETALLENGINE":
		if r := d.setMotor("A", fields); strings.HasPrefix(r, "ERR") {
			return r
		}
		d.setMotor("B", fields)
		return "OK SETALLENGINE"

	case "SETSERVO":
		if len(fields) < 3 {
			return "ERR BadArgs SetServo needs id and deg"
		}
		id, err1 := strconv.Atoi(fields[1])
		deg, err2 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil {
			return "ERR BadArgs SetServo needs integers"
		}
		d.setServo(id, deg)
		return "OK SETSERVO"

	case "SETSERVOS":
		payload := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
		var body struct {
			Items []struct {
				ID  int `json:"id"`
				Deg int `json:"deg"`
			} `json:"items"`
		}
		if err := json.Unmarshal([]byte(payload), &body); err != nil {
			return "ERR BadJson " + err.Error()
		}
		for _, t := range body.Items {
			d.setServo(t.ID, t.Deg)
		}
		return "OK SETSERVOS"

	case "SERVOCENTER":
		d.mu.Lock()
		for id := range d.mu.servos {
			d.mu.servos[id] = 90
		}
		d.mu.Unlock()
		return "OK SERVO_CENTER"

	case "SERVOPWR":
		if len(fields) < 2 {
			return "ERR BadArgs ServoPwr needs a mode"
		}
		d.mu.Lock()
		d.mu.powerMode = fields[1]
		d.mu.Unlock()
		return "OK SERVO_PWR " + fields[1]

	case "SERVOATTACH", "SERVODETACH":
		return "OK " + verb

	case "ESTOP":
		d.mu.Lock()
		if len(fields) > 1 && strings.EqualFold(fields[1], "RESET") {
			d.mu.estop = false
		} else {
			d.mu.estop = true
			for ch := range d.mu.motors {
				d.mu.motors[ch] = 0
			}
		}
		d.mu.Unlock()
		return "OK ESTOP"

	default:
		return "ERR UnknownCmd " + fields[0]
	}
}

func (d *Device) setMotor(ch string, fields []string) string {
	if len(fields) < 2 {
		return "ERR BadArgs missing speed"
	}
	speed, err := strconv.Atoi(fields[1])
	if err != nil {
		return fmt.Sprintf("ERR BadArgs speed %q not an integer", fields[1])
	}
	d.mu.Lock()
	d.mu.motors[ch] = speed
	d.mu.Unlock()
	return "OK SET" + ch + "ENGINE"
}

func (d *Device) setServo(id, deg int) {
	d.mu.Lock()
	d.mu.servos[id] = deg
	d.mu.Unlock()
}
