package proto

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Command verbs.
const (
	VerbSetAEngine   = "SetAEngine"
	VerbSetBEngine   = "SetBEngine"
	VerbSetAllEngine = "SetAllEngine"
	VerbSetServo     = "SetServo"
	VerbSetServos    = "SetServos"
	VerbServoCenter  = "ServoCenter"
	VerbServoPwr     = "ServoPwr"
	VerbServoAttach  = "ServoAttach"
	VerbServoDetach  = "ServoDetach"
	VerbPing         = "PING"
	VerbTelem        = "TELEM"
	VerbCaps         = "CAPS"
	VerbEStop        = "EStop"
)

// FirmwareVerbs are the version query alternates, tried in order.
// Older firmware revisions answer only one of them.
var FirmwareVerbs = []string{"FWVER", "VERSION", "VER"}

// MotorChannel selects which motor channel a command addresses.
type MotorChannel uint8

const (
	// MotorA is the A drive channel.
	MotorA MotorChannel = iota
	// MotorB is the B drive channel.
	MotorB
	// MotorAll addresses both channels at once.
	MotorAll
)

// String returns the channel name.
func (c MotorChannel) String() string {
	switch c {
	case MotorA:
		return "A"
	case MotorB:
		return "B"
	case MotorAll:
		return "ALL"
	default:
		return "UNKNOWN"
	}
}

// Verb returns the wire verb for the channel.
func (c MotorChannel) Verb() string {
	switch c {
	case MotorB:
		return VerbSetBEngine
	case MotorAll:
		return VerbSetAllEngine
	default:
		return VerbSetAEngine
	}
}

// PowerMode is the servo supply selection.
type PowerMode string

const (
	// PowerArduino supplies servos from the board's 5V rail.
	PowerArduino PowerMode = "ARDUINO"
	// PowerExternal supplies servos from an external source.
	PowerExternal PowerMode = "EXTERNAL"
)

// ParsePowerMode normalizes a power mode string.
func ParsePowerMode(s string) (PowerMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(PowerArduino):
		return PowerArduino, nil
	case string(PowerExternal):
		return PowerExternal, nil
	default:
		return "", fmt.Errorf("invalid servo power mode %q", s)
	}
}

// ServoTarget is one entry of a batch servo command.
type ServoTarget struct {
	ID  int `json:"id"`
	Deg int `json:"deg"`
}

// SetMotorLine encodes a motor speed command.
func SetMotorLine(ch MotorChannel, speed int) string {
	return fmt.Sprintf("%s %d", ch.Verb(), speed)
}

// SetServoLine encodes a single servo angle command.
func SetServoLine(id, deg int) string {
	return fmt.Sprintf("%s %d %d", VerbSetServo, id, deg)
}

// SetServosLine encodes a batch servo command with a JSON body.
func SetServosLine(items []ServoTarget) (string, error) {
	body, err := json.Marshal(struct {
		Items []ServoTarget `json:"items"`
	}{Items: items})
	if err != nil {
		return "", err
	}
	return VerbSetServos + " " + string(body), nil
}

// ServoPwrLine encodes a servo power mode command.
func ServoPwrLine(mode PowerMode) string {
	return VerbServoPwr + " " + string(mode)
}

// ServoAttachLine encodes an attach or detach command for one servo.
func ServoAttachLine(id int, attach bool) string {
	verb := VerbServoDetach
	if attach {
		verb = VerbServoAttach
	}
	return fmt.Sprintf("%s %d", verb, id)
}

// EStopLine encodes the emergency stop command, or its reset form.
func EStopLine(reset bool) string {
	if reset {
		return VerbEStop + " RESET"
	}
	return VerbEStop
}

// ExpectPrefixes returns the upper-cased reply prefixes that satisfy the
// given command line. The device acknowledges each verb with a matching
// token; unknown verbs are expected to answer with a bare OK.
func ExpectPrefixes(cmdLine string) []string {
	clean := strings.TrimSpace(cmdLine)
	if clean == "" {
		return []string{"OK"}
	}
	verb := strings.ToUpper(strings.Fields(clean)[0])

	switch verb {
	case "PING":
		return []string{"OK PONG"}
	case "SERVOPWR":
		return []string{"OK SERVO_PWR"}
	case "TELEM", "TELEMETRY":
		return []string{"OK TELEM"}
	case "SETAENGINE", "SETBENGINE", "SETALLENGINE",
		"SETSERVO", "SETSERVOS", "CAPS":
		return []string{"OK " + verb}
	case "SERVOCENTER", "SERVO_CENTER":
		return []string{"OK SERVO_CENTER"}
	case "ESTOP":
		return []string{"OK ESTOP"}
	}
	return []string{"OK"}
}

// MotorVerb reports whether the line's verb commands a motor channel.
func MotorVerb(line string) bool {
	return verbIn(line, "SETAENGINE", "SETBENGINE", "SETALLENGINE")
}

// ServoVerb reports whether the line's verb commands a servo. Attach and
// detach count as servo activity.
func ServoVerb(line string) bool {
	return verbIn(line, "SETSERVO", "SETSERVOS", "SERVOCENTER",
		"SERVOATTACH", "SERVODETACH")
}

func verbIn(line string, verbs ...string) bool {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return false
	}
	up := strings.ToUpper(fields[0])
	for _, v := range verbs {
		if up == v {
			return true
		}
	}
	return false
}
