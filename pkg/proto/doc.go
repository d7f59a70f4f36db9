// Package proto implements the line protocol spoken by the serial-attached
// motor/servo controller.
//
// The protocol is ASCII request/response. Each command is a single line
// terminated by "\n". Each reply is a single line starting with a fixed
// marker:
//
//	OK <TOKEN> [payload]
//	ERR <code> [message]
//
// Any other first token is a protocol violation.
//
// # Commands
//
//	SetAEngine <speed>       speed in [-255,255]
//	SetBEngine <speed>
//	SetAllEngine <speed>
//	SetServo <id> <deg>
//	SetServos <json>         {"items":[{"id":1,"deg":90},...]}
//	ServoCenter
//	ServoPwr ARDUINO|EXTERNAL
//	ServoAttach <id>
//	ServoDetach <id>
//	PING                     -> OK PONG
//	TELEM                    -> OK TELEM {json}
//	CAPS                     -> OK CAPS {json}
//	EStop / EStop RESET      -> OK ESTOP
//	FWVER | VERSION | VER    firmware version alternates
//
// JSON-bearing replies embed the JSON document after the reply token on the
// same line. JSON payloads are parsed leniently: absent optional fields are
// not an error, an unparseable body is.
//
// # Boot noise
//
// The device emits unsolicited status lines at startup (OK READY, OK PINS,
// OK CMDS, OK SERVO_PWR?, OK START). Callers waiting for a reply skip these.
package proto
