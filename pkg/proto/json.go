package proto

import (
	"encoding/json"
	"strings"
)

// CapsDescriptor is the capability document returned by the CAPS command.
// All fields are optional; firmware revisions differ in what they report.
type CapsDescriptor struct {
	// Device is the device identity string.
	Device string `json:"device,omitempty"`

	// ServoCount is the number of servo headers on the board.
	ServoCount int `json:"servo_count,omitempty"`

	// DegMin and DegMax bound the servo degree range.
	DegMin int `json:"deg_min,omitempty"`
	DegMax int `json:"deg_max,omitempty"`

	// Features holds free-form feature flags.
	Features map[string]bool `json:"features,omitempty"`

	// Commands is the explicit supported-command list. Newer firmware
	// reports "commands", older reports "supported_commands".
	Commands          []string `json:"commands,omitempty"`
	SupportedCommands []string `json:"supported_commands,omitempty"`
}

// CommandList returns the advertised command list, whichever key the
// firmware used. Returns nil when no list was advertised.
func (c *CapsDescriptor) CommandList() []string {
	if c.Commands != nil {
		return c.Commands
	}
	return c.SupportedCommands
}

// DecodeJSONReply extracts and decodes the JSON document embedded in a
// success reply after the given token, e.g. "OK CAPS {...}".
// A missing or unparseable body is a protocol violation.
func DecodeJSONReply(r Reply, token string, v any) error {
	tail := r.Tail(token)
	if !strings.HasPrefix(tail, "{") {
		return &ViolationError{Line: r.Raw, Reason: "JSON body missing after OK " + token}
	}
	if err := json.Unmarshal([]byte(tail), v); err != nil {
		return &ViolationError{Line: r.Raw, Reason: "bad JSON body: " + err.Error()}
	}
	return nil
}

// DecodeTelemetry extracts the raw telemetry document from an
// "OK TELEM {...}" reply. The document is passed through undecoded.
func DecodeTelemetry(r Reply) (json.RawMessage, error) {
	tail := r.Tail(VerbTelem)
	if !strings.HasPrefix(tail, "{") {
		return nil, &ViolationError{Line: r.Raw, Reason: "telemetry JSON missing"}
	}
	if !json.Valid([]byte(tail)) {
		return nil, &ViolationError{Line: r.Raw, Reason: "telemetry JSON invalid"}
	}
	return json.RawMessage(tail), nil
}

// DecodeVersionReply extracts a firmware version from a reply to one of the
// FirmwareVerbs. The tail may be a bare string or a JSON document with a
// "version" or "fw" field.
func DecodeVersionReply(r Reply, verb string) (string, error) {
	tail := r.Tail(verb)
	if tail == "" {
		return "", &ViolationError{Line: r.Raw, Reason: "version missing after OK " + verb}
	}
	if !strings.HasPrefix(tail, "{") {
		return tail, nil
	}

	var doc struct {
		Version string `json:"version"`
		FW      string `json:"fw"`
	}
	if err := json.Unmarshal([]byte(tail), &doc); err != nil {
		return "", &ViolationError{Line: r.Raw, Reason: "bad version JSON: " + err.Error()}
	}
	if doc.Version != "" {
		return doc.Version, nil
	}
	if doc.FW != "" {
		return doc.FW, nil
	}
	return "", &ViolationError{Line: r.Raw, Reason: "version JSON has no version field"}
}
