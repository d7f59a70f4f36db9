package proto

import (
	"strings"
)

// Reply markers. A reply line starts with exactly one of these tokens.
const (
	MarkerOK  = "OK"
	MarkerErr = "ERR"
)

// ignorePrefixes are unsolicited device status lines that may interleave
// with command replies. Matching is case-insensitive on the upper-cased line.
var ignorePrefixes = []string{
	"OK READY",
	"OK PINS",
	"OK CMDS",
	"OK SERVO_PWR?",
	"OK START",
}

// Reply is a decoded device reply line.
type Reply struct {
	// Raw is the reply line as received (trimmed, no terminator).
	Raw string

	// OK indicates a success reply.
	OK bool

	// Code is the device error code token of an ERR reply.
	Code string

	// Message is the remainder of an ERR reply after the code.
	Message string
}

// Tail returns the payload of a success reply after the given token,
// e.g. Tail("TELEM") of "OK TELEM {...}" returns "{...}".
// The token match is case-insensitive. Returns "" if the reply does not
// start with "OK <token>".
func (r Reply) Tail(token string) string {
	prefix := MarkerOK + " " + token
	if len(r.Raw) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(r.Raw[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(r.Raw[len(prefix):])
}

// HasPrefix reports whether the reply line starts with the given prefix,
// case-insensitively.
func (r Reply) HasPrefix(prefix string) bool {
	return strings.HasPrefix(strings.ToUpper(r.Raw), strings.ToUpper(prefix))
}

// SanitizeLine normalizes an outgoing command line: strips a BOM or
// replacement rune, keeps only printable ASCII (0x21..0x7E) and spaces,
// and collapses runs of whitespace. Returns "" for lines with no content.
func SanitizeLine(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "\uFEFF\uFFFD")

	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		if ch == ' ' || (ch >= 0x21 && ch <= 0x7e) {
			b.WriteRune(ch)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// DecodeReply decodes a reply line into a Reply.
// Lines not starting with the OK or ERR marker are a protocol violation.
func DecodeReply(line string) (Reply, error) {
	raw := strings.TrimSpace(line)
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return Reply{Raw: raw}, &ViolationError{Line: raw, Reason: "empty reply"}
	}

	switch strings.ToUpper(fields[0]) {
	case MarkerOK:
		return Reply{Raw: raw, OK: true}, nil
	case MarkerErr:
		r := Reply{Raw: raw}
		if len(fields) > 1 {
			r.Code = fields[1]
		}
		if len(fields) > 2 {
			r.Message = strings.Join(fields[2:], " ")
		}
		return r, nil
	default:
		return Reply{Raw: raw}, &ViolationError{Line: raw, Reason: "unknown reply marker"}
	}
}

// Ignorable reports whether a received line is unsolicited boot noise that
// should be skipped while waiting for a command reply.
func Ignorable(line string) bool {
	up := strings.ToUpper(strings.TrimSpace(line))
	for _, p := range ignorePrefixes {
		if strings.HasPrefix(up, p) {
			return true
		}
	}
	return false
}
