package proto

import "fmt"

// ViolationError indicates a reply line that does not match the expected
// framing (missing or unknown marker, missing JSON body).
type ViolationError struct {
	// Line is the offending reply line.
	Line string

	// Reason describes what was wrong with it.
	Reason string
}

// Error implements the error interface.
func (e *ViolationError) Error() string {
	return fmt.Sprintf("protocol violation: %s: %q", e.Reason, e.Line)
}

// DeviceError indicates the device answered a command with an ERR reply.
type DeviceError struct {
	// Sent is the command line that triggered the error.
	Sent string

	// Code is the device's error code token.
	Code string

	// Message is the device's error message, if any.
	Message string
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("device error %s (sent %q)", e.Code, e.Sent)
	}
	return fmt.Sprintf("device error %s: %s (sent %q)", e.Code, e.Message, e.Sent)
}
