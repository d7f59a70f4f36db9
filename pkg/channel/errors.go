package channel

import (
	"errors"
	"fmt"
)

// Channel errors.
var (
	// ErrClosed is returned when the manager has been closed.
	ErrClosed = errors.New("channel closed")

	// ErrEmptyCommand is returned when a command line is empty after
	// sanitizing.
	ErrEmptyCommand = errors.New("empty command line")
)

// TimeoutError indicates no matching reply arrived within the deadline.
type TimeoutError struct {
	// Sent is the command line that went unanswered.
	Sent string

	// Expect are the reply prefixes that were awaited.
	Expect []string

	// Seen are non-matching reply lines received while waiting (capped).
	Seen []string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout waiting for reply: sent=%q expect=%v seen=%v",
		e.Sent, e.Expect, e.Seen)
}

// ChannelError indicates a transport-level I/O fault (open, read or write).
type ChannelError struct {
	// Op is the operation that failed ("open", "write", "read", "close").
	Op string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ChannelError) Unwrap() error {
	return e.Err
}
