package safety

import (
	"fmt"
	"time"
)

// ValidationError indicates input rejected before any transformation.
type ValidationError struct {
	// Field names the offending input.
	Field string

	// Reason describes the problem.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RateLimitedError indicates a servo command arrived before its minimum
// inter-command interval elapsed, under the reject policy.
type RateLimitedError struct {
	// ServoID is the servo whose limiter fired.
	ServoID int

	// RetryAfter is how long until the command would be accepted.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("servo %d rate limited, retry after %s", e.ServoID, e.RetryAfter)
}
