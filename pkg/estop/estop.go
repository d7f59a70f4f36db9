// Package estop implements the emergency-stop latch.
//
// The latch is the authoritative safety state: while latched, no command
// that can move an actuator is allowed to reach the serial channel. It is
// set by any caller invoking the stop operation and cleared only by an
// explicit reset. Best-effort device notification happens elsewhere; a
// failure to reach the device never unlatches.
package estop

import (
	"errors"
	"sync"
	"time"
)

// ErrActive is returned by actuator entry points while the latch is set.
var ErrActive = errors.New("emergency stop active")

// State represents the latch state.
type State uint8

const (
	// StateNormal indicates motion commands are allowed.
	StateNormal State = iota

	// StateLatched indicates the latch is set and motion is blocked.
	StateLatched
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateLatched:
		return "LATCHED"
	default:
		return "UNKNOWN"
	}
}

// Status is a snapshot of the latch.
type Status struct {
	// Latched reports whether the latch is set.
	Latched bool

	// Reason is the trip reason, if one was given.
	Reason string

	// Since is when the latch was last set. Zero when not latched.
	Since time.Time
}

// Latch is the global emergency-stop latch. Safe for concurrent use.
// The zero value is an unlatched latch.
type Latch struct {
	mu     sync.Mutex
	state  State
	reason string
	since  time.Time

	// now is injectable for tests.
	now func() time.Time
}

// NewLatch creates an unlatched Latch.
func NewLatch() *Latch {
	return &Latch{now: time.Now}
}

func (l *Latch) clock() time.Time {
	if l.now == nil {
		return time.Now()
	}
	return l.now()
}

// Trip sets the latch. Tripping an already-latched latch refreshes the
// reason and timestamp; it never fails.
func (l *Latch) Trip(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateLatched
	l.reason = reason
	l.since = l.clock()
}

// Reset clears the latch. Resetting an unlatched latch is a no-op.
func (l *Latch) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateNormal
	l.reason = ""
	l.since = time.Time{}
}

// State returns the current state.
func (l *Latch) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Status returns a consistent snapshot of the latch.
func (l *Latch) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		Latched: l.state == StateLatched,
		Reason:  l.reason,
		Since:   l.since,
	}
}

// Gate returns ErrActive while the latch is set. Actuator-mutating entry
// points call this before any other processing.
func (l *Latch) Gate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateLatched {
		return ErrActive
	}
	return nil
}
