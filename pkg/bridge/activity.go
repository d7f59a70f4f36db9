package bridge

import (
	"sync"
	"time"
)

// ActivityClock tracks the last safety-relevant command per actuator
// class. The watchdog compares against it; transport health uses the
// channel manager's own last-exchange time instead.
//
// The clock advances only on successful, activity-marking commands. The
// watchdog's own stop commands are issued with marking disabled so they
// cannot re-arm the clock.
type ActivityClock struct {
	mu        sync.Mutex
	lastMotor time.Time
	lastServo time.Time

	// now is injectable for tests.
	now func() time.Time
}

// NewActivityClock creates an ActivityClock.
func NewActivityClock() *ActivityClock {
	return &ActivityClock{now: time.Now}
}

func (c *ActivityClock) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// MarkMotor records motor activity now.
func (c *ActivityClock) MarkMotor() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastMotor = c.clock()
}

// MarkServo records servo activity now.
func (c *ActivityClock) MarkServo() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastServo = c.clock()
}

// LastMotor returns the last motor activity time, zero if none yet.
func (c *ActivityClock) LastMotor() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMotor
}

// LastServo returns the last servo activity time, zero if none yet.
func (c *ActivityClock) LastServo() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastServo
}
