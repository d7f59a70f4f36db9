package estop

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLatchInitialState(t *testing.T) {
	l := NewLatch()

	if l.State() != StateNormal {
		t.Errorf("State() = %v, want StateNormal", l.State())
	}
	if err := l.Gate(); err != nil {
		t.Errorf("Gate() = %v, want nil", err)
	}
	st := l.Status()
	if st.Latched || st.Reason != "" || !st.Since.IsZero() {
		t.Errorf("Status() = %+v, want empty", st)
	}
}

func TestTripAndGate(t *testing.T) {
	l := NewLatch()
	l.Trip("joystick panic button")

	if l.State() != StateLatched {
		t.Errorf("State() = %v, want StateLatched", l.State())
	}
	if err := l.Gate(); !errors.Is(err, ErrActive) {
		t.Errorf("Gate() = %v, want ErrActive", err)
	}

	st := l.Status()
	if !st.Latched {
		t.Error("Status().Latched = false, want true")
	}
	if st.Reason != "joystick panic button" {
		t.Errorf("Status().Reason = %q", st.Reason)
	}
	if st.Since.IsZero() {
		t.Error("Status().Since is zero, want trip time")
	}
}

func TestTripRefreshesReason(t *testing.T) {
	l := NewLatch()

	fake := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fake }

	l.Trip("first")
	fake = fake.Add(5 * time.Second)
	l.Trip("second")

	st := l.Status()
	if st.Reason != "second" {
		t.Errorf("Status().Reason = %q, want %q", st.Reason, "second")
	}
	if !st.Since.Equal(time.Date(2026, 1, 1, 12, 0, 5, 0, time.UTC)) {
		t.Errorf("Status().Since = %v, want refreshed timestamp", st.Since)
	}
}

func TestReset(t *testing.T) {
	l := NewLatch()
	l.Trip("test")
	l.Reset()

	if l.State() != StateNormal {
		t.Errorf("State() after Reset = %v, want StateNormal", l.State())
	}
	if err := l.Gate(); err != nil {
		t.Errorf("Gate() after Reset = %v, want nil", err)
	}

	// Resetting again is harmless.
	l.Reset()
	if l.State() != StateNormal {
		t.Errorf("State() after double Reset = %v", l.State())
	}
}

func TestConcurrentTripAndGate(t *testing.T) {
	l := NewLatch()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			l.Trip("race")
		}()
		go func() {
			defer wg.Done()
			_ = l.Gate()
			_ = l.Status()
		}()
	}
	wg.Wait()

	if l.State() != StateLatched {
		t.Errorf("State() = %v, want StateLatched", l.State())
	}
}

func TestStateString(t *testing.T) {
	if StateNormal.String() != "NORMAL" {
		t.Errorf("StateNormal.String() = %q", StateNormal.String())
	}
	if StateLatched.String() != "LATCHED" {
		t.Errorf("StateLatched.String() = %q", StateLatched.String())
	}
	if State(99).String() != "UNKNOWN" {
		t.Errorf("State(99).String() = %q", State(99).String())
	}
}
