package servertest

import "sync"

// Timer is a manually-fired stand-in for a real deadline timer, letting a
// test drive exactly when a connection's idle/read/write timer "expires"
// instead of racing a real clock.
//
// Grounded on original_source/server/test_timer.h: a timer double that a
// test fires explicitly, used throughout root_test.cpp/connection tests to
// make timer-vs-I/O races deterministic (spec §9 "Timers vs. I/O races").
type Timer struct {
	mu       sync.Mutex
	epoch    int
	armed    bool
	onExpiry func(epoch int)
}

// Arm schedules onExpiry to run (via Fire) for the current epoch, bumping
// the epoch so any previously armed, not-yet-fired callback becomes a
// stale no-op if it does fire.
func (t *Timer) Arm(onExpiry func(epoch int)) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.epoch++
	t.armed = true
	t.onExpiry = onExpiry
	return t.epoch
}

// Cancel disarms the timer; a later Fire for any epoch is then a no-op.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armed = false
	t.onExpiry = nil
}

// Fire simulates the timer expiring. It is a no-op if the timer was
// cancelled or rearmed (its epoch advanced) since this call was scheduled.
func (t *Timer) Fire(epoch int) {
	t.mu.Lock()
	if !t.armed || epoch != t.epoch {
		t.mu.Unlock()
		return
	}
	cb := t.onExpiry
	t.armed = false
	t.mu.Unlock()
	if cb != nil {
		cb(epoch)
	}
}

// Armed reports whether the timer currently has a pending callback.
func (t *Timer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}
