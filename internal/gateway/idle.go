package gateway

import (
	"sync"
	"time"
)

// idleTimer drops the host connection after a sliding quiet window.
// The window only runs while no call is in flight, so a slow command
// is never evicted mid-call. A zero timeout disables eviction.
type idleTimer struct {
	timeout time.Duration
	expire  func()

	mu          sync.Mutex
	timer       *time.Timer
	timerID     uint64
	nextTimerID uint64
	inFlight    int
}

func newIdleTimer(timeout time.Duration, expire func()) *idleTimer {
	return &idleTimer{timeout: timeout, expire: expire}
}

// Begin marks the start of a call and cancels any pending countdown.
func (t *idleTimer) Begin() {
	if t.timeout <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.inFlight++
}

// End marks completion of a call. The countdown starts once the final
// in-flight call finishes.
func (t *idleTimer) End() {
	if t.timeout <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.inFlight > 0 {
		t.inFlight--
	}
	if t.inFlight == 0 {
		t.startLocked()
	}
}

// Touch restarts the countdown when nothing is in flight.
func (t *idleTimer) Touch() {
	if t.timeout <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.inFlight > 0 {
		return
	}
	t.startLocked()
}

// Stop cancels any pending countdown.
func (t *idleTimer) Stop() {
	if t.timeout <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
}

func (t *idleTimer) startLocked() {
	t.stopLocked()
	t.nextTimerID++
	id := t.nextTimerID
	t.timer = time.AfterFunc(t.timeout, func() { t.fire(id) })
	t.timerID = id
}

func (t *idleTimer) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *idleTimer) fire(id uint64) {
	t.mu.Lock()
	if t.timer == nil || t.timerID != id || t.inFlight > 0 {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.mu.Unlock()

	t.expire()
}
