package gateway

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestIdleTimerFiresAfterQuietWindow(t *testing.T) {
	var fired atomic.Int32
	it := newIdleTimer(20*time.Millisecond, func() { fired.Add(1) })
	defer it.Stop()

	it.Touch()
	time.Sleep(80 * time.Millisecond)

	if got := fired.Load(); got != 1 {
		t.Fatalf("fired = %d, want 1", got)
	}
}

func TestIdleTimerBeginDefersCountdownUntilEnd(t *testing.T) {
	var fired atomic.Int32
	it := newIdleTimer(20*time.Millisecond, func() { fired.Add(1) })
	defer it.Stop()

	it.Begin()
	time.Sleep(60 * time.Millisecond)

	if got := fired.Load(); got != 0 {
		t.Fatalf("fired = %d while call in flight, want 0", got)
	}

	it.mu.Lock()
	hasTimer := it.timer != nil
	inFlight := it.inFlight
	it.mu.Unlock()
	if hasTimer {
		t.Fatal("timer armed while call is still in flight")
	}
	if inFlight != 1 {
		t.Fatalf("inFlight = %d, want 1", inFlight)
	}

	it.End()
	time.Sleep(60 * time.Millisecond)

	if got := fired.Load(); got != 1 {
		t.Fatalf("fired = %d after call completed, want 1", got)
	}
}

func TestIdleTimerWaitsForAllInFlightCalls(t *testing.T) {
	var fired atomic.Int32
	it := newIdleTimer(20*time.Millisecond, func() { fired.Add(1) })
	defer it.Stop()

	it.Begin()
	it.Begin()
	it.End()
	time.Sleep(50 * time.Millisecond)

	if got := fired.Load(); got != 0 {
		t.Fatalf("fired = %d before last call completed, want 0", got)
	}

	it.End()
	time.Sleep(50 * time.Millisecond)

	if got := fired.Load(); got != 1 {
		t.Fatalf("fired = %d after last call completed, want 1", got)
	}
}

func TestIdleTimerZeroTimeoutDisablesEviction(t *testing.T) {
	var fired atomic.Int32
	it := newIdleTimer(0, func() { fired.Add(1) })

	it.Touch()
	it.Begin()
	it.End()
	time.Sleep(30 * time.Millisecond)

	if got := fired.Load(); got != 0 {
		t.Fatalf("fired = %d with zero timeout, want 0", got)
	}

	it.mu.Lock()
	hasTimer := it.timer != nil
	it.mu.Unlock()
	if hasTimer {
		t.Fatal("timer armed with zero timeout")
	}
}

func TestIdleTimerStopCancelsCountdown(t *testing.T) {
	var fired atomic.Int32
	it := newIdleTimer(20*time.Millisecond, func() { fired.Add(1) })

	it.Touch()
	it.Stop()
	time.Sleep(60 * time.Millisecond)

	if got := fired.Load(); got != 0 {
		t.Fatalf("fired = %d after Stop, want 0", got)
	}
}

func TestIdleTimerIgnoresStaleFire(t *testing.T) {
	var fired atomic.Int32
	it := newIdleTimer(time.Hour, func() { fired.Add(1) })
	defer it.Stop()

	it.Touch()
	it.mu.Lock()
	staleID := it.timerID
	it.mu.Unlock()

	it.Touch()
	it.fire(staleID)

	if got := fired.Load(); got != 0 {
		t.Fatalf("fired = %d from stale timer, want 0", got)
	}

	it.mu.Lock()
	currentID := it.timerID
	it.mu.Unlock()
	it.fire(currentID)

	if got := fired.Load(); got != 1 {
		t.Fatalf("fired = %d from current timer, want 1", got)
	}
}
