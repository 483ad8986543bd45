package schedule

import (
	"testing"
	"time"
)

func TestFakeClock_Advance(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)

	fired := 0
	c.AfterFunc(100*time.Millisecond, func() { fired++ })

	c.Advance(50 * time.Millisecond)
	if fired != 0 {
		t.Fatal("timer fired before deadline")
	}

	c.Advance(50 * time.Millisecond)
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}

	// Does not fire twice.
	c.Advance(time.Hour)
	if fired != 1 {
		t.Fatalf("fired = %d after further advance, want 1", fired)
	}
}

func TestFakeClock_FiresInDeadlineOrder(t *testing.T) {
	c := NewFakeClock(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))

	var order []string
	c.AfterFunc(200*time.Millisecond, func() { order = append(order, "b") })
	c.AfterFunc(100*time.Millisecond, func() { order = append(order, "a") })

	c.Advance(time.Second)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("order = %v, want [a b]", order)
	}
}

func TestFakeClock_Stop(t *testing.T) {
	c := NewFakeClock(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))

	fired := false
	timer := c.AfterFunc(100*time.Millisecond, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("Stop() on a pending timer should report true")
	}
	if timer.Stop() {
		t.Fatal("second Stop() should report false")
	}

	c.Advance(time.Second)
	if fired {
		t.Fatal("stopped timer fired")
	}
}

func TestFakeClock_CallbackSchedulesDueTimer(t *testing.T) {
	c := NewFakeClock(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))

	chained := false
	c.AfterFunc(100*time.Millisecond, func() {
		c.AfterFunc(50*time.Millisecond, func() { chained = true })
	})

	// One Advance covers both deadlines, so the chained timer fires too.
	c.Advance(time.Second)
	if !chained {
		t.Fatal("timer scheduled inside a callback did not fire")
	}
}

func TestFakeClock_PendingTimers(t *testing.T) {
	c := NewFakeClock(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))

	c.AfterFunc(time.Minute, func() {})
	timer := c.AfterFunc(time.Hour, func() {})
	if got := c.PendingTimers(); got != 2 {
		t.Fatalf("PendingTimers() = %d, want 2", got)
	}

	timer.Stop()
	if got := c.PendingTimers(); got != 1 {
		t.Fatalf("PendingTimers() = %d after stop, want 1", got)
	}
}

func TestRealClock_AfterFunc(t *testing.T) {
	c := RealClock{}
	done := make(chan struct{})
	c.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real timer never fired")
	}
}
