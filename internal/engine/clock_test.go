package engine

import (
	"sync"
	"testing"
	"time"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestClock(duration time.Duration, marks []int) (*Clock, *fakeNow) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := &fakeNow{t: start}
	c := NewClock(start, duration, WithNow(now.Now), WithThresholds(marks))
	return c, now
}

func TestClock_RemainingSeconds(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
		want    int
	}{
		{"at start", 0, 3600},
		{"mid attempt", 30 * time.Minute, 1800},
		{"sub-second floor", 59*time.Minute + 59*time.Second + 400*time.Millisecond, 0},
		{"at deadline", time.Hour, 0},
		{"past deadline", 3605 * time.Second, 0},
		{"long past deadline", 3700 * time.Second, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, now := newTestClock(time.Hour, nil)
			now.Advance(tc.advance)
			if got := c.RemainingSeconds(); got != tc.want {
				t.Errorf("RemainingSeconds() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestClock_RemainingNonIncreasing(t *testing.T) {
	c, now := newTestClock(10*time.Minute, nil)
	prev := c.RemainingSeconds()
	for i := 0; i < 100; i++ {
		now.Advance(13 * time.Second)
		got := c.RemainingSeconds()
		if got > prev {
			t.Fatalf("remaining increased from %d to %d", prev, got)
		}
		prev = got
	}
	if prev != 0 {
		t.Fatalf("remaining after deadline = %d, want 0", prev)
	}
}

func TestClock_ElapsedClamped(t *testing.T) {
	c, now := newTestClock(time.Hour, nil)

	if got := c.ElapsedSeconds(); got != 0 {
		t.Errorf("elapsed at start = %d, want 0", got)
	}
	now.Advance(90 * time.Second)
	if got := c.ElapsedSeconds(); got != 90 {
		t.Errorf("elapsed = %d, want 90", got)
	}
	now.Advance(2 * time.Hour)
	if got := c.ElapsedSeconds(); got != 3600 {
		t.Errorf("elapsed past deadline = %d, want 3600 (clamped)", got)
	}
}

func TestClock_ThresholdsFireOnce(t *testing.T) {
	c, now := newTestClock(10*time.Minute, []int{300, 60, 10})

	var fired []int
	c.OnThreshold = func(mark int) { fired = append(fired, mark) }

	c.evaluate() // 600s remaining, nothing due
	if len(fired) != 0 {
		t.Fatalf("fired %v at 600s remaining, want none", fired)
	}

	now.Advance(5*time.Minute + 10*time.Second) // 290s remaining
	c.evaluate()
	c.evaluate()
	if len(fired) != 1 || fired[0] != 300 {
		t.Fatalf("fired %v, want [300] exactly once", fired)
	}

	now.Advance(4 * time.Minute) // 50s remaining: 60 mark was skipped over
	c.evaluate()
	if len(fired) != 2 || fired[1] != 60 {
		t.Fatalf("fired %v, want [300 60]", fired)
	}
}

func TestClock_TimeUpExactlyOnce(t *testing.T) {
	c, now := newTestClock(time.Hour, nil)

	timeUps := 0
	c.OnTimeUp = func() { timeUps++ }

	now.Advance(3605 * time.Second)
	if done := c.evaluate(); !done {
		t.Fatal("evaluate past deadline should report done")
	}
	now.Advance(95 * time.Second) // T+3700s
	c.evaluate()
	c.evaluate()

	if timeUps != 1 {
		t.Fatalf("timeUp fired %d times, want exactly 1", timeUps)
	}
	if got := c.RemainingSeconds(); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}
}

func TestClock_NoThresholdAfterDeadline(t *testing.T) {
	// Resuming directly past the deadline fires timeUp, not stale warnings.
	c, now := newTestClock(time.Hour, []int{300, 60})
	now.Advance(2 * time.Hour)

	var fired []int
	timeUps := 0
	c.OnThreshold = func(mark int) { fired = append(fired, mark) }
	c.OnTimeUp = func() { timeUps++ }

	c.evaluate()
	if len(fired) != 0 {
		t.Errorf("thresholds %v fired after deadline, want none", fired)
	}
	if timeUps != 1 {
		t.Errorf("timeUp fired %d times, want 1", timeUps)
	}
}
