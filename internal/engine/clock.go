// Package engine hosts the per-attempt session runtime: a deadline clock, an
// in-memory answer store, an autosave scheduler and the controller that wires
// them together. All state is instance-scoped — one set per attempt,
// constructed on session start and torn down on exit.
package engine

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultThresholds are the remaining-seconds marks at which the clock emits
// one-shot warnings.
var DefaultThresholds = []int{300, 60, 30, 10}

// defaultTick is the cosmetic tick cadence. It drives notifications only;
// remaining time is always re-derived from the absolute deadline.
const defaultTick = time.Second

// Clock converts an immutable start timestamp plus duration into remaining
// time. It never decrements a cached counter: every query recomputes from the
// deadline, so reloads and clock drift cannot desynchronize it.
type Clock struct {
	startedAt time.Time
	duration  time.Duration
	now       func() time.Time
	tick      time.Duration

	// OnThreshold is invoked at most once per threshold mark.
	OnThreshold func(remainingSeconds int)
	// OnTimeUp is invoked exactly once, after the last sub-threshold tick.
	OnTimeUp func()

	mu         sync.Mutex
	thresholds []int // sorted descending
	fired      map[int]bool
	timeUpDone bool

	stopOnce sync.Once
	stop     chan struct{}
}

// ClockOption customizes a Clock.
type ClockOption func(*Clock)

// WithThresholds overrides the warning marks (seconds remaining).
func WithThresholds(marks []int) ClockOption {
	return func(c *Clock) { c.thresholds = append([]int(nil), marks...) }
}

// WithNow injects the time source. Tests use this.
func WithNow(now func() time.Time) ClockOption {
	return func(c *Clock) { c.now = now }
}

// WithTick overrides the tick cadence.
func WithTick(d time.Duration) ClockOption {
	return func(c *Clock) { c.tick = d }
}

// NewClock builds a clock for an attempt that started at startedAt with the
// given total duration.
func NewClock(startedAt time.Time, duration time.Duration, opts ...ClockOption) *Clock {
	c := &Clock{
		startedAt:  startedAt,
		duration:   duration,
		now:        time.Now,
		tick:       defaultTick,
		thresholds: append([]int(nil), DefaultThresholds...),
		fired:      make(map[int]bool),
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(c.thresholds)))
	return c
}

// Deadline returns the absolute end of the attempt window.
func (c *Clock) Deadline() time.Time {
	return c.startedAt.Add(c.duration)
}

// RemainingSeconds recomputes the remaining time from the absolute deadline:
// max(0, floor(deadline − now)).
func (c *Clock) RemainingSeconds() int {
	rem := c.Deadline().Sub(c.now())
	if rem <= 0 {
		return 0
	}
	return int(rem / time.Second)
}

// ElapsedSeconds returns now − startedAt clamped to [0, duration]. This, not
// tick counting, is the authority for elapsed-time accounting.
func (c *Clock) ElapsedSeconds() int {
	elapsed := c.now().Sub(c.startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > c.duration {
		elapsed = c.duration
	}
	return int(elapsed / time.Second)
}

// Run ticks until the deadline passes, the context is cancelled or Stop is
// called. Call in a goroutine.
func (c *Clock) Run(ctx context.Context) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	// Evaluate immediately so a resume past a mark (or past the deadline)
	// notifies without waiting a full tick.
	if c.evaluate() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			if c.evaluate() {
				return
			}
		}
	}
}

// Stop halts ticking. Pending threshold marks and timeUp will not fire.
// Idempotent.
func (c *Clock) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// evaluate fires due one-shot notifications and reports whether the clock is
// done. Thresholds always fire before timeUp.
func (c *Clock) evaluate() bool {
	remaining := c.RemainingSeconds()

	var thresholds []int
	timeUp := false

	c.mu.Lock()
	for _, mark := range c.thresholds {
		if remaining <= mark && remaining > 0 && !c.fired[mark] {
			c.fired[mark] = true
			thresholds = append(thresholds, mark)
		}
	}
	if remaining == 0 && !c.timeUpDone {
		c.timeUpDone = true
		timeUp = true
	}
	done := c.timeUpDone
	c.mu.Unlock()

	for _, mark := range thresholds {
		if c.OnThreshold != nil {
			c.OnThreshold(mark)
		}
	}
	if timeUp && c.OnTimeUp != nil {
		c.OnTimeUp()
	}
	return done
}
