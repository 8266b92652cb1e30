package timer

import (
	"sort"
	"sync"
	"time"
)

// ManualClock is a deterministic Clock for tests: time moves only through
// Advance, which fires due callbacks synchronously in deadline order.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	nextSeq int
	timers  []*manualTimer
}

type manualTimer struct {
	at      time.Time
	seq     int
	fn      func()
	stopped bool
}

// NewManualClock starts the clock at the given instant.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, fn func()) func() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSeq++
	t := &manualTimer{at: c.now.Add(d), seq: c.nextSeq, fn: fn}
	c.timers = append(c.timers, t)

	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		was := t.stopped
		t.stopped = true
		return !was
	}
}

// Advance moves the clock forward and runs every callback whose deadline
// has passed, oldest first.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now

	var due []*manualTimer
	var rest []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.at.After(now) {
			due = append(due, t)
		} else if !t.stopped {
			rest = append(rest, t)
		}
	}
	c.timers = rest
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	c.mu.Unlock()

	for _, t := range due {
		t.stopped = true
		t.fn()
	}
}
