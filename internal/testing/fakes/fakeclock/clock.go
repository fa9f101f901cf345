// Package fakeclock provides a controllable Clock implementation for testing.
package fakeclock

import (
	"sync"
	"time"

	"github.com/acolita/svn2git/internal/ports"
)

// Clock is a fake clock that can be controlled in tests.
type Clock struct {
	mu          sync.Mutex
	current     time.Time
	waiters     []waiter
	autoAdvance bool
	requested   []time.Duration
}

type waiter struct {
	deadline time.Time
	ch       chan time.Time
}

// New creates a new fake clock initialized to the given time.
func New(initial time.Time) *Clock {
	return &Clock{current: initial}
}

// NewAutoAdvance creates a fake clock whose After channels fire at once,
// moving the clock forward by the requested duration.
func NewAutoAdvance(initial time.Time) *Clock {
	return &Clock{current: initial, autoAdvance: true}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives the time after duration d.
// The channel fires when Advance() is called past the deadline.
func (c *Clock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requested = append(c.requested, d)
	ch := make(chan time.Time, 1)

	if c.autoAdvance && d > 0 {
		c.current = c.current.Add(d)
	}
	deadline := c.current.Add(d)
	if c.autoAdvance || d <= 0 {
		ch <- c.current
		return ch
	}

	c.waiters = append(c.waiters, waiter{deadline: deadline, ch: ch})
	return ch
}

// Advance moves the clock forward by duration d, firing any waiters.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
	now := c.current

	var remaining []waiter
	for _, w := range c.waiters {
		if !now.Before(w.deadline) {
			w.ch <- now
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
}

// Waiters returns the number of After channels that have not fired yet.
func (c *Clock) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Requested returns every duration passed to After, in call order.
func (c *Clock) Requested() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.requested))
	copy(out, c.requested)
	return out
}

// Ensure Clock implements ports.Clock.
var _ ports.Clock = (*Clock)(nil)
