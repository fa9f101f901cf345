// Package realclock provides a real implementation of the Clock port using the time package.
package realclock

import (
	"time"

	"github.com/acolita/svn2git/internal/ports"
)

// Clock implements ports.Clock using the standard time package.
type Clock struct{}

// New returns a new real Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	return time.Now()
}

// After returns a channel that receives the current time after duration d.
func (c *Clock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

var _ ports.Clock = (*Clock)(nil)
