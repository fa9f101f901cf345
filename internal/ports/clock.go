// Package ports defines interfaces for external dependencies (Ports and Adapters pattern).
package ports

import "time"

// Clock abstracts time operations so retry pacing can be tested.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time after duration d.
	After(d time.Duration) <-chan time.Time
}
