package process

import (
	"context"
	"errors"
	"fmt"
)

// ErrCancelled is returned when the run was cancelled while a child was running.
// It matches context.Canceled with errors.Is.
var ErrCancelled = fmt.Errorf("operation cancelled: %w", context.Canceled)

// ToolMissingError reports an executable that could not be launched.
type ToolMissingError struct {
	Name string
	Err  error
}

func (e *ToolMissingError) Error() string {
	return fmt.Sprintf("could not start %q: %v; install it or add it to PATH", e.Name, e.Err)
}

func (e *ToolMissingError) Unwrap() error {
	return e.Err
}

// IsToolMissing reports whether err is a ToolMissingError.
func IsToolMissing(err error) bool {
	var tm *ToolMissingError
	return errors.As(err, &tm)
}

// CancelError returns ErrCancelled, wrapping the context error when it is
// something other than context.Canceled.
func CancelError(ctx context.Context) error {
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return ErrCancelled
}
