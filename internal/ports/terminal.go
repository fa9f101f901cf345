package ports

import (
	"context"
	"io"
)

// Terminal is the controlling terminal of the migration run.
// Child output is echoed to it and password keystrokes are read from it.
type Terminal interface {
	io.Writer

	// ReadSecret reads keystrokes without echoing them until Enter is pressed.
	// It returns ctx.Err() if ctx is cancelled while waiting for input.
	ReadSecret(ctx context.Context) ([]byte, error)
}
