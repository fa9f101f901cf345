// Package realterm provides the controlling terminal of a migration run.
package realterm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/acolita/svn2git/internal/ports"
	"github.com/acolita/svn2git/internal/security"
)

const (
	keyCtrlC     = 0x03
	keyBackspace = 0x08
	keyDelete    = 0x7f
)

// Terminal reads keystrokes from in and writes echoes to out.
type Terminal struct {
	in  *os.File
	out io.Writer
}

// New returns a Terminal bound to the given input file and output writer.
func New(in *os.File, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out}
}

// Write writes to the terminal output.
func (t *Terminal) Write(p []byte) (int, error) {
	return t.out.Write(p)
}

// ReadSecret switches the terminal to raw mode and reads keystrokes without
// echoing them until Enter. Ctrl+C during entry is reported as cancellation,
// since raw mode suppresses the interrupt signal.
func (t *Terminal) ReadSecret(ctx context.Context) ([]byte, error) {
	fd := int(t.in.Fd())
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return nil, fmt.Errorf("enter raw mode: %w", err)
		}
		defer term.Restore(fd, state)
	}

	type result struct {
		secret []byte
		err    error
	}

	// The reader goroutine cannot be unblocked once started; after a
	// cancellation it exits on the next keystroke or when stdin closes.
	ch := make(chan result, 1)
	go func() {
		secret, err := readUntilEnter(t.in)
		ch <- result{secret: secret, err: err}
	}()

	select {
	case r := <-ch:
		fmt.Fprint(t.out, "\r\n")
		return r.secret, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// readUntilEnter consumes single bytes until a carriage return or newline.
// Backspace removes the last byte; Ctrl+C aborts with context.Canceled.
func readUntilEnter(r io.Reader) ([]byte, error) {
	var secret []byte
	b := make([]byte, 1)

	for {
		n, err := r.Read(b)
		if n == 1 {
			switch b[0] {
			case '\r', '\n':
				return secret, nil
			case keyCtrlC:
				security.WipeBytes(secret)
				return nil, fmt.Errorf("password entry interrupted: %w", context.Canceled)
			case keyBackspace, keyDelete:
				if len(secret) > 0 {
					secret[len(secret)-1] = 0
					secret = secret[:len(secret)-1]
				}
			default:
				secret = append(secret, b[0])
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(secret) > 0 {
				return secret, nil
			}
			security.WipeBytes(secret)
			return nil, err
		}
	}
}

var _ ports.Terminal = (*Terminal)(nil)
