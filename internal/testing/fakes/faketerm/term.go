// Package faketerm provides a test fake for ports.Terminal.
package faketerm

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/acolita/svn2git/internal/ports"
)

// Terminal captures output and serves scripted secrets.
type Terminal struct {
	mu      sync.Mutex
	out     bytes.Buffer
	secrets [][]byte
	// Block makes ReadSecret wait for ctx cancellation.
	Block bool
	Reads int
}

// New returns a terminal that answers ReadSecret with secrets in order.
func New(secrets ...string) *Terminal {
	t := &Terminal{}
	for _, s := range secrets {
		t.secrets = append(t.secrets, []byte(s))
	}
	return t
}

// Write implements io.Writer.
func (t *Terminal) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.out.Write(p)
}

// ReadSecret implements ports.Terminal.
func (t *Terminal) ReadSecret(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	t.Reads++
	block := t.Block
	t.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.secrets) == 0 {
		return nil, errors.New("faketerm: no secret scripted")
	}
	s := t.secrets[0]
	t.secrets = t.secrets[1:]
	return s, nil
}

// Output returns everything written to the terminal.
func (t *Terminal) Output() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.out.String()
}

var _ ports.Terminal = (*Terminal)(nil)
