// Package expect answers the interactive prompts of git svn on behalf of the operator.
package expect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"syscall"

	"github.com/acolita/svn2git/internal/ports"
	"github.com/acolita/svn2git/internal/process"
	"github.com/acolita/svn2git/internal/prompt"
	"github.com/acolita/svn2git/internal/security"
)

// State is the position of the driver in the prompt/response loop.
type State int

const (
	AwaitingPrompt State = iota
	Responding
	Done
)

func (s State) String() string {
	switch s {
	case AwaitingPrompt:
		return "awaiting-prompt"
	case Responding:
		return "responding"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Driver runs a command whose stderr may ask for a password or for
// certificate trust, and answers each prompt until the command exits.
type Driver struct {
	starter ports.ProcessStarter
	term    ports.Terminal
}

// NewDriver creates a driver. Prompt text is echoed to term and passwords
// that were not configured are read from it.
func NewDriver(starter ports.ProcessStarter, term ports.Terminal) *Driver {
	return &Driver{starter: starter, term: term}
}

// RunGitSvnInteractive runs "git svn <args>" in dir and returns its exit code.
// An empty password means the operator types it when asked.
func (d *Driver) RunGitSvnInteractive(ctx context.Context, dir string, args []string, password string) (int, error) {
	spec := ports.CommandSpec{
		Name: "git",
		Args: append([]string{"svn"}, args...),
		Dir:  dir,
	}
	return d.Run(ctx, spec, password)
}

// Run starts spec and drives it to completion.
func (d *Driver) Run(ctx context.Context, spec ports.CommandSpec, password string) (int, error) {
	proc, err := d.starter.Start(ctx, spec)
	if err != nil {
		return -1, err
	}

	detector := prompt.NewDetector(proc.Stderr(), d.term)
	state := AwaitingPrompt

	// A password typed at the terminal answers every later prompt of this run.
	secret := []byte(password)
	defer func() { security.WipeBytes(secret) }()

	for state != Done {
		if ctx.Err() != nil {
			return d.abort(ctx, proc)
		}

		kind, err := detector.Scan()
		if err != nil {
			if ctx.Err() != nil {
				return d.abort(ctx, proc)
			}
			_ = proc.Kill()
			_, _ = proc.Wait()
			return -1, fmt.Errorf("read stderr of %s: %w", spec.Name, err)
		}

		if kind == prompt.None {
			state = Done
			continue
		}

		state = Responding
		slog.Debug("answering prompt",
			slog.String("command", spec.Name),
			slog.String("prompt", kind.String()),
		)
		if err := d.respond(ctx, proc, kind, &secret); err != nil {
			if ctx.Err() != nil {
				return d.abort(ctx, proc)
			}
			var werr *writeError
			if errors.As(err, &werr) && stdinClosed(werr.err) {
				// The child exited with the prompt pending; its exit code decides.
				slog.Debug("prompt left unanswered",
					slog.String("command", spec.Name),
					slog.String("error", err.Error()),
				)
				state = AwaitingPrompt
				continue
			}
			_ = proc.Kill()
			_, _ = proc.Wait()
			return -1, err
		}
		state = AwaitingPrompt
	}

	return proc.Wait()
}

// respond answers one prompt. An empty *secret is filled from the terminal.
func (d *Driver) respond(ctx context.Context, proc ports.Process, kind prompt.Kind, secret *[]byte) error {
	switch kind {
	case prompt.PasswordRequest:
		if len(*secret) == 0 {
			typed, err := d.term.ReadSecret(ctx)
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			_, _ = io.WriteString(d.term, "\n")
			*secret = typed
		}

		line := make([]byte, 0, len(*secret)+1)
		line = append(append(line, *secret...), '\n')
		defer security.WipeBytes(line)
		if _, err := proc.Stdin().Write(line); err != nil {
			return &writeError{what: "send password", err: err}
		}
		return nil

	case prompt.CertificateTrustFull, prompt.CertificateTrustLimited:
		answer := prompt.SuggestedResponse(kind) + "\n"
		_, _ = io.WriteString(d.term, answer)
		if _, err := io.WriteString(proc.Stdin(), answer); err != nil {
			return &writeError{what: "answer certificate prompt", err: err}
		}
		return nil
	}
	return nil
}

// writeError is a failure to deliver an answer on the child's stdin.
type writeError struct {
	what string
	err  error
}

func (e *writeError) Error() string { return e.what + ": " + e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }

// stdinClosed reports whether err comes from writing to a child that no
// longer reads its stdin.
func stdinClosed(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, fs.ErrClosed)
}

func (d *Driver) abort(ctx context.Context, proc ports.Process) (int, error) {
	if err := proc.Kill(); err != nil {
		slog.Warn("failed to kill process", slog.String("error", err.Error()))
	}
	if _, err := proc.Wait(); err != nil && !errors.Is(err, process.ErrCancelled) {
		slog.Debug("wait after kill", slog.String("error", err.Error()))
	}
	return -1, process.CancelError(ctx)
}
