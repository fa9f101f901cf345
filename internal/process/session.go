// Package process runs external tools as supervised child processes.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/kballard/go-shellquote"
	"golang.org/x/sync/errgroup"

	"github.com/acolita/svn2git/internal/ports"
)

// Session launches child processes. Every line a child prints is echoed to
// the console writers as well as forwarded to the caller.
type Session struct {
	stdout io.Writer
	stderr io.Writer
	mu     sync.Mutex
}

// NewSession creates a session echoing child output to stdout and stderr.
// Nil writers discard the echo.
func NewSession(stdout, stderr io.Writer) *Session {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &Session{stdout: stdout, stderr: stderr}
}

// Argv returns the argument list of spec, splitting ArgString when Args is empty.
func Argv(spec ports.CommandSpec) ([]string, error) {
	if len(spec.Args) > 0 || spec.ArgString == "" {
		return spec.Args, nil
	}
	args, err := shellquote.Split(spec.ArgString)
	if err != nil {
		return nil, fmt.Errorf("parse arguments %q: %w", spec.ArgString, err)
	}
	return args, nil
}

// CommandLine renders spec as a shell-quoted command line.
func CommandLine(spec ports.CommandSpec) string {
	args, err := Argv(spec)
	if err != nil {
		return strings.TrimSpace(spec.Name + " " + spec.ArgString)
	}
	return shellquote.Join(append([]string{spec.Name}, args...)...)
}

// Run starts the command, forwards each stdout and stderr line to sink and
// returns the exit code. If ctx is cancelled first the process tree is killed
// and ErrCancelled is returned.
func (s *Session) Run(ctx context.Context, spec ports.CommandSpec, sink ports.OutputSink) (int, error) {
	h, err := s.start(ctx, spec, false)
	if err != nil {
		return -1, err
	}

	var g errgroup.Group
	g.Go(func() error {
		return s.pump(h.stdout, s.stdout, "stdout", sink.Stdout)
	})
	g.Go(func() error {
		return s.pump(h.stderr, s.stderr, "stderr", sink.Stderr)
	})
	pumpErr := g.Wait()

	code, err := h.Wait()
	if err != nil {
		return code, err
	}
	if pumpErr != nil && !errors.Is(pumpErr, fs.ErrClosed) {
		return code, fmt.Errorf("read output of %s: %w", spec.Name, pumpErr)
	}
	return code, nil
}

// Start launches the command with stdin and stderr connected to the returned
// handle and returns immediately. Stdout lines are echoed to the console.
func (s *Session) Start(ctx context.Context, spec ports.CommandSpec) (ports.Process, error) {
	h, err := s.start(ctx, spec, true)
	if err != nil {
		return nil, err
	}

	h.stdoutDone = make(chan struct{})
	go func() {
		defer close(h.stdoutDone)
		if err := s.pump(h.stdout, s.stdout, "stdout", nil); err != nil && !errors.Is(err, fs.ErrClosed) {
			slog.Warn("reading child stdout failed",
				slog.String("command", spec.Name),
				slog.String("error", err.Error()),
			)
		}
	}()

	return h, nil
}

func (s *Session) start(ctx context.Context, spec ports.CommandSpec, interactive bool) (*Handle, error) {
	if ctx.Err() != nil {
		return nil, CancelError(ctx)
	}

	args, err := Argv(spec)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(spec.Name, args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	h := &Handle{cmd: cmd, name: spec.Name, ctx: ctx}

	if interactive {
		if h.stdin, err = cmd.StdinPipe(); err != nil {
			return nil, fmt.Errorf("stdin pipe: %w", err)
		}
	}
	if h.stdout, err = cmd.StdoutPipe(); err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if h.stderr, err = cmd.StderrPipe(); err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	slog.Debug("running command",
		slog.String("command", CommandLine(spec)),
		slog.String("dir", spec.Dir),
		slog.Bool("interactive", interactive),
	)

	if err := cmd.Start(); err != nil {
		return nil, launchError(spec.Name, err)
	}

	h.stop = context.AfterFunc(ctx, func() {
		if err := h.Kill(); err != nil {
			slog.Warn("failed to kill process tree",
				slog.String("command", spec.Name),
				slog.String("error", err.Error()),
			)
		}
	})

	return h, nil
}

func launchError(name string, err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) && pathErr.Op == "chdir" {
		return fmt.Errorf("start %s: %w", name, err)
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return &ToolMissingError{Name: name, Err: err}
	}
	return fmt.Errorf("start %s: %w", name, err)
}

// pump splits r into lines, echoing each to echo and handing it to fn.
// A final line without a newline is still delivered.
func (s *Session) pump(r io.Reader, echo io.Writer, stream string, fn ports.LineFunc) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
			s.echo(echo, line)
			slog.Debug("command output", slog.String("stream", stream), slog.String("line", line))
			if fn != nil {
				fn(line)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// echo writes one line to the console. Lines from the two streams are
// written whole so they never interleave mid-line.
func (s *Session) echo(w io.Writer, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(w, line+"\n")
}

// Handle is a running child process.
type Handle struct {
	cmd        *exec.Cmd
	name       string
	ctx        context.Context
	stdin      io.WriteCloser
	stdout     io.ReadCloser
	stderr     io.ReadCloser
	stdoutDone chan struct{}
	stop       func() bool

	killOnce sync.Once
	killErr  error
	waitOnce sync.Once
	exitCode int
	waitErr  error
}

// Stdin returns the child's standard input. It is nil for non-interactive runs.
func (h *Handle) Stdin() io.Writer {
	return h.stdin
}

// Stderr returns the child's raw standard error stream.
func (h *Handle) Stderr() io.Reader {
	return h.stderr
}

// Pid returns the operating system process id.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Wait waits for the child to exit and returns its exit code. The exit code
// is read once; later calls return the same result.
func (h *Handle) Wait() (int, error) {
	h.waitOnce.Do(func() {
		if h.stdoutDone != nil {
			<-h.stdoutDone
		}
		err := h.cmd.Wait()
		if h.stop != nil {
			h.stop()
		}

		h.exitCode = -1
		if h.cmd.ProcessState != nil {
			h.exitCode = h.cmd.ProcessState.ExitCode()
		}

		var exitErr *exec.ExitError
		switch {
		case h.ctx.Err() != nil:
			h.exitCode = -1
			h.waitErr = CancelError(h.ctx)
		case err == nil, errors.As(err, &exitErr):
		default:
			h.waitErr = fmt.Errorf("wait for %s: %w", h.name, err)
		}

		slog.Debug("command exited",
			slog.String("command", h.name),
			slog.Int("exit_code", h.exitCode),
		)
	})
	return h.exitCode, h.waitErr
}

// Kill terminates the child and all of its descendants and closes the pipes
// so that blocked reads return.
func (h *Handle) Kill() error {
	h.killOnce.Do(func() {
		var result *multierror.Error
		if err := killTree(h.cmd.Process); err != nil {
			result = multierror.Append(result, err)
		}
		for _, c := range []io.Closer{h.stdin, h.stdout, h.stderr} {
			if c == nil {
				continue
			}
			if err := c.Close(); err != nil && !errors.Is(err, fs.ErrClosed) {
				result = multierror.Append(result, err)
			}
		}
		h.killErr = result.ErrorOrNil()
	})
	return h.killErr
}

var (
	_ ports.CommandRunner  = (*Session)(nil)
	_ ports.ProcessStarter = (*Session)(nil)
	_ ports.Process        = (*Handle)(nil)
)
