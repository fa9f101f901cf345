// Package fakerunner provides scripted CommandRunner and ProcessStarter fakes.
package fakerunner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/acolita/svn2git/internal/ports"
)

// Result is the scripted outcome of one Run call.
type Result struct {
	Stdout   []string
	Stderr   []string
	ExitCode int
	Err      error
	// Hook runs before the output is delivered, for side effects such as
	// cancelling a context.
	Hook func()
}

// Runner is a scripted CommandRunner. Results are matched by command line
// prefix first; unmatched calls consume the Queue in order.
type Runner struct {
	mu       sync.Mutex
	Queue    []Result
	ByPrefix map[string][]Result
	Default  *Result
	Calls    []ports.CommandSpec
}

// New returns an empty runner.
func New() *Runner {
	return &Runner{ByPrefix: make(map[string][]Result)}
}

// Enqueue appends results to the queue.
func (r *Runner) Enqueue(results ...Result) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Queue = append(r.Queue, results...)
	return r
}

// On scripts results for calls whose command line starts with prefix,
// e.g. "git branch -r". The last result repeats once the others are used.
func (r *Runner) On(prefix string, results ...Result) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ByPrefix[prefix] = append(r.ByPrefix[prefix], results...)
	return r
}

// Run implements ports.CommandRunner.
func (r *Runner) Run(ctx context.Context, spec ports.CommandSpec, sink ports.OutputSink) (int, error) {
	res, err := r.next(spec)
	if err != nil {
		return -1, err
	}
	if res.Hook != nil {
		res.Hook()
	}
	if res.Err != nil {
		return -1, res.Err
	}
	for _, line := range res.Stdout {
		if sink.Stdout != nil {
			sink.Stdout(line)
		}
	}
	for _, line := range res.Stderr {
		if sink.Stderr != nil {
			sink.Stderr(line)
		}
	}
	return res.ExitCode, nil
}

func (r *Runner) next(spec ports.CommandSpec) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Calls = append(r.Calls, spec)
	line := Line(spec)

	best := ""
	for prefix := range r.ByPrefix {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best != "" {
		results := r.ByPrefix[best]
		res := results[0]
		if len(results) > 1 {
			r.ByPrefix[best] = results[1:]
		}
		return res, nil
	}

	if len(r.Queue) > 0 {
		res := r.Queue[0]
		r.Queue = r.Queue[1:]
		return res, nil
	}
	if r.Default != nil {
		return *r.Default, nil
	}
	return Result{}, fmt.Errorf("fakerunner: unexpected command %q", line)
}

// CallCount returns the number of Run calls so far.
func (r *Runner) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}

// Lines returns every call rendered as a space-joined command line.
func (r *Runner) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		out[i] = Line(c)
	}
	return out
}

// Line renders spec as "name arg1 arg2".
func Line(spec ports.CommandSpec) string {
	parts := append([]string{spec.Name}, spec.Args...)
	if len(spec.Args) == 0 && spec.ArgString != "" {
		parts = append(parts, spec.ArgString)
	}
	return strings.Join(parts, " ")
}

// Process is a scripted interactive child. Stderr serves the scripted text,
// stdin writes are captured.
type Process struct {
	mu       sync.Mutex
	stderr   io.Reader
	stdin    bytes.Buffer
	ExitCode int
	WaitErr  error
	Killed   bool
	Waited   bool
}

// NewProcess returns a process whose stderr yields the given text.
func NewProcess(stderr string, exitCode int) *Process {
	return &Process{stderr: strings.NewReader(stderr), ExitCode: exitCode}
}

// NewProcessFrom returns a process reading stderr from r.
func NewProcessFrom(r io.Reader, exitCode int) *Process {
	return &Process{stderr: r, ExitCode: exitCode}
}

// Stdin implements ports.Process.
func (p *Process) Stdin() io.Writer { return writerFunc(p.write) }

// Stderr implements ports.Process.
func (p *Process) Stderr() io.Reader { return p.stderr }

// WasKilled reports whether Kill was called.
func (p *Process) WasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Killed
}

// Wait implements ports.Process.
func (p *Process) Wait() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Waited = true
	return p.ExitCode, p.WaitErr
}

// Kill implements ports.Process.
func (p *Process) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Killed {
		return nil
	}
	p.Killed = true
	if c, ok := p.stderr.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Written returns everything written to stdin.
func (p *Process) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stdin.String()
}

func (p *Process) write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stdin.Write(b)
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) { return f(b) }

// Starter hands out scripted processes in order.
type Starter struct {
	mu        sync.Mutex
	Processes []*Process
	Err       error
	Calls     []ports.CommandSpec
}

// NewStarter returns a starter serving procs in order.
func NewStarter(procs ...*Process) *Starter {
	return &Starter{Processes: procs}
}

// Start implements ports.ProcessStarter.
func (s *Starter) Start(ctx context.Context, spec ports.CommandSpec) (ports.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, spec)
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.Processes) == 0 {
		return nil, fmt.Errorf("fakerunner: unexpected start of %q", Line(spec))
	}
	p := s.Processes[0]
	s.Processes = s.Processes[1:]
	// like the real session, cancellation kills the child
	context.AfterFunc(ctx, func() { _ = p.Kill() })
	return p, nil
}

var (
	_ ports.CommandRunner  = (*Runner)(nil)
	_ ports.ProcessStarter = (*Starter)(nil)
	_ ports.Process        = (*Process)(nil)
)
