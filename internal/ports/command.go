package ports

import (
	"context"
	"io"
)

// CommandSpec describes one external command invocation.
type CommandSpec struct {
	// Name is the executable, resolved through PATH.
	Name string
	// Args is the argument list. It takes precedence over ArgString.
	Args []string
	// ArgString is a single shell-quoted argument string, split before launch.
	ArgString string
	// Dir is the working directory; empty means the current directory.
	Dir string
	// Env holds extra KEY=VALUE pairs appended to the parent environment.
	Env []string
}

// LineFunc receives one line of output with the trailing newline stripped.
type LineFunc func(line string)

// OutputSink receives completed lines from a child process.
// Either callback may be nil.
type OutputSink struct {
	Stdout LineFunc
	Stderr LineFunc
}

// CommandRunner runs an external command to completion.
type CommandRunner interface {
	// Run starts the command, forwards its output lines to sink and returns
	// the exit code once the process has exited.
	Run(ctx context.Context, spec CommandSpec, sink OutputSink) (int, error)
}

// Process is a child started with its stdin and stderr connected to the caller.
type Process interface {
	// Stdin returns the child's standard input.
	Stdin() io.Writer

	// Stderr returns the child's raw standard error stream.
	Stderr() io.Reader

	// Wait waits for the child to exit and returns its exit code.
	// Stderr must be read to the end before Wait is called.
	Wait() (int, error)

	// Kill terminates the child and all of its descendants.
	Kill() error
}

// ProcessStarter starts interactive children.
type ProcessStarter interface {
	// Start launches the command and returns without waiting for it to exit.
	// Cancelling ctx kills the child.
	Start(ctx context.Context, spec CommandSpec) (Process, error)
}
