package migrate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/acolita/svn2git/internal/ports"
)

// commands runs the plain, non-interactive commands of the migration inside
// the working tree.
type commands struct {
	runner ports.CommandRunner
	dir    string
}

func (c commands) spec(name string, args ...string) ports.CommandSpec {
	return ports.CommandSpec{Name: name, Args: args, Dir: c.dir}
}

// output runs the command and returns its stdout and stderr joined by newlines.
func (c commands) output(ctx context.Context, spec ports.CommandSpec) (stdout, stderr string, code int, err error) {
	var out, errOut []string
	code, err = c.runner.Run(ctx, spec, ports.OutputSink{
		Stdout: func(line string) { out = append(out, line) },
		Stderr: func(line string) { errOut = append(errOut, line) },
	})
	return strings.Join(out, "\n"), strings.Join(errOut, "\n"), code, err
}

// run runs the command and returns its exit code.
func (c commands) run(ctx context.Context, name string, args ...string) (int, error) {
	return c.runner.Run(ctx, c.spec(name, args...), ports.OutputSink{})
}

// must runs the command and fails unless it exits with code 0.
func (c commands) must(ctx context.Context, name string, args ...string) error {
	spec := c.spec(name, args...)
	code, err := c.runner.Run(ctx, spec, ports.OutputSink{})
	if err != nil {
		return err
	}
	if code != 0 {
		return commandFailed(spec, code)
	}
	return nil
}

// mustOutput runs the command, fails unless it exits with code 0 and returns
// its trimmed stdout.
func (c commands) mustOutput(ctx context.Context, name string, args ...string) (string, error) {
	spec := c.spec(name, args...)
	stdout, _, code, err := c.output(ctx, spec)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", commandFailed(spec, code)
	}
	return strings.TrimSpace(stdout), nil
}

// tolerate runs the command and only logs a non-zero exit code.
func (c commands) tolerate(ctx context.Context, name string, args ...string) error {
	code, err := c.run(ctx, name, args...)
	if err != nil {
		return err
	}
	if code != 0 {
		slog.Debug("command failed, continuing",
			slog.String("command", name+" "+strings.Join(args, " ")),
			slog.Int("exit_code", code),
		)
	}
	return nil
}
