// Package fetch runs git svn fetch until it succeeds, retrying as long as
// each attempt moves the fetched revision forward.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/acolita/svn2git/internal/ports"
	"github.com/acolita/svn2git/internal/process"
	"github.com/acolita/svn2git/internal/recovery"
)

// NoRevision is the revision before any r<N> line has been seen.
const NoRevision = -1

var revisionLine = regexp.MustCompile(`^r(\d+)\s*=\s*\S+\s*\(.+\)`)

// ParseRevision extracts N from a git svn progress line "rN = <sha> (<ref>)".
func ParseRevision(line string) (int, bool) {
	m := revisionLine.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ExhaustedError is returned when the attempt budget ran out without a clean fetch.
type ExhaustedError struct {
	Command      string
	Attempts     int
	LastRevision int
	Hints        []*recovery.Suggestion
}

func (e *ExhaustedError) Error() string {
	msg := fmt.Sprintf("command failed %d times without progress: %s\nRe-run with --verbose to see the full output of the command.", e.Attempts, e.Command)
	if e.LastRevision != NoRevision {
		msg += fmt.Sprintf("\nLast fetched revision: r%d", e.LastRevision)
	}
	if hints := recovery.Format(e.Hints); hints != "" {
		msg += "\n" + hints
	}
	return msg
}

// Options configure the retry policy.
type Options struct {
	// Attempts is the number of consecutive attempts without progress that
	// are tolerated. Zero or less retries forever.
	Attempts int
	// RetryDelay is waited before every retry.
	RetryDelay time.Duration
	// Cleanup runs before every retry. Its error is logged and ignored.
	Cleanup func(ctx context.Context) error
}

// Engine runs a fetch command with the progress-or-punish retry policy.
type Engine struct {
	runner   ports.CommandRunner
	clock    ports.Clock
	opts     Options
	analyzer *recovery.Analyzer
}

// NewEngine creates an engine. A nil clock is only allowed when RetryDelay is zero.
func NewEngine(runner ports.CommandRunner, clock ports.Clock, opts Options) *Engine {
	return &Engine{
		runner:   runner,
		clock:    clock,
		opts:     opts,
		analyzer: recovery.NewAnalyzer(),
	}
}

// Progress is the bookkeeping of one FetchWithRetry call.
type Progress struct {
	LastRevision    int
	CurrentRevision int
	Attempt         int
	Invocations     int
}

// Observe records the outcome of a failed invocation. It reports whether
// the attempt budget limit is now exceeded.
func (p *Progress) Observe(limit int) (exhausted bool) {
	if p.CurrentRevision != p.LastRevision {
		p.LastRevision = p.CurrentRevision
		p.Attempt = 0
	} else {
		p.Attempt++
	}
	return limit > 0 && p.Attempt > limit
}

// FetchWithRetry runs spec until it exits with code 0.
//
// An attempt that fails after reporting a different revision than the one
// before counts as progress and resets the attempt counter. An attempt that
// fails without moving the revision consumes one attempt; once more than
// Attempts such failures happen in a row an *ExhaustedError is returned.
func (e *Engine) FetchWithRetry(ctx context.Context, spec ports.CommandSpec) (Progress, error) {
	progress := Progress{LastRevision: NoRevision, CurrentRevision: NoRevision}
	command := process.CommandLine(spec)

	for {
		if ctx.Err() != nil {
			return progress, process.CancelError(ctx)
		}

		var stderr []string
		sink := ports.OutputSink{
			Stdout: func(line string) {
				if rev, ok := ParseRevision(line); ok {
					progress.CurrentRevision = rev
				}
			},
			Stderr: func(line string) {
				stderr = append(stderr, line)
			},
		}

		progress.Invocations++
		code, err := e.runner.Run(ctx, spec, sink)
		if err != nil {
			return progress, err
		}
		if code == 0 {
			slog.Debug("fetch complete",
				slog.String("command", command),
				slog.Int("revision", progress.CurrentRevision),
				slog.Int("invocations", progress.Invocations),
			)
			return progress, nil
		}

		madeProgress := progress.CurrentRevision != progress.LastRevision
		if progress.Observe(e.opts.Attempts) {
			return progress, &ExhaustedError{
				Command:      command,
				Attempts:     progress.Attempt,
				LastRevision: progress.LastRevision,
				Hints:        e.analyzer.AnalyzeLines(command, stderr, code),
			}
		}

		slog.Info("fetch failed, retrying",
			slog.String("command", command),
			slog.Int("exit_code", code),
			slog.Int("revision", progress.LastRevision),
			slog.Bool("progress", madeProgress),
			slog.Int("attempt", progress.Attempt),
			slog.Int("limit", e.opts.Attempts),
		)

		if err := e.beforeRetry(ctx); err != nil {
			return progress, err
		}
	}
}

func (e *Engine) beforeRetry(ctx context.Context) error {
	if e.opts.Cleanup != nil {
		if err := e.opts.Cleanup(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return process.CancelError(ctx)
			}
			slog.Warn("cleanup before retry failed", slog.String("error", err.Error()))
		}
	}

	if e.opts.RetryDelay > 0 && e.clock != nil {
		select {
		case <-ctx.Done():
			return process.CancelError(ctx)
		case <-e.clock.After(e.opts.RetryDelay):
		}
	}
	return nil
}
