// svn2git migrates an SVN repository to git by supervising git svn.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/acolita/svn2git/internal/fetch"
	"github.com/acolita/svn2git/internal/migrate"
	"github.com/acolita/svn2git/internal/process"
)

// Version information - set at build time.
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Process exit codes.
const (
	exitOK        = 0
	exitFailed    = 1
	exitUsage     = 2
	exitCancelled = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	code := exitCode(err)
	switch code {
	case exitOK:
	case exitCancelled:
		fmt.Fprintln(os.Stderr, "Cancelled.")
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(code)
}

// exitCode maps the result of a run to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	if errors.Is(err, context.Canceled) {
		return exitCancelled
	}

	var (
		migrateErr  *migrate.Error
		exhausted   *fetch.ExhaustedError
		toolMissing *process.ToolMissingError
	)
	if errors.As(err, &migrateErr) || errors.As(err, &exhausted) || errors.As(err, &toolMissing) {
		return exitFailed
	}
	return exitUsage
}
