// Package migrate orchestrates the stages of an SVN to git migration.
package migrate

import (
	"fmt"

	"github.com/acolita/svn2git/internal/ports"
	"github.com/acolita/svn2git/internal/process"
)

// Error is a migration failure that is reported to the operator as is.
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func errorf(format string, args ...any) *Error {
	return &Error{Msg: fmt.Sprintf(format, args...)}
}

// commandFailed reports a command that exited with a non-zero code.
func commandFailed(spec ports.CommandSpec, code int) *Error {
	return errorf("fail to execute command %q (exit code %d). Run with --verbose for details",
		process.CommandLine(spec), code)
}
