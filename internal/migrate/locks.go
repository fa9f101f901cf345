package migrate

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/acolita/svn2git/internal/ports"
)

// BreakLocks deletes the index.lock files a crashed git svn leaves below
// .git/svn/refs/remotes/svn/<branch>.
func BreakLocks(fsys ports.FileSystem, gitDir string) error {
	root := filepath.Join(gitDir, "svn", "refs", "remotes", "svn")
	entries, err := fsys.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var result *multierror.Error
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		lock := filepath.Join(root, e.Name(), "index.lock")
		err := fsys.Remove(lock)
		switch {
		case err == nil:
			slog.Info("lock broken", slog.String("path", lock))
		case errors.Is(err, fs.ErrNotExist):
		default:
			slog.Error("could not delete lock, is it in use by another process?", slog.String("path", lock))
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// GCLogCleaner deletes the gc.log that makes git refuse to run gc again
// after a failed automatic gc.
type GCLogCleaner struct {
	fs   ports.FileSystem
	path string
}

// NewGCLogCleaner creates a cleaner for the gc log at path.
func NewGCLogCleaner(fsys ports.FileSystem, path string) *GCLogCleaner {
	return &GCLogCleaner{fs: fsys, path: path}
}

// Clean removes the gc log if it exists.
func (c *GCLogCleaner) Clean(context.Context) error {
	err := c.fs.Remove(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("ignoring gc errors, gc log deleted", slog.String("path", c.path))
	return nil
}
