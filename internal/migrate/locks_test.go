package migrate

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/acolita/svn2git/internal/testing/fakes/fakefs"
)

func TestBreakLocks(t *testing.T) {
	fsys := fakefs.New()
	fsys.AddFile("/work/.git/svn/refs/remotes/svn/trunk/index.lock", nil, 0o644)
	fsys.AddFile("/work/.git/svn/refs/remotes/svn/trunk/index", []byte("idx"), 0o644)
	fsys.AddFile("/work/.git/svn/refs/remotes/svn/feature/index", []byte("idx"), 0o644)

	if err := BreakLocks(fsys, "/work/.git"); err != nil {
		t.Fatalf("BreakLocks() error = %v", err)
	}

	if _, err := fsys.Stat("/work/.git/svn/refs/remotes/svn/trunk/index.lock"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("lock still present: %v", err)
	}
	for _, kept := range []string{
		"/work/.git/svn/refs/remotes/svn/trunk/index",
		"/work/.git/svn/refs/remotes/svn/feature/index",
	} {
		if _, err := fsys.Stat(kept); err != nil {
			t.Errorf("%s removed: %v", kept, err)
		}
	}
}

func TestBreakLocks_NoSvnDir(t *testing.T) {
	if err := BreakLocks(fakefs.New(), "/work/.git"); err != nil {
		t.Errorf("BreakLocks() error = %v, want nil", err)
	}
}

func TestGCLogCleaner(t *testing.T) {
	fsys := fakefs.New()
	fsys.AddFile("/work/.git/gc.log", []byte("warning: too many unreachable loose objects"), 0o644)
	c := NewGCLogCleaner(fsys, "/work/.git/gc.log")

	if err := c.Clean(context.Background()); err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if _, err := fsys.Stat("/work/.git/gc.log"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("gc.log still present: %v", err)
	}
	if err := c.Clean(context.Background()); err != nil {
		t.Errorf("second Clean() error = %v, want nil", err)
	}
}
