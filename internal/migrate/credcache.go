package migrate

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/acolita/svn2git/internal/ports"
)

const credentialBackupExt = ".svn2git"

// CredentialCache hides the cached SVN simple credentials for the duration
// of a run so git svn asks for, and gets, the configured ones.
type CredentialCache struct {
	fs  ports.FileSystem
	dir string
}

// NewCredentialCache returns the cache below ~/.subversion/auth/svn.simple.
func NewCredentialCache(fsys ports.FileSystem) (*CredentialCache, error) {
	home, err := fsys.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &CredentialCache{fs: fsys, dir: filepath.Join(home, ".subversion", "auth", "svn.simple")}, nil
}

// Dir returns the cache directory.
func (c *CredentialCache) Dir() string {
	return c.dir
}

// Disable renames every cache file to <name>.svn2git. It reports how many
// files were moved aside.
func (c *CredentialCache) Disable() (int, error) {
	entries, err := c.entries()
	if err != nil {
		return 0, err
	}

	var result *multierror.Error
	moved := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != "" {
			continue
		}
		path := filepath.Join(c.dir, e.Name())
		backup := path + credentialBackupExt
		if err := c.fs.Remove(backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
			result = multierror.Append(result, err)
			continue
		}
		if err := c.fs.Rename(path, backup); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		moved++
	}
	return moved, result.ErrorOrNil()
}

// Restore moves the backups made by Disable back in place. A backup whose
// name was taken by a credential cached during the run is dropped.
func (c *CredentialCache) Restore() (int, error) {
	entries, err := c.entries()
	if err != nil {
		return 0, err
	}

	var result *multierror.Error
	restored := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != credentialBackupExt {
			continue
		}
		backup := filepath.Join(c.dir, e.Name())
		path := strings.TrimSuffix(backup, credentialBackupExt)

		if _, err := c.fs.Stat(path); err == nil {
			if err := c.fs.Remove(backup); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}
		if err := c.fs.Rename(backup, path); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		restored++
	}
	return restored, result.ErrorOrNil()
}

func (c *CredentialCache) entries() ([]fs.DirEntry, error) {
	entries, err := c.fs.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return entries, err
}
