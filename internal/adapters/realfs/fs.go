// Package realfs provides a real implementation of the FileSystem port using the os package.
package realfs

import (
	"io/fs"
	"os"

	"github.com/acolita/svn2git/internal/ports"
)

// FS implements ports.FileSystem using the standard os package.
type FS struct{}

// New returns a new real FileSystem.
func New() *FS {
	return &FS{}
}

// ReadFile reads the named file and returns its contents.
func (f *FS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// Stat returns file info for the named file.
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

// ReadDir reads the named directory.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

// Remove removes the named file or empty directory.
func (f *FS) Remove(name string) error {
	return os.Remove(name)
}

// RemoveAll removes path and any children it contains.
func (f *FS) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// Rename renames (moves) oldpath to newpath.
func (f *FS) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

// UserHomeDir returns the current user's home directory.
func (f *FS) UserHomeDir() (string, error) {
	return os.UserHomeDir()
}

// Getenv retrieves the value of the environment variable named by the key.
func (f *FS) Getenv(key string) string {
	return os.Getenv(key)
}

// Ensure FS implements ports.FileSystem.
var _ ports.FileSystem = (*FS)(nil)
