// Package filesys defines the narrow filesystem surfaces confwatch depends on
// and an OS-backed implementation of them, so that the watcher, the settings
// provider, and the init command can be tested without touching disk.
package filesys

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
)

// ReadFS is what the watcher needs: metadata for change detection and a
// one-shot read that opens and closes the file within the call.
type ReadFS interface {
	Stat(string) (fs.FileInfo, error)
	ReadFile(string) ([]byte, error)
}

// ReadWriteFS is the surface the settings provider needs.
type ReadWriteFS interface {
	Stat(string) (fs.FileInfo, error)
	MkdirAll(string, os.FileMode) error
	Open(string) (*os.File, error)
	WriteFile(string, []byte, os.FileMode) error
}

// FileOps is what AtomicWrite needs.
type FileOps interface {
	Open(string) (*os.File, error)
	MkdirAll(string, os.FileMode) error
	CreateTemp(string, string) (*os.File, error)
	Rename(string, string) error
	Remove(string) error
	Chmod(string, os.FileMode) error
}

// OS returns a file system implementation that delegates to the standard library.
func OS() OsFS {
	return OsFS{}
}

// OsFS implements ReadFS, ReadWriteFS and FileOps against the local disk.
type OsFS struct{}

func (OsFS) Stat(p string) (fs.FileInfo, error)                { return os.Stat(p) }
func (OsFS) ReadFile(p string) ([]byte, error)                 { return os.ReadFile(p) }
func (OsFS) MkdirAll(p string, m os.FileMode) error            { return os.MkdirAll(p, m) }
func (OsFS) Open(p string) (*os.File, error)                   { return os.Open(p) }
func (OsFS) WriteFile(p string, b []byte, m os.FileMode) error { return os.WriteFile(p, b, m) }
func (OsFS) CreateTemp(dir, pat string) (*os.File, error)      { return os.CreateTemp(dir, pat) }
func (OsFS) Rename(old, newName string) error                  { return os.Rename(old, newName) }
func (OsFS) Remove(p string) error                             { return os.Remove(p) }
func (OsFS) Chmod(p string, m os.FileMode) error               { return os.Chmod(p, m) }

var (
	_ ReadFS      = OsFS{}
	_ ReadWriteFS = OsFS{}
	_ FileOps     = OsFS{}
)

// AtomicWrite replaces dst with data so that a concurrent reader (such as a
// running watcher) sees either the old file or the complete new one, never a
// partial write:
//
//  1. temp file in the same dir
//  2. fsync(temp) + close
//  3. chmod(temp, perm)
//  4. rename(temp, dst)
//  5. fsync(dir), best effort
func AtomicWrite(fsys FileOps, dst string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(dst)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := fsys.CreateTemp(dir, ".confwatch-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	name := tmp.Name()

	if _, err = tmp.Write(data); err == nil {
		err = tmp.Sync()
	}
	err = multierr.Append(err, tmp.Close())
	if err == nil {
		err = fsys.Chmod(name, perm)
	}
	if err == nil {
		err = fsys.Rename(name, dst)
	}
	if err != nil {
		return multierr.Append(
			fmt.Errorf("writing %s: %w", dst, err),
			ignoreNotExist(fsys.Remove(name)),
		)
	}

	if d, err := fsys.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

func ignoreNotExist(err error) error {
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
