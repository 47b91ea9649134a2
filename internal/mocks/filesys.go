// Package mocks holds testify/mock implementations of confwatch's
// filesystem interfaces.
package mocks

import (
	"io/fs"
	"os"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/lc/confwatch/internal/filesys"
)

var (
	_ filesys.ReadFS      = (*MockOsFS)(nil)
	_ filesys.ReadWriteFS = (*MockOsFS)(nil)
	_ filesys.FileOps     = (*MockOsFS)(nil)
)

// MockOsFS is a testify mock satisfying every filesys interface.
type MockOsFS struct {
	mock.Mock
}

// Stat mocks the Stat method.
func (m *MockOsFS) Stat(p string) (fs.FileInfo, error) {
	args := m.Called(p)
	var fileInfo fs.FileInfo
	if args.Get(0) != nil {
		fileInfo = args.Get(0).(fs.FileInfo)
	}
	return fileInfo, args.Error(1)
}

// ReadFile mocks the ReadFile method.
func (m *MockOsFS) ReadFile(p string) ([]byte, error) {
	args := m.Called(p)
	var data []byte
	if args.Get(0) != nil {
		data = args.Get(0).([]byte)
	}
	return data, args.Error(1)
}

// MkdirAll mocks the MkdirAll method.
func (m *MockOsFS) MkdirAll(p string, mode os.FileMode) error {
	args := m.Called(p, mode)
	return args.Error(0)
}

// Open mocks the Open method.
func (m *MockOsFS) Open(p string) (*os.File, error) {
	args := m.Called(p)
	var file *os.File
	if args.Get(0) != nil {
		file = args.Get(0).(*os.File)
	}
	return file, args.Error(1)
}

// WriteFile mocks the WriteFile method.
func (m *MockOsFS) WriteFile(p string, b []byte, mode os.FileMode) error {
	args := m.Called(p, b, mode)
	return args.Error(0)
}

// CreateTemp mocks the CreateTemp method.
func (m *MockOsFS) CreateTemp(dir, pat string) (*os.File, error) {
	args := m.Called(dir, pat)
	var file *os.File
	if args.Get(0) != nil {
		file = args.Get(0).(*os.File)
	}
	return file, args.Error(1)
}

// Rename mocks the Rename method.
func (m *MockOsFS) Rename(old, newPath string) error {
	args := m.Called(old, newPath)
	return args.Error(0)
}

// Remove mocks the Remove method.
func (m *MockOsFS) Remove(p string) error {
	args := m.Called(p)
	return args.Error(0)
}

// Chmod mocks the Chmod method.
func (m *MockOsFS) Chmod(p string, mode os.FileMode) error {
	args := m.Called(p, mode)
	return args.Error(0)
}

// FileInfo is a static fs.FileInfo for Stat expectations.
type FileInfo struct {
	FileName string
	FileSize int64
	Modified time.Time
}

var _ fs.FileInfo = FileInfo{}

func (f FileInfo) Name() string       { return f.FileName }
func (f FileInfo) Size() int64        { return f.FileSize }
func (f FileInfo) Mode() fs.FileMode  { return 0o644 }
func (f FileInfo) ModTime() time.Time { return f.Modified }
func (f FileInfo) IsDir() bool        { return false }
func (f FileInfo) Sys() any           { return nil }
