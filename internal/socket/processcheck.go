package socket

import (
	"os"
	"strings"

	"github.com/mitchellh/go-ps"
)

var _ ProcessChecker = (*DefaultProcessChecker)(nil)

// ProcessChecker reports whether a process with a given name is running.
type ProcessChecker interface {
	IsRunning(name string) bool
}

// DefaultProcessChecker scans the process table. The calling process is
// ignored so that `confwatch status` does not count itself as a watcher.
type DefaultProcessChecker struct{}

// IsRunning reports whether another process whose executable name starts
// with name is running.
func (pc *DefaultProcessChecker) IsRunning(name string) bool {
	procs, err := ps.Processes()
	if err != nil {
		return false
	}

	self := os.Getpid()
	for _, proc := range procs {
		if proc.Pid() == self {
			continue
		}
		exe := proc.Executable()
		if len(exe) >= len(name) && strings.EqualFold(exe[:len(name)], name) {
			return true
		}
	}
	return false
}
