// Package socket binds and dials the Unix domain socket that a running
// `confwatch watch` exposes its status API on.
package socket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

var (
	// ErrAddressInUse is returned when another watcher already serves the path.
	ErrAddressInUse = errors.New("address already in use")
	// ErrNotRunning is returned when no watcher answers on the socket.
	ErrNotRunning = errors.New("watcher not running")
)

// ProcessName is the executable name looked for while waiting on a socket.
const ProcessName = "confwatch"

// Config controls dialing and listening behavior.
type Config struct {
	// StartupTimeout bounds how long Dial waits for a watcher that is
	// running but has not bound its socket yet.
	StartupTimeout time.Duration
	// RetryInterval is the pause between dial attempts.
	RetryInterval time.Duration
	// Permissions is applied to the socket file after binding.
	Permissions os.FileMode
	// ProcessName is the executable name that counts as a watcher.
	ProcessName string
}

// DefaultConfig returns the settings used by the CLI.
func DefaultConfig() *Config {
	return &Config{
		StartupTimeout: time.Second,
		RetryInterval:  100 * time.Millisecond,
		Permissions:    defaultPermissions(),
		ProcessName:    ProcessName,
	}
}

// Socket is a status API endpoint at a fixed path.
type Socket struct {
	path      string
	config    *Config
	procCheck ProcessChecker
}

// New returns a Socket for path. A nil cfg means DefaultConfig and a nil
// checker means DefaultProcessChecker.
func New(path string, cfg *Config, checker ProcessChecker) *Socket {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if checker == nil {
		checker = &DefaultProcessChecker{}
	}
	return &Socket{
		path:      path,
		config:    cfg,
		procCheck: checker,
	}
}

// Path returns the socket file path.
func (s *Socket) Path() string { return s.path }

// Dial connects to the socket. While a watcher process is running, failed
// attempts are retried every RetryInterval until StartupTimeout elapses.
// When none is running, Dial fails immediately with ErrNotRunning.
func (s *Socket) Dial(ctx context.Context) (net.Conn, error) {
	deadline := time.Now().Add(s.config.StartupTimeout)
	dialer := &net.Dialer{}

	for {
		conn, err := dialer.DialContext(ctx, "unix", s.path)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if time.Now().After(deadline) || !s.procCheck.IsRunning(s.config.ProcessName) {
			return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.config.RetryInterval):
		}
	}
}

// Listen binds the socket. A stale socket file left by a crashed watcher is
// replaced; a live one yields ErrAddressInUse.
func (s *Socket) Listen() (net.Listener, error) {
	if err := s.ensureDirectory(); err != nil {
		return nil, err
	}
	if err := s.checkExisting(); err != nil {
		return nil, err
	}

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return nil, fmt.Errorf("creating socket listener: %w", err)
	}
	if err := os.Chmod(s.path, s.config.Permissions); err != nil {
		ln.Close()
		return nil, fmt.Errorf("setting socket permissions: %w", err)
	}
	return ln, nil
}

// Remove deletes the socket file. A missing file is not an error.
func (s *Socket) Remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing socket: %w", err)
	}
	return nil
}

func (s *Socket) ensureDirectory() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	return nil
}

func (s *Socket) checkExisting() error {
	conn, err := net.DialTimeout("unix", s.path, s.config.RetryInterval)
	if err == nil {
		_ = conn.Close()
		return ErrAddressInUse
	}
	return s.Remove()
}

func defaultPermissions() os.FileMode {
	switch runtime.GOOS {
	case "linux", "darwin", "freebsd":
		return 0o660
	default:
		return 0o600
	}
}
