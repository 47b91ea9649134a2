package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lc/confwatch/internal/filesys"
)

var (
	// ErrInvalidConfig is returned when the settings are invalid.
	ErrInvalidConfig = errors.New("invalid settings")
	// ErrNoConfig is returned when the settings file is not found.
	ErrNoConfig = errors.New("settings file not found")
)

const (
	// DefaultConfigPath is the settings file location relative to the home directory.
	DefaultConfigPath = ".confwatch/config.yaml"
	// DefaultSocketPath is the default path of the status API socket.
	DefaultSocketPath = "/tmp/confwatch.socket"
	// DefaultInterval is the default poll interval.
	DefaultInterval = 2 * time.Second
	// MaxInterval is the longest accepted poll interval.
	MaxInterval = time.Hour
)

// Output selects how watch events are reported.
type Output string

// Supported outputs.
const (
	OutputConsole Output = "console"
	OutputJSON    Output = "json"
)

// Config holds confwatch's own settings.
type Config struct {
	Watch  WatchConfig  `yaml:"watch"`
	Socket SocketConfig `yaml:"socket"`
}

// WatchConfig holds watch loop settings.
type WatchConfig struct {
	Interval time.Duration `yaml:"interval"`
	Output   Output        `yaml:"output"`
}

// SocketConfig holds status API settings.
type SocketConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Provider defines the interface for loading and saving settings.
type Provider interface {
	Load() (*Config, error)
	Save(cfg *Config) error
	Path() string
}

// FSProvider implements Provider using the local filesystem.
type FSProvider struct {
	fs   filesys.ReadWriteFS
	path string
}

var _ Provider = (*FSProvider)(nil)

// New creates a provider for ~/.confwatch/config.yaml. If the home directory
// cannot be determined, the path resolves relative to the current directory.
func New() Provider {
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not determine home directory: %v\n", err)
		home = ""
	}
	return NewWithPath(filesys.OS(), filepath.Join(home, DefaultConfigPath))
}

// NewWithPath creates a provider reading path through fs.
func NewWithPath(fs filesys.ReadWriteFS, path string) Provider {
	return &FSProvider{
		fs:   fs,
		path: path,
	}
}

// Default returns the settings used when no file exists.
func Default() *Config {
	return &Config{
		Watch: WatchConfig{
			Interval: DefaultInterval,
			Output:   OutputConsole,
		},
		Socket: SocketConfig{
			Enabled: false,
			Path:    DefaultSocketPath,
		},
	}
}

// Load reads the settings file. A missing file yields Default(); fields
// absent from the file keep their defaults.
func (p *FSProvider) Load() (*Config, error) {
	_ = p.ensureConfigDir()

	cfg, err := p.loadAndParse()
	if err != nil {
		if errors.Is(err, ErrNoConfig) {
			return Default(), nil
		}
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if err := ValidateInterval(c.Watch.Interval); err != nil {
		return err
	}
	switch c.Watch.Output {
	case OutputConsole, OutputJSON:
	default:
		return fmt.Errorf("output must be %q or %q, got %q", OutputConsole, OutputJSON, c.Watch.Output)
	}
	if c.Socket.Enabled && strings.TrimSpace(c.Socket.Path) == "" {
		return errors.New("socket path cannot be empty when the socket is enabled")
	}
	return nil
}

// ValidateInterval checks that d lies in (0, MaxInterval].
func ValidateInterval(d time.Duration) error {
	if d <= 0 {
		return errors.New("interval must be greater than 0 seconds")
	}
	if d > MaxInterval {
		return fmt.Errorf("interval cannot exceed %d seconds (1 hour)", int(MaxInterval.Seconds()))
	}
	return nil
}

// Path returns the settings file path.
func (p *FSProvider) Path() string { return p.path }

// Save validates cfg and writes it to the settings file.
func (p *FSProvider) Save(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := p.ensureConfigDir(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := p.fs.WriteFile(p.path, data, 0o644); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	return nil
}

func (p *FSProvider) ensureConfigDir() error {
	dir := filepath.Dir(p.path)
	if _, err := p.fs.Stat(dir); os.IsNotExist(err) {
		if err := p.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating settings directory: %w", err)
		}
	}
	return nil
}

func (p *FSProvider) loadAndParse() (*Config, error) {
	f, err := p.fs.Open(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoConfig
		}
		return nil, fmt.Errorf("opening settings file: %w", err)
	}
	defer f.Close()

	cfg := Default()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding settings file: %w", err)
	}

	return cfg, nil
}
