// Package appconfig defines the schema of the watched application
// configuration file: its typed representation, structural parsing from
// JSON or YAML, business-rule validation, and a read-only summary used for
// reporting.
package appconfig

import (
	"fmt"
	"maps"
	"sort"
)

// Environment names a deployment environment.
type Environment string

// Known environments.
const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Defaults applied to optional fields during parsing.
const (
	DefaultEnvironment    = Development
	DefaultEnableSSL      = true
	DefaultPoolSize       = 10
	DefaultTimeoutSeconds = 30
)

// Environments lists the accepted environment values in display order.
var Environments = []Environment{Development, Staging, Production}

// Config is a parsed and validated application configuration.
// Values handed out by the watcher are never mutated.
type Config struct {
	AppName     string          `json:"app_name" yaml:"app_name"`
	Version     string          `json:"version" yaml:"version"`
	Environment Environment     `json:"environment" yaml:"environment"`
	Server      *ServerConfig   `json:"server,omitempty" yaml:"server,omitempty"`
	Database    *DatabaseConfig `json:"database,omitempty" yaml:"database,omitempty"`
	Features    map[string]bool `json:"features" yaml:"features"`
}

// ServerConfig holds the optional server block.
type ServerConfig struct {
	Host      string `json:"host" yaml:"host"`
	Port      uint16 `json:"port" yaml:"port"`
	EnableSSL bool   `json:"enable_ssl" yaml:"enable_ssl"`
}

// DatabaseConfig holds the optional database block.
type DatabaseConfig struct {
	ConnectionString string `json:"connection_string" yaml:"connection_string"`
	PoolSize         uint32 `json:"pool_size" yaml:"pool_size"`
	TimeoutSeconds   uint64 `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// Equal reports whether c and o are structurally equal.
// A nil feature map equals an empty one.
func (c *Config) Equal(o *Config) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.AppName != o.AppName || c.Version != o.Version || c.Environment != o.Environment {
		return false
	}
	if (c.Server == nil) != (o.Server == nil) || (c.Server != nil && *c.Server != *o.Server) {
		return false
	}
	if (c.Database == nil) != (o.Database == nil) || (c.Database != nil && *c.Database != *o.Database) {
		return false
	}
	return maps.Equal(c.Features, o.Features)
}

// EnabledFeatures returns the names of features switched on, sorted.
func (c *Config) EnabledFeatures() []string {
	var out []string
	for name, on := range c.Features {
		if on {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Summary is a flat projection of a Config for status output.
type Summary struct {
	AppName         string
	Version         string
	Environment     Environment
	HasServer       bool
	Server          string
	HasDatabase     bool
	Database        string
	FeatureCount    int
	EnabledFeatures int
}

// Summarize projects c into a Summary. Optional sections may be absent.
func (c *Config) Summarize() Summary {
	s := Summary{
		AppName:         c.AppName,
		Version:         c.Version,
		Environment:     c.Environment,
		FeatureCount:    len(c.Features),
		EnabledFeatures: len(c.EnabledFeatures()),
	}
	if c.Server != nil {
		s.HasServer = true
		s.Server = fmt.Sprintf("%s:%d (SSL: %t)", c.Server.Host, c.Server.Port, c.Server.EnableSSL)
	}
	if c.Database != nil {
		s.HasDatabase = true
		s.Database = fmt.Sprintf("pool_size=%d, timeout=%ds", c.Database.PoolSize, c.Database.TimeoutSeconds)
	}
	return s
}

// Lines renders the summary as indented human-readable lines.
func (s Summary) Lines() []string {
	lines := []string{
		fmt.Sprintf("App: %s v%s", s.AppName, s.Version),
		fmt.Sprintf("Environment: %s", s.Environment),
	}
	if s.HasServer {
		lines = append(lines, "Server: "+s.Server)
	}
	if s.HasDatabase {
		lines = append(lines, "Database: "+s.Database)
	}
	if s.FeatureCount > 0 {
		lines = append(lines, fmt.Sprintf("Features: %d enabled", s.EnabledFeatures))
	}
	return lines
}

// Example returns a complete, valid configuration used to seed new files.
func Example(appName string) *Config {
	return &Config{
		AppName:     appName,
		Version:     "0.1.0",
		Environment: DefaultEnvironment,
		Server: &ServerConfig{
			Host:      "localhost",
			Port:      8080,
			EnableSSL: DefaultEnableSSL,
		},
		Database: &DatabaseConfig{
			ConnectionString: "postgres://localhost:5432/" + appName,
			PoolSize:         DefaultPoolSize,
			TimeoutSeconds:   DefaultTimeoutSeconds,
		},
		Features: map[string]bool{
			"dark_mode": true,
			"beta_api":  false,
		},
	}
}
