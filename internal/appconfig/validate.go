package appconfig

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError reports the first business rule a Config violates.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "configuration validation failed: " + e.Reason
}

func invalid(field, format string, a ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, a...)}
}

// Validate enforces the rules the decoder cannot express. It returns the
// first violation found as a *ValidationError, or nil.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AppName) == "" {
		return invalid("app_name", "app_name cannot be empty")
	}
	if !strings.Contains(c.Version, ".") {
		return invalid("version", "version '%s' should follow semver format (e.g., 1.0.0)", c.Version)
	}
	if !slices.Contains(Environments, c.Environment) {
		names := make([]string, len(Environments))
		for i, e := range Environments {
			names[i] = string(e)
		}
		return invalid("environment", "environment must be one of: %s", strings.Join(names, ", "))
	}

	if s := c.Server; s != nil {
		if strings.TrimSpace(s.Host) == "" {
			return invalid("server.host", "server.host cannot be empty")
		}
		if s.Port == 0 {
			return invalid("server.port", "server.port must be greater than 0")
		}
	}

	if db := c.Database; db != nil {
		if strings.TrimSpace(db.ConnectionString) == "" {
			return invalid("database.connection_string", "database.connection_string cannot be empty")
		}
		if db.PoolSize == 0 {
			return invalid("database.pool_size", "database.pool_size must be greater than 0")
		}
	}

	return nil
}
