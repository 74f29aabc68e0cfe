package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/leapstack-labs/polylex/internal/state"
)

var (
	validDrivers   = []string{state.DriverSQLite, state.DriverPostgres, state.DriverFile, state.DriverMemory}
	validOutputs   = []string{"auto", "text", "markdown", "json"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !slices.Contains(validDrivers, c.Store.Driver) {
		return fmt.Errorf("unknown store driver %q (available: %s)", c.Store.Driver, strings.Join(validDrivers, ", "))
	}
	if c.Store.Driver != state.DriverMemory && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver)
	}
	if c.OutputFormat != "" && !slices.Contains(validOutputs, c.OutputFormat) {
		return fmt.Errorf("unknown output format %q (available: %s)", c.OutputFormat, strings.Join(validOutputs, ", "))
	}
	if c.LogLevel != "" && !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("unknown log level %q (available: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if c.WatchPlugins && c.PluginsDir == "" {
		return fmt.Errorf("watch_plugins requires plugins_dir")
	}
	return nil
}

// Level returns the slog level for the configuration. Verbose forces debug.
func (c *Config) Level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
