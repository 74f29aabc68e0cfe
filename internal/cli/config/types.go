// Package config provides configuration management for the polylex CLI.
package config

import (
	"github.com/leapstack-labs/polylex/internal/state"
)

// StoreConfig selects the persistent store for custom plugins.
type StoreConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
	Slot   string `koanf:"slot"`
}

// Options converts the store section into state.Options.
func (s StoreConfig) Options() state.Options {
	return state.Options{Driver: s.Driver, DSN: s.DSN, Slot: s.Slot}
}

// Config holds all CLI configuration options.
type Config struct {
	Store         StoreConfig `koanf:"store"`
	PluginsDir    string      `koanf:"plugins_dir"`
	TemplatesFile string      `koanf:"templates_file"`
	WatchPlugins  bool        `koanf:"watch_plugins"`
	OutputFormat  string      `koanf:"output"`
	Verbose       bool        `koanf:"verbose"`
	LogLevel      string      `koanf:"log_level"`

	// BaseDir is the directory relative paths were resolved against.
	BaseDir string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultDriver     = state.DriverSQLite
	DefaultSQLiteDSN  = ".polylex/state.db"
	DefaultFileDSN    = ".polylex"
	DefaultSlot       = state.DefaultSlotName
	DefaultPluginsDir = "plugins"
	DefaultOutput     = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel   = "info"
)

// ConfigFileNames are searched, in order, when no --config is given.
var ConfigFileNames = []string{"polylex.yaml", "polylex.yml"}

// Default returns the configuration used when nothing was loaded.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: DefaultDriver,
			DSN:    DefaultSQLiteDSN,
			Slot:   DefaultSlot,
		},
		PluginsDir:   DefaultPluginsDir,
		OutputFormat: DefaultOutput,
		LogLevel:     DefaultLogLevel,
	}
}
