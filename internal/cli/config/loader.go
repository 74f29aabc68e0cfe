package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/polylex/internal/state"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// envPrefix is the prefix of environment variables read into the config.
const envPrefix = "POLYLEX_"

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// flagKeys maps CLI flag names to config keys where they differ.
var flagKeys = map[string]string{
	"store":          "store.driver",
	"dsn":            "store.dsn",
	"slot":           "store.slot",
	"plugins-dir":    "plugins_dir",
	"templates-file": "templates_file",
	"watch":          "watch_plugins",
	"log-level":      "log_level",
}

// pathFlags are flags whose values are paths relative to the working directory.
var pathFlags = []string{"dsn", "plugins-dir", "templates-file"}

// configExistsIn returns the config file in dir, or "".
func configExistsIn(dir string) string {
	for _, name := range ConfigFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a polylex config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if found := configExistsIn(dir); found != "" {
			return found
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// envKey maps POLYLEX_STORE_DRIVER to store.driver and POLYLEX_PLUGINS_DIR
// to plugins_dir.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if rest, ok := strings.CutPrefix(key, "store_"); ok {
		return "store." + rest
	}
	return key
}

// LoadConfig loads configuration from defaults, the config file, environment
// variables and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	// Paths given as flags are relative to the working directory, not to the
	// config file.
	flagPaths := make(map[string]string)
	if flags != nil {
		for _, name := range pathFlags {
			if f := flags.Lookup(name); f != nil && f.Changed && f.Value.String() != "" {
				v := f.Value.String()
				if abs, err := filepath.Abs(v); err == nil && !isDSNURL(v) {
					v = abs
				}
				flagPaths[name] = v
			}
		}
	}

	// 1. Load defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"store.driver":  DefaultDriver,
		"store.slot":    DefaultSlot,
		"plugins_dir":   DefaultPluginsDir,
		"watch_plugins": false,
		"output":        DefaultOutput,
		"verbose":       false,
		"log_level":     DefaultLogLevel,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	baseDir, _ := os.Getwd()
	if baseDir == "" {
		baseDir = "."
	}
	configFileUsed = cfgFile
	if configFileUsed == "" {
		configFileUsed = findConfigUpward(baseDir)
	}
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			baseDir = filepath.Dir(abs)
		}
	}

	// 3. Load environment variables (POLYLEX_ prefix)
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.BaseDir = baseDir
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	// 6. Store DSN: defaults per driver, ${VAR} expansion, path resolution
	cfg.Store.DSN = expandEnvVars(cfg.Store.DSN)
	if cfg.Store.DSN == "" {
		switch cfg.Store.Driver {
		case state.DriverSQLite:
			cfg.Store.DSN = DefaultSQLiteDSN
		case state.DriverFile:
			cfg.Store.DSN = DefaultFileDSN
		}
	}
	if v, ok := flagPaths["dsn"]; ok {
		cfg.Store.DSN = expandEnvVars(v)
	} else if isPathDriver(cfg.Store.Driver) && !isDSNURL(cfg.Store.DSN) {
		cfg.Store.DSN = resolvePathRelativeTo(cfg.Store.DSN, baseDir)
	}

	if v, ok := flagPaths["plugins-dir"]; ok {
		cfg.PluginsDir = v
	} else {
		cfg.PluginsDir = resolvePathRelativeTo(cfg.PluginsDir, baseDir)
	}
	if v, ok := flagPaths["templates-file"]; ok {
		cfg.TemplatesFile = v
	} else {
		cfg.TemplatesFile = resolvePathRelativeTo(cfg.TemplatesFile, baseDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	currentConfig = &cfg
	return &cfg, nil
}

// isPathDriver reports whether the driver's DSN is a filesystem path.
func isPathDriver(driver string) bool {
	return driver == state.DriverSQLite || driver == state.DriverFile
}

// isDSNURL reports whether dsn is a URL or a special SQLite name rather than
// a plain path.
func isDSNURL(dsn string) bool {
	return dsn == ":memory:" || strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, "://")
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// SetCurrentConfig replaces the loaded configuration. Used for testing.
func SetCurrentConfig(cfg *Config) {
	currentConfig = cfg
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.New(slog.DiscardHandler)
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}
