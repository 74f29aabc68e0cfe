package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/polylex/internal/app"
	"github.com/leapstack-labs/polylex/internal/cli/config"
	"github.com/leapstack-labs/polylex/internal/cli/output"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	App      *app.App
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with the application and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	a, err := app.New(cmd.Context(), appOptions(cfg), logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to close plugin store", "error", err)
		}
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		App:      a,
		Renderer: newRenderer(cmd, cfg),
	}, cleanup, nil
}

// NewCommandContextWithoutApp creates a CommandContext without opening the store.
// Useful for commands that only print static information.
func NewCommandContextWithoutApp(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: newRenderer(cmd, cfg),
	}
}

func newRenderer(cmd *cobra.Command, cfg *config.Config) *output.Renderer {
	return output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
}

// getConfig returns the current configuration, or defaults when the root
// command did not load one.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

func appOptions(cfg *config.Config) app.Options {
	return app.Options{
		Store:         cfg.Store.Options(),
		PluginsDir:    cfg.PluginsDir,
		TemplatesFile: cfg.TemplatesFile,
	}
}
