// Package app wires the engine, catalog, plugin store, lifecycle manager and
// dispatcher into one object owned by the caller.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/polylex/internal/dispatch"
	"github.com/leapstack-labs/polylex/internal/lexer"
	"github.com/leapstack-labs/polylex/internal/plugin"
	"github.com/leapstack-labs/polylex/internal/registry"
	"github.com/leapstack-labs/polylex/internal/state"
	"github.com/leapstack-labs/polylex/pkg/core"
)

// Options configures New.
type Options struct {
	Store         state.Options
	PluginsDir    string
	TemplatesFile string

	// Engine overrides the reference engine. Mostly for tests.
	Engine core.Engine
}

// App holds the wired components. Build it with New and release it with Close.
type App struct {
	Engine     core.Engine
	Catalog    *registry.Catalog
	Store      *state.PluginStore
	Templates  *plugin.TemplateCatalog
	Manager    *plugin.Manager
	Dispatcher *dispatch.Dispatcher
	Plugins    *plugin.DirLoader

	logger *slog.Logger
}

// New builds the application: it opens the plugin store and loads templates
// concurrently, seeds the catalog from the engine, registers persisted
// plugins and imports the plugins directory.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	engine := opts.Engine
	if engine == nil {
		e, err := lexer.New()
		if err != nil {
			return nil, fmt.Errorf("failed to start engine: %w", err)
		}
		engine = e
	}

	var (
		slot      state.Slot
		templates *plugin.TemplateCatalog
		builtins  []core.BuiltinLanguage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := state.Open(gctx, opts.Store, logger)
		if err != nil {
			return fmt.Errorf("failed to open plugin store: %w", err)
		}
		slot = s
		return nil
	})
	g.Go(func() error {
		t, err := plugin.LoadTemplates(opts.TemplatesFile)
		if err != nil {
			return fmt.Errorf("failed to load templates: %w", err)
		}
		templates = t
		return nil
	})
	g.Go(func() error {
		builtins = registry.BuiltinsFromEngine(engine, logger)
		return nil
	})
	if err := g.Wait(); err != nil {
		if slot != nil {
			_ = slot.Close()
		}
		return nil, err
	}

	catalog := registry.NewCatalog(builtins, logger)
	store := state.NewPluginStore(slot, logger)
	manager := plugin.NewManager(store, catalog, engine, templates, logger)

	a := &App{
		Engine:     engine,
		Catalog:    catalog,
		Store:      store,
		Templates:  templates,
		Manager:    manager,
		Dispatcher: dispatch.New(catalog, engine, logger),
		logger:     logger,
	}

	n := manager.RegisterAll(ctx)
	logger.Debug("startup registration done", "registered", n, "languages", catalog.Len())

	if opts.PluginsDir != "" {
		a.Plugins = plugin.NewDirLoader(manager, opts.PluginsDir)
		ids, err := a.Plugins.Scan(ctx)
		if err != nil {
			logger.Warn("plugins directory scan failed", "dir", opts.PluginsDir, "error", err)
		} else if len(ids) > 0 {
			logger.Info("imported plugins from directory", "dir", opts.PluginsDir, "ids", ids)
		}
	}

	return a, nil
}

// Watch follows the plugins directory until ctx is cancelled.
func (a *App) Watch(ctx context.Context) error {
	if a.Plugins == nil {
		return errors.New("no plugins directory configured")
	}
	return a.Plugins.Watch(ctx)
}

// Close releases the plugin store.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
