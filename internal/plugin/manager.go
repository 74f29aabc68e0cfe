// Package plugin manages the lifecycle of user-defined language plugins:
// create, import, export and delete, plus bulk registration at startup.
//
// Every mutation follows the same sequence under one lock: validate, update
// the persisted mapping, upsert the catalog, register with the engine and
// notify listeners. Engine registration is best effort and never blocks the
// persistence step.
package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/leapstack-labs/polylex/internal/registry"
	"github.com/leapstack-labs/polylex/internal/state"
	"github.com/leapstack-labs/polylex/pkg/core"
)

// OnConflict decides what happens when an id is already persisted or names
// a built-in language.
type OnConflict int

const (
	// Deny aborts with a ConflictError and changes nothing.
	Deny OnConflict = iota
	// Allow overwrites the existing plugin or overrides the built-in.
	Allow
)

// RenameFunc is asked for a replacement id when an import collides.
// Returning ok=false declines the import.
type RenameFunc func(existingID string) (newID string, ok bool)

// Listener is called with the fresh language listing after each change.
type Listener func(languages []core.LanguageDefinition)

// unregisterer is implemented by engines that can drop a registration.
type unregisterer interface {
	Unregister(id string)
}

// Manager owns plugin mutations.
type Manager struct {
	mu        sync.Mutex
	store     *state.PluginStore
	catalog   *registry.Catalog
	engine    core.Engine
	templates *TemplateCatalog
	logger    *slog.Logger

	listenersMu sync.Mutex
	listeners   []Listener
}

// NewManager wires a manager. templates may be nil.
func NewManager(store *state.PluginStore, catalog *registry.Catalog, engine core.Engine, templates *TemplateCatalog, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		store:     store,
		catalog:   catalog,
		engine:    engine,
		templates: templates,
		logger:    logger,
	}
}

// Catalog returns the catalog the manager keeps up to date.
func (m *Manager) Catalog() *registry.Catalog { return m.catalog }

// Templates returns the template catalog, possibly nil.
func (m *Manager) Templates() *TemplateCatalog { return m.templates }

// Subscribe registers a listener for listing refreshes.
func (m *Manager) Subscribe(l Listener) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, l)
}

func (m *Manager) refresh() {
	m.listenersMu.Lock()
	listeners := append([]Listener(nil), m.listeners...)
	m.listenersMu.Unlock()

	if len(listeners) == 0 {
		return
	}
	list := m.catalog.List()
	for _, l := range listeners {
		l(list)
	}
}

// =============================================================================
// Create
// =============================================================================

// CreateRequest describes a plugin to create or overwrite.
// Exactly one of Config and Template is expected; Config wins when both are set.
type CreateRequest struct {
	ID         string
	Name       string
	Config     string
	Template   string
	OnConflict OnConflict
}

// Create validates req, persists the plugin and registers it.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (core.LanguageDefinition, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return core.LanguageDefinition{}, &core.ValidationError{Field: "name", Message: "must not be empty"}
	}
	id := registry.NormalizeID(strings.ToLower(strings.TrimSpace(req.ID)))
	if id == "" {
		return core.LanguageDefinition{}, &core.ValidationError{Field: "id", Message: "must not be empty"}
	}

	cfg, err := m.configFor(req)
	if err != nil {
		return core.LanguageDefinition{}, err
	}
	cfg, err = embedName(cfg, name)
	if err != nil {
		return core.LanguageDefinition{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := core.PluginRecord{Name: name, Config: cfg}
	err = m.store.Update(ctx, func(records map[string]core.PluginRecord) error {
		if cerr := m.conflict(records, id); cerr != nil && req.OnConflict != Allow {
			return cerr
		}
		records[id] = rec
		return nil
	})
	if err != nil {
		return core.LanguageDefinition{}, err
	}

	def := m.activate(id, rec)
	m.logger.Info("plugin saved", "id", id, "name", name)
	return def, nil
}

func (m *Manager) configFor(req CreateRequest) (json.RawMessage, error) {
	if text := strings.TrimSpace(req.Config); text != "" {
		return parseObject([]byte(text))
	}
	if tmpl := strings.TrimSpace(req.Template); tmpl != "" {
		cfg, ok := m.templates.Config(tmpl)
		if !ok {
			msg := fmt.Sprintf("unknown template %q", tmpl)
			if m.templates.Len() > 0 {
				msg += fmt.Sprintf(" (available: %s)", strings.Join(m.templates.sortedNames(), ", "))
			}
			return nil, &core.ValidationError{Field: "template", Message: msg}
		}
		return cfg, nil
	}
	return nil, &core.ValidationError{Field: "config", Message: "either a config or a template is required"}
}

// =============================================================================
// Import
// =============================================================================

// ImportRequest describes a plugin file to import.
type ImportRequest struct {
	// FileName supplies the candidate id when ID is empty.
	FileName string
	// ID overrides the id derived from FileName.
	ID      string
	Payload []byte
	// OnConflict=Allow overwrites without asking Rename.
	OnConflict OnConflict
	Rename     RenameFunc
}

// IDFromFileName derives a plugin id from a file path: base name, lowercased,
// extension stripped.
func IDFromFileName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ToLower(strings.TrimSpace(base))
}

// Import validates a plugin document and persists it under an id derived
// from the file name. Collisions are resolved through req.Rename.
func (m *Manager) Import(ctx context.Context, req ImportRequest) (core.LanguageDefinition, error) {
	cfg, err := parseObject(req.Payload)
	if err != nil {
		return core.LanguageDefinition{}, err
	}
	name := gjson.GetBytes(cfg, "name")
	if name.Type != gjson.String || strings.TrimSpace(name.Str) == "" {
		return core.LanguageDefinition{}, &core.ValidationError{Field: "name", Message: "plugin file needs a non-empty \"name\" string"}
	}

	raw := req.ID
	if strings.TrimSpace(raw) == "" {
		raw = IDFromFileName(req.FileName)
	}
	id := registry.NormalizeID(strings.ToLower(strings.TrimSpace(raw)))
	if id == "" {
		return core.LanguageDefinition{}, &core.ValidationError{Field: "id", Message: "cannot derive an id from the file name"}
	}

	trimmed := strings.TrimSpace(name.Str)
	if trimmed != name.Str {
		if cfg, err = embedName(cfg, trimmed); err != nil {
			return core.LanguageDefinition{}, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec := core.PluginRecord{Name: trimmed, Config: cfg}
	err = m.store.Update(ctx, func(records map[string]core.PluginRecord) error {
		if cerr := m.conflict(records, id); cerr != nil && req.OnConflict != Allow {
			if req.Rename == nil {
				return cerr
			}
			newID, ok := req.Rename(id)
			if !ok {
				return cerr
			}
			newID = registry.NormalizeID(strings.ToLower(strings.TrimSpace(newID)))
			if newID == "" {
				return &core.ValidationError{Field: "id", Message: "replacement id must not be empty"}
			}
			if cerr := m.conflict(records, newID); cerr != nil {
				return cerr
			}
			id = newID
		}
		records[id] = rec
		return nil
	})
	if err != nil {
		return core.LanguageDefinition{}, err
	}

	def := m.activate(id, rec)
	m.logger.Info("plugin imported", "id", id, "name", rec.Name, "file", req.FileName)
	return def, nil
}

// =============================================================================
// Export / Delete / List
// =============================================================================

// Export returns the stored config of a plugin, indented for writing to a file.
func (m *Manager) Export(ctx context.Context, id string) ([]byte, error) {
	id = registry.NormalizeID(strings.ToLower(strings.TrimSpace(id)))

	rec, ok := m.store.LoadAll(ctx)[id]
	if !ok {
		return nil, &core.NotFoundError{ID: id}
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, rec.Config, "", "  "); err != nil {
		return nil, &core.StoreError{Op: "read", Cause: err}
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Delete removes a plugin. Without confirmation it does nothing and reports
// false. A custom that had overridden a built-in gives way to the built-in.
func (m *Manager) Delete(ctx context.Context, id string, confirmed bool) (bool, error) {
	if !confirmed {
		return false, nil
	}
	id = registry.NormalizeID(strings.ToLower(strings.TrimSpace(id)))

	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.store.Update(ctx, func(records map[string]core.PluginRecord) error {
		if _, ok := records[id]; !ok {
			return &core.NotFoundError{ID: id}
		}
		delete(records, id)
		return nil
	})
	if err != nil {
		return false, err
	}

	if err := m.catalog.Remove(id); err != nil {
		m.logger.Warn("catalog out of sync on delete", "id", id, "error", err)
	}
	if u, ok := m.engine.(unregisterer); ok {
		u.Unregister(id)
	}
	m.refresh()
	m.logger.Info("plugin deleted", "id", id)
	return true, nil
}

// Exists reports whether id is taken, either by a persisted plugin or by a
// built-in language. Creating or importing under a taken id needs Allow.
func (m *Manager) Exists(ctx context.Context, id string) bool {
	id = registry.NormalizeID(strings.ToLower(strings.TrimSpace(id)))
	return m.conflict(m.store.LoadAll(ctx), id) != nil
}

// conflict returns the error for writing id over records, or nil when id is
// free. A persisted plugin that already overrides a built-in is reported as
// an ordinary plugin conflict.
func (m *Manager) conflict(records map[string]core.PluginRecord, id string) *core.ConflictError {
	if _, ok := records[id]; ok {
		return &core.ConflictError{ID: id}
	}
	if m.catalog != nil && m.catalog.IsBuiltin(id) {
		return &core.ConflictError{ID: id, Builtin: true}
	}
	return nil
}

// Plugins returns the persisted plugins.
func (m *Manager) Plugins(ctx context.Context) map[string]core.PluginRecord {
	return m.store.LoadAll(ctx)
}

// RegisterAll loads every persisted plugin into the catalog and the engine,
// in id order. Failures are logged per plugin. It returns how many plugins
// the engine accepted.
func (m *Manager) RegisterAll(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := m.store.LoadAll(ctx)
	registered := 0
	for _, id := range state.IDs(records) {
		rec := records[id]
		if err := m.catalog.Upsert(rec.Definition(id)); err != nil {
			m.logger.Warn("skipping persisted plugin", "id", id, "error", err)
			continue
		}
		if m.register(id, rec.Config) {
			registered++
		}
	}
	m.refresh()
	m.logger.Debug("persisted plugins registered", "total", len(records), "registered", registered)
	return registered
}

// activate upserts the catalog, registers with the engine and notifies
// listeners. Called with m.mu held after the record was persisted.
func (m *Manager) activate(id string, rec core.PluginRecord) core.LanguageDefinition {
	def := rec.Definition(id)
	if err := m.catalog.Upsert(def); err != nil {
		m.logger.Warn("catalog rejected plugin", "id", id, "error", err)
	}
	m.register(id, rec.Config)
	m.refresh()
	return def
}

func (m *Manager) register(id string, cfg json.RawMessage) bool {
	if m.engine == nil {
		return false
	}
	if err := m.engine.RegisterLanguage(id, cfg); err != nil {
		m.logger.Warn("engine registration failed", "id", id,
			"error", &core.EngineError{Op: "register", ID: id, Cause: err})
		return false
	}
	return true
}

// =============================================================================
// Helpers
// =============================================================================

// parseObject checks that data is a JSON object and returns it compacted.
func parseObject(data []byte) (json.RawMessage, error) {
	if !gjson.ValidBytes(data) {
		return nil, &core.ValidationError{Field: "config", Message: "invalid JSON"}
	}
	if !gjson.ParseBytes(data).IsObject() {
		return nil, &core.ValidationError{Field: "config", Message: "must be a JSON object"}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, &core.ValidationError{Field: "config", Message: "invalid JSON", Cause: err}
	}
	return buf.Bytes(), nil
}

// embedName sets the "name" member of cfg.
func embedName(cfg json.RawMessage, name string) (json.RawMessage, error) {
	out, err := sjson.SetBytes(cfg, "name", name)
	if err != nil {
		return nil, &core.ValidationError{Field: "config", Message: "cannot set name", Cause: err}
	}
	return out, nil
}
