package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/leapstack-labs/polylex/pkg/core"
)

// fallbackBuiltins is used when the engine cannot tell us what it ships.
var fallbackBuiltins = []core.BuiltinLanguage{
	{ID: "c", Name: "C"},
	{ID: "cpp", Name: "C++"},
	{ID: "java", Name: "Java"},
	{ID: "python", Name: "Python"},
	{ID: "js", Name: "JavaScript"},
}

// FallbackBuiltins returns a copy of the minimal built-in set.
func FallbackBuiltins() []core.BuiltinLanguage {
	out := make([]core.BuiltinLanguage, len(fallbackBuiltins))
	copy(out, fallbackBuiltins)
	return out
}

// ParseBuiltins decodes an engine built-in list of the form [{"id","name"}].
// Elements without a string id are skipped.
func ParseBuiltins(data []byte) ([]core.BuiltinLanguage, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("built-in list is not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, fmt.Errorf("built-in list must be an array, got %s", doc.Type)
	}

	var out []core.BuiltinLanguage
	doc.ForEach(func(_, el gjson.Result) bool {
		id := el.Get("id")
		if id.Type != gjson.String || id.Str == "" {
			return true
		}
		out = append(out, core.BuiltinLanguage{ID: id.Str, Name: el.Get("name").String()})
		return true
	})
	return out, nil
}

// BuiltinsFromEngine asks the engine for its built-in languages, falling back
// to the minimal set when the call fails or yields nothing usable.
func BuiltinsFromEngine(engine core.Engine, logger *slog.Logger) []core.BuiltinLanguage {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if engine == nil {
		logger.Warn("no engine, using fallback built-in languages")
		return FallbackBuiltins()
	}

	data, err := engine.ListBuiltinLanguages()
	if err != nil {
		logger.Warn("listing built-in languages failed, using fallback", "error", err)
		return FallbackBuiltins()
	}
	list, err := ParseBuiltins(data)
	if err != nil {
		logger.Warn("unparsable built-in language list, using fallback", "error", err)
		return FallbackBuiltins()
	}
	if len(list) == 0 {
		logger.Warn("engine reported no built-in languages, using fallback")
		return FallbackBuiltins()
	}
	return list
}

// Catalog is the merged view of built-in and custom language definitions.
// Built-ins come first in engine order, customs follow in registration order.
// A custom whose id matches an existing entry takes its place.
type Catalog struct {
	mu       sync.RWMutex
	entries  []core.LanguageDefinition
	index    map[string]int
	builtins map[string]core.LanguageDefinition
	logger   *slog.Logger
}

// NewCatalog builds a catalog seeded with the given built-ins. Ids are
// normalized and duplicates dropped, first occurrence wins. An empty list
// seeds the fallback set so the catalog is never empty.
func NewCatalog(builtins []core.BuiltinLanguage, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if len(builtins) == 0 {
		logger.Warn("empty built-in language list, using fallback")
		builtins = fallbackBuiltins
	}

	c := &Catalog{
		index:    make(map[string]int),
		builtins: make(map[string]core.LanguageDefinition),
		logger:   logger,
	}
	for _, b := range builtins {
		def := builtinDefinition(b)
		if def.ID == "" {
			continue
		}
		if _, dup := c.index[def.ID]; dup {
			logger.Debug("duplicate built-in language dropped", "id", def.ID)
			continue
		}
		c.index[def.ID] = len(c.entries)
		c.entries = append(c.entries, def)
		c.builtins[def.ID] = def
	}
	if len(c.entries) == 0 {
		// Every entry normalized to nothing; seed the fallback instead.
		return NewCatalog(fallbackBuiltins, logger)
	}
	return c
}

func builtinDefinition(b core.BuiltinLanguage) core.LanguageDefinition {
	canon := Normalize(b.ID)
	name := b.Name
	if IsAlias(b.ID) || name == "" {
		name = canon.DisplayName
	}
	return core.LanguageDefinition{
		ID:          canon.ID,
		DisplayName: name,
		Origin:      core.OriginBuiltin,
	}
}

// List returns a snapshot of every definition in catalog order.
func (c *Catalog) List() []core.LanguageDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]core.LanguageDefinition, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Clone()
	}
	return out
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Resolve normalizes rawID and returns the matching definition.
func (c *Catalog) Resolve(rawID string) (core.LanguageDefinition, error) {
	id := NormalizeID(rawID)

	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[id]
	if !ok {
		return core.LanguageDefinition{}, &core.NotFoundError{ID: id}
	}
	return c.entries[i].Clone(), nil
}

// Contains reports whether rawID resolves to a definition.
func (c *Catalog) Contains(rawID string) bool {
	_, err := c.Resolve(rawID)
	return err == nil
}

// IsBuiltin reports whether rawID names a language shipped with the engine,
// whether or not a custom currently overrides it.
func (c *Catalog) IsBuiltin(rawID string) bool {
	id := NormalizeID(rawID)

	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.builtins[id]
	return ok
}

// Upsert inserts a custom definition or replaces the entry with the same
// normalized id in place. Conflict policy is the caller's business.
func (c *Catalog) Upsert(def core.LanguageDefinition) error {
	def.ID = NormalizeID(def.ID)
	if def.ID == "" {
		return &core.ValidationError{Field: "id", Message: "must not be empty"}
	}
	if def.Config != nil && !json.Valid(def.Config) {
		return &core.ValidationError{Field: "config", Message: "invalid JSON"}
	}
	def = def.Clone()
	def.Origin = core.OriginCustom

	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[def.ID]; ok {
		c.entries[i] = def
		return nil
	}
	c.index[def.ID] = len(c.entries)
	c.entries = append(c.entries, def)
	return nil
}

// Remove deletes a custom definition. When the custom had overridden a
// built-in, the built-in comes back in its original position. Built-ins
// cannot be removed.
func (c *Catalog) Remove(rawID string) error {
	id := NormalizeID(rawID)

	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok {
		return &core.NotFoundError{ID: id}
	}
	if c.entries[i].Origin == core.OriginBuiltin {
		return &core.ValidationError{Field: "id", Message: fmt.Sprintf("%q is a built-in language and cannot be removed", id)}
	}

	if b, ok := c.builtins[id]; ok {
		c.entries[i] = b
		return nil
	}

	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	delete(c.index, id)
	for j := i; j < len(c.entries); j++ {
		c.index[c.entries[j].ID] = j
	}
	return nil
}
