package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/leapstack-labs/polylex/internal/registry"
	"github.com/leapstack-labs/polylex/internal/state"
	"github.com/leapstack-labs/polylex/internal/testutil"
	"github.com/leapstack-labs/polylex/pkg/core"
)

// fakeEngine records registrations. Ids listed in failOn are rejected.
type fakeEngine struct {
	mu           sync.Mutex
	registered   map[string]json.RawMessage
	unregistered []string
	failOn       map[string]bool
}

func newFakeEngine(failOn ...string) *fakeEngine {
	e := &fakeEngine{registered: map[string]json.RawMessage{}, failOn: map[string]bool{}}
	for _, id := range failOn {
		e.failOn[id] = true
	}
	return e
}

func (e *fakeEngine) Tokenize(string, string) ([]byte, error) { return []byte(`{"tokens":[]}`), nil }

func (e *fakeEngine) ListBuiltinLanguages() ([]byte, error) {
	return []byte(`[{"id":"c","name":"C"},{"id":"cpp","name":"C++"},{"id":"java","name":"Java"},{"id":"python","name":"Python"},{"id":"js","name":"JavaScript"}]`), nil
}

func (e *fakeEngine) RegisterLanguage(id string, cfg json.RawMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failOn[id] {
		return errors.New("engine says no")
	}
	e.registered[id] = cfg
	return nil
}

func (e *fakeEngine) Unregister(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.registered, id)
	e.unregistered = append(e.unregistered, id)
}

func (e *fakeEngine) has(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.registered[id]
	return ok
}

type fixture struct {
	manager *Manager
	store   *state.PluginStore
	engine  *fakeEngine
	catalog *registry.Catalog
}

func newFixture(t *testing.T, failOn ...string) *fixture {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	engine := newFakeEngine(failOn...)
	catalog := registry.NewCatalog(registry.BuiltinsFromEngine(engine, logger), logger)
	store := state.NewPluginStore(state.NewMemorySlot(), logger)
	templates, err := LoadTemplates("")
	require.NoError(t, err)
	return &fixture{
		manager: NewManager(store, catalog, engine, templates, logger),
		store:   store,
		engine:  engine,
		catalog: catalog,
	}
}

func listIDs(defs []core.LanguageDefinition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.ID
	}
	return out
}

func TestCreate_RubyFromConfig(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var refreshed []core.LanguageDefinition
	f.manager.Subscribe(func(l []core.LanguageDefinition) { refreshed = l })

	def, err := f.manager.Create(ctx, CreateRequest{
		ID:     "Ruby",
		Name:   "  Ruby ",
		Config: `{"keywords":["def","end"]}`,
	})
	require.NoError(t, err)

	assert.Equal(t, "ruby", def.ID)
	assert.Equal(t, "Ruby", def.DisplayName)
	assert.Equal(t, core.OriginCustom, def.Origin)
	assert.Equal(t, "Ruby", gjson.GetBytes(def.Config, "name").String())

	records := f.store.LoadAll(ctx)
	require.Contains(t, records, "ruby")
	assert.Equal(t, "Ruby", records["ruby"].Name)
	assert.JSONEq(t, `{"keywords":["def","end"],"name":"Ruby"}`, string(records["ruby"].Config))

	got, err := f.catalog.Resolve("ruby")
	require.NoError(t, err)
	assert.Equal(t, "Ruby", got.DisplayName)

	assert.True(t, f.engine.has("ruby"))
	assert.Equal(t, []string{"c", "cpp", "java", "python", "js", "ruby"}, listIDs(refreshed))
}

func TestCreate_FromTemplateIsDeepCopied(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	def, err := f.manager.Create(ctx, CreateRequest{ID: "rb", Name: "Rb", Template: "ruby"})
	require.NoError(t, err)
	assert.Equal(t, "Rb", gjson.GetBytes(def.Config, "name").String())

	fresh, ok := f.manager.Templates().Config("ruby")
	require.True(t, ok)
	assert.False(t, gjson.GetBytes(fresh, "name").Exists(), "template must not see the embedded name")
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   CreateRequest
		field string
	}{
		{name: "blank name", req: CreateRequest{ID: "x", Name: "  ", Config: `{}`}, field: "name"},
		{name: "blank id", req: CreateRequest{ID: "", Name: "X", Config: `{}`}, field: "id"},
		{name: "no config or template", req: CreateRequest{ID: "x", Name: "X"}, field: "config"},
		{name: "malformed config", req: CreateRequest{ID: "x", Name: "X", Config: `{"keywords":`}, field: "config"},
		{name: "config not an object", req: CreateRequest{ID: "x", Name: "X", Config: `["a"]`}, field: "config"},
		{name: "unknown template", req: CreateRequest{ID: "x", Name: "X", Template: "cobol"}, field: "template"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)

			_, err := f.manager.Create(ctx, tt.req)
			require.Error(t, err)

			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)

			assert.Empty(t, f.store.LoadAll(ctx))
			assert.Equal(t, 5, f.catalog.Len())
		})
	}
}

func TestCreate_ConflictPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.manager.Create(ctx, CreateRequest{ID: "ruby", Name: "Ruby", Config: `{"keywords":["def"]}`})
	require.NoError(t, err)

	_, err = f.manager.Create(ctx, CreateRequest{ID: "RUBY", Name: "Ruby 2", Config: `{"keywords":["end"]}`})
	require.ErrorIs(t, err, core.ErrConflict)
	assert.Equal(t, "Ruby", f.store.LoadAll(ctx)["ruby"].Name)

	_, err = f.manager.Create(ctx, CreateRequest{ID: "ruby", Name: "Ruby 2", Config: `{"keywords":["end"]}`, OnConflict: Allow})
	require.NoError(t, err)
	assert.Equal(t, "Ruby 2", f.store.LoadAll(ctx)["ruby"].Name)

	got, err := f.catalog.Resolve("ruby")
	require.NoError(t, err)
	assert.Equal(t, "Ruby 2", got.DisplayName)
	assert.Equal(t, 6, f.catalog.Len())
}

func TestCreate_OverrideBuiltinThroughAlias(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.manager.Create(ctx, CreateRequest{ID: "JavaScript", Name: "MyJS", Config: `{"keywords":["let"]}`, OnConflict: Allow})
	require.NoError(t, err)

	got, err := f.catalog.Resolve("javascript")
	require.NoError(t, err)
	assert.Equal(t, "js", got.ID)
	assert.Equal(t, "MyJS", got.DisplayName)
	assert.Equal(t, core.OriginCustom, got.Origin)
	assert.Equal(t, 5, f.catalog.Len())

	deleted, err := f.manager.Delete(ctx, "js", true)
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err = f.catalog.Resolve("js")
	require.NoError(t, err)
	assert.Equal(t, core.OriginBuiltin, got.Origin)
	assert.Equal(t, "JavaScript", got.DisplayName)
	assert.Contains(t, f.engine.unregistered, "js")
}

func TestCreate_BuiltinCollisionNeedsAllow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.True(t, f.manager.Exists(ctx, "JavaScript"))

	_, err := f.manager.Create(ctx, CreateRequest{ID: "JavaScript", Name: "MyJS", Config: `{"keywords":["let"]}`})
	var cerr *core.ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "js", cerr.ID)
	assert.True(t, cerr.Builtin)

	got, err := f.catalog.Resolve("js")
	require.NoError(t, err)
	assert.Equal(t, core.OriginBuiltin, got.Origin)
	assert.Equal(t, "JavaScript", got.DisplayName)
	assert.Empty(t, f.store.LoadAll(ctx))
	assert.False(t, f.engine.has("js"))

	// Once overridden, the id collides with the plugin like any other.
	_, err = f.manager.Create(ctx, CreateRequest{ID: "js", Name: "MyJS", Config: `{}`, OnConflict: Allow})
	require.NoError(t, err)
	_, err = f.manager.Create(ctx, CreateRequest{ID: "js", Name: "MyJS 2", Config: `{}`})
	require.ErrorAs(t, err, &cerr)
	assert.False(t, cerr.Builtin)
}

func TestImport_BuiltinCollision(t *testing.T) {
	ctx := context.Background()
	payload := []byte(`{"name":"My Python","keywords":["def"]}`)

	t.Run("denied without rename", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.manager.Import(ctx, ImportRequest{FileName: "python.json", Payload: payload})
		require.ErrorIs(t, err, core.ErrConflict)

		got, err := f.catalog.Resolve("py")
		require.NoError(t, err)
		assert.Equal(t, core.OriginBuiltin, got.Origin)
		assert.Empty(t, f.store.LoadAll(ctx))
	})

	t.Run("rename away from the built-in", func(t *testing.T) {
		f := newFixture(t)
		asked := ""
		def, err := f.manager.Import(ctx, ImportRequest{
			FileName: "python.json",
			Payload:  payload,
			Rename: func(existing string) (string, bool) {
				asked = existing
				return "mypy", true
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "python", asked)
		assert.Equal(t, "mypy", def.ID)

		got, err := f.catalog.Resolve("python")
		require.NoError(t, err)
		assert.Equal(t, core.OriginBuiltin, got.Origin)
	})

	t.Run("rename onto another built-in", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.manager.Import(ctx, ImportRequest{
			FileName: "mypy.json",
			Payload:  payload,
			ID:       "python",
			Rename:   func(string) (string, bool) { return "c++", true },
		})
		var cerr *core.ConflictError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "cpp", cerr.ID)
		assert.True(t, cerr.Builtin)
	})

	t.Run("allow overrides", func(t *testing.T) {
		f := newFixture(t)
		def, err := f.manager.Import(ctx, ImportRequest{FileName: "python.json", Payload: payload, OnConflict: Allow})
		require.NoError(t, err)
		assert.Equal(t, core.OriginCustom, def.Origin)
		assert.Equal(t, "My Python", def.DisplayName)
	})
}

func TestCreate_EngineFailureStillPersists(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "ruby")

	logger, logs := testutil.NewCaptureLogger()
	f.manager.logger = logger

	_, err := f.manager.Create(ctx, CreateRequest{ID: "ruby", Name: "Ruby", Config: `{}`})
	require.NoError(t, err)

	assert.Contains(t, f.store.LoadAll(ctx), "ruby")
	assert.True(t, f.catalog.Contains("ruby"))
	assert.False(t, f.engine.has("ruby"))
	assert.True(t, logs.Contains("engine registration failed"))
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	def, err := f.manager.Import(ctx, ImportRequest{
		FileName: "/tmp/plugins/Kotlin.JSON",
		Payload:  []byte(`{"name": "Kotlin", "keywords": ["fun", "val"]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "kotlin", def.ID)
	assert.Equal(t, "Kotlin", def.DisplayName)
	assert.True(t, f.engine.has("kotlin"))

	rec := f.store.LoadAll(ctx)["kotlin"]
	assert.JSONEq(t, `{"name":"Kotlin","keywords":["fun","val"]}`, string(rec.Config))
}

func TestImport_TrimsNameInStoredConfig(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	def, err := f.manager.Import(ctx, ImportRequest{
		FileName: "kotlin.json",
		Payload:  []byte(`{"name": "  Kotlin  ", "keywords": ["fun"]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Kotlin", def.DisplayName)

	rec := f.store.LoadAll(ctx)["kotlin"]
	assert.Equal(t, "Kotlin", rec.Name)
	assert.Equal(t, "Kotlin", gjson.GetBytes(rec.Config, "name").Str)
	assert.Equal(t, "Kotlin", gjson.GetBytes(f.engine.registered["kotlin"], "name").Str)

	exported, err := f.manager.Export(ctx, "kotlin")
	require.NoError(t, err)
	assert.Equal(t, "Kotlin", gjson.GetBytes(exported, "name").Str)
}

func TestImport_Validation(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `name: Kotlin`},
		{name: "array", payload: `[{"name":"Kotlin"}]`},
		{name: "missing name", payload: `{"keywords":[]}`},
		{name: "name not string", payload: `{"name":42}`},
		{name: "blank name", payload: `{"name":"  "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)

			_, err := f.manager.Import(ctx, ImportRequest{FileName: "kotlin.json", Payload: []byte(tt.payload)})
			assert.ErrorIs(t, err, core.ErrValidation)
			assert.Empty(t, f.store.LoadAll(ctx))
		})
	}
}

func TestImport_DeclinedReimportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	payload := []byte(`{"name":"Kotlin","keywords":["fun"]}`)

	_, err := f.manager.Import(ctx, ImportRequest{FileName: "kotlin.json", Payload: payload})
	require.NoError(t, err)

	before := f.store.LoadAll(ctx)
	beforeList := f.catalog.List()

	asked := ""
	_, err = f.manager.Import(ctx, ImportRequest{
		FileName: "kotlin.json",
		Payload:  []byte(`{"name":"Kotlin v2"}`),
		Rename: func(existing string) (string, bool) {
			asked = existing
			return "", false
		},
	})
	require.ErrorIs(t, err, core.ErrConflict)
	assert.Equal(t, "kotlin", asked)

	after := f.store.LoadAll(ctx)
	require.Len(t, after, len(before))
	for id, rec := range before {
		assert.True(t, rec.Equal(after[id]))
	}
	assert.Equal(t, beforeList, f.catalog.List())
}

func TestImport_Rename(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.manager.Import(ctx, ImportRequest{FileName: "kotlin.json", Payload: []byte(`{"name":"Kotlin"}`)})
	require.NoError(t, err)
	_, err = f.manager.Import(ctx, ImportRequest{FileName: "kts.json", Payload: []byte(`{"name":"KTS"}`)})
	require.NoError(t, err)

	t.Run("replacement also collides", func(t *testing.T) {
		_, err := f.manager.Import(ctx, ImportRequest{
			FileName: "kotlin.json",
			Payload:  []byte(`{"name":"K2"}`),
			Rename:   func(string) (string, bool) { return "KTS", true },
		})
		var cerr *core.ConflictError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "kts", cerr.ID)
		assert.Len(t, f.store.LoadAll(ctx), 2)
	})

	t.Run("accepted replacement", func(t *testing.T) {
		def, err := f.manager.Import(ctx, ImportRequest{
			FileName: "kotlin.json",
			Payload:  []byte(`{"name":"K2"}`),
			Rename:   func(string) (string, bool) { return "K2", true },
		})
		require.NoError(t, err)
		assert.Equal(t, "k2", def.ID)
		assert.Len(t, f.store.LoadAll(ctx), 3)
	})

	t.Run("explicit id and overwrite", func(t *testing.T) {
		def, err := f.manager.Import(ctx, ImportRequest{
			FileName:   "whatever.json",
			ID:         "kotlin",
			Payload:    []byte(`{"name":"Kotlin 2"}`),
			OnConflict: Allow,
		})
		require.NoError(t, err)
		assert.Equal(t, "kotlin", def.ID)
		assert.Equal(t, "Kotlin 2", f.store.LoadAll(ctx)["kotlin"].Name)
	})
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.manager.Export(ctx, "ruby")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.manager.Create(ctx, CreateRequest{ID: "ruby", Name: "Ruby", Config: `{"keywords":["def"]}`})
	require.NoError(t, err)

	data, err := f.manager.Export(ctx, "RUBY")
	require.NoError(t, err)
	assert.JSONEq(t, `{"keywords":["def"],"name":"Ruby"}`, string(data))

	// Export output is a valid import payload.
	f2 := newFixture(t)
	def, err := f2.manager.Import(ctx, ImportRequest{FileName: "ruby.json", Payload: data})
	require.NoError(t, err)
	assert.Equal(t, "Ruby", def.DisplayName)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("declined is a no-op", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.manager.Create(ctx, CreateRequest{ID: "ruby", Name: "Ruby", Config: `{}`})
		require.NoError(t, err)

		deleted, err := f.manager.Delete(ctx, "ruby", false)
		require.NoError(t, err)
		assert.False(t, deleted)
		assert.Contains(t, f.store.LoadAll(ctx), "ruby")
		assert.True(t, f.catalog.Contains("ruby"))
		assert.True(t, f.engine.has("ruby"))
	})

	t.Run("confirmed", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.manager.Create(ctx, CreateRequest{ID: "ruby", Name: "Ruby", Config: `{}`})
		require.NoError(t, err)

		deleted, err := f.manager.Delete(ctx, "ruby", true)
		require.NoError(t, err)
		assert.True(t, deleted)
		assert.Empty(t, f.store.LoadAll(ctx))
		assert.False(t, f.catalog.Contains("ruby"))
		assert.False(t, f.engine.has("ruby"))
	})

	t.Run("missing", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.manager.Delete(ctx, "ruby", true)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestRegisterAll_FailuresAreIndependent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "bad")

	require.NoError(t, f.store.SaveAll(ctx, map[string]core.PluginRecord{
		"bad":  {Name: "Bad", Config: json.RawMessage(`{"name":"Bad"}`)},
		"good": {Name: "Good", Config: json.RawMessage(`{"name":"Good"}`)},
		"ruby": {Name: "Ruby", Config: json.RawMessage(`{"name":"Ruby"}`)},
	}))

	n := f.manager.RegisterAll(ctx)
	assert.Equal(t, 2, n)
	assert.True(t, f.engine.has("good"))
	assert.True(t, f.engine.has("ruby"))
	assert.False(t, f.engine.has("bad"))

	// Every persisted plugin is listed, including the one the engine refused.
	assert.Equal(t, []string{"c", "cpp", "java", "python", "js", "bad", "good", "ruby"}, listIDs(f.catalog.List()))
}

func TestCreate_StoreFailureLeavesCatalogUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.manager.store = state.NewPluginStore(failingSlot{}, nil)

	_, err := f.manager.Create(ctx, CreateRequest{ID: "ruby", Name: "Ruby", Config: `{}`})
	require.ErrorIs(t, err, core.ErrStore)
	assert.False(t, f.catalog.Contains("ruby"))
	assert.False(t, f.engine.has("ruby"))
}

type failingSlot struct{}

func (failingSlot) Read(context.Context) ([]byte, error) { return nil, nil }
func (failingSlot) Write(context.Context, []byte) error  { return errors.New("read-only") }
func (failingSlot) Close() error                         { return nil }
