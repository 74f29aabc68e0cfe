package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/polylex/internal/plugin"
	"github.com/leapstack-labs/polylex/internal/state"
	"github.com/leapstack-labs/polylex/internal/testutil"
	"github.com/leapstack-labs/polylex/pkg/core"
	"github.com/leapstack-labs/polylex/pkg/token"
)

func TestNew_EndToEnd(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	pluginsDir := filepath.Join(dir, "plugins")
	require.NoError(t, os.MkdirAll(pluginsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pluginsDir, "lua.json"), []byte(`{
		"name": "Lua",
		"keywords": ["local", "function", "end"],
		"commentConfig": {"singleLineCommentStarts": ["--"]}
	}`), 0o600))

	opts := Options{
		Store:      state.Options{Driver: state.DriverSQLite, DSN: filepath.Join(dir, "state.db")},
		PluginsDir: pluginsDir,
	}

	a, err := New(ctx, opts, testutil.NewTestLogger(t))
	require.NoError(t, err)

	// Built-ins plus the directory plugin.
	assert.Equal(t, 6, a.Catalog.Len())

	out := a.Dispatcher.Dispatch(token.Request{Source: "local x -- note", LanguageID: "Lua"})
	require.Empty(t, out.Result.Error)
	require.Len(t, out.Result.Tokens, 3)
	assert.Equal(t, token.Keyword, out.Result.Tokens[0].Type)
	assert.Equal(t, token.Comment, out.Result.Tokens[2].Type)

	_, err = a.Manager.Create(ctx, plugin.CreateRequest{ID: "ruby", Name: "Ruby", Template: "ruby"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	// A second run sees everything that was persisted, in id order.
	b, err := New(ctx, opts, testutil.NewTestLogger(t))
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	list := b.Catalog.List()
	require.Len(t, list, 7)
	assert.Equal(t, "lua", list[5].ID)
	assert.Equal(t, "ruby", list[6].ID)
	assert.Equal(t, core.OriginCustom, list[6].Origin)

	out = b.Dispatcher.Dispatch(token.Request{Source: "def hi end", LanguageID: "ruby"})
	assert.Empty(t, out.Result.Error)
	assert.Equal(t, token.Keyword, out.Result.Tokens[0].Type)
}

func TestNew_BadStoreDriver(t *testing.T) {
	_, err := New(context.Background(), Options{Store: state.Options{Driver: "redis"}}, nil)
	assert.ErrorContains(t, err, "failed to open plugin store")
}

func TestNew_BadTemplatesFile(t *testing.T) {
	_, err := New(context.Background(), Options{
		Store:         state.Options{Driver: state.DriverMemory},
		TemplatesFile: filepath.Join(t.TempDir(), "missing.yaml"),
	}, nil)
	assert.ErrorContains(t, err, "failed to load templates")
}

func TestWatch_WithoutDir(t *testing.T) {
	a, err := New(context.Background(), Options{Store: state.Options{Driver: state.DriverMemory}}, nil)
	require.NoError(t, err)
	assert.Error(t, a.Watch(context.Background()))
}
