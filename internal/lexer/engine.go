// Package lexer is the reference tokenization engine.
//
// It is driven entirely by JSON language descriptions: five are embedded as
// built-ins and more can be registered at runtime. Results are returned in
// the engine wire format understood by token.Decode.
package lexer

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/leapstack-labs/polylex/pkg/core"
	"github.com/leapstack-labs/polylex/pkg/token"
)

//go:embed builtin/*.json
var builtinFS embed.FS

// builtinOrder is the order built-ins are reported in.
var builtinOrder = []string{"c", "cpp", "java", "python", "js"}

// Engine implements core.Engine.
type Engine struct {
	builtins map[string]*language

	mu      sync.RWMutex
	customs map[string]*language
}

var _ core.Engine = (*Engine)(nil)

// New loads the embedded built-in languages.
func New() (*Engine, error) {
	e := &Engine{
		builtins: make(map[string]*language, len(builtinOrder)),
		customs:  make(map[string]*language),
	}
	for _, id := range builtinOrder {
		data, err := builtinFS.ReadFile(path.Join("builtin", id+".json"))
		if err != nil {
			return nil, fmt.Errorf("failed to read built-in %s: %w", id, err)
		}
		cfg, err := ParseConfig(data)
		if err != nil {
			return nil, fmt.Errorf("built-in %s: %w", id, err)
		}
		e.builtins[id] = compile(cfg)
	}
	return e, nil
}

// MustNew is New that panics on error. The embedded configs are fixed at
// build time, so a failure here is a programming error.
func MustNew() *Engine {
	e, err := New()
	if err != nil {
		panic(err)
	}
	return e
}

// BuiltinConfig returns the embedded config document of a built-in.
func BuiltinConfig(id string) (json.RawMessage, bool) {
	data, err := builtinFS.ReadFile(path.Join("builtin", strings.ToLower(id)+".json"))
	if err != nil {
		return nil, false
	}
	return data, true
}

// ListBuiltinLanguages implements core.Engine.
func (e *Engine) ListBuiltinLanguages() ([]byte, error) {
	list := make([]core.BuiltinLanguage, 0, len(builtinOrder))
	for _, id := range builtinOrder {
		list = append(list, core.BuiltinLanguage{ID: id, Name: e.builtins[id].name})
	}
	return json.Marshal(list)
}

// RegisterLanguage implements core.Engine. A registered id shadows a
// built-in with the same id.
func (e *Engine) RegisterLanguage(id string, config json.RawMessage) error {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return fmt.Errorf("language id must not be empty")
	}
	cfg, err := ParseConfig(config)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.customs[id] = compile(cfg)
	return nil
}

// Unregister drops a runtime registration, uncovering any built-in again.
func (e *Engine) Unregister(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.customs, strings.ToLower(id))
}

// Tokenize implements core.Engine. The returned error is reserved for
// encoding failures; language and lexical problems are reported inside the
// result document.
func (e *Engine) Tokenize(source, languageID string) ([]byte, error) {
	return token.Encode(e.TokenizeResult(source, languageID))
}

// TokenizeResult is Tokenize without the JSON encoding.
func (e *Engine) TokenizeResult(source, languageID string) token.Result {
	lang, ok := e.lookup(languageID)
	if !ok {
		return token.Failure(fmt.Sprintf("unknown language %q", languageID))
	}

	toks, errs := newScanner(lang, source).scan()
	res := token.Result{Tokens: toks, Error: strings.Join(errs, "\n")}
	if res.Tokens == nil {
		res.Tokens = []token.Token{}
	}
	return res
}

func (e *Engine) lookup(id string) (*language, bool) {
	id = strings.ToLower(id)

	e.mu.RLock()
	lang, ok := e.customs[id]
	e.mu.RUnlock()
	if ok {
		return lang, true
	}
	lang, ok = e.builtins[id]
	return lang, ok
}
