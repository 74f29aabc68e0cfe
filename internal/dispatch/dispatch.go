// Package dispatch sends source text to the tokenization engine and turns
// whatever comes back into a token.Result. Dispatch never fails: engine and
// decoding problems end up in Result.Error.
package dispatch

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/polylex/internal/registry"
	"github.com/leapstack-labs/polylex/pkg/core"
	"github.com/leapstack-labs/polylex/pkg/token"
)

// EmptySourceMessage is reported when there is nothing to tokenize.
const EmptySourceMessage = "Please enter some code to analyze"

// Outcome is the result of one dispatch.
type Outcome struct {
	// RequestID identifies the dispatch in logs.
	RequestID string

	Result token.Result

	// Language is the resolved definition. When the id did not resolve it
	// only carries the raw id.
	Language core.LanguageDefinition
	Resolved bool

	// Elapsed is the wall-clock time of the engine call. Measured is false
	// when the engine was not called.
	Elapsed  time.Duration
	Measured bool
}

// Dispatcher resolves languages through a catalog and calls the engine.
type Dispatcher struct {
	catalog *registry.Catalog
	engine  core.Engine
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a dispatcher.
func New(catalog *registry.Catalog, engine core.Engine, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{catalog: catalog, engine: engine, logger: logger, now: time.Now}
}

// Dispatch tokenizes req.Source with the language req.LanguageID.
func (d *Dispatcher) Dispatch(req token.Request) (out Outcome) {
	out.RequestID = uuid.NewString()
	logger := d.logger.With("request_id", out.RequestID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("engine panicked", "panic", r)
			out.Result = token.Failure(fmt.Sprintf("tokenization engine failed: %v", r))
		}
	}()

	if strings.TrimSpace(req.Source) == "" {
		out.Result = token.Failure(EmptySourceMessage)
		return out
	}

	engineID := req.LanguageID
	if def, err := d.catalog.Resolve(req.LanguageID); err == nil {
		out.Language = def
		out.Resolved = true
		engineID = def.ID
	} else {
		out.Language = core.LanguageDefinition{ID: req.LanguageID, DisplayName: req.LanguageID}
		logger.Debug("language not in catalog, forwarding raw id", "language", req.LanguageID)
	}

	if d.engine == nil {
		out.Result = token.Failure((&core.EngineError{Op: "tokenize", ID: engineID, Cause: fmt.Errorf("no engine configured")}).Error())
		return out
	}

	start := d.now()
	data, err := d.engine.Tokenize(req.Source, engineID)
	out.Elapsed = d.now().Sub(start)
	out.Measured = true

	if err != nil {
		eerr := &core.EngineError{Op: "tokenize", ID: engineID, Cause: err}
		logger.Warn("engine call failed", "error", eerr)
		out.Result = token.Failure(eerr.Error())
		return out
	}

	res, err := token.Decode(data)
	if err != nil {
		logger.Warn("malformed engine response", "error", err)
		out.Result = token.Failure(fmt.Sprintf("failed to parse engine response: %v", err))
		return out
	}
	out.Result = res

	logger.Debug("tokenized",
		"language", engineID,
		"tokens", len(res.Tokens),
		"has_error", res.HasError(),
		"elapsed", out.Elapsed,
	)
	return out
}
