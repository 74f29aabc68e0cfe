// Package state persists custom plugin definitions.
//
// Storage is a single named slot holding one JSON document. A Slot only moves
// bytes; PluginStore owns the document format on top of it.
package state

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Slot is durable storage for one named document.
type Slot interface {
	// Read returns the stored document, or nil when nothing was written yet.
	Read(ctx context.Context) ([]byte, error)

	// Write replaces the stored document atomically.
	Write(ctx context.Context, data []byte) error

	// Close releases resources held by the slot.
	Close() error
}

// Supported slot drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverFile     = "file"
	DriverMemory   = "memory"
)

// DefaultSlotName is the slot custom plugins are stored under.
const DefaultSlotName = "custom_plugins"

// Options selects and configures a slot backend.
type Options struct {
	Driver string
	DSN    string
	Slot   string
}

// Open creates the slot backend described by opts.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Slot, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	name := opts.Slot
	if name == "" {
		name = DefaultSlotName
	}

	switch strings.ToLower(opts.Driver) {
	case DriverSQLite, "":
		return OpenSQL(ctx, DialectSQLite, opts.DSN, name, logger)
	case DriverPostgres:
		return OpenSQL(ctx, DialectPostgres, opts.DSN, name, logger)
	case DriverFile:
		return NewFileSlot(filepath.Join(opts.DSN, name+".json")), nil
	case DriverMemory:
		return NewMemorySlot(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
