package core

import (
	"bytes"
	"encoding/json"
)

// =============================================================================
// Origin
// =============================================================================

// Origin tells where a language definition came from.
type Origin int

// Origins of a language definition.
const (
	// OriginBuiltin marks definitions shipped with the engine. They are immutable.
	OriginBuiltin Origin = iota
	// OriginCustom marks user-owned plugin definitions.
	OriginCustom
)

// String returns the string representation of the origin.
func (o Origin) String() string {
	switch o {
	case OriginBuiltin:
		return "builtin"
	case OriginCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Origin) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// =============================================================================
// Language definitions
// =============================================================================

// LanguageDefinition is one entry of the language catalog.
type LanguageDefinition struct {
	// ID is the lowercase canonical identifier.
	ID string `json:"id"`

	// DisplayName is the human-readable label.
	DisplayName string `json:"name"`

	// Config is the engine-specific payload. The registry only guarantees it
	// is well-formed JSON; it never looks inside. Nil for built-ins whose
	// configuration lives inside the engine.
	Config json.RawMessage `json:"config,omitempty"`

	Origin Origin `json:"origin"`
}

// Clone returns a copy that shares no memory with d.
func (d LanguageDefinition) Clone() LanguageDefinition {
	d.Config = CloneConfig(d.Config)
	return d
}

// PluginRecord is the persisted form of a custom language definition.
// The id is the key of the persisted mapping, not a field.
type PluginRecord struct {
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config"`
}

// Equal reports whether two records hold the same name and the same config
// document, ignoring insignificant whitespace.
func (r PluginRecord) Equal(other PluginRecord) bool {
	if r.Name != other.Name {
		return false
	}
	return jsonEqual(r.Config, other.Config)
}

// Definition converts a stored record into a catalog entry.
func (r PluginRecord) Definition(id string) LanguageDefinition {
	return LanguageDefinition{
		ID:          id,
		DisplayName: r.Name,
		Config:      CloneConfig(r.Config),
		Origin:      OriginCustom,
	}
}

// BuiltinLanguage is one element of an engine's built-in language list.
type BuiltinLanguage struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CloneConfig deep-copies a raw config document.
func CloneConfig(cfg json.RawMessage) json.RawMessage {
	if cfg == nil {
		return nil
	}
	out := make(json.RawMessage, len(cfg))
	copy(out, cfg)
	return out
}

// jsonEqual compares two documents after compaction so formatting
// differences do not count. Invalid documents fall back to byte equality.
func jsonEqual(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}
