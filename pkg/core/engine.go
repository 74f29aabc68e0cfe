package core

import "encoding/json"

// Engine is the tokenization engine the registry dispatches to.
//
// Responses are raw JSON documents: the caller owns decoding and must cope
// with malformed output.
type Engine interface {
	// Tokenize lexes source with the named language and returns a JSON
	// document shaped as token.Result.
	Tokenize(source, languageID string) ([]byte, error)

	// ListBuiltinLanguages returns a JSON array of {"id", "name"} objects
	// in the engine's preferred order.
	ListBuiltinLanguages() ([]byte, error)

	// RegisterLanguage makes a custom configuration available under id.
	RegisterLanguage(id string, config json.RawMessage) error
}
