// Package token defines the values exchanged with a tokenization engine.
//
// An engine answers a tokenize call with a JSON document shaped as Result.
// Decode is the single entry point for turning such a document back into Go
// values; it is strict about shape so malformed engine output can be reported
// instead of silently producing half-filled tokens.
package token

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Well-known token type names produced by the reference engine.
// Engines are free to report other names; consumers treat Type as opaque.
const (
	Keyword       = "KEYWORD"
	Type          = "TYPE"
	Identifier    = "IDENTIFIER"
	Integer       = "INTEGER"
	Float         = "FLOAT"
	Hex           = "HEX"
	StringLiteral = "STRING_LITERAL"
	CharLiteral   = "CHAR_LITERAL"
	Comment       = "COMMENT"
	Operator      = "OPERATOR"
	Delimiter     = "DELIMITER"
	Unknown       = "UNKNOWN"
)

// Token is a single lexical token.
// Line and Column are zero when the engine did not report a position.
type Token struct {
	Type   string `json:"type"`
	Lexeme string `json:"lexeme"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// Pos returns the token's source position.
func (t Token) Pos() Position {
	return Position{Line: t.Line, Column: t.Column}
}

// HasPosition reports whether the engine supplied a source position.
func (t Token) HasPosition() bool {
	return t.Pos().IsValid()
}

// Request is a tokenize request.
type Request struct {
	Source     string `json:"sourceText"`
	LanguageID string `json:"languageId"`
}

// Result is the outcome of a tokenize call.
//
// Tokens and Error are not mutually exclusive: an engine may return the
// tokens it managed to produce together with a diagnostic.
type Result struct {
	Tokens []Token `json:"tokens"`
	Error  string  `json:"error,omitempty"`
}

// HasError reports whether the result carries a diagnostic.
func (r Result) HasError() bool {
	return r.Error != ""
}

// Partial reports whether the result has both tokens and a diagnostic.
func (r Result) Partial() bool {
	return len(r.Tokens) > 0 && r.Error != ""
}

// Failure builds a result with no tokens and the given diagnostic.
func Failure(msg string) Result {
	return Result{Tokens: []Token{}, Error: msg}
}

// wireToken mirrors Token with pointer fields so absent keys can be told
// apart from zero values.
type wireToken struct {
	Type   *string `json:"type"`
	Lexeme *string `json:"lexeme"`
	Line   *int    `json:"line"`
	Column *int    `json:"column"`
}

type wireResult struct {
	Tokens *[]wireToken `json:"tokens"`
	Error  *string      `json:"error"`
}

// ErrMalformed is wrapped by every error returned from Decode.
var ErrMalformed = errors.New("malformed tokenize result")

// Decode parses an engine response.
//
// The document must be a JSON object. "tokens" may only be omitted when
// "error" is present. Every token needs string "type" and "lexeme" fields;
// "line" and "column" are optional but must be positive integers when given.
// A null "error" is the same as no error.
func Decode(data []byte) (Result, error) {
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	res := Result{Tokens: []Token{}}
	if w.Error != nil {
		res.Error = *w.Error
	}

	if w.Tokens == nil {
		if w.Error == nil {
			return Result{}, fmt.Errorf("%w: missing \"tokens\"", ErrMalformed)
		}
		return res, nil
	}

	res.Tokens = make([]Token, 0, len(*w.Tokens))
	for i, wt := range *w.Tokens {
		if wt.Type == nil || wt.Lexeme == nil {
			return Result{}, fmt.Errorf("%w: token %d is missing type or lexeme", ErrMalformed, i)
		}
		tok := Token{Type: *wt.Type, Lexeme: *wt.Lexeme}
		if wt.Line != nil {
			if *wt.Line < 1 {
				return Result{}, fmt.Errorf("%w: token %d has non-positive line %d", ErrMalformed, i, *wt.Line)
			}
			tok.Line = *wt.Line
		}
		if wt.Column != nil {
			if *wt.Column < 1 {
				return Result{}, fmt.Errorf("%w: token %d has non-positive column %d", ErrMalformed, i, *wt.Column)
			}
			tok.Column = *wt.Column
		}
		res.Tokens = append(res.Tokens, tok)
	}

	return res, nil
}

// Encode renders a result in the engine wire format.
func Encode(r Result) ([]byte, error) {
	if r.Tokens == nil {
		r.Tokens = []Token{}
	}
	return json.Marshal(r)
}
