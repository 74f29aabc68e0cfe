package lexer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Default character sets used when a config leaves one out.
const (
	defaultIdentStart    = "_abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	defaultIdentContinue = defaultIdentStart + "0123456789"
	defaultOperators     = "+-*/%=<>!&|^~?:"
	defaultDelimiters    = "()[]{},;."
	defaultWhitespace    = " \t\n\r\f\v"
)

// Config is the JSON language description understood by the engine.
// Every field is optional.
type Config struct {
	Name          string        `json:"name"`
	Version       string        `json:"version,omitempty"`
	Keywords      []string      `json:"keywords,omitempty"`
	Types         []string      `json:"types,omitempty"`
	CharacterSets CharacterSets `json:"characterSets"`
	Operators     []string      `json:"operators,omitempty"`
	CommentConfig CommentConfig `json:"commentConfig"`
	StringConfig  StringConfig  `json:"stringConfig"`
}

// CharacterSets lists the characters of each class as plain strings.
type CharacterSets struct {
	IdentifierStart    string `json:"identifierStart,omitempty"`
	IdentifierContinue string `json:"identifierContinue,omitempty"`
	Operators          string `json:"operators,omitempty"`
	Delimiters         string `json:"delimiters,omitempty"`
	Whitespace         string `json:"whitespace,omitempty"`
}

// CommentConfig describes line and block comments.
type CommentConfig struct {
	SingleLineCommentStarts    []string `json:"singleLineCommentStarts,omitempty"`
	MultiLineCommentDelimiters []Pair   `json:"multiLineCommentDelimiters,omitempty"`
	DocCommentStarts           []string `json:"docCommentStarts,omitempty"`
	DocCommentDelimiters       []Pair   `json:"docCommentDelimiters,omitempty"`
}

// StringConfig describes string and character literals.
type StringConfig struct {
	StringDelimiters []Pair `json:"stringDelimiters,omitempty"`
	CharDelimiters   []Pair `json:"charDelimiters,omitempty"`
	EscapeChar       string `json:"escapeChar,omitempty"`
}

// Pair is an opening and closing delimiter.
// In JSON it is either {"start": "...", "end": "..."} or a single string
// used for both ends.
type Pair struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// UnmarshalJSON accepts the object and the shorthand string form.
func (p *Pair) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.Start, p.End = s, s
		return nil
	}
	type plain Pair
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Start == "" {
		return fmt.Errorf("delimiter pair needs a non-empty start")
	}
	if v.End == "" {
		v.End = v.Start
	}
	*p = Pair(v)
	return nil
}

// ParseConfig decodes a language description.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid language config: %w", err)
	}
	return &cfg, nil
}

// commentRule is one comment form, line comments have an empty end.
type commentRule struct {
	start string
	end   string
}

// language is a Config compiled for scanning.
type language struct {
	name          string
	keywords      map[string]struct{}
	types         map[string]struct{}
	identStart    string
	identContinue string
	opChars       string
	delimChars    string
	whitespace    string
	operators     []string // longest first
	comments      []commentRule
	strings       []Pair
	chars         []Pair
	escape        rune
}

func compile(cfg *Config) *language {
	l := &language{
		name:          cfg.Name,
		keywords:      toSet(cfg.Keywords),
		types:         toSet(cfg.Types),
		identStart:    orDefault(cfg.CharacterSets.IdentifierStart, defaultIdentStart),
		identContinue: orDefault(cfg.CharacterSets.IdentifierContinue, defaultIdentContinue),
		opChars:       orDefault(cfg.CharacterSets.Operators, defaultOperators),
		delimChars:    orDefault(cfg.CharacterSets.Delimiters, defaultDelimiters),
		whitespace:    orDefault(cfg.CharacterSets.Whitespace, defaultWhitespace),
		escape:        '\\',
	}
	if cfg.StringConfig.EscapeChar != "" {
		l.escape = []rune(cfg.StringConfig.EscapeChar)[0]
	}

	for _, op := range cfg.Operators {
		if op != "" {
			l.operators = append(l.operators, op)
		}
	}
	sort.SliceStable(l.operators, func(i, j int) bool { return len(l.operators[i]) > len(l.operators[j]) })

	cc := cfg.CommentConfig
	for _, p := range cc.DocCommentDelimiters {
		l.comments = append(l.comments, commentRule{start: p.Start, end: p.End})
	}
	for _, p := range cc.MultiLineCommentDelimiters {
		l.comments = append(l.comments, commentRule{start: p.Start, end: p.End})
	}
	for _, s := range cc.DocCommentStarts {
		if s != "" {
			l.comments = append(l.comments, commentRule{start: s})
		}
	}
	for _, s := range cc.SingleLineCommentStarts {
		if s != "" {
			l.comments = append(l.comments, commentRule{start: s})
		}
	}
	sort.SliceStable(l.comments, func(i, j int) bool { return len(l.comments[i].start) > len(l.comments[j].start) })

	l.strings = longestFirst(cfg.StringConfig.StringDelimiters)
	l.chars = longestFirst(cfg.StringConfig.CharDelimiters)
	return l
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func longestFirst(pairs []Pair) []Pair {
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if p.Start != "" {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].Start) > len(out[j].Start) })
	return out
}

func (l *language) isIdentStart(r rune) bool    { return strings.ContainsRune(l.identStart, r) }
func (l *language) isIdentContinue(r rune) bool { return strings.ContainsRune(l.identContinue, r) }
func (l *language) isOperator(r rune) bool      { return strings.ContainsRune(l.opChars, r) }
func (l *language) isDelimiter(r rune) bool     { return strings.ContainsRune(l.delimChars, r) }
func (l *language) isWhitespace(r rune) bool    { return strings.ContainsRune(l.whitespace, r) }
