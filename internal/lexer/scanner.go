package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/leapstack-labs/polylex/pkg/token"
)

// scanner turns source text into tokens for one compiled language.
// Problems are collected as messages; scanning always runs to the end.
type scanner struct {
	lang   *language
	input  string
	pos    int // current byte offset
	line   int // current line (1-based)
	col    int // current column (1-based)
	tokens []token.Token
	errors []string

	startPos  int
	startLine int
	startCol  int
}

func newScanner(lang *language, input string) *scanner {
	return &scanner{lang: lang, input: input, line: 1, col: 1}
}

// scan tokenizes the whole input. No EOF token is emitted.
func (s *scanner) scan() ([]token.Token, []string) {
	for s.pos < len(s.input) {
		r := s.peek()
		if s.lang.isWhitespace(r) || unicode.IsSpace(r) {
			s.advance()
			continue
		}

		s.markStart()
		switch {
		case s.scanComment():
		case s.scanQuoted(s.lang.strings, token.StringLiteral, "string literal"):
		case s.scanQuoted(s.lang.chars, token.CharLiteral, "character literal"):
		case isDigit(r) || (r == '.' && isDigit(s.peekAt(1))):
			s.scanNumber()
		case s.lang.isIdentStart(r):
			s.scanIdentifier()
		case s.scanOperator():
		case s.lang.isDelimiter(r):
			s.advance()
			s.emit(token.Delimiter)
		default:
			s.advance()
			s.emit(token.Unknown)
			s.errorf("unexpected character %q at line %d, column %d", r, s.startLine, s.startCol)
		}
	}
	return s.tokens, s.errors
}

func (s *scanner) scanComment() bool {
	for _, c := range s.lang.comments {
		if !s.matchString(c.start) {
			continue
		}
		s.skip(c.start)

		if c.end == "" {
			for s.pos < len(s.input) && s.peek() != '\n' {
				s.advance()
			}
			s.emit(token.Comment)
			return true
		}

		for s.pos < len(s.input) {
			if s.matchString(c.end) {
				s.skip(c.end)
				s.emit(token.Comment)
				return true
			}
			s.advance()
		}
		s.emit(token.Comment)
		s.errorf("unterminated comment starting at line %d, column %d", s.startLine, s.startCol)
		return true
	}
	return false
}

func (s *scanner) scanQuoted(pairs []Pair, typ, what string) bool {
	for _, p := range pairs {
		if !s.matchString(p.Start) {
			continue
		}
		s.skip(p.Start)

		for s.pos < len(s.input) {
			if s.matchString(p.End) {
				s.skip(p.End)
				s.emit(typ)
				return true
			}
			if s.peek() == s.lang.escape {
				s.advance()
			}
			s.advance()
		}
		s.emit(typ)
		s.errorf("unterminated %s starting at line %d, column %d", what, s.startLine, s.startCol)
		return true
	}
	return false
}

func (s *scanner) scanNumber() {
	if s.peek() == '0' && (s.peekAt(1) == 'x' || s.peekAt(1) == 'X') && isHexDigit(s.peekAt(2)) {
		s.advance()
		s.advance()
		for isHexDigit(s.peek()) || s.peek() == '_' {
			s.advance()
		}
		s.skipSuffix()
		s.emit(token.Hex)
		return
	}

	typ := token.Integer
	s.skipDigits()
	if s.peek() == '.' && isDigit(s.peekAt(1)) {
		typ = token.Float
		s.advance()
		s.skipDigits()
	}
	if e := s.peek(); e == 'e' || e == 'E' {
		next := s.peekAt(1)
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(s.peekAt(2))) {
			typ = token.Float
			s.advance()
			if next == '+' || next == '-' {
				s.advance()
			}
			s.skipDigits()
		}
	}
	s.skipSuffix()
	s.emit(typ)
}

func (s *scanner) scanIdentifier() {
	s.advance()
	for s.pos < len(s.input) && s.lang.isIdentContinue(s.peek()) {
		s.advance()
	}

	word := s.input[s.startPos:s.pos]
	switch {
	case has(s.lang.types, word):
		s.emit(token.Type)
	case has(s.lang.keywords, word):
		s.emit(token.Keyword)
	default:
		s.emit(token.Identifier)
	}
}

func (s *scanner) scanOperator() bool {
	for _, op := range s.lang.operators {
		if s.matchString(op) {
			s.skip(op)
			s.emit(token.Operator)
			return true
		}
	}
	if s.lang.isOperator(s.peek()) {
		s.advance()
		s.emit(token.Operator)
		return true
	}
	return false
}

// Helper methods

func (s *scanner) emit(typ string) {
	s.tokens = append(s.tokens, token.Token{
		Type:   typ,
		Lexeme: s.input[s.startPos:s.pos],
		Line:   s.startLine,
		Column: s.startCol,
	})
}

func (s *scanner) errorf(format string, args ...any) {
	s.errors = append(s.errors, fmt.Sprintf(format, args...))
}

func (s *scanner) markStart() {
	s.startPos = s.pos
	s.startLine = s.line
	s.startCol = s.col
}

// peek returns the current rune without advancing.
func (s *scanner) peek() rune {
	if s.pos >= len(s.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s.input[s.pos:])
	return r
}

// peekAt returns the rune n runes ahead of the current one.
func (s *scanner) peekAt(n int) rune {
	p := s.pos
	for ; n > 0 && p < len(s.input); n-- {
		_, size := utf8.DecodeRuneInString(s.input[p:])
		p += size
	}
	if p >= len(s.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s.input[p:])
	return r
}

// advance moves to the next rune, updating position tracking.
func (s *scanner) advance() {
	if s.pos >= len(s.input) {
		return
	}
	r, size := utf8.DecodeRuneInString(s.input[s.pos:])
	s.pos += size
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
}

func (s *scanner) skip(lit string) {
	for range utf8.RuneCountInString(lit) {
		s.advance()
	}
}

func (s *scanner) matchString(lit string) bool {
	return strings.HasPrefix(s.input[s.pos:], lit)
}

func (s *scanner) skipDigits() {
	for isDigit(s.peek()) || (s.peek() == '_' && isDigit(s.peekAt(1))) {
		s.advance()
	}
}

// skipSuffix consumes integer and float type suffixes such as 10UL or 1.5f.
func (s *scanner) skipSuffix() {
	for strings.ContainsRune("uUlLfFdDn", s.peek()) {
		s.advance()
	}
}

func has(set map[string]struct{}, w string) bool {
	_, ok := set[w]
	return ok
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
