package token

import "fmt"

// Position is a 1-based location in the source text.
type Position struct {
	Line   int
	Column int
}

// IsValid returns true if both line and column are set.
func (p Position) IsValid() bool {
	return p.Line > 0 && p.Column > 0
}

func (p Position) String() string {
	if !p.IsValid() {
		return ""
	}
	return fmt.Sprintf("line %d, col %d", p.Line, p.Column)
}
