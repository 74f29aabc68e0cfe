package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles holds the lipgloss styles used by the renderer.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style

	// Token type styles for highlighted token listings.
	Keyword    lipgloss.Style
	Type       lipgloss.Style
	Literal    lipgloss.Style
	Comment    lipgloss.Style
	Operator   lipgloss.Style
	Identifier lipgloss.Style
	Unknown    lipgloss.Style
}

// NewStyles builds styles for w. Without a terminal the ASCII profile is
// forced so no escape codes are emitted.
func NewStyles(w io.Writer, isTTY bool) *Styles {
	lr := lipgloss.NewRenderer(w)
	if !isTTY {
		lr.SetColorProfile(termenv.Ascii)
	}
	s := lr.NewStyle

	return &Styles{
		Header1: s().Bold(true).Foreground(lipgloss.Color("12")),
		Header2: s().Bold(true).Foreground(lipgloss.Color("14")),
		Bold:    s().Bold(true),
		Muted:   s().Foreground(lipgloss.Color("8")),
		Success: s().Foreground(lipgloss.Color("10")),
		Warning: s().Foreground(lipgloss.Color("11")),
		Error:   s().Foreground(lipgloss.Color("9")),
		Info:    s().Foreground(lipgloss.Color("12")),

		Keyword:    s().Bold(true).Foreground(lipgloss.Color("13")),
		Type:       s().Foreground(lipgloss.Color("14")),
		Literal:    s().Foreground(lipgloss.Color("10")),
		Comment:    s().Italic(true).Foreground(lipgloss.Color("8")),
		Operator:   s().Foreground(lipgloss.Color("11")),
		Identifier: s(),
		Unknown:    s().Foreground(lipgloss.Color("9")).Underline(true),
	}
}
