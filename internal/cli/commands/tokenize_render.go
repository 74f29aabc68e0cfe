package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/leapstack-labs/polylex/internal/cli/output"
	"github.com/leapstack-labs/polylex/internal/dispatch"
	"github.com/leapstack-labs/polylex/pkg/token"
)

func renderTokenize(r *output.Renderer, out dispatch.Outcome) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(newDispatchOutcome(out))
	case output.ModeMarkdown:
		renderTokenizeMarkdown(r, out)
	default:
		renderTokenizeText(r, out)
	}
	return nil
}

func languageLabel(out dispatch.Outcome) string {
	if out.Language.DisplayName == "" || out.Language.DisplayName == out.Language.ID {
		return out.Language.ID
	}
	return fmt.Sprintf("%s (%s)", out.Language.DisplayName, out.Language.ID)
}

func renderTokenizeText(r *output.Renderer, out dispatch.Outcome) {
	styles := r.Styles()

	r.Printf("%s %.2f ms\n", styles.Bold.Render("Execution time:"), elapsedMs(out))
	r.Printf("%s %s\n", styles.Bold.Render("Language:"), languageLabel(out))
	r.Printf("%s %d\n", styles.Bold.Render("Total tokens:"), len(out.Result.Tokens))

	if out.Result.HasError() {
		r.Println()
		r.Println(styles.Error.Render("Error during lexical analysis:"))
		for _, line := range strings.Split(out.Result.Error, "\n") {
			r.Println(styles.Error.Render("  " + line))
		}
	}

	if len(out.Result.Tokens) == 0 {
		return
	}
	r.Println()
	r.Table([]string{"Type", "Lexeme", "Location"}, tokenRows(out.Result.Tokens, func(typ string) string {
		return tokenStyle(styles, typ).Render(typ)
	}))
}

func renderTokenizeMarkdown(r *output.Renderer, out dispatch.Outcome) {
	r.Header(1, "Tokens")
	r.Println(output.FormatKeyValue("Execution time", fmt.Sprintf("%.2f ms", elapsedMs(out))))
	r.Println(output.FormatKeyValue("Language", languageLabel(out)))
	r.Println(output.FormatKeyValue("Total tokens", strconv.Itoa(len(out.Result.Tokens))))
	r.Println()

	if out.Result.HasError() {
		r.Header(2, "Error during lexical analysis")
		r.Println(output.FormatCodeBlock("", out.Result.Error))
		r.Println()
	}

	if len(out.Result.Tokens) == 0 {
		return
	}
	r.Table([]string{"Type", "Lexeme", "Location"}, tokenRows(out.Result.Tokens, func(typ string) string {
		return typ
	}))
}

func tokenRows(tokens []token.Token, typeCell func(string) string) [][]string {
	rows := make([][]string, len(tokens))
	for i, t := range tokens {
		rows[i] = []string{typeCell(t.Type), strconv.Quote(t.Lexeme), t.Pos().String()}
	}
	return rows
}

func tokenStyle(styles *output.Styles, typ string) lipgloss.Style {
	switch typ {
	case token.Keyword:
		return styles.Keyword
	case token.Type:
		return styles.Type
	case token.Integer, token.Float, token.Hex, token.StringLiteral, token.CharLiteral:
		return styles.Literal
	case token.Comment:
		return styles.Comment
	case token.Operator, token.Delimiter:
		return styles.Operator
	case token.Unknown:
		return styles.Unknown
	default:
		return styles.Identifier
	}
}
