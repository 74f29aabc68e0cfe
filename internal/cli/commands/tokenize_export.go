package commands

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/polylex/pkg/core"
	"github.com/leapstack-labs/polylex/pkg/token"
)

// ExportFormat names a token export format.
type ExportFormat string

// Export formats accepted by tokenize --format.
const (
	FormatJSON ExportFormat = "json"
	FormatXML  ExportFormat = "xml"
	FormatCSV  ExportFormat = "csv"
	FormatHTML ExportFormat = "html"
)

// ExportFormats lists the supported formats in display order.
var ExportFormats = []ExportFormat{FormatJSON, FormatXML, FormatCSV, FormatHTML}

// ParseExportFormat accepts a format name in any case.
func ParseExportFormat(s string) (ExportFormat, error) {
	f := ExportFormat(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(ExportFormats, f) {
		return f, nil
	}
	names := make([]string, len(ExportFormats))
	for i, ef := range ExportFormats {
		names[i] = string(ef)
	}
	return "", &core.ValidationError{
		Field:   "format",
		Message: fmt.Sprintf("unknown format %q (available: %s)", s, strings.Join(names, ", ")),
	}
}

var exportHeaders = table.Row{"Type", "Lexeme", "Line", "Column"}

// ExportTokens writes tokens to w in the given format.
func ExportTokens(w io.Writer, format ExportFormat, tokens []token.Token) error {
	switch format {
	case FormatJSON:
		return exportJSON(w, tokens)
	case FormatXML:
		return exportXML(w, tokens)
	case FormatCSV:
		tokenTable(w, tokens).RenderCSV()
		return nil
	case FormatHTML:
		return exportHTML(w, tokens)
	default:
		_, err := ParseExportFormat(string(format))
		return err
	}
}

type exportedToken struct {
	Type   string `json:"type"`
	Lexeme string `json:"lexeme"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func exportJSON(w io.Writer, tokens []token.Token) error {
	doc := struct {
		Tokens []exportedToken `json:"tokens"`
	}{Tokens: make([]exportedToken, len(tokens))}
	for i, t := range tokens {
		doc.Tokens[i] = exportedToken{Type: t.Type, Lexeme: t.Lexeme, Line: t.Line, Column: t.Column}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

type xmlTokens struct {
	XMLName xml.Name   `xml:"tokens"`
	Tokens  []xmlToken `xml:"token"`
}

type xmlToken struct {
	Type     string       `xml:"type"`
	Lexeme   string       `xml:"lexeme"`
	Location *xmlLocation `xml:"location,omitempty"`
}

type xmlLocation struct {
	Line   int `xml:"line"`
	Column int `xml:"column"`
}

func exportXML(w io.Writer, tokens []token.Token) error {
	doc := xmlTokens{Tokens: make([]xmlToken, len(tokens))}
	for i, t := range tokens {
		doc.Tokens[i] = xmlToken{Type: t.Type, Lexeme: t.Lexeme}
		if t.HasPosition() {
			doc.Tokens[i].Location = &xmlLocation{Line: t.Line, Column: t.Column}
		}
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// tokenTable builds the go-pretty table shared by the CSV and HTML exports.
// Positions the engine did not report are left blank.
func tokenTable(w io.Writer, tokens []token.Token) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(exportHeaders)
	for _, tok := range tokens {
		row := table.Row{tok.Type, tok.Lexeme, "", ""}
		if tok.HasPosition() {
			row[2], row[3] = tok.Line, tok.Column
		}
		t.AppendRow(row)
	}
	return t
}

const htmlStyle = `  <style>
    body { font-family: sans-serif; margin: 20px; }
    table { border-collapse: collapse; width: 100%; }
    th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
    th { background-color: #f2f2f2; }
    .token-KEYWORD { color: #0000cc; font-weight: bold; }
    .token-TYPE { color: #267f99; }
    .token-INTEGER, .token-FLOAT, .token-HEX { color: #0066cc; }
    .token-STRING_LITERAL, .token-CHAR_LITERAL { color: #cc6600; }
    .token-OPERATOR, .token-DELIMITER { color: #666666; }
    .token-COMMENT { color: #999999; font-style: italic; }
    .token-UNKNOWN { color: #ff0000; background-color: #ffeeee; }
  </style>
`

func exportHTML(w io.Writer, tokens []token.Token) error {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n  <meta charset=\"utf-8\">\n  <title>Tokens</title>\n")
	b.WriteString(htmlStyle)
	b.WriteString("</head>\n<body>\n  <h1>Tokens</h1>\n")

	t := tokenTable(&b, tokens)
	t.Style().HTML.CSSClass = "tokens"
	t.RenderHTML()

	b.WriteString("\n  <h2>Token Stream</h2>\n  <div class=\"token-stream\">\n")
	for _, tok := range tokens {
		fmt.Fprintf(&b, "    <span class=\"token-%s\" title=\"%s\">%s</span>\n",
			html.EscapeString(tok.Type), html.EscapeString(tok.Type), html.EscapeString(tok.Lexeme))
	}
	b.WriteString("  </div>\n</body>\n</html>\n")

	_, err := io.WriteString(w, b.String())
	return err
}
