package commands

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/leapstack-labs/polylex/internal/cli/output"
	"github.com/leapstack-labs/polylex/internal/detect"
	"github.com/leapstack-labs/polylex/internal/dispatch"
	"github.com/leapstack-labs/polylex/pkg/core"
	"github.com/leapstack-labs/polylex/pkg/token"
)

// TokenizeOptions holds options for the tokenize command.
type TokenizeOptions struct {
	Language string
	Source   string
	Example  bool
	Format   string
	File     string
}

// NewTokenizeCommand creates the tokenize command.
func NewTokenizeCommand() *cobra.Command {
	opts := &TokenizeOptions{}

	cmd := &cobra.Command{
		Use:   "tokenize [file]",
		Short: "Tokenize source code",
		Long: `Tokenize source code with a built-in or custom language.

Source is taken from --source, --example, the file argument or standard
input, in that order. Without --language the language is detected from the
file name and content.

A result that carries a lexical error is still printed and exits with
status 0; the error is part of the result.

--format exports the tokens as json, xml, csv or html instead of the
report, to standard output or to --file.`,
		Example: `  polylex tokenize main.c
  polylex tokenize -l python -s 'x = 1'
  polylex tokenize -l c++ --example
  cat app.js | polylex tokenize -l javascript --output json
  polylex tokenize main.c --format html --file tokens.html`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenize(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Language, "language", "l", "", "Language id or alias (e.g. c++, js, python)")
	cmd.Flags().StringVarP(&opts.Source, "source", "s", "", "Source text to tokenize")
	cmd.Flags().BoolVar(&opts.Example, "example", false, "Tokenize a sample snippet for the language")
	cmd.Flags().StringVar(&opts.Format, "format", "", "Export tokens as json, xml, csv or html")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Write the export to this file instead of standard output")

	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		names := make([]string, len(ExportFormats))
		for i, f := range ExportFormats {
			names[i] = string(f)
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runTokenize(cmd *cobra.Command, args []string, opts *TokenizeOptions) error {
	var format ExportFormat
	if opts.Format != "" {
		f, err := ParseExportFormat(opts.Format)
		if err != nil {
			return err
		}
		format = f
	} else if opts.File != "" {
		return &core.ValidationError{Field: "file", Message: "--file needs --format"}
	}

	source, fileName, err := readSource(cmd, args, opts)
	if err != nil {
		return err
	}

	language := opts.Language
	if language == "" {
		detected, ok := detect.Language(fileName, []byte(source))
		if !ok {
			return &core.ValidationError{Field: "language", Message: "could not detect the language, use --language"}
		}
		language = detected.ID
	}

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cc.App.Dispatcher.Dispatch(token.Request{Source: source, LanguageID: language})
	if !out.Measured {
		// The engine was never called: nothing to show but the message.
		return errors.New(out.Result.Error)
	}
	if format != "" {
		return exportTokenize(cc.Renderer, out, format, opts.File)
	}
	return renderTokenize(cc.Renderer, out)
}

// exportTokenize writes the tokens in format. A lexical error goes to the
// error output so the export itself stays well-formed.
func exportTokenize(r *output.Renderer, out dispatch.Outcome, format ExportFormat, file string) error {
	if out.Result.HasError() {
		r.Warning("Error during lexical analysis: " + out.Result.Error)
	}
	if file == "" {
		return ExportTokens(r.Writer(), format, out.Result.Tokens)
	}

	var buf bytes.Buffer
	if err := ExportTokens(&buf, format, out.Result.Tokens); err != nil {
		return err
	}
	if err := os.WriteFile(file, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	r.Success(fmt.Sprintf("Exported %d tokens to %s", len(out.Result.Tokens), file))
	return nil
}

// readSource picks the source text and the file name used for detection.
func readSource(cmd *cobra.Command, args []string, opts *TokenizeOptions) (string, string, error) {
	switch {
	case cmd.Flags().Changed("source"):
		return opts.Source, "", nil
	case opts.Example:
		if opts.Language == "" {
			return "", "", &core.ValidationError{Field: "language", Message: "--example needs --language"}
		}
		return ExampleSnippet(opts.Language), "", nil
	case len(args) == 1:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		return string(data), args[0], nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", "", &core.ValidationError{Field: "source", Message: "no source given, pass a file, --source or pipe to stdin"}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), "", nil
}

// dispatchOutcome is the JSON shape of a tokenize result.
type dispatchOutcome struct {
	RequestID string        `json:"requestId"`
	Language  languageJSON  `json:"language"`
	Resolved  bool          `json:"resolved"`
	ElapsedMs float64       `json:"elapsedMs"`
	Tokens    []token.Token `json:"tokens"`
	Error     string        `json:"error,omitempty"`
}

func newDispatchOutcome(out dispatch.Outcome) dispatchOutcome {
	tokens := out.Result.Tokens
	if tokens == nil {
		tokens = []token.Token{}
	}
	lang := languageJSON{ID: out.Language.ID, Name: out.Language.DisplayName}
	if out.Resolved {
		lang.Origin = out.Language.Origin.String()
	}
	return dispatchOutcome{
		RequestID: out.RequestID,
		Language:  lang,
		Resolved:  out.Resolved,
		ElapsedMs: elapsedMs(out),
		Tokens:    tokens,
		Error:     out.Result.Error,
	}
}

func elapsedMs(out dispatch.Outcome) float64 {
	return float64(out.Elapsed.Microseconds()) / 1000
}
