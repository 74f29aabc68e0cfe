package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/polylex/internal/cli/output"
	"github.com/leapstack-labs/polylex/internal/dispatch"
	"github.com/leapstack-labs/polylex/internal/registry"
	"github.com/leapstack-labs/polylex/pkg/core"
	"github.com/leapstack-labs/polylex/pkg/token"
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:     "repl",
		Aliases: []string{"interactive", "i"},
		Short:   "Tokenize lines interactively",
		Long: `Start an interactive session. Every line you enter is tokenized with the
current language. Type .help for commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd, language)
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "cpp", "Initial language")

	return cmd
}

func runREPL(cmd *cobra.Command, language string) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cc.Cfg.WatchPlugins {
		go func() {
			if err := cc.App.Watch(ctx); err != nil && ctx.Err() == nil {
				cc.Logger.Warn("plugin watcher stopped", "error", err)
			}
		}()
	}

	historyDir := filepath.Join(cc.Cfg.BaseDir, ".polylex")
	_ = os.MkdirAll(historyDir, 0o750)

	catalog := cc.App.Catalog
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptFor(language),
		HistoryFile:     filepath.Join(historyDir, "repl_history"),
		AutoComplete:    newLanguageCompleter(catalog),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	cc.App.Manager.Subscribe(func(langs []core.LanguageDefinition) {
		_, _ = fmt.Fprintf(rl.Stderr(), "languages updated (%d available)\n", len(langs))
	})

	session := newREPLSession(cc.App.Dispatcher, catalog, output.NewRenderer(rl.Stdout(), rl.Stderr(), output.Mode(cc.Cfg.OutputFormat)), language)

	_, _ = fmt.Fprintln(rl.Stdout(), "polylex interactive mode")
	_, _ = fmt.Fprintln(rl.Stdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(rl.Stdout())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		if session.Handle(line) {
			break
		}
		rl.SetPrompt(promptFor(session.Language()))
	}

	return nil
}

func promptFor(language string) string {
	return fmt.Sprintf("polylex(%s)> ", language)
}

// newLanguageCompleter completes dot-commands and language ids for .lang.
func newLanguageCompleter(catalog *registry.Catalog) *readline.PrefixCompleter {
	ids := func(string) []string {
		langs := catalog.List()
		out := make([]string, len(langs))
		for i, l := range langs {
			out[i] = l.ID
		}
		return out
	}

	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".lang", readline.PcItemDynamic(ids)),
		readline.PcItem(".languages"),
		readline.PcItem(".example"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}

// replSession holds the state of one interactive session.
type replSession struct {
	dispatcher *dispatch.Dispatcher
	catalog    *registry.Catalog
	r          *output.Renderer
	language   string
}

func newREPLSession(d *dispatch.Dispatcher, catalog *registry.Catalog, r *output.Renderer, language string) *replSession {
	return &replSession{dispatcher: d, catalog: catalog, r: r, language: language}
}

// Language returns the current language id.
func (s *replSession) Language() string { return s.language }

// Handle processes one input line and reports whether the session should end.
func (s *replSession) Handle(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if line == "exit" {
		return true
	}
	if strings.HasPrefix(line, ".") {
		return s.handleDotCommand(line)
	}
	s.tokenize(line)
	return false
}

func (s *replSession) handleDotCommand(line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(s.r.Writer())

	case ".lang":
		if len(parts) < 2 {
			s.r.Printf("Current language: %s\n", s.language)
			return false
		}
		def, err := s.catalog.Resolve(parts[1])
		if err != nil {
			s.r.Error(err.Error())
			return false
		}
		s.language = def.ID
		s.r.Printf("Language set to %s (%s)\n", def.DisplayName, def.ID)

	case ".languages":
		if err := renderLanguages(s.r, s.catalog.List()); err != nil {
			s.r.Error(err.Error())
		}

	case ".example":
		s.tokenize(ExampleSnippet(s.language))

	default:
		s.r.Error(fmt.Sprintf("Unknown command: %s (type .help for commands)", command))
	}
	return false
}

func (s *replSession) tokenize(source string) {
	out := s.dispatcher.Dispatch(token.Request{Source: source, LanguageID: s.language})
	if !out.Measured {
		s.r.Error(out.Result.Error)
		return
	}
	if err := renderTokenize(s.r, out); err != nil {
		s.r.Error(err.Error())
	}
	s.r.Println()
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help           Show this help message
  .lang [id]      Show or switch the current language (aliases like c++ work)
  .languages      List available languages
  .example        Tokenize a sample snippet for the current language
  .quit / .exit   Exit the REPL

Any other line is tokenized with the current language.
`
	_, _ = fmt.Fprintln(w, help)
}
