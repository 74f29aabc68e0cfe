package commands

import (
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Prompter asks the user yes/no and free-text questions on a readline
// instance. When the input is not interactive every question is declined.
type Prompter struct {
	in          io.Reader
	out         io.Writer
	interactive bool
	// terminal switches readline to raw-mode line editing.
	terminal bool

	rl *readline.Instance
}

// NewPrompter creates a prompter reading from in and writing questions to out.
func NewPrompter(in io.Reader, out io.Writer, interactive bool) *Prompter {
	return &Prompter{in: in, out: out, interactive: interactive}
}

// newCommandPrompter prompts on the command's streams when stdin is a terminal.
func newCommandPrompter(cmd *cobra.Command) *Prompter {
	in := cmd.InOrStdin()
	f, ok := in.(*os.File)
	p := NewPrompter(in, cmd.ErrOrStderr(), ok && term.IsTerminal(int(f.Fd())))
	p.terminal = p.interactive
	return p
}

// Confirm asks a y/N question. Anything but y or yes is a no.
func (p *Prompter) Confirm(question string) bool {
	answer, ok := p.ask(question + " [y/N]: ")
	if !ok {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Ask asks for a line of text. An empty answer is a decline.
func (p *Prompter) Ask(question string) (string, bool) {
	answer, ok := p.ask(question)
	if !ok || answer == "" {
		return "", false
	}
	return answer, true
}

// Close releases the readline instance, if one was opened.
func (p *Prompter) Close() error {
	if p.rl == nil {
		return nil
	}
	err := p.rl.Close()
	p.rl = nil
	return err
}

func (p *Prompter) ask(question string) (string, bool) {
	if !p.interactive {
		return "", false
	}
	rl, err := p.instance(question)
	if err != nil {
		return "", false
	}
	rl.SetPrompt(question)

	// Ctrl+C (readline.ErrInterrupt) and EOF both decline.
	line, err := rl.Readline()
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(line), true
}

// instance opens one readline instance per prompter so that buffered input
// carries over between questions.
func (p *Prompter) instance(prompt string) (*readline.Instance, error) {
	if p.rl != nil {
		return p.rl, nil
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 prompt,
		HistoryLimit:           -1,
		DisableAutoSaveHistory: true,
		InterruptPrompt:        "^C",
		FuncIsTerminal:         func() bool { return p.terminal },
		Stdin:                  io.NopCloser(p.in),
		Stdout:                 p.out,
		Stderr:                 p.out,
	})
	if err != nil {
		return nil, err
	}
	p.rl = rl
	return rl, nil
}
