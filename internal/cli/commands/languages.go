package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/polylex/internal/cli/output"
	"github.com/leapstack-labs/polylex/pkg/core"
)

// NewLanguagesCommand creates the languages command.
func NewLanguagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "languages",
		Aliases: []string{"langs", "ls"},
		Short:   "List available languages",
		Long: `List every language the tokenizer accepts: the engine's built-in
languages followed by custom plugins in registration order.`,
		Example: `  polylex languages
  polylex languages --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return renderLanguages(cc.Renderer, cc.App.Catalog.List())
		},
	}
}

type languageJSON struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Origin string `json:"origin,omitempty"`
}

func renderLanguages(r *output.Renderer, langs []core.LanguageDefinition) error {
	if r.EffectiveMode() == output.ModeJSON {
		list := make([]languageJSON, len(langs))
		for i, l := range langs {
			list[i] = languageJSON{ID: l.ID, Name: l.DisplayName, Origin: l.Origin.String()}
		}
		return r.JSON(list)
	}

	rows := make([][]string, len(langs))
	for i, l := range langs {
		rows[i] = []string{l.ID, l.DisplayName, l.Origin.String()}
	}
	r.Header(1, "Languages")
	r.Table([]string{"ID", "Name", "Origin"}, rows)
	return nil
}
