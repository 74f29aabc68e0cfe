package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/polylex/internal/cli/output"
	"github.com/leapstack-labs/polylex/internal/plugin"
	"github.com/leapstack-labs/polylex/internal/state"
	"github.com/leapstack-labs/polylex/pkg/core"
)

// NewPluginCommand creates the plugin command and its subcommands.
func NewPluginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Manage custom language plugins",
		Long: `Create, import, export and delete custom language plugins.

Plugins are stored in the configured store and registered with the
tokenizer on every start.`,
	}

	cmd.AddCommand(newPluginCreateCommand())
	cmd.AddCommand(newPluginImportCommand())
	cmd.AddCommand(newPluginExportCommand())
	cmd.AddCommand(newPluginDeleteCommand())
	cmd.AddCommand(newPluginListCommand())
	cmd.AddCommand(newPluginTemplatesCommand())

	return cmd
}

// PluginCreateOptions holds options for plugin create.
type PluginCreateOptions struct {
	ID         string
	Name       string
	Config     string
	ConfigFile string
	Template   string
	Yes        bool
}

func newPluginCreateCommand() *cobra.Command {
	opts := &PluginCreateOptions{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create or overwrite a custom language",
		Long: `Create a custom language from a JSON config or a template.

Reusing the id of an existing plugin or of a built-in language needs
confirmation on a terminal, or --yes.`,
		Example: `  polylex plugin create --id ruby --name Ruby --template ruby
  polylex plugin create --id toy --name Toy --config '{"keywords":["let"]}'
  polylex plugin create --id js --name "My JS" --config-file js.json --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPluginCreate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "Language id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&opts.Config, "config", "", "Config as JSON text")
	cmd.Flags().StringVar(&opts.ConfigFile, "config-file", "", "Read the config from a JSON file")
	cmd.Flags().StringVar(&opts.Template, "template", "", "Start from a named template")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Overwrite an existing plugin without asking")
	cmd.MarkFlagsMutuallyExclusive("config", "config-file", "template")

	_ = cmd.RegisterFlagCompletionFunc("template", func(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		templates, err := plugin.LoadTemplates(getConfig().TemplatesFile)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return templates.Names(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runPluginCreate(cmd *cobra.Command, opts *PluginCreateOptions) error {
	config := opts.Config
	if opts.ConfigFile != "" {
		data, err := os.ReadFile(opts.ConfigFile)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		config = string(data)
	}

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	m := cc.App.Manager

	onConflict := plugin.Deny
	if opts.Yes {
		onConflict = plugin.Allow
	} else if m.Exists(ctx, opts.ID) {
		question := fmt.Sprintf("Plugin %q already exists. Overwrite?", opts.ID)
		if overridesBuiltin(m, opts.ID) {
			question = fmt.Sprintf("%q is a built-in language. Override it?", opts.ID)
		}
		prompter := newCommandPrompter(cmd)
		defer func() { _ = prompter.Close() }()
		if prompter.Confirm(question) {
			onConflict = plugin.Allow
		}
	}

	def, err := m.Create(ctx, plugin.CreateRequest{
		ID:         opts.ID,
		Name:       opts.Name,
		Config:     config,
		Template:   opts.Template,
		OnConflict: onConflict,
	})
	if err != nil {
		return err
	}
	return renderPluginChange(cc.Renderer, "Created", def)
}

// PluginImportOptions holds options for plugin import.
type PluginImportOptions struct {
	As  string
	Yes bool
}

func newPluginImportCommand() *cobra.Command {
	opts := &PluginImportOptions{}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a plugin from a JSON file",
		Long: `Import a plugin definition from a JSON file. The file must be an object
with a "name" string; the id is the file name without its extension unless
--as is given.

When the id is taken by another plugin or a built-in language you are
asked for another one on a terminal. With --yes the existing plugin is
overwritten or the built-in overridden.`,
		Example: `  polylex plugin import ruby.json
  polylex plugin import lang.json --as toy`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPluginImport(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.As, "as", "", "Import under this id instead of the file name")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Overwrite an existing plugin without asking")

	return cmd
}

func runPluginImport(cmd *cobra.Command, path string, opts *PluginImportOptions) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read plugin file: %w", err)
	}

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	prompter := newCommandPrompter(cmd)
	defer func() { _ = prompter.Close() }()
	req := plugin.ImportRequest{
		FileName: path,
		ID:       opts.As,
		Payload:  payload,
		Rename: func(existing string) (string, bool) {
			if overridesBuiltin(cc.App.Manager, existing) {
				return prompter.Ask(fmt.Sprintf("%q is a built-in language. Enter a new id (empty to cancel, --yes to override): ", existing))
			}
			return prompter.Ask(fmt.Sprintf("Language %q already exists. Enter a new id (empty to cancel): ", existing))
		},
	}
	if opts.Yes {
		req.OnConflict = plugin.Allow
	}

	def, err := cc.App.Manager.Import(cmd.Context(), req)
	if err != nil {
		return err
	}
	return renderPluginChange(cc.Renderer, "Imported", def)
}

func newPluginExportCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a plugin as JSON",
		Example: `  polylex plugin export ruby
  polylex plugin export ruby --file ruby.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			data, err := cc.App.Manager.Export(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if file == "" {
				_, err = cc.Renderer.Writer().Write(data)
				return err
			}
			if err := os.WriteFile(file, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", file, err)
			}
			cc.Renderer.Success(fmt.Sprintf("Exported %s to %s", args[0], file))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Write to this file instead of standard output")

	return cmd
}

func newPluginDeleteCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a custom language",
		Long: `Delete a custom language. Without --yes you are asked to confirm on a
terminal; otherwise the deletion is declined. Deleting a plugin that
overrode a built-in language brings the built-in back.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			prompter := newCommandPrompter(cmd)
			defer func() { _ = prompter.Close() }()
			confirmed := yes || prompter.Confirm(fmt.Sprintf("Delete plugin %q?", args[0]))
			deleted, err := cc.App.Manager.Delete(cmd.Context(), args[0], confirmed)
			if err != nil {
				return err
			}
			if !deleted {
				cc.Renderer.Muted("Deletion cancelled")
				return nil
			}
			cc.Renderer.Success(fmt.Sprintf("Deleted %s", args[0]))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking")

	return cmd
}

func newPluginListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List persisted plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			records := cc.App.Manager.Plugins(cmd.Context())
			ids := state.IDs(records)
			r := cc.Renderer

			if r.EffectiveMode() == output.ModeJSON {
				list := make([]languageJSON, len(ids))
				for i, id := range ids {
					list[i] = languageJSON{ID: id, Name: records[id].Name, Origin: core.OriginCustom.String()}
				}
				return r.JSON(list)
			}
			if len(ids) == 0 {
				r.Muted("No custom plugins")
				return nil
			}
			rows := make([][]string, len(ids))
			for i, id := range ids {
				rows[i] = []string{id, records[id].Name}
			}
			r.Header(1, "Plugins")
			r.Table([]string{"ID", "Name"}, rows)
			return nil
		},
	}
}

func newPluginTemplatesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List plugin templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContextWithoutApp(cmd)
			templates, err := plugin.LoadTemplates(cc.Cfg.TemplatesFile)
			if err != nil {
				return fmt.Errorf("failed to load templates: %w", err)
			}

			r := cc.Renderer
			names := templates.Names()
			if r.EffectiveMode() == output.ModeJSON {
				type templateJSON struct {
					Name        string `json:"name"`
					Description string `json:"description,omitempty"`
				}
				list := make([]templateJSON, len(names))
				for i, n := range names {
					list[i] = templateJSON{Name: n, Description: templates.Describe(n)}
				}
				return r.JSON(list)
			}

			rows := make([][]string, len(names))
			for i, n := range names {
				rows[i] = []string{n, templates.Describe(n)}
			}
			r.Header(1, "Templates")
			r.Table([]string{"Name", "Description"}, rows)
			return nil
		},
	}
}

// overridesBuiltin reports whether writing id would replace a built-in that
// no plugin has overridden yet.
func overridesBuiltin(m *plugin.Manager, id string) bool {
	def, err := m.Catalog().Resolve(id)
	return err == nil && def.Origin == core.OriginBuiltin
}

func renderPluginChange(r *output.Renderer, verb string, def core.LanguageDefinition) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(languageJSON{ID: def.ID, Name: def.DisplayName, Origin: def.Origin.String()})
	}
	r.Success(fmt.Sprintf("%s %s (%s)", verb, def.DisplayName, def.ID))
	return nil
}
