package commands

import (
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/polylex/internal/cli/output"
	"github.com/leapstack-labs/polylex/internal/lexer"
	"github.com/leapstack-labs/polylex/internal/registry"
)

// BuildInfo is stamped into the binary at build time.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"commit"`
	BuildDate string `json:"buildDate"`
}

type versionJSON struct {
	BuildInfo
	GoVersion string   `json:"goVersion"`
	Builtins  []string `json:"builtins"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Print the polylex version, build metadata and the engine's built-in languages.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return renderVersion(NewCommandContextWithoutApp(cmd).Renderer, info)
		},
	}
}

func renderVersion(r *output.Renderer, info BuildInfo) error {
	v := versionJSON{BuildInfo: info, GoVersion: runtime.Version()}
	for _, b := range registry.BuiltinsFromEngine(lexer.MustNew(), nil) {
		v.Builtins = append(v.Builtins, b.ID)
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(v)
	}

	r.Printf("polylex v%s\n", info.Version)
	r.Println("Language registry and tokenizer built with Go")
	r.Println()
	r.StatusLine("commit", "", info.GitCommit)
	r.StatusLine("built", "", info.BuildDate)
	r.StatusLine("go", "", v.GoVersion)
	r.StatusLine("builtins", "", strings.Join(v.Builtins, ", "))
	return nil
}
