package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/tickcheck/internal/harness"
)

// ScenarioInfo is one row of the list command.
type ScenarioInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Steps       int    `json:"steps"`
	Source      string `json:"source"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List builtin scenarios (or those in --dir)",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, dir, cmd)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "list scenario files in this directory instead of the builtins")

	return cmd
}

func runList(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var loaded []LoadedScenario
	if dir != "" {
		var err error
		loaded, err = LoadScenarios(nil, dir, "")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load scenarios", err)
		}
	} else {
		builtins, err := harness.Builtins()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load builtins", err)
		}
		for _, s := range builtins {
			loaded = append(loaded, LoadedScenario{Scenario: s, Source: s.Source})
		}
	}

	infos := make([]ScenarioInfo, 0, len(loaded))
	for _, ls := range loaded {
		infos = append(infos, ScenarioInfo{
			Name:        ls.Scenario.Name,
			Description: ls.Scenario.Description,
			Steps:       len(ls.Scenario.Steps),
			Source:      ls.Source,
		})
	}

	if opts.Format == "json" {
		return formatter.Success(infos)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTEPS\tDESCRIPTION")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Name, info.Steps, info.Description)
	}
	return tw.Flush()
}
