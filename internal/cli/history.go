package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tickcheck/internal/config"
	"github.com/roach88/tickcheck/internal/store"
	"github.com/roach88/tickcheck/internal/verify"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	Scenario string
	Run      string
	Prune    int
}

// RunDetail is the output of history --run.
type RunDetail struct {
	store.Run
	Verdicts []verify.Verdict `json:"verdicts"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the history database",
		Long: `Show recent scenario runs recorded by "tickcheck run --history".

With --prune N, every run except the newest N is deleted first.

Example:
  tickcheck history --db ./tickcheck.db --limit 5
  tickcheck history --db ./tickcheck.db --run 5f0c...
  tickcheck history --db ./tickcheck.db --prune 100`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "history database (defaults to history_path)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to show")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "only show runs of this scenario")
	cmd.Flags().StringVar(&opts.Run, "run", "", "show the verdicts of one run")
	cmd.Flags().IntVar(&opts.Prune, "prune", -1, "delete all but the newest N runs")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	dbPath := opts.Database
	if dbPath == "" {
		cfg, err := config.Load(opts.ConfigFile)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		dbPath = cfg.HistoryPath
	}
	if dbPath == "" {
		_ = formatter.Error(ErrCodeHistory, "no history database: pass --db or set history_path", nil)
		return NewExitError(ExitCommandError, "no history database configured")
	}

	st, err := store.Open(dbPath)
	if err != nil {
		_ = formatter.Error(ErrCodeHistory, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open history database", err)
	}
	defer st.Close()

	ctx := cmdContext(cmd)

	if cmd.Flags().Changed("prune") {
		removed, err := st.Prune(ctx, opts.Prune)
		if err != nil {
			_ = formatter.Error(ErrCodeHistory, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to prune history", err)
		}
		formatter.VerboseLog("Pruned %d run(s)", removed)
	}

	if opts.Run != "" {
		run, err := st.GetRun(ctx, opts.Run)
		if errors.Is(err, sql.ErrNoRows) {
			_ = formatter.Error(ErrCodeNotFound, "run not found: "+opts.Run, nil)
			return NewExitError(ExitCommandError, "run not found")
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		verdicts, err := st.RunVerdicts(ctx, run.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read verdicts", err)
		}
		if opts.Format == "json" {
			return formatter.Success(RunDetail{Run: run, Verdicts: verdicts})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "run %s (batch %s) at %s against %s\n",
			run.ID, run.BatchID, run.StartedAt.Format("2006-01-02 15:04:05"), run.BaseURL)
		verify.Render(cmd.OutOrStdout(), &verify.Report{Scenario: run.Scenario, Verdicts: verdicts})
		return nil
	}

	runs, err := st.ListRuns(ctx, store.ListOptions{Limit: opts.Limit, Scenario: opts.Scenario})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if opts.Format == "json" {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSCENARIO\tRESULT\tCHECKS\tDURATION\tID")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Scenario,
			runResult(r),
			r.ChecksPassed, r.ChecksPassed+r.ChecksFailed,
			r.Duration().Round(time.Millisecond),
			r.ID,
		)
	}
	return tw.Flush()
}

func runResult(r store.Run) string {
	switch {
	case r.Fatal:
		return "UNREACHABLE"
	case r.Passed:
		return "PASS"
	default:
		return "FAIL"
	}
}
