package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/tickcheck/internal/actor"
	"github.com/roach88/tickcheck/internal/apiclient"
	"github.com/roach88/tickcheck/internal/harness"
	"github.com/roach88/tickcheck/internal/store"
	"github.com/roach88/tickcheck/internal/verify"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Dir         string
	Filter      string
	Vars        []string
	History     string
	MetricsFile string

	// BatchID overrides the generated run id (for testing).
	BatchID string
}

// ScenarioOutcome is the JSON form of one scenario result.
type ScenarioOutcome struct {
	Scenario    string                 `json:"scenario"`
	Source      string                 `json:"source"`
	State       harness.State          `json:"state"`
	Passed      bool                   `json:"passed"`
	Fatal       bool                   `json:"fatal,omitempty"`
	AbortReason string                 `json:"abort_reason,omitempty"`
	DurationMS  int64                  `json:"duration_ms"`
	Verdicts    []verify.Verdict       `json:"verdicts"`
	Trace       []apiclient.CallRecord `json:"trace,omitempty"`
}

// RunSummary is the JSON payload of the run command.
type RunSummary struct {
	BaseURL   string            `json:"base_url"`
	Passed    bool              `json:"passed"`
	Scenarios []ScenarioOutcome `json:"scenarios"`
	Skipped   []string          `json:"skipped,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run verification scenarios against the ticket service",
		Long: `Run verification scenarios against the configured ticket service.

Arguments are scenario files or builtin names (see "tickcheck list").
With no arguments and no --dir, every builtin scenario runs.
Scenarios run one after another; an unreachable service stops the run.

Exit codes: 0 all passed, 1 failures, 2 command error, 3 service unreachable.

Example:
  tickcheck run
  tickcheck run approval-cycle --var title="Printer jam"
  tickcheck run --dir ./scenarios --filter 'assign*' --history ./tickcheck.db`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "directory of scenario YAML files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "glob on scenario names")
	cmd.Flags().StringArrayVar(&opts.Vars, "var", nil, "scenario variable override name=value (repeatable)")
	cmd.Flags().StringVar(&opts.History, "history", "", "record results in this SQLite database (overrides history_path)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus textfile metrics here (overrides metrics_file)")

	return cmd
}

func runScenarios(opts *RunOptions, args []string, cmd *cobra.Command) error {
	cfg, logger, err := opts.setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	formatter := opts.formatter(cmd)

	overrides, err := harness.ParseOverrides(opts.Vars)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --var", err)
	}

	scenarios, err := LoadScenarios(args, opts.Dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}
	formatter.VerboseLog("Loaded %d scenario(s)", len(scenarios))

	metrics := apiclient.NewMetrics()
	client, err := apiclient.New(apiclient.Options{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.HTTPTimeout,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create API client", err)
	}

	var history *store.Store
	if p := firstNonEmpty(opts.History, cfg.HistoryPath); p != "" {
		history, err = store.Open(p)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open history database", err)
		}
		defer func() {
			if closeErr := history.Close(); closeErr != nil {
				logger.Error("error closing history database", zap.Error(closeErr))
			}
		}()
	}

	batchID := opts.BatchID
	if batchID == "" {
		batchID = store.NewBatchID()
	}
	formatter.RunID = batchID

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	env := harness.Env{
		Client: client,
		Actors: actor.NewRegistry(cfg, client, logger),
		Logger: logger,
		Poll:   verify.Poll{Timeout: cfg.Poll.Timeout, Interval: cfg.Poll.Interval},
		RunID:  batchID,
		Vars:   overrides,
	}

	logger.Info("run started",
		zap.String("run_id", batchID),
		zap.String("base_url", cfg.BaseURL),
		zap.Int("scenarios", len(scenarios)),
	)

	summary := RunSummary{BaseURL: cfg.BaseURL, Passed: true}
	var reports []*verify.Report
	fatal := false
	for i, ls := range scenarios {
		if fatal || ctx.Err() != nil {
			for _, rest := range scenarios[i:] {
				summary.Skipped = append(summary.Skipped, rest.Scenario.Name)
			}
			break
		}

		res, err := harness.Run(ctx, ls.Scenario, env)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to run scenario "+ls.Scenario.Name, err)
		}
		reports = append(reports, res.Report)
		summary.Passed = summary.Passed && res.Passed()
		fatal = res.Fatal

		if opts.Format == "text" {
			verify.Render(cmd.OutOrStdout(), res.Report)
		}
		summary.Scenarios = append(summary.Scenarios, outcome(ls, res, opts.Verbose))

		if history != nil {
			id, err := history.RecordRun(context.WithoutCancel(ctx), batchID, cfg.BaseURL, ls.Source, res)
			if err != nil {
				logger.Error("failed to record run", zap.String("scenario", res.Scenario), zap.Error(err))
			} else {
				formatter.VerboseLog("Recorded %s as %s", res.Scenario, id)
			}
		}
	}
	if len(summary.Skipped) > 0 {
		summary.Passed = false
	}

	if p := firstNonEmpty(opts.MetricsFile, cfg.MetricsFile); p != "" {
		if err := metrics.WriteTextfile(p); err != nil {
			logger.Error("failed to write metrics", zap.String("path", p), zap.Error(err))
		}
	}

	if opts.Format == "json" {
		if err := formatter.Success(summary); err != nil {
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
	} else {
		verify.Summary(cmd.OutOrStdout(), reports)
		if len(summary.Skipped) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "skipped: %v\n", summary.Skipped)
		}
	}

	switch {
	case fatal:
		return NewExitError(ExitUnreachable, "service unreachable at "+cfg.BaseURL)
	case ctx.Err() != nil:
		return WrapExitError(ExitFailure, "run interrupted", ctx.Err())
	case !summary.Passed:
		return NewExitError(ExitFailure, "verification failed")
	}
	return nil
}

func outcome(ls LoadedScenario, res *harness.Result, withTrace bool) ScenarioOutcome {
	o := ScenarioOutcome{
		Scenario:    res.Scenario,
		Source:      ls.Source,
		State:       res.State,
		Passed:      res.Passed(),
		Fatal:       res.Fatal,
		AbortReason: res.AbortReason,
		DurationMS:  res.Duration().Milliseconds(),
		Verdicts:    res.Report.Verdicts,
	}
	if withTrace {
		o.Trace = res.Trace
	}
	return o
}

// signalContext cancels on SIGINT/SIGTERM. Uses the command's context if
// available (for testing).
func signalContext(parent context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		cancel()
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// requestTimeout bounds one-shot commands such as health and whoami.
func requestTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d + time.Second
}
