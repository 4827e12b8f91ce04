package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tickcheck/internal/apiclient"
)

// HealthResult is the output of the health command.
type HealthResult struct {
	BaseURL    string `json:"base_url"`
	Status     string `json:"status"`
	HTTPStatus int    `json:"http_status"`
	DurationMS int64  `json:"duration_ms"`
}

// NewHealthCommand creates the health command.
func NewHealthCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the service liveness endpoint",
		Long: `Probe /actuator/health on the configured base URL.

Exits 3 when the service cannot be reached and 1 when it answers with an
error or a status other than UP.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(rootOpts, cmd)
		},
	}
}

func runHealth(opts *RootOptions, cmd *cobra.Command) error {
	cfg, logger, err := opts.setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	formatter := opts.formatter(cmd)

	client, err := apiclient.New(apiclient.Options{BaseURL: cfg.BaseURL, Timeout: cfg.HTTPTimeout, Logger: logger})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create API client", err)
	}

	ctx, cancel := context.WithTimeout(cmdContext(cmd), requestTimeout(cfg.HTTPTimeout))
	defer cancel()

	resp, err := client.Health(ctx)
	if err != nil {
		return formatter.CallError(ctx, err, "health check failed")
	}

	result := HealthResult{
		BaseURL:    cfg.BaseURL,
		Status:     healthStatus(resp.Body),
		HTTPStatus: resp.Status,
		DurationMS: resp.Record.Duration.Milliseconds(),
	}

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (HTTP %d, %dms)\n", result.BaseURL, result.Status, result.HTTPStatus, result.DurationMS)
	}

	if result.Status != "UP" {
		return NewExitError(ExitFailure, "service reports "+result.Status)
	}
	return nil
}

func healthStatus(body any) string {
	if m, ok := body.(map[string]any); ok {
		if s, ok := m["status"].(string); ok {
			return s
		}
	}
	return "UNKNOWN"
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
