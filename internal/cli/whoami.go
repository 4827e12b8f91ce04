package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/roach88/tickcheck/internal/actor"
	"github.com/roach88/tickcheck/internal/apiclient"
	"github.com/roach88/tickcheck/internal/verify"
)

// WhoamiResult describes the identity the service sees for a role.
type WhoamiResult struct {
	Role     string `json:"role"`
	Source   string `json:"source"`
	ID       string `json:"id"`
	Username string `json:"username"`
	Reported string `json:"reported_role"`
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Resolve an actor's credential and show who the service thinks it is",
		Long: `Resolve the configured credential for a role and call /auth/me with it.

Useful to check a freshly exported cookie file or token before a run.

Example:
  tickcheck whoami --role support`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(rootOpts, role, cmd)
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "actor role: employee, manager, support or admin (required)")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

func runWhoami(opts *RootOptions, roleName string, cmd *cobra.Command) error {
	role, err := actor.ParseRole(roleName)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --role", err)
	}

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

	ctx, cancel := context.WithTimeout(cmdContext(cmd), 2*requestTimeout(cfg.HTTPTimeout))
	defer cancel()

	a := actor.NewRegistry(cfg, client, logger).Resolve(ctx, role)
	if !a.Authenticated {
		if apiclient.IsUnreachable(a.Missing) || ctx.Err() != nil {
			return formatter.CallError(ctx, a.Missing, "credential unavailable")
		}
		_ = formatter.Error(ErrCodeCredential, fmt.Sprintf("no credential for %s: %v", role, a.Missing), nil)
		return WrapExitError(ExitFailure, "credential unavailable", a.Missing)
	}

	resp, err := client.Call(ctx, apiclient.Request{
		Method:     http.MethodGet,
		Endpoint:   "/auth/me",
		Credential: a.Credential,
		Actor:      string(role),
	})
	if err != nil {
		return formatter.CallError(ctx, err, "credential rejected")
	}

	result := WhoamiResult{
		Role:     string(role),
		Source:   a.Source,
		ID:       field(resp.Body, "id"),
		Username: field(resp.Body, "username"),
		Reported: field(resp.Body, "role"),
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s via %s: id=%s username=%s role=%s\n",
		result.Role, result.Source, result.ID, result.Username, result.Reported)
	if result.Reported != "" && result.Reported != result.Role {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: credential for %s belongs to a %s user\n", result.Role, result.Reported)
	}
	return nil
}

func field(body any, key string) string {
	m, ok := body.(map[string]any)
	if !ok {
		return ""
	}
	v, ok := m[key]
	if !ok {
		return ""
	}
	return verify.Normalize(v)
}
