package cli

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/tickcheck/internal/config"
	"github.com/roach88/tickcheck/internal/mockapi"
	"github.com/roach88/tickcheck/internal/observability"
)

// MockOptions holds flags for the mock command.
type MockOptions struct {
	*RootOptions
	Addr        string
	NotifyDelay time.Duration
	TokenSecret string
	PrintTokens bool
}

// NewMockCommand creates the mock command.
func NewMockCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MockOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve an in-memory ticket service for local runs",
		Long: `Serve a seeded, in-memory ticket service that speaks the same API as the
real one: session login, basic and bearer auth, tickets, approvals,
assignment, knowledge base articles and delayed notifications.

Seeded users (password "password"): admin, manager_jane, employee_john,
support_sam. Ticket 75 exists and is pending approval.

Example:
  tickcheck mock --addr 127.0.0.1:8080 &
  tickcheck run --base-url http://127.0.0.1:8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMock(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().DurationVar(&opts.NotifyDelay, "notify-delay", 500*time.Millisecond, "delay before a notification becomes visible")
	cmd.Flags().StringVar(&opts.TokenSecret, "token-secret", "", "HS256 secret for bearer tokens")
	cmd.Flags().BoolVar(&opts.PrintTokens, "print-tokens", false, "print a one-hour bearer token per seeded user")

	return cmd
}

var seededUsers = []string{"admin", "manager_jane", "employee_john", "support_sam"}

func runMock(opts *MockOptions, cmd *cobra.Command) error {
	logCfg := config.LogConfig{Level: "info"}
	if opts.Verbose {
		logCfg.Level = "debug"
	}
	logger, err := observability.NewLogger(logCfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build logger", err)
	}
	defer func() { _ = logger.Sync() }()

	srv, err := mockapi.New(mockapi.Options{
		Logger:      logger,
		TokenSecret: opts.TokenSecret,
		NotifyDelay: opts.NotifyDelay,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start mock backend", err)
	}

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen on "+opts.Addr, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "mock ticket service listening on http://%s\n", ln.Addr())
	if opts.PrintTokens {
		for _, u := range seededUsers {
			token, err := srv.IssueToken(u, time.Hour)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to issue token", err)
			}
			fmt.Fprintf(out, "%s\t%s\n", u, token)
		}
	}
	fmt.Fprintln(out, "Press Ctrl-C to stop.")

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Listener(ln) }()

	select {
	case err := <-serveErr:
		if err != nil {
			return WrapExitError(ExitFailure, "mock backend stopped", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down mock backend")
	if err := srv.Shutdown(); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	<-serveErr
	return nil
}
