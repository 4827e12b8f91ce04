package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/tickcheck/internal/apiclient"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // every scenario passed
	ExitFailure      = 1 // FAIL or TIMEOUT verdicts, invalid scenario files, interrupted run
	ExitCommandError = 2 // bad flags, config, paths, history database
	ExitUnreachable  = 3 // the service could not be reached; the run stopped
)

// ExitError carries the process exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. An unreachable service
// that escaped without an ExitError still exits 3; anything else is 1.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if apiclient.IsUnreachable(err) {
		return ExitUnreachable
	}
	return ExitFailure
}

// OutputFormatter writes command results as text or as a JSON envelope.
type OutputFormatter struct {
	Format string
	Writer io.Writer

	// ErrWriter receives verbose diagnostics so they never interleave with
	// a JSON document on Writer. Nil means Writer.
	ErrWriter io.Writer
	Verbose   bool

	// RunID is the batch id of the current run, if any.
	RunID string
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
	RunID  string    `json:"run_id,omitempty"`
}

// CLIError is the error half of CLIResponse.
type CLIError struct {
	Code    string `json:"code"` // one of the ErrCode constants
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success writes data, as the envelope payload in JSON mode.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
			RunID:  f.RunID,
		})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error writes a coded error. Text mode prints details only when verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			RunID:  f.RunID,
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	if f.RunID != "" {
		fmt.Fprintf(f.Writer, "Error [%s] (run %s): %s\n", code, f.RunID, message)
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	}
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// CallError reports a failed API call and returns the matching exit
// error. ctx is the call's context; a call cut short by cancellation is an
// interruption, not an unreachable service.
func (f *OutputFormatter) CallError(ctx context.Context, err error, message string) *ExitError {
	if cerr := ctx.Err(); cerr != nil {
		_ = f.Error(ErrCodeGeneric, "interrupted: "+err.Error(), nil)
		return WrapExitError(ExitFailure, "interrupted", cerr)
	}
	if apiclient.IsUnreachable(err) {
		_ = f.Error(ErrCodeUnreachable, err.Error(), nil)
		return WrapExitError(ExitUnreachable, "service unreachable", err)
	}
	if herr, ok := apiclient.AsHTTPError(err); ok {
		_ = f.Error(ErrCodeHTTP, err.Error(), map[string]any{
			"method":   herr.Method,
			"endpoint": herr.Endpoint,
			"status":   herr.Status,
			"body":     herr.Body,
		})
		return WrapExitError(ExitFailure, message, err)
	}
	_ = f.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitFailure, message, err)
}

// VerboseLog writes a diagnostic line in verbose mode.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
