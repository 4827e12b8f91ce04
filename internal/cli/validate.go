package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tickcheck/internal/harness"
)

// FileValidation holds the validation result of one scenario file.
type FileValidation struct {
	File   string   `json:"file"`
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [path...]",
		Short: "Validate scenario files without running them",
		Long: `Validate scenario YAML files against the scenario schema without
contacting the service.

Each path is a file or a directory of .yaml/.yml files. With no path the
builtin scenarios are validated. Every schema violation is reported with
its line, followed by semantic checks (step references, check kinds,
field paths).`,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	result := ValidationResult{Valid: true, Files: []FileValidation{}}
	if len(paths) == 0 {
		for _, name := range harness.BuiltinNames() {
			data, err := harness.BuiltinSource(name)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read builtin", err)
			}
			result.add(validateFile("builtin:"+name, data))
		}
	}

	for _, p := range paths {
		files, err := expandPath(p)
		if err != nil {
			var loadErr *LoadError
			if errors.As(err, &loadErr) {
				_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			}
			return WrapExitError(ExitCommandError, "failed to read "+p, err)
		}
		for _, f := range files {
			formatter.VerboseLog("Validating %s", f)
			data, err := os.ReadFile(f)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read "+f, err)
			}
			result.add(validateFile(f, data))
		}
	}

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, fv := range result.Files {
			if fv.Valid {
				fmt.Fprintf(w, "✓ %s\n", fv.File)
				continue
			}
			fmt.Fprintf(w, "✗ %s\n", fv.File)
			for _, issue := range fv.Issues {
				fmt.Fprintf(w, "    %s\n", issue)
			}
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "scenario validation failed")
	}
	return nil
}

func (r *ValidationResult) add(fv FileValidation) {
	r.Files = append(r.Files, fv)
	r.Valid = r.Valid && fv.Valid
}

// validateFile runs the CUE schema first, which reports every structural
// problem at once, then the semantic checks of the scenario parser.
func validateFile(name string, data []byte) FileValidation {
	fv := FileValidation{File: name, Valid: true}

	if err := harness.ValidateSchema(name, data); err != nil {
		fv.Valid = false
		var se *harness.SchemaError
		if errors.As(err, &se) {
			fv.Issues = append(fv.Issues, se.Issues...)
		} else {
			fv.Issues = append(fv.Issues, err.Error())
		}
		return fv
	}

	if _, err := harness.ParseScenario(data); err != nil {
		fv.Valid = false
		fv.Issues = append(fv.Issues, err.Error())
	}
	return fv
}

func expandPath(p string) ([]string, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", p)}
	}
	if info.IsDir() {
		return FindScenarioFiles(p)
	}
	return []string{p}, nil
}
