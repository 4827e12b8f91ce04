package cli

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/tickcheck/internal/harness"
)

// LoadError represents an error that occurred while loading scenarios.
type LoadError struct {
	Code    string
	Message string
	File    string
}

func (e *LoadError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No scenario files found
	ErrCodeLoadFailed  = "E004" // Scenario parse or semantic error
	ErrCodeNotFound    = "E005" // Path or builtin not found
	ErrCodeSchema      = "E006" // CUE schema violation
	ErrCodeUnreachable = "E007" // Service unreachable
	ErrCodeHTTP        = "E008" // Non-2xx response
	ErrCodeCredential  = "E009" // Actor has no usable credential
	ErrCodeHistory     = "E010" // History database error
)

// LoadedScenario pairs a parsed scenario with where it came from.
type LoadedScenario struct {
	Scenario *harness.Scenario
	Source   string
}

// LoadScenarios resolves scenario references. Each arg is a YAML file or
// a builtin name; dir adds every YAML file under it. With neither, all
// builtins are loaded. filter is a glob on scenario names.
func LoadScenarios(args []string, dir, filter string) ([]LoadedScenario, error) {
	if filter != "" {
		if _, err := path.Match(filter, ""); err != nil {
			return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("invalid filter %q: %v", filter, err)}
		}
	}

	var out []LoadedScenario
	for _, arg := range args {
		ls, err := loadOne(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, ls)
	}

	if dir != "" {
		files, err := FindScenarioFiles(dir)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			ls, err := loadFile(f)
			if err != nil {
				return nil, err
			}
			out = append(out, ls)
		}
	}

	if len(args) == 0 && dir == "" {
		for _, name := range harness.BuiltinNames() {
			ls, err := loadOne(name)
			if err != nil {
				return nil, err
			}
			out = append(out, ls)
		}
	}

	if filter != "" {
		kept := out[:0]
		for _, ls := range out {
			if ok, _ := path.Match(filter, ls.Scenario.Name); ok {
				kept = append(kept, ls)
			}
		}
		out = kept
	}
	if len(out) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: "no scenarios selected"}
	}
	return out, nil
}

func loadOne(arg string) (LoadedScenario, error) {
	if isScenarioFile(arg) {
		return loadFile(arg)
	}
	if _, err := os.Stat(arg); err == nil {
		return loadFile(arg)
	}
	s, err := harness.Builtin(arg)
	if err != nil {
		return LoadedScenario{}, &LoadError{Code: ErrCodeNotFound, Message: err.Error()}
	}
	return LoadedScenario{Scenario: s, Source: s.Source}, nil
}

func loadFile(file string) (LoadedScenario, error) {
	s, err := harness.LoadScenario(file)
	if err != nil {
		code := ErrCodeLoadFailed
		if errors.Is(err, os.ErrNotExist) {
			code = ErrCodeNotFound
		}
		return LoadedScenario{}, &LoadError{Code: code, Message: err.Error(), File: file}
	}
	return LoadedScenario{Scenario: s, Source: file}, nil
}

// FindScenarioFiles returns every .yaml/.yml file under dir, sorted.
func FindScenarioFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scenario directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing scenario directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	var files []string
	err = filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && isScenarioFile(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no scenario files found in %s", dir)}
	}
	sort.Strings(files)
	return files, nil
}

func isScenarioFile(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	return ext == ".yaml" || ext == ".yml"
}
