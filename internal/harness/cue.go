package harness

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed scenario.cue
var scenarioSchema string

// SchemaError lists every schema violation found in one scenario file.
type SchemaError struct {
	File   string
	Issues []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %d schema violation(s):\n  %s", e.File, len(e.Issues), strings.Join(e.Issues, "\n  "))
}

// ValidateSchema checks raw scenario YAML against the embedded CUE
// definition #Scenario. Unlike ParseScenario it reports all violations at
// once, with line numbers.
func ValidateSchema(filename string, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(scenarioSchema, cue.Filename("scenario.cue")).
		LookupPath(cue.ParsePath("#Scenario"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("failed to compile scenario schema: %w", err)
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("failed to load %s: %w", filename, err)
	}

	if err := schema.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return &SchemaError{File: filename, Issues: formatIssues(filename, err)}
	}
	return nil
}

// formatIssues prefixes each CUE error with its line in the scenario
// file, when CUE knows it.
func formatIssues(filename string, err error) []string {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return []string{err.Error()}
	}
	issues := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := e.Error()
		for _, pos := range errors.Positions(e) {
			if pos.Filename() == filename {
				msg = fmt.Sprintf("line %d: %s", pos.Line(), msg)
				break
			}
		}
		issues = append(issues, msg)
	}
	return issues
}
