package harness

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tickcheck/internal/actor"
	"github.com/roach88/tickcheck/internal/verify"
)

// Scenario is a declarative, ordered list of API steps performed by
// different actors, with checks on what each response shows.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains which lifecycle transition is verified.
	Description string `yaml:"description"`

	// Vars are default variable values. --var overrides them.
	Vars map[string]any `yaml:"vars,omitempty"`

	// Steps run strictly in order unless a step jumps with next or
	// on_failure.
	Steps []Step `yaml:"steps"`

	// Source is where the scenario was loaded from.
	Source string `yaml:"-"`
}

// Step is one HTTP call.
type Step struct {
	Name string `yaml:"name"`

	// Actor is the role performing the call. Empty means unauthenticated.
	Actor string `yaml:"actor,omitempty"`

	// FallbackActor is used instead of Actor when Actor has no credential.
	FallbackActor string `yaml:"fallback_actor,omitempty"`

	Method string            `yaml:"method"`
	Path   string            `yaml:"path"`
	Query  map[string]string `yaml:"query,omitempty"`
	Body   any               `yaml:"body,omitempty"`
	Form   map[string]string `yaml:"form,omitempty"`

	// ExpectStatus lists acceptable statuses. A listed non-2xx status
	// counts as success.
	ExpectStatus []int `yaml:"expect_status,omitempty"`

	// ExpectError marks a negative check: the call must fail with an
	// HTTP error.
	ExpectError bool `yaml:"expect_error,omitempty"`

	// BestEffort steps jump to OnFailure on an HTTP error instead of
	// failing the scenario.
	BestEffort bool   `yaml:"best_effort,omitempty"`
	OnFailure  string `yaml:"on_failure,omitempty"`

	// Next is the step to continue with after success.
	Next string `yaml:"next,omitempty"`

	// Capture maps variable names to response field paths.
	Capture map[string]string `yaml:"capture,omitempty"`

	Checks []Check `yaml:"checks,omitempty"`

	// Wait re-issues the call until every check holds.
	Wait *Wait `yaml:"wait,omitempty"`

	// Delay is a fixed pause before the call.
	Delay time.Duration `yaml:"delay,omitempty"`

	// Schema names an embedded JSON schema the response must satisfy.
	Schema string `yaml:"schema,omitempty"`
}

// Wait bounds a poll. Zero fields fall back to the configured poll.
type Wait struct {
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty"`
}

// Check is one field assertion. Exactly one of Equals, OneOf, Positive or
// Present is set.
type Check struct {
	Field       string `yaml:"field"`
	Equals      any    `yaml:"equals,omitempty"`
	OneOf       []any  `yaml:"one_of,omitempty"`
	Positive    bool   `yaml:"positive,omitempty"`
	Present     *bool  `yaml:"present,omitempty"`
	Description string `yaml:"description,omitempty"`
}

var methods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	s.Source = path
	return s, nil
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "check:" vs "checks:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	names := make(map[string]bool, len(s.Steps))
	for i, step := range s.Steps {
		if step.Name == "" {
			return fmt.Errorf("steps[%d]: name is required", i)
		}
		if names[step.Name] {
			return fmt.Errorf("steps[%d]: duplicate step name %q", i, step.Name)
		}
		names[step.Name] = true
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i], names); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, st *Step, names map[string]bool) error {
	st.Method = strings.ToUpper(st.Method)
	if !methods[st.Method] {
		return fmt.Errorf("steps[%d] %s: unsupported method %q", i, st.Name, st.Method)
	}
	if !strings.HasPrefix(st.Path, "/") {
		return fmt.Errorf("steps[%d] %s: path must start with '/'", i, st.Name)
	}
	for _, r := range []string{st.Actor, st.FallbackActor} {
		if r == "" {
			continue
		}
		if _, err := actor.ParseRole(r); err != nil {
			return fmt.Errorf("steps[%d] %s: %w", i, st.Name, err)
		}
	}
	if st.FallbackActor != "" && st.Actor == "" {
		return fmt.Errorf("steps[%d] %s: fallback_actor requires actor", i, st.Name)
	}
	if st.Body != nil && st.Form != nil {
		return fmt.Errorf("steps[%d] %s: body and form are mutually exclusive", i, st.Name)
	}
	if st.ExpectError && st.BestEffort {
		return fmt.Errorf("steps[%d] %s: expect_error and best_effort are mutually exclusive", i, st.Name)
	}
	if st.OnFailure != "" && !st.BestEffort {
		return fmt.Errorf("steps[%d] %s: on_failure requires best_effort", i, st.Name)
	}
	for _, target := range []string{st.Next, st.OnFailure} {
		if target != "" && !names[target] {
			return fmt.Errorf("steps[%d] %s: unknown step %q", i, st.Name, target)
		}
	}
	for _, code := range st.ExpectStatus {
		if code < 100 || code > 599 {
			return fmt.Errorf("steps[%d] %s: invalid expect_status %d", i, st.Name, code)
		}
	}
	if st.Wait != nil {
		if len(st.Checks) == 0 {
			return fmt.Errorf("steps[%d] %s: wait requires checks", i, st.Name)
		}
		if st.Method != http.MethodGet {
			return fmt.Errorf("steps[%d] %s: wait is only allowed on GET steps", i, st.Name)
		}
	}
	if st.Delay < 0 {
		return fmt.Errorf("steps[%d] %s: delay must not be negative", i, st.Name)
	}
	if st.Schema != "" && !knownSchema(st.Schema) {
		return fmt.Errorf("steps[%d] %s: unknown schema %q", i, st.Name, st.Schema)
	}
	for name, path := range st.Capture {
		if _, err := parsePath(path); err != nil {
			return fmt.Errorf("steps[%d] %s: capture %s: %w", i, st.Name, name, err)
		}
	}
	for j, c := range st.Checks {
		if err := validateCheck(c); err != nil {
			return fmt.Errorf("steps[%d] %s: checks[%d]: %w", i, st.Name, j, err)
		}
	}
	return nil
}

func validateCheck(c Check) error {
	if _, err := parsePath(c.Field); err != nil {
		return err
	}
	kinds := 0
	if c.Equals != nil {
		kinds++
	}
	if len(c.OneOf) > 0 {
		kinds++
	}
	if c.Positive {
		kinds++
	}
	if c.Present != nil {
		kinds++
	}
	if kinds != 1 {
		return fmt.Errorf("exactly one of equals, one_of, positive, present is required")
	}
	return nil
}

func knownSchema(name string) bool {
	for _, n := range verify.SchemaNames() {
		if n == name {
			return true
		}
	}
	return false
}

// stepIndex returns the position of the named step, or -1.
func (s *Scenario) stepIndex(name string) int {
	for i, st := range s.Steps {
		if st.Name == name {
			return i
		}
	}
	return -1
}
