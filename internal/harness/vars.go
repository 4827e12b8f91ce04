package harness

import (
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tickcheck/internal/verify"
)

// Vars holds scenario variables: defaults, CLI overrides, built-ins and
// values captured from responses.
type Vars map[string]any

var wholeRef = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// ParseOverrides turns k=v pairs into typed values. Values are read as
// YAML scalars so "75" becomes an integer and "true" a boolean.
func ParseOverrides(pairs []string) (Vars, error) {
	out := Vars{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, &VarError{Pair: p}
		}
		var typed any
		if err := yaml.Unmarshal([]byte(v), &typed); err != nil || typed == nil {
			typed = v
		}
		if _, isMap := typed.(map[string]any); isMap {
			typed = v
		}
		if _, isSlice := typed.([]any); isSlice {
			typed = v
		}
		out[k] = typed
	}
	return out, nil
}

// VarError reports a malformed --var argument.
type VarError struct {
	Pair string
}

func (e *VarError) Error() string {
	return "invalid variable " + strconv.Quote(e.Pair) + ": want name=value"
}

// expander expands ${name} references and remembers unresolved names.
type expander struct {
	vars    Vars
	missing map[string]bool
}

func newExpander(vars Vars) *expander {
	return &expander{vars: vars, missing: map[string]bool{}}
}

func (e *expander) lookup(name string) string {
	v, ok := e.vars[name]
	if !ok {
		e.missing[name] = true
		return "${" + name + "}"
	}
	if s, ok := v.(string); ok {
		return s
	}
	return verify.Normalize(v)
}

// String expands every reference in s.
func (e *expander) String(s string) string {
	return os.Expand(s, e.lookup)
}

// Value expands references inside strings, maps and slices. A string that
// is exactly one reference is replaced by the variable's typed value, so
// `${supportId}` stays numeric in a JSON payload.
func (e *expander) Value(v any) any {
	switch val := v.(type) {
	case string:
		if m := wholeRef.FindStringSubmatch(val); m != nil {
			if typed, ok := e.vars[m[1]]; ok {
				return typed
			}
			e.missing[m[1]] = true
			return val
		}
		return e.String(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = e.Value(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = e.Value(item)
		}
		return out
	default:
		return v
	}
}

// Missing returns the unresolved variable names in sorted order.
func (e *expander) Missing() []string {
	names := make([]string, 0, len(e.missing))
	for n := range e.missing {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
