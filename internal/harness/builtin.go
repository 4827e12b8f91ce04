package harness

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// BuiltinNames lists the embedded scenarios in alphabetical order.
func BuiltinNames() []string {
	entries, _ := builtinFS.ReadDir("builtin")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Builtin loads an embedded scenario by name.
func Builtin(name string) (*Scenario, error) {
	data, err := builtinFS.ReadFile("builtin/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown builtin scenario %q (available: %s)", name, strings.Join(BuiltinNames(), ", "))
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("builtin %s: %w", name, err)
	}
	s.Source = "builtin:" + name
	return s, nil
}

// Builtins loads every embedded scenario.
func Builtins() ([]*Scenario, error) {
	var out []*Scenario
	for _, name := range BuiltinNames() {
		s, err := Builtin(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// BuiltinSource returns the raw YAML of an embedded scenario.
func BuiltinSource(name string) ([]byte, error) {
	return builtinFS.ReadFile("builtin/" + name + ".yaml")
}
