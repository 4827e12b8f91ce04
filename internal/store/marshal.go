package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/tickcheck/internal/harness"
)

// marshalVars converts the final variable set to JSON TEXT for storage.
// Keys come out sorted, so identical runs store identical text.
func marshalVars(vars harness.Vars) (string, error) {
	if len(vars) == 0 {
		return "{}", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // payload text like "a<b" stays readable
	if err := enc.Encode(map[string]any(vars)); err != nil {
		return "", fmt.Errorf("marshal vars: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalVars parses stored JSON TEXT. Numbers stay json.Number so ids
// read back exactly.
func unmarshalVars(data string) (harness.Vars, error) {
	vars := harness.Vars{}
	if data == "" || data == "{}" {
		return vars, nil
	}
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&vars); err != nil {
		return nil, fmt.Errorf("unmarshal vars: %w", err)
	}
	return vars, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
