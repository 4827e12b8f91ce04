package harness

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

func TestLookup(t *testing.T) {
	ticket := decode(t, `{"id": 12, "assignedTo": null, "requester": {"id": 3, "username": "employee_john"}}`)
	users := decode(t, `[{"id": 1, "role": "ADMIN"}, {"id": 3, "role": "EMPLOYEE", "username": "employee_john"}]`)

	tests := []struct {
		name   string
		doc    any
		path   string
		want   any
		wantOK bool
	}{
		{"top-level key", ticket, "id", json.Number("12"), true},
		{"nested key", ticket, "requester.username", "employee_john", true},
		{"present null", ticket, "assignedTo", nil, true},
		{"through null", ticket, "assignedTo.id", nil, false},
		{"missing key", ticket, "title", nil, false},
		{"index segment", users, "1.id", json.Number("3"), true},
		{"bracket index", users, "[0].role", "ADMIN", true},
		{"index out of range", users, "[5].id", nil, false},
		{"filter", users, "[role=EMPLOYEE].username", "employee_john", true},
		{"numeric filter", users, "[id=3].role", "EMPLOYEE", true},
		{"filter without match", users, "[role=SUPPORT].id", nil, false},
		{"filter on object", ticket, "[id=12]", nil, false},
		{"key on array", users, "id", nil, false},
		{"whole document", ticket, ".", ticket, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := Lookup(tt.doc, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePath_Errors(t *testing.T) {
	for _, path := range []string{"a..b", "a.", "[0", "[=x]", "[-1]", "[x]"} {
		t.Run(path, func(t *testing.T) {
			_, err := parsePath(path)
			assert.Error(t, err)
		})
	}
}
