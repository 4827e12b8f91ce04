package harness

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSchema_Builtins(t *testing.T) {
	for _, name := range BuiltinNames() {
		t.Run(name, func(t *testing.T) {
			data, err := BuiltinSource(name)
			require.NoError(t, err)
			assert.NoError(t, ValidateSchema(name+".yaml", data))
		})
	}
}

func TestValidateSchema_ReportsEveryIssue(t *testing.T) {
	doc := `name: broken
description: two mistakes
steps:
  - name: first
    actor: JANITOR
    method: GET
    path: /api/users
  - name: second
    method: FETCH
    path: /api/users
`
	err := ValidateSchema("broken.yaml", []byte(doc))

	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "broken.yaml", se.File)
	require.GreaterOrEqual(t, len(se.Issues), 2)
	assert.Contains(t, strings.Join(se.Issues, "\n"), "line ")
	assert.Contains(t, err.Error(), "schema violation(s)")
}

func TestValidateSchema_UnknownField(t *testing.T) {
	doc := `name: typo
description: checks spelled wrong
steps:
  - name: only
    method: GET
    path: /actuator/health
    check:
      - field: status
        equals: UP
`
	err := ValidateSchema("typo.yaml", []byte(doc))
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.NotEmpty(t, se.Issues)
}

func TestValidateSchema_MalformedYAML(t *testing.T) {
	err := ValidateSchema("bad.yaml", []byte("name: [unclosed"))
	require.Error(t, err)
	var se *SchemaError
	assert.False(t, errors.As(err, &se), "parse errors are not schema violations")
}
