package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickcheck/internal/harness"
)

const validScenario = `name: health
description: service is up
steps:
  - name: up
    method: GET
    path: /actuator/health
    checks:
      - field: status
        equals: UP
`

func TestValidate_Builtins(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate")
	require.NoError(t, err, out)

	var result ValidationResult
	decodeResponse(t, out, &result)
	assert.True(t, result.Valid)
	assert.Len(t, result.Files, len(harness.BuiltinNames()))
}

func TestValidate_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "health.yaml"), []byte(validScenario), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte(`name: broken
description: several mistakes at once
steps:
  - name: first
    actor: JANITOR
    method: GET
    path: /api/users
  - name: second
    method: FETCH
    path: api/users
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	out, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✓ "+filepath.Join(dir, "health.yaml"))
	assert.Contains(t, out, "✗ "+filepath.Join(dir, "broken.yml"))
	assert.Contains(t, out, "line ")
	assert.NotContains(t, out, "notes.txt")
}

func TestValidate_SemanticErrorAfterSchema(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "jump.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`name: jump
description: next points nowhere
steps:
  - name: only
    method: GET
    path: /actuator/health
    next: missing
`), 0o600))

	out, err := execute(t, "--format", "json", "validate", file)
	require.Error(t, err)

	var result ValidationResult
	decodeResponse(t, out, &result)
	require.Len(t, result.Files, 1)
	assert.False(t, result.Valid)
	require.Len(t, result.Files[0].Issues, 1)
	assert.Contains(t, result.Files[0].Issues[0], `unknown step "missing"`)
}

func TestValidate_MissingPath(t *testing.T) {
	_, err := execute(t, "validate", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
