package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_Up(t *testing.T) {
	cfgPath, _ := mockConfig(t)

	out, err := execute(t, "--config", cfgPath, "health")
	require.NoError(t, err)
	assert.Contains(t, out, ": UP (HTTP 200")
}

func TestHealth_JSON(t *testing.T) {
	cfgPath, _ := mockConfig(t)

	out, err := execute(t, "--config", cfgPath, "--format", "json", "health")
	require.NoError(t, err)

	var result HealthResult
	decodeResponse(t, out, &result)
	assert.Equal(t, "UP", result.Status)
	assert.Equal(t, 200, result.HTTPStatus)
}

func TestHealth_Unreachable(t *testing.T) {
	out, err := execute(t, "--config", unreachableConfig(t), "health")
	require.Error(t, err)
	assert.Equal(t, ExitUnreachable, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeUnreachable+"]")
}
