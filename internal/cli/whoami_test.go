package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhoami_PerAuthMode(t *testing.T) {
	cfgPath, _ := mockConfig(t)

	tests := []struct {
		role       string
		wantSource string
		wantUser   string
	}{
		{"employee", "basic", "employee_john"},
		{"SUPPORT", "cookie-file", "support_sam"},
		{"admin", "session-login", "admin"},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			out, err := execute(t, "--config", cfgPath, "--format", "json", "whoami", "--role", tt.role)
			require.NoError(t, err, out)

			var result WhoamiResult
			decodeResponse(t, out, &result)
			assert.Equal(t, tt.wantSource, result.Source)
			assert.Equal(t, tt.wantUser, result.Username)
			assert.Equal(t, result.Role, result.Reported)
		})
	}
}

func TestWhoami_Text(t *testing.T) {
	cfgPath, _ := mockConfig(t)

	out, err := execute(t, "--config", cfgPath, "whoami", "--role", "manager")
	require.NoError(t, err)
	assert.Equal(t, "MANAGER via basic: id=2 username=manager_jane role=MANAGER\n", out)
}

func TestWhoami_Errors(t *testing.T) {
	cfgPath, _ := mockConfig(t)

	_, err := execute(t, "--config", cfgPath, "whoami", "--role", "janitor")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "--config", cfgPath, "whoami")
	require.Error(t, err)

	_, err = execute(t, "--config", unreachableConfig(t), "whoami", "--role", "admin")
	assert.Equal(t, ExitUnreachable, GetExitCode(err))
}

func TestWhoami_UnprovisionedRole(t *testing.T) {
	out, err := execute(t, "--config", unreachableConfig(t), "whoami", "--role", "support")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeCredential+"]")
}
