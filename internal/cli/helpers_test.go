package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tickcheck/internal/mockapi"
	"github.com/roach88/tickcheck/internal/testutil"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// mockConfig starts a mock backend and writes a config file for it with
// one actor per auth mode.
func mockConfig(t *testing.T) (string, *mockapi.Server) {
	t.Helper()
	srv, baseURL := testutil.StartMockServer(t)
	cookie := testutil.WriteCookieFile(t, srv, "support_sam")
	return testutil.WriteFile(t, "tickcheck.yaml", fmt.Sprintf(`
base_url: %s
auth_mode: basic
http_timeout: 5s
poll:
  timeout: 2s
  interval: 20ms
log:
  level: error
actors:
  employee:
    username: employee_john
    password: password
  manager:
    username: manager_jane
    password: password
  support:
    credential_file: %s
    auth_mode: cookie
  admin:
    username: admin
    password: password
    auth_mode: login
`, baseURL, cookie)), srv
}

// unreachableConfig points at a loopback port nothing listens on.
func unreachableConfig(t *testing.T) string {
	t.Helper()
	return testutil.WriteFile(t, "tickcheck.yaml", `
base_url: http://127.0.0.1:1
auth_mode: basic
http_timeout: 1s
poll:
  timeout: 1s
  interval: 100ms
log:
  level: error
actors:
  admin:
    username: admin
    password: password
`)
}

func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var resp CLIResponse
	resp.Data = data
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}
