package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMock_ServesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"mock", "--addr", "127.0.0.1:0", "--print-tokens"})

	require.NoError(t, cmd.ExecuteContext(ctx))

	text := out.String()
	assert.Contains(t, text, "mock ticket service listening on http://127.0.0.1:")
	for _, u := range seededUsers {
		assert.Contains(t, text, u+"\t")
	}
	for _, line := range strings.Split(text, "\n") {
		if token, ok := strings.CutPrefix(line, "support_sam\t"); ok {
			assert.Equal(t, 2, strings.Count(token, "."), "bearer token is a JWT")
		}
	}
}

func TestMock_BadAddress(t *testing.T) {
	_, err := execute(t, "mock", "--addr", "not-an-address")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
