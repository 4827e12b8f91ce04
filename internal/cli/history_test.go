package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickcheck/internal/store"
)

func TestHistory_AfterRun(t *testing.T) {
	cfgPath, _ := mockConfig(t)
	dbPath := filepath.Join(t.TempDir(), "history.db")

	_, err := execute(t, "--config", cfgPath, "run", "kb-article", "admin-session", "--history", dbPath)
	require.NoError(t, err)

	out, err := execute(t, "history", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "SCENARIO")
	assert.Contains(t, out, "kb-article")
	assert.Contains(t, out, "admin-session")
	assert.Contains(t, out, "PASS")

	out, err = execute(t, "--format", "json", "history", "--db", dbPath, "--limit", "1")
	require.NoError(t, err)
	var runs []store.Run
	decodeResponse(t, out, &runs)
	require.Len(t, runs, 1)
	assert.Equal(t, "admin-session", runs[0].Scenario)

	out, err = execute(t, "--format", "json", "history", "--db", dbPath, "--run", runs[0].ID)
	require.NoError(t, err)
	var detail RunDetail
	decodeResponse(t, out, &detail)
	assert.Equal(t, runs[0].ID, detail.ID)
	assert.NotEmpty(t, detail.Verdicts)
}

func TestHistory_Empty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	runs, err := st.ListRuns(context.Background(), store.ListOptions{})
	require.NoError(t, err)
	require.Empty(t, runs)
	require.NoError(t, st.Close())

	out, err := execute(t, "history", "--db", dbPath)
	require.NoError(t, err)
	assert.Equal(t, "no runs recorded\n", out)

	_, err = execute(t, "history", "--db", dbPath, "--run", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHistory_NoDatabase(t *testing.T) {
	cfgPath, _ := mockConfig(t)

	out, err := execute(t, "--config", cfgPath, "history")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeHistory+"]")
}

func TestHistory_Prune(t *testing.T) {
	cfgPath, _ := mockConfig(t)
	dbPath := filepath.Join(t.TempDir(), "history.db")

	_, err := execute(t, "--config", cfgPath, "run", "kb-article", "admin-session", "--history", dbPath)
	require.NoError(t, err)

	out, err := execute(t, "--format", "json", "history", "--db", dbPath, "--prune", "1")
	require.NoError(t, err)
	var runs []store.Run
	decodeResponse(t, out, &runs)
	require.Len(t, runs, 1)
	assert.Equal(t, "admin-session", runs[0].Scenario)

	_, err = execute(t, "history", "--db", dbPath, "--prune", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
