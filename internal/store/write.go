package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/tickcheck/internal/harness"
)

// NewBatchID returns a time-ordered identifier for one CLI invocation.
// Scenarios run together share it; it is also exposed as ${run_id}.
func NewBatchID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// RecordRun stores one scenario result and its verdicts in a single
// transaction and returns the new run's id.
func (s *Store) RecordRun(ctx context.Context, batchID, baseURL, source string, res *harness.Result) (string, error) {
	varsJSON, err := marshalVars(res.Vars)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}

	id := uuid.NewString()
	passed, failed := res.Report.Counts()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("record run: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, batch_id, scenario, source, base_url, state, passed, fatal,
		 checks_passed, checks_failed, calls, abort_reason, vars, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		batchID,
		res.Scenario,
		source,
		baseURL,
		string(res.State),
		boolToInt(res.Passed()),
		boolToInt(res.Fatal),
		passed,
		failed,
		len(res.Trace),
		res.AbortReason,
		varsJSON,
		formatTime(res.StartedAt),
		formatTime(res.FinishedAt),
	)
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO verdicts
		(run_id, idx, check_desc, endpoint, status, kind, expected, observed, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("record run: prepare verdicts: %w", err)
	}
	defer stmt.Close()

	for i, v := range res.Report.Verdicts {
		if _, err := stmt.ExecContext(ctx,
			id, i, v.Check, v.Endpoint, string(v.Status), string(v.Kind), v.Expected, v.Observed, v.Detail,
		); err != nil {
			return "", fmt.Errorf("record run: verdict %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("record run: commit: %w", err)
	}
	return id, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Prune deletes all but the newest keep runs, verdicts included, and
// returns how many runs were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("prune: keep must not be negative, got %d", keep)
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs
		WHERE seq NOT IN (SELECT seq FROM runs ORDER BY seq DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	return res.RowsAffected()
}
