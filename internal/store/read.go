package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/tickcheck/internal/harness"
	"github.com/roach88/tickcheck/internal/verify"
)

// Run is one stored scenario execution.
type Run struct {
	Seq          int64         `json:"seq"`
	ID           string        `json:"id"`
	BatchID      string        `json:"batch_id"`
	Scenario     string        `json:"scenario"`
	Source       string        `json:"source,omitempty"`
	BaseURL      string        `json:"base_url,omitempty"`
	State        harness.State `json:"state"`
	Passed       bool          `json:"passed"`
	Fatal        bool          `json:"fatal,omitempty"`
	ChecksPassed int           `json:"checks_passed"`
	ChecksFailed int           `json:"checks_failed"`
	Calls        int           `json:"calls"`
	AbortReason  string        `json:"abort_reason,omitempty"`
	Vars         harness.Vars  `json:"vars,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
}

// Duration is the stored wall time of the run.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ListOptions filters ListRuns.
type ListOptions struct {
	// Limit caps the number of runs returned. Zero means 20.
	Limit int

	// Scenario restricts the listing to one scenario name.
	Scenario string
}

const runColumns = `seq, id, batch_id, scenario, source, base_url, state, passed, fatal,
	checks_passed, checks_failed, calls, abort_reason, vars, started_at, finished_at`

// ListRuns returns recent runs, newest first.
// Returns an empty slice (not nil) if no runs are stored.
func (s *Store) ListRuns(ctx context.Context, opts ListOptions) ([]Run, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	args := []any{}
	if opts.Scenario != "" {
		query += ` WHERE scenario = ?`
		args = append(args, opts.Scenario)
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun retrieves a single run by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// RunVerdicts returns a run's verdicts in the order they were recorded.
func (s *Store) RunVerdicts(ctx context.Context, runID string) ([]verify.Verdict, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT check_desc, endpoint, status, kind, expected, observed, detail
		FROM verdicts
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	verdicts := []verify.Verdict{}
	for rows.Next() {
		var v verify.Verdict
		var status, kind string
		if err := rows.Scan(&v.Check, &v.Endpoint, &status, &kind, &v.Expected, &v.Observed, &v.Detail); err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		v.Status = verify.Status(status)
		v.Kind = verify.Kind(kind)
		verdicts = append(verdicts, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verdicts: %w", err)
	}
	return verdicts, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r                 Run
		state             string
		passed, fatal     int
		varsJSON          string
		started, finished string
	)
	err := row.Scan(
		&r.Seq, &r.ID, &r.BatchID, &r.Scenario, &r.Source, &r.BaseURL, &state, &passed, &fatal,
		&r.ChecksPassed, &r.ChecksFailed, &r.Calls, &r.AbortReason, &varsJSON, &started, &finished,
	)
	if err == sql.ErrNoRows {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	r.State = harness.State(state)
	r.Passed = passed != 0
	r.Fatal = fatal != 0

	if r.Vars, err = unmarshalVars(varsJSON); err != nil {
		return Run{}, err
	}
	if r.StartedAt, err = parseTime(started); err != nil {
		return Run{}, err
	}
	if r.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, err
	}
	return r, nil
}
