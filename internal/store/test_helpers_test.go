package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/tickcheck/internal/apiclient"
	"github.com/roach88/tickcheck/internal/harness"
	"github.com/roach88/tickcheck/internal/testutil"
)

// createTestStore creates a new store in a per-test directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestResult builds a finished result with one passing and one
// failing verdict.
func createTestResult(scenario string) *harness.Result {
	res := harness.NewResult(scenario)
	res.State = harness.StateDone
	res.Report.Pass("POST /api/tickets", "ticket created", "HTTP 201")
	res.Report.AssertEqual("GET /api/tickets/12", "PENDING", "APPROVED", "approval landed")
	res.Trace = []apiclient.CallRecord{
		{Seq: 1, Method: "POST", Endpoint: "/api/tickets", Status: 201},
		{Seq: 2, Method: "GET", Endpoint: "/api/tickets/12", Status: 200},
	}
	res.Vars = harness.Vars{"ticketId": 12, "run_id": "batch-1"}
	res.StartedAt = testutil.Epoch
	res.FinishedAt = testutil.Epoch.Add(1500 * time.Millisecond)
	return res
}

