package verify

import (
	"fmt"
	"io"
)

// Render writes the report as line-oriented PASS/FAIL diagnostics.
//
//	== approval-cycle ==
//	PASS     ticket created with positive id [POST /api/tickets]
//	FAIL     approval landed [GET /api/tickets/12]
//	         expected: APPROVED
//	         observed: PENDING
//	-- approval-cycle: FAIL (1 passed, 1 failed)
func Render(w io.Writer, r *Report) {
	fmt.Fprintf(w, "== %s ==\n", r.Scenario)
	for _, v := range r.Verdicts {
		line := fmt.Sprintf("%-8s %s", v.Status, v.Check)
		if v.Endpoint != "" {
			line += fmt.Sprintf(" [%s]", v.Endpoint)
		}
		fmt.Fprintln(w, line)
		if v.Passed() {
			continue
		}
		if v.Expected != "" {
			fmt.Fprintf(w, "         expected: %s\n", v.Expected)
		}
		if v.Observed != "" {
			fmt.Fprintf(w, "         observed: %s\n", v.Observed)
		}
		if v.Detail != "" {
			fmt.Fprintf(w, "         detail:   %s\n", v.Detail)
		}
	}
	passed, failed := r.Counts()
	status := StatusPass
	if !r.Passed() {
		status = StatusFail
	}
	fmt.Fprintf(w, "-- %s: %s (%d passed, %d failed)\n", r.Scenario, status, passed, failed)
}

// Summary writes one line per report and a closing total, and reports
// whether every scenario passed.
func Summary(w io.Writer, reports []*Report) bool {
	ok := true
	var passed, failed int
	for _, r := range reports {
		p, f := r.Counts()
		passed += p
		failed += f
		mark := "✓"
		if !r.Passed() {
			mark = "✗"
			ok = false
		}
		fmt.Fprintf(w, "%s %s\n", mark, r.Scenario)
	}
	fmt.Fprintf(w, "\n%d scenarios, %d checks passed, %d failed\n", len(reports), passed, failed)
	return ok
}
