package harness

import (
	"time"

	"github.com/roach88/tickcheck/internal/apiclient"
	"github.com/roach88/tickcheck/internal/verify"
)

// State is the driver's position in a scenario.
type State string

const (
	StateStart   State = "START"
	StateDone    State = "DONE"
	StateAborted State = "ABORTED"
)

// Result is the outcome of one scenario execution.
type Result struct {
	Scenario string `json:"scenario"`
	State    State  `json:"state"`

	// Report holds every verdict recorded, in order.
	Report *verify.Report `json:"report"`

	// Trace contains every HTTP call made, including polls.
	Trace []apiclient.CallRecord `json:"trace"`

	// Vars is the final variable set, captures included.
	Vars Vars `json:"vars,omitempty"`

	// Fatal is set when the service was unreachable; the run must stop.
	Fatal bool `json:"fatal,omitempty"`

	AbortReason string    `json:"abort_reason,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// NewResult creates an empty result in the START state.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		State:    StateStart,
		Report:   verify.NewReport(scenario),
		Trace:    []apiclient.CallRecord{},
		Vars:     Vars{},
	}
}

// Passed is true when the scenario completed and every verdict passed.
func (r *Result) Passed() bool {
	return r.State == StateDone && r.Report.Passed()
}

// Duration is the wall time of the scenario.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Result) abort(reason string) {
	r.State = StateAborted
	r.AbortReason = reason
}
