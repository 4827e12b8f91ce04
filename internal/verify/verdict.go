// Package verify compares observed response fields against expectations
// and records structured verdicts.
//
// Nothing here returns an error on mismatch: each check yields a Verdict,
// and a Report aggregates them so one scenario can surface several
// independent failures in a single run.
package verify

import (
	"fmt"
	"strings"
)

// Status is the outcome of one check.
type Status string

const (
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
	StatusTimeout Status = "TIMEOUT"
)

// Kind classifies why a check did not pass.
type Kind string

const (
	KindMismatch    Kind = "mismatch"
	KindHTTP        Kind = "http_error"
	KindUnreachable Kind = "unreachable"
	KindTimeout     Kind = "timeout"
	KindCredential  Kind = "credential_missing"
	KindCapture     Kind = "capture"
	KindSchema      Kind = "schema"
	KindAborted     Kind = "aborted"
)

// Verdict is the result of one verification check.
type Verdict struct {
	Check    string `json:"check"`
	Endpoint string `json:"endpoint,omitempty"`
	Status   Status `json:"status"`
	Kind     Kind   `json:"kind,omitempty"`
	Expected string `json:"expected,omitempty"`
	Observed string `json:"observed,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Passed reports whether the verdict is PASS.
func (v Verdict) Passed() bool {
	return v.Status == StatusPass
}

// String renders a single-line form of the verdict.
func (v Verdict) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", v.Status, v.Check)
	if v.Endpoint != "" {
		fmt.Fprintf(&b, " [%s]", v.Endpoint)
	}
	if !v.Passed() {
		if v.Expected != "" || v.Observed != "" {
			fmt.Fprintf(&b, ": expected %s, observed %s", v.Expected, v.Observed)
		}
		if v.Detail != "" {
			fmt.Fprintf(&b, " (%s)", v.Detail)
		}
	}
	return b.String()
}

// Report aggregates the verdicts of one scenario.
type Report struct {
	Scenario string    `json:"scenario"`
	Verdicts []Verdict `json:"verdicts"`
}

// NewReport creates an empty report.
func NewReport(scenario string) *Report {
	return &Report{Scenario: scenario, Verdicts: []Verdict{}}
}

// Add records v and returns it.
func (r *Report) Add(v Verdict) Verdict {
	r.Verdicts = append(r.Verdicts, v)
	return v
}

// AssertEqual records an equality check.
func (r *Report) AssertEqual(endpoint string, observed, expected any, description string) Verdict {
	return r.Add(Equal(endpoint, observed, expected, description))
}

// AssertOneOf records an enum-membership check.
func (r *Report) AssertOneOf(endpoint string, observed any, allowed []any, description string) Verdict {
	return r.Add(OneOf(endpoint, observed, allowed, description))
}

// AssertPositiveInt records a positive-integer check.
func (r *Report) AssertPositiveInt(endpoint string, observed any, description string) Verdict {
	return r.Add(PositiveInt(endpoint, observed, description))
}

// AssertPresent records a presence check.
func (r *Report) AssertPresent(endpoint string, observed any, want bool, description string) Verdict {
	return r.Add(Present(endpoint, observed, want, description))
}

// AssertSchema records a JSON schema check against an embedded schema.
func (r *Report) AssertSchema(endpoint string, doc any, schema, description string) Verdict {
	return r.Add(MatchesSchema(endpoint, doc, schema, description))
}

// Pass records an unconditional PASS.
func (r *Report) Pass(endpoint, description, detail string) Verdict {
	return r.Add(Verdict{Check: description, Endpoint: endpoint, Status: StatusPass, Detail: detail})
}

// Fail records an unconditional FAIL.
func (r *Report) Fail(endpoint, description string, kind Kind, detail string) Verdict {
	return r.Add(Verdict{Check: description, Endpoint: endpoint, Status: StatusFail, Kind: kind, Detail: detail})
}

// Timeout records a condition that did not hold before a poll deadline.
func (r *Report) Timeout(endpoint, description, expected, observed, detail string) Verdict {
	return r.Add(Verdict{
		Check:    description,
		Endpoint: endpoint,
		Status:   StatusTimeout,
		Kind:     KindTimeout,
		Expected: expected,
		Observed: observed,
		Detail:   detail,
	})
}

// Passed is true iff every verdict passed.
func (r *Report) Passed() bool {
	for _, v := range r.Verdicts {
		if !v.Passed() {
			return false
		}
	}
	return true
}

// Counts returns the number of passing and non-passing verdicts.
func (r *Report) Counts() (passed, failed int) {
	for _, v := range r.Verdicts {
		if v.Passed() {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

// Failures returns the non-passing verdicts.
func (r *Report) Failures() []Verdict {
	var out []Verdict
	for _, v := range r.Verdicts {
		if !v.Passed() {
			out = append(out, v)
		}
	}
	return out
}
