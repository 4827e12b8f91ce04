package apiclient

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// UnreachableError reports a transport-level failure: connection refused,
// DNS failure or timeout. It is fatal to a whole run.
type UnreachableError struct {
	Method   string
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (e *UnreachableError) Error() string {
	return fmt.Sprintf("service unreachable: %s %s: %v", e.Method, e.Endpoint, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// HTTPError reports a non-2xx response. It is scenario-local; the raw body
// is kept because it usually explains server-side validation failures.
type HTTPError struct {
	Method   string
	Endpoint string
	Status   int
	Body     string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d: %s %s", e.Status, e.Method, e.Endpoint)
	}
	return fmt.Sprintf("HTTP %d: %s %s: %s", e.Status, e.Method, e.Endpoint, truncate(e.Body, 512))
}

// IsUnreachable returns true if err is, or wraps, an UnreachableError.
func IsUnreachable(err error) bool {
	var ue *UnreachableError
	return errors.As(err, &ue)
}

// AsHTTPError extracts an HTTPError from err.
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
