package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/tickcheck/internal/verify"
)

// evaluateCheck resolves the check's field in body and compares it with
// the expanded expectation. It always yields a verdict.
func evaluateCheck(endpoint string, body any, c Check, vars Vars) verify.Verdict {
	desc := c.Description
	if desc == "" {
		desc = describeCheck(c)
	}

	observed, ok, err := Lookup(body, c.Field)
	if err != nil {
		return verify.Verdict{
			Check:    desc,
			Endpoint: endpoint,
			Status:   verify.StatusFail,
			Kind:     verify.KindMismatch,
			Detail:   err.Error(),
		}
	}
	if !ok {
		observed = verify.Absent
	}

	exp := newExpander(vars)
	var v verify.Verdict
	switch {
	case c.Equals != nil:
		v = verify.Equal(endpoint, observed, exp.Value(c.Equals), desc)
	case len(c.OneOf) > 0:
		allowed, _ := exp.Value(c.OneOf).([]any)
		v = verify.OneOf(endpoint, observed, allowed, desc)
	case c.Positive:
		v = verify.PositiveInt(endpoint, observed, desc)
	case c.Present != nil:
		v = verify.Present(endpoint, observed, *c.Present, desc)
	}

	if missing := exp.Missing(); len(missing) > 0 {
		v.Status = verify.StatusFail
		v.Kind = verify.KindCapture
		v.Detail = "unresolved variable(s): " + strings.Join(missing, ", ")
	}
	return v
}

// describeCheck renders a check as "field == value" and similar, with
// variable references left unexpanded.
func describeCheck(c Check) string {
	field := c.Field
	if field == "" || field == "." {
		field = "body"
	}
	switch {
	case c.Equals != nil:
		return fmt.Sprintf("%s == %v", field, c.Equals)
	case len(c.OneOf) > 0:
		parts := make([]string, len(c.OneOf))
		for i, o := range c.OneOf {
			parts[i] = fmt.Sprint(o)
		}
		return fmt.Sprintf("%s in [%s]", field, strings.Join(parts, ", "))
	case c.Positive:
		return field + " is a positive integer"
	case c.Present != nil && *c.Present:
		return field + " is present"
	default:
		return field + " is absent"
	}
}
