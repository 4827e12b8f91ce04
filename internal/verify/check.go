package verify

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

type absent struct{}

// Absent stands in for a field that is missing from a response.
var Absent any = absent{}

// Normalize renders a JSON-ish value as a comparable string. Integers look
// the same whether they arrived as json.Number, float64, int or text, and
// strings are trimmed and NFC-normalized.
func Normalize(v any) string {
	switch val := v.(type) {
	case absent:
		return "<absent>"
	case nil:
		return "null"
	case string:
		return norm.NFC.String(strings.TrimSpace(val))
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := val.Float64(); err == nil {
			return formatFloat(f)
		}
		return val.String()
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Equal compares observed and expected after normalization.
func Equal(endpoint string, observed, expected any, description string) Verdict {
	v := Verdict{
		Check:    description,
		Endpoint: endpoint,
		Expected: Normalize(expected),
		Observed: Normalize(observed),
		Status:   StatusPass,
	}
	if v.Expected != v.Observed {
		v.Status = StatusFail
		v.Kind = KindMismatch
	}
	return v
}

// OneOf checks that observed normalizes to one of allowed. Values outside
// an enum are a failed check, never a panic.
func OneOf(endpoint string, observed any, allowed []any, description string) Verdict {
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = Normalize(a)
	}
	v := Verdict{
		Check:    description,
		Endpoint: endpoint,
		Expected: "one of [" + strings.Join(names, ", ") + "]",
		Observed: Normalize(observed),
		Status:   StatusFail,
		Kind:     KindMismatch,
	}
	for _, n := range names {
		if n == v.Observed {
			v.Status = StatusPass
			v.Kind = ""
			break
		}
	}
	return v
}

// PositiveInt checks that observed is an integer greater than zero.
func PositiveInt(endpoint string, observed any, description string) Verdict {
	v := Verdict{
		Check:    description,
		Endpoint: endpoint,
		Expected: "positive integer",
		Observed: Normalize(observed),
		Status:   StatusFail,
		Kind:     KindMismatch,
	}
	if _, isString := observed.(string); isString {
		return v
	}
	if n, err := strconv.ParseInt(v.Observed, 10, 64); err == nil && n > 0 {
		v.Status = StatusPass
		v.Kind = ""
	}
	return v
}

// Present checks whether a field exists (want=true) or is absent or null
// (want=false).
func Present(endpoint string, observed any, want bool, description string) Verdict {
	_, missing := observed.(absent)
	isPresent := !missing && observed != nil

	expected := "present"
	if !want {
		expected = "absent or null"
	}
	v := Verdict{
		Check:    description,
		Endpoint: endpoint,
		Expected: expected,
		Observed: Normalize(observed),
		Status:   StatusPass,
	}
	if isPresent != want {
		v.Status = StatusFail
		v.Kind = KindMismatch
	}
	return v
}
