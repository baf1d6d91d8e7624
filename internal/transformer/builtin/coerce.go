// Package builtin contains the per-cell coercion functions applied by the
// normalizer. Each function maps a raw cell onto its semantic type and never
// fails loudly: a cell that cannot be coerced becomes nil and the caller is
// told via the ok result.
package builtin

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"taxietl/internal/schema"
)

// ErrCoercion reports that a cell could not be converted to its declared
// type. The normalizer absorbs it by writing NULL.
var ErrCoercion = errors.New("coercion failure")

// CoerceFunc converts v to a semantic type. It returns (nil, true) for
// missing input, (value, true) on success and (nil, false) when v cannot be
// represented.
type CoerceFunc func(v any) (any, bool)

// TimestampLayouts are tried in order when parsing timestamp strings.
var TimestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04",
	"01/02/2006 03:04:05 PM",
	"01/02/2006 15:04",
	"2006-01-02",
}

var coercers = map[schema.SemanticType]CoerceFunc{
	schema.NullableInteger: ToNullableInt,
	schema.Float64:         ToFloat64,
	schema.Text:            ToText,
	schema.Timestamp:       ToTimestamp,
}

// CoercerFor returns the coercion function for t. Unknown types pass values
// through unchanged.
func CoercerFor(t schema.SemanticType) CoerceFunc {
	if fn, ok := coercers[t]; ok {
		return fn
	}
	return passthrough
}

// Failure describes a cell of col that could not be converted to t.
func Failure(col string, line int, t schema.SemanticType, v any) error {
	return fmt.Errorf("%w: line %d column %s: %T %q as %s", ErrCoercion, line, col, v, fmt.Sprint(v), t)
}

func passthrough(v any) (any, bool) { return v, true }

// ToNullableInt converts v to int64. Integral floats and strings such as
// "2.0" are accepted; fractional values are not.
func ToNullableInt(v any) (any, bool) {
	switch n := v.(type) {
	case nil:
		return nil, true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return nil, false
		}
		return int64(n), true
	case float64:
		return integralFloat(n)
	case float32:
		return integralFloat(float64(n))
	case bool:
		if n {
			return int64(1), true
		}
		return int64(0), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil, true
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		return integralFloat(f)
	default:
		return nil, false
	}
}

func integralFloat(f float64) (any, bool) {
	if math.IsNaN(f) {
		return nil, true
	}
	if math.IsInf(f, 0) || f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return nil, false
	}
	return int64(f), true
}

// ToFloat64 converts v to float64. NaN is treated as missing.
func ToFloat64(v any) (any, bool) {
	var f float64
	switch n := v.(type) {
	case nil:
		return nil, true
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int64:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil, true
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		f = p
	default:
		return nil, false
	}
	if math.IsNaN(f) {
		return nil, true
	}
	return f, true
}

// ToText leaves strings as-is and renders other scalars with fmt.
func ToText(v any) (any, bool) {
	switch s := v.(type) {
	case nil:
		return nil, true
	case string:
		return s, true
	case []byte:
		return string(s), true
	case time.Time:
		return s.Format("2006-01-02 15:04:05"), true
	default:
		return fmt.Sprint(s), true
	}
}

// ToTimestamp parses v as a date-time using TimestampLayouts. Naive values
// are interpreted as UTC.
func ToTimestamp(v any) (any, bool) {
	switch s := v.(type) {
	case nil:
		return nil, true
	case time.Time:
		return s, true
	case string:
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, true
		}
		for _, layout := range TimestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return nil, false
	default:
		return nil, false
	}
}

// HasEdgeSpace reports whether s starts or ends with an ASCII space or tab.
// It lets readers skip strings.TrimSpace on the common clean path.
func HasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	first, last := s[0], s[len(s)-1]
	return first == ' ' || first == '\t' || last == ' ' || last == '\t' || last == '\r'
}
