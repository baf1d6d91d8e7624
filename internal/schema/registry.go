// Package schema holds the static column typing used by the ingestion
// pipeline: which source columns are integers, floats or text, and which
// columns must be reinterpreted as timestamps.
//
// A Registry is immutable once built. Callers receive copies of its internal
// slices and maps, so a registry can be shared freely between the normalizer,
// the DDL inference and tests.
package schema

import (
	"fmt"
	"sort"
)

// SemanticType is the logical interpretation of a column, independent of how
// a given database stores it.
type SemanticType string

const (
	// NullableInteger is a 64-bit integer column that admits NULL.
	NullableInteger SemanticType = "nullable_integer"
	// Float64 is a double precision column that admits NULL.
	Float64 SemanticType = "float64"
	// Text is a string column; values are passed through as-is.
	Text SemanticType = "text"
	// Timestamp is a date-time column. Only columns listed in the registry's
	// timestamp set carry this type.
	Timestamp SemanticType = "timestamp"
)

// Valid reports whether t is one of the known semantic types.
func (t SemanticType) Valid() bool {
	switch t {
	case NullableInteger, Float64, Text, Timestamp:
		return true
	}
	return false
}

// Registry maps source column names to semantic types.
type Registry struct {
	name       string
	types      map[string]SemanticType
	timestamps []string
}

// NewRegistry builds a Registry from a type map and an ordered list of
// timestamp columns. Timestamp columns win over any entry in types. The
// inputs are copied.
func NewRegistry(name string, types map[string]SemanticType, timestamps []string) (Registry, error) {
	r := Registry{
		name:       name,
		types:      make(map[string]SemanticType, len(types)+len(timestamps)),
		timestamps: make([]string, 0, len(timestamps)),
	}
	for col, t := range types {
		if !t.Valid() {
			return Registry{}, fmt.Errorf("schema: column %q has unknown type %q", col, t)
		}
		r.types[col] = t
	}
	seen := make(map[string]struct{}, len(timestamps))
	for _, col := range timestamps {
		if _, dup := seen[col]; dup {
			continue
		}
		seen[col] = struct{}{}
		r.timestamps = append(r.timestamps, col)
		r.types[col] = Timestamp
	}
	return r, nil
}

// MustRegistry is NewRegistry for package-level constants; it panics on an
// invalid type.
func MustRegistry(name string, types map[string]SemanticType, timestamps []string) Registry {
	r, err := NewRegistry(name, types, timestamps)
	if err != nil {
		panic(err)
	}
	return r
}

// Name returns the registry's identifier (e.g. "yellow").
func (r Registry) Name() string { return r.name }

// TypeOf returns the semantic type registered for col. The second result is
// false for unregistered columns, which pass through the pipeline untyped.
func (r Registry) TypeOf(col string) (SemanticType, bool) {
	t, ok := r.types[col]
	return t, ok
}

// IsTimestamp reports whether col is in the timestamp column set.
func (r Registry) IsTimestamp(col string) bool {
	return r.types[col] == Timestamp
}

// TimestampColumns returns the ordered timestamp column set.
func (r Registry) TimestampColumns() []string {
	out := make([]string, len(r.timestamps))
	copy(out, r.timestamps)
	return out
}

// Columns returns every registered column name, sorted.
func (r Registry) Columns() []string {
	out := make([]string, 0, len(r.types))
	for c := range r.types {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered columns.
func (r Registry) Len() int { return len(r.types) }
