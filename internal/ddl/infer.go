package ddl

import (
	"time"

	"taxietl/internal/schema"
	"taxietl/internal/transformer"
)

// KindOf maps a semantic type to a storage kind.
func KindOf(t schema.SemanticType) Kind {
	switch t {
	case schema.NullableInteger:
		return KindBigInt
	case schema.Float64:
		return KindDouble
	case schema.Timestamp:
		return KindTimestamp
	default:
		return KindText
	}
}

// FromBatch derives a table definition from a normalized batch. Registered
// columns take their kind from reg; other columns are inferred from their
// non-nil values (integers widen to double, mixed types fall back to text,
// all-nil columns become text). Every column is nullable.
func FromBatch(fqn string, b *transformer.Batch, reg schema.Registry) TableDef {
	def := TableDef{FQN: fqn, Columns: make([]ColumnDef, len(b.Columns))}
	for i, name := range b.Columns {
		var kind Kind
		if t, ok := reg.TypeOf(name); ok {
			kind = KindOf(t)
		} else {
			kind = inferKind(b, i)
		}
		def.Columns[i] = ColumnDef{Name: name, Kind: kind, Nullable: true}
	}
	return def
}

func inferKind(b *transformer.Batch, col int) Kind {
	var kind Kind
	for _, r := range b.Rows {
		k := valueKind(r.V[col])
		if k == "" {
			continue
		}
		switch {
		case kind == "":
			kind = k
		case kind == k:
		case (kind == KindBigInt && k == KindDouble) || (kind == KindDouble && k == KindBigInt):
			kind = KindDouble
		default:
			return KindText
		}
	}
	if kind == "" {
		return KindText
	}
	return kind
}

func valueKind(v any) Kind {
	switch v.(type) {
	case nil:
		return ""
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return KindBigInt
	case float32, float64:
		return KindDouble
	case bool:
		return KindBoolean
	case time.Time:
		return KindTimestamp
	default:
		return KindText
	}
}
