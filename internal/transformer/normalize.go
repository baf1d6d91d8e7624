package transformer

import (
	"taxietl/internal/schema"
	"taxietl/internal/transformer/builtin"
)

// NormalizeStats counts what happened to the cells of one batch.
type NormalizeStats struct {
	Coerced int // registered cells that went through a coercion function
	Nulled  int // cells that failed coercion and were written as NULL

	// First describes the first failed cell; it wraps builtin.ErrCoercion.
	First error
}

// Normalizer applies a schema.Registry to batches. It holds no mutable state
// and is safe to reuse across batches.
type Normalizer struct {
	registry schema.Registry
}

// NewNormalizer returns a Normalizer for reg.
func NewNormalizer(reg schema.Registry) *Normalizer {
	return &Normalizer{registry: reg}
}

// Registry returns the registry the normalizer was built with.
func (n *Normalizer) Registry() schema.Registry { return n.registry }

// Apply returns a typed copy of in. Row count, row order and the column list
// are unchanged; timestamp columns hold time.Time, integer columns int64,
// float columns float64 and text columns string. Cells that fail coercion
// become nil. Unregistered columns are copied as-is. The input batch is not
// modified and remains owned by the caller.
func (n *Normalizer) Apply(in *Batch) (*Batch, NormalizeStats) {
	var stats NormalizeStats

	plan := n.plan(in.Columns)
	out := NewBatch(in.Columns, in.Len())
	for _, src := range in.Rows {
		dst := out.NewRow()
		dst.Line = src.Line
		for i, v := range src.V {
			step := plan[i]
			if step.fn == nil {
				dst.V[i] = v
				continue
			}
			cv, ok := step.fn(v)
			stats.Coerced++
			if !ok {
				if stats.First == nil {
					stats.First = builtin.Failure(in.Columns[i], src.Line, step.typ, v)
				}
				stats.Nulled++
				cv = nil
			}
			dst.V[i] = cv
		}
	}
	return out, stats
}

type coercion struct {
	typ schema.SemanticType
	fn  builtin.CoerceFunc
}

// plan resolves one coercion per column; a nil fn means passthrough.
func (n *Normalizer) plan(columns []string) []coercion {
	plan := make([]coercion, len(columns))
	for i, c := range columns {
		if t, ok := n.registry.TypeOf(c); ok {
			plan[i] = coercion{typ: t, fn: builtin.CoercerFor(t)}
		}
	}
	return plan
}
