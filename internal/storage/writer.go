package storage

import (
	"context"
	"fmt"
	"log"

	"taxietl/internal/ddl"
	"taxietl/internal/schema"
	"taxietl/internal/transformer"
	"taxietl/internal/transformer/builtin"
)

// Writer materializes normalized batches into one destination table with a
// two-phase contract: EnsureSchema once, then AppendRows for every batch.
// Deciding which batch is the first one is left to the caller.
type Writer struct {
	repo     Repository
	table    string
	registry schema.Registry

	def     ddl.TableDef
	conform []builtin.CoerceFunc
}

// NewWriter returns a Writer for table. reg supplies column kinds; columns it
// does not know are inferred from the sample batch.
func NewWriter(repo Repository, table string, reg schema.Registry) *Writer {
	return &Writer{repo: repo, table: table, registry: reg}
}

// EnsureSchema drops the destination table and recreates it empty with the
// column structure of sample. Any prior contents are lost.
func (w *Writer) EnsureSchema(ctx context.Context, sample *transformer.Batch) (ddl.TableDef, error) {
	def := ddl.FromBatch(w.table, sample, w.registry)
	if err := w.repo.ReplaceTable(ctx, def); err != nil {
		return ddl.TableDef{}, fmt.Errorf("%w: replace table %s: %w", ErrSinkUnavailable, w.table, err)
	}
	w.adopt(def)
	log.Printf("loader: created %s with %d columns", w.table, len(def.Columns))
	return def, nil
}

// AppendRows writes b as a single insert and returns the rows written. Values
// are conformed in place to the kinds chosen at schema time; a value that
// does not fit is passed through and the backend decides.
func (w *Writer) AppendRows(ctx context.Context, b *transformer.Batch) (int64, error) {
	if b.Len() == 0 {
		return 0, nil
	}
	if w.conform == nil {
		w.adopt(ddl.FromBatch(w.table, b, w.registry))
	}
	if len(b.Columns) != len(w.conform) {
		return 0, fmt.Errorf("%w: batch has %d columns, table %s has %d",
			ErrSinkUnavailable, len(b.Columns), w.table, len(w.conform))
	}
	for _, r := range b.Rows {
		for i, v := range r.V {
			if v == nil || w.conform[i] == nil {
				continue
			}
			if cv, ok := w.conform[i](v); ok {
				r.V[i] = cv
			}
		}
	}

	n, err := w.repo.CopyFrom(ctx, w.table, b.Columns, b.Values())
	if err != nil {
		return n, fmt.Errorf("%w: append to %s: %w", ErrSinkUnavailable, w.table, err)
	}
	return n, nil
}

func (w *Writer) adopt(def ddl.TableDef) {
	w.def = def
	kinds := def.Kinds()
	w.conform = make([]builtin.CoerceFunc, len(kinds))
	for i, k := range kinds {
		w.conform[i] = conformerFor(k)
	}
}

func conformerFor(k ddl.Kind) builtin.CoerceFunc {
	switch k {
	case ddl.KindText:
		return builtin.ToText
	case ddl.KindDouble:
		return builtin.ToFloat64
	case ddl.KindBigInt:
		return builtin.ToNullableInt
	default:
		return nil
	}
}
