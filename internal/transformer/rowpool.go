// Package transformer holds the in-memory row batch that flows from a source
// reader to a sink, and the normalizer that applies a schema.Registry to it.
//
// This file defines a pooled Row type used across reader → normalizer →
// writer to keep heap churn flat while batches of ~100k rows are recycled.
package transformer

import "sync"

// Row is a pooled container holding a positional row for bulk inserts.
//
// Contract:
//   - The owner writes into r.V[0:colCount] (no re-slice growth).
//   - Once the batch holding the row has been written, the owner calls
//     Free (usually via Batch.Release) to return it to the pool.
//   - Do not retain references to r or r.V after Free.
//
// V is []any so it can be handed to pgx CopyFromRows directly.
type Row struct {
	V    []any
	Line int // 1-based source line or record number, 0 when unknown
}

var rowPool sync.Pool

// GetRow returns a pooled Row with length colCount. All elements are nil.
func GetRow(colCount int) *Row {
	if v := rowPool.Get(); v != nil {
		r := v.(*Row)
		if cap(r.V) < colCount {
			r.V = make([]any, colCount)
		}
		r.V = r.V[:colCount]
		for i := range r.V {
			r.V[i] = nil
		}
		r.Line = 0
		return r
	}
	return &Row{V: make([]any, colCount)}
}

// Free returns the Row to the pool. The caller must not use r afterwards.
func (r *Row) Free() {
	rowPool.Put(r)
}
