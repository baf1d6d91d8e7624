// Package parser defines the batch source abstraction shared by the CSV and
// Parquet readers.
package parser

import (
	"context"
	"errors"
	"io"

	"taxietl/internal/transformer"
)

// BatchReader yields bounded batches of raw rows in source order. Next returns
// io.EOF once the source is exhausted; a non-EOF error is fatal for the run.
// Every batch holds at least one and at most the configured number of rows.
type BatchReader interface {
	// Columns returns the source column names in source order.
	Columns() []string
	Next(ctx context.Context) (*transformer.Batch, error)
	Close() error
}

// ReadAll drains r into a single batch. It is meant for small files such as
// lookup tables.
func ReadAll(ctx context.Context, r BatchReader) (*transformer.Batch, error) {
	all := transformer.NewBatch(r.Columns(), 0)
	for {
		b, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			return all, nil
		}
		if err != nil {
			all.Release()
			return nil, err
		}
		all.Append(b)
	}
}
