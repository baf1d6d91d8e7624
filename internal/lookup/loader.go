// Package lookup loads small reference tables such as the taxi zone lookup.
// The whole file is read at once and the destination is replaced wholesale.
package lookup

import (
	"context"
	"fmt"
	"log"

	"taxietl/internal/ddl"
	"taxietl/internal/parser"
	"taxietl/internal/schema"
	"taxietl/internal/storage"
	"taxietl/internal/transformer"
)

// Streamer opens a CSV URL as batches. *source.Opener satisfies it.
type Streamer interface {
	Stream(ctx context.Context, rawURL string, batchSize int) (parser.BatchReader, error)
}

// readBatchSize bounds each read; the loader still collects every batch
// before writing.
const readBatchSize = 10_000

// Loader replaces a lookup table from a reference CSV.
type Loader struct {
	src  Streamer
	repo storage.Repository
	norm *transformer.Normalizer
}

// NewLoader returns a Loader that normalizes with reg.
func NewLoader(src Streamer, repo storage.Repository, reg schema.Registry) *Loader {
	return &Loader{src: src, repo: repo, norm: transformer.NewNormalizer(reg)}
}

// Load fetches url in full, normalizes it, and replaces table with its rows
// in one transaction where the backend allows. It returns the rows written.
// Source failures carry datasource.ErrSourceUnavailable; write failures carry
// storage.ErrSinkUnavailable.
func (l *Loader) Load(ctx context.Context, url, table string) (int64, error) {
	r, err := l.src.Stream(ctx, url, readBatchSize)
	if err != nil {
		return 0, fmt.Errorf("lookup %s: %w", table, err)
	}
	defer r.Close()

	raw, err := parser.ReadAll(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("lookup %s: read: %w", table, err)
	}
	defer raw.Release()

	b, stats := l.norm.Apply(raw)
	defer b.Release()
	if stats.Nulled > 0 {
		log.Printf("loader: %s: %d cells could not be coerced and were set to NULL, first: %v", table, stats.Nulled, stats.First)
	}

	def := ddl.FromBatch(table, b, l.norm.Registry())
	n, err := l.repo.ReplaceWithRows(ctx, def, b.Values())
	if err != nil {
		return 0, fmt.Errorf("%w: replace lookup %s: %w", storage.ErrSinkUnavailable, table, err)
	}
	return n, nil
}
