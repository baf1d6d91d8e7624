// Package parquet reads flat Parquet files into bounded batches. Parquet needs
// random access to its footer, so callers fetch remote files to local storage
// first and hand the reader an io.ReaderAt.
package parquet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/deprecated"

	"taxietl/internal/transformer"
)

// readChunk caps how many rows are decoded per ReadRows call.
const readChunk = 1024

// julianUnixEpoch is the Julian day number of 1970-01-01, used by INT96.
const julianUnixEpoch = 2440588

type convertFunc func(parquet.Value) any

// Reader is a parser.BatchReader over a Parquet file.
type Reader struct {
	file      *parquet.File
	closer    io.Closer
	batchSize int
	columns   []string
	convert   []convertFunc

	groups []parquet.RowGroup
	next   int
	rows   parquet.Rows
	buf    []parquet.Row
	read   int
}

// Open opens the Parquet file at path.
func Open(path string, batchSize int) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parquet: open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("parquet: stat %s: %w", path, err)
	}
	r, err := NewReader(f, st.Size(), batchSize)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader reads the footer of a size-byte Parquet file from ra. Nested
// (group or repeated) columns are rejected.
func NewReader(ra io.ReaderAt, size int64, batchSize int) (*Reader, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("parquet: batch size must be >= 1, got %d", batchSize)
	}
	pf, err := parquet.OpenFile(ra, size)
	if err != nil {
		return nil, fmt.Errorf("parquet: open file: %w", err)
	}

	fields := pf.Schema().Fields()
	r := &Reader{
		file:      pf,
		batchSize: batchSize,
		columns:   make([]string, len(fields)),
		convert:   make([]convertFunc, len(fields)),
		groups:    pf.RowGroups(),
		buf:       make([]parquet.Row, min(batchSize, readChunk)),
	}
	for i, f := range fields {
		if !f.Leaf() || f.Repeated() {
			return nil, fmt.Errorf("parquet: column %q is nested; only flat schemas are supported", f.Name())
		}
		r.columns[i] = f.Name()
		r.convert[i] = converterFor(f.Type())
	}
	return r, nil
}

// Columns returns the leaf column names in schema order.
func (r *Reader) Columns() []string { return r.columns }

// NumRows returns the row count recorded in the footer.
func (r *Reader) NumRows() int64 { return r.file.NumRows() }

// Next returns up to batchSize rows, spanning row groups when needed.
func (r *Reader) Next(ctx context.Context) (*transformer.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := transformer.NewBatch(r.columns, min(r.batchSize, int(r.file.NumRows())))
	for b.Len() < r.batchSize {
		if r.rows == nil {
			if r.next >= len(r.groups) {
				break
			}
			r.rows = r.groups[r.next].Rows()
			r.next++
		}

		want := min(len(r.buf), r.batchSize-b.Len())
		n, err := r.rows.ReadRows(r.buf[:want])
		for _, pr := range r.buf[:n] {
			r.read++
			row := b.NewRow()
			row.Line = r.read
			for _, v := range pr {
				c := v.Column()
				if c < 0 || c >= len(row.V) || v.IsNull() {
					continue
				}
				row.V[c] = r.convert[c](v)
			}
		}
		if errors.Is(err, io.EOF) {
			r.rows.Close()
			r.rows = nil
			continue
		}
		if err != nil {
			b.Release()
			return nil, fmt.Errorf("parquet: row group %d: %w", r.next-1, err)
		}
	}

	if b.Len() == 0 {
		return nil, io.EOF
	}
	return b, nil
}

// Close releases the current row cursor and the file opened by Open.
func (r *Reader) Close() error {
	var errs []error
	if r.rows != nil {
		errs = append(errs, r.rows.Close())
		r.rows = nil
	}
	if r.closer != nil {
		errs = append(errs, r.closer.Close())
		r.closer = nil
	}
	return errors.Join(errs...)
}

// converterFor maps a physical/logical column type onto a Go value.
func converterFor(t parquet.Type) convertFunc {
	lt := t.LogicalType()
	switch t.Kind() {
	case parquet.Boolean:
		return func(v parquet.Value) any { return v.Boolean() }
	case parquet.Int32:
		if lt != nil && lt.Date != nil {
			return func(v parquet.Value) any {
				return time.Unix(int64(v.Int32())*86400, 0).UTC()
			}
		}
		return func(v parquet.Value) any { return int64(v.Int32()) }
	case parquet.Int64:
		if lt != nil && lt.Timestamp != nil {
			unit := lt.Timestamp.Unit
			switch {
			case unit.Millis != nil:
				return func(v parquet.Value) any { return time.UnixMilli(v.Int64()).UTC() }
			case unit.Micros != nil:
				return func(v parquet.Value) any { return time.UnixMicro(v.Int64()).UTC() }
			default:
				return func(v parquet.Value) any { return time.Unix(0, v.Int64()).UTC() }
			}
		}
		return func(v parquet.Value) any { return v.Int64() }
	case parquet.Int96:
		return func(v parquet.Value) any { return int96Time(v.Int96()) }
	case parquet.Float:
		return func(v parquet.Value) any { return float64(v.Float()) }
	case parquet.Double:
		return func(v parquet.Value) any { return v.Double() }
	default:
		return func(v parquet.Value) any { return string(v.ByteArray()) }
	}
}

// int96Time decodes the legacy INT96 timestamp: nanoseconds within the day in
// the low 8 bytes, Julian day number in the high 4.
func int96Time(i deprecated.Int96) time.Time {
	nanos := int64(uint64(i[1])<<32 | uint64(i[0]))
	days := int64(i[2]) - julianUnixEpoch
	return time.Unix(days*86400, nanos).UTC()
}
