// Package csv reads (optionally gzip-compressed) CSV into bounded batches of
// pooled rows. Cells are kept as strings; empty cells become nil. Typing is
// left to the normalizer.
package csv

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"taxietl/internal/config"
	"taxietl/internal/transformer"
	"taxietl/internal/transformer/builtin"
)

// Options tunes the reader.
type Options struct {
	// BatchSize is the maximum number of rows per batch. Must be >= 1.
	BatchSize int
	// Comma is the field delimiter; zero means ','.
	Comma rune
	// LazyQuotes is passed to encoding/csv.
	LazyQuotes bool
	// TrimSpace trims leading and trailing blanks from every cell.
	TrimSpace bool
	// HeaderMap renames source header names before they are exposed.
	HeaderMap map[string]string
}

// OptionsFrom reads comma, lazy_quotes, trim_space and header_map from a
// parser options bag.
func OptionsFrom(o config.Options, batchSize int) Options {
	return Options{
		BatchSize:  batchSize,
		Comma:      o.Rune("comma", ','),
		LazyQuotes: o.Bool("lazy_quotes", false),
		TrimSpace:  o.Bool("trim_space", true),
		HeaderMap:  o.StringMap("header_map"),
	}
}

// logEveryN controls the reader heartbeat.
const logEveryN = 1_000_000

var gzipMagic = []byte{0x1f, 0x8b}

// Reader is a parser.BatchReader over CSV text.
type Reader struct {
	opt     Options
	src     io.Reader
	closers []io.Closer
	cr      *csv.Reader
	columns []string
	rows    int
	done    bool
}

// NewReader wraps r, transparently inflating gzip input (detected by magic
// bytes) and dropping a leading UTF-8 BOM, then reads the header line. If r
// is an io.Closer, Close closes it.
func NewReader(r io.Reader, opt Options) (*Reader, error) {
	if opt.BatchSize < 1 {
		return nil, fmt.Errorf("csv: batch size must be >= 1, got %d", opt.BatchSize)
	}
	if opt.Comma == 0 {
		opt.Comma = ','
	}

	rd := &Reader{opt: opt}
	if c, ok := r.(io.Closer); ok {
		rd.closers = append(rd.closers, c)
	}

	br := bufio.NewReaderSize(r, 1<<16)
	var in io.Reader = br
	if magic, _ := br.Peek(len(gzipMagic)); len(magic) == len(gzipMagic) && magic[0] == gzipMagic[0] && magic[1] == gzipMagic[1] {
		zr, err := gzip.NewReader(br)
		if err != nil {
			rd.Close()
			return nil, fmt.Errorf("csv: open gzip: %w", err)
		}
		rd.closers = append([]io.Closer{zr}, rd.closers...)
		in = zr
	}
	rd.src = transform.NewReader(in, unicode.BOMOverride(transform.Nop))

	cr := csv.NewReader(rd.src)
	cr.Comma = opt.Comma
	cr.LazyQuotes = opt.LazyQuotes
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1
	rd.cr = cr

	hdr, err := cr.Read()
	if err != nil {
		rd.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv: empty input, no header")
		}
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	rd.columns = make([]string, len(hdr))
	for i, h := range hdr {
		if builtin.HasEdgeSpace(h) {
			h = strings.TrimSpace(h)
		}
		if mapped, ok := opt.HeaderMap[h]; ok {
			h = mapped
		}
		rd.columns[i] = h
	}
	return rd, nil
}

// Columns returns the header names.
func (r *Reader) Columns() []string { return r.columns }

// Next reads up to BatchSize records. It returns io.EOF when no rows remain.
func (r *Reader) Next(ctx context.Context) (*transformer.Batch, error) {
	if r.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := transformer.NewBatch(r.columns, r.opt.BatchSize)
	for b.Len() < r.opt.BatchSize {
		rec, err := r.cr.Read()
		if errors.Is(err, io.EOF) {
			r.done = true
			break
		}
		if err != nil {
			b.Release()
			return nil, fmt.Errorf("csv: record %d: %w", r.rows+1, err)
		}

		if len(rec) > len(r.columns) {
			line, _ := r.cr.FieldPos(0)
			b.Release()
			return nil, fmt.Errorf("csv: line %d: expected %d fields, saw %d", line, len(r.columns), len(rec))
		}

		row := b.NewRow()
		row.Line, _ = r.cr.FieldPos(0)
		for i := range row.V {
			if i >= len(rec) {
				break
			}
			v := rec[i]
			if r.opt.TrimSpace && builtin.HasEdgeSpace(v) {
				v = strings.TrimSpace(v)
			}
			if v != "" {
				row.V[i] = v
			}
		}
		r.rows++
		if r.rows%logEveryN == 0 {
			log.Printf("reader: rows=%d", r.rows)
		}
	}

	if b.Len() == 0 {
		return nil, io.EOF
	}
	return b, nil
}

// Rows returns the number of data records read so far.
func (r *Reader) Rows() int { return r.rows }

// Close releases the gzip stream and the underlying reader.
func (r *Reader) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
