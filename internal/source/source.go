// Package source turns a configured URL into a parser.BatchReader. CSV input
// is streamed straight from the data source; Parquet input has to be fetched
// to local storage first and is then opened from disk.
package source

import (
	"context"
	"fmt"
	"log"
	"os"

	"taxietl/internal/config"
	"taxietl/internal/datasource"
	"taxietl/internal/datasource/file"
	"taxietl/internal/datasource/httpds"
	"taxietl/internal/parser"
	csvparser "taxietl/internal/parser/csv"
	parquetparser "taxietl/internal/parser/parquet"
)

// Opener builds batch readers for one run.
type Opener struct {
	Client *httpds.Client
	// TempDir receives downloaded files; empty means os.TempDir.
	TempDir string
	// Parser carries CSV reader options.
	Parser config.Options
}

// NewOpener returns an Opener using client for remote URLs.
func NewOpener(client *httpds.Client, parserOpts config.Options) *Opener {
	return &Opener{Client: client, Parser: parserOpts}
}

// NeedsDownload reports whether kind must be fetched before it can be read.
func NeedsDownload(kind string) bool { return kind == config.SourceParquet }

// Resolve returns the data source behind rawURL.
func (o *Opener) Resolve(rawURL string) datasource.Source {
	if file.IsLocal(rawURL) {
		return file.NewLocal(file.PathFromURL(rawURL))
	}
	return httpds.Source{Client: o.Client, URL: rawURL}
}

// Stream opens rawURL as CSV and reads its header.
func (o *Opener) Stream(ctx context.Context, rawURL string, batchSize int) (parser.BatchReader, error) {
	rc, err := o.Resolve(rawURL).Open(ctx)
	if err != nil {
		return nil, err
	}
	r, err := csvparser.NewReader(rc, csvparser.OptionsFrom(o.Parser, batchSize))
	if err != nil {
		return nil, fmt.Errorf("stream %s: %w", rawURL, err)
	}
	return r, nil
}

// Fetched is a file available on local disk for random access.
type Fetched struct {
	Path string
	Size int64
	temp bool
}

// Release removes the file when it was downloaded by Fetch. Local inputs are
// left untouched. It is safe to call more than once.
func (f *Fetched) Release() {
	if f == nil || !f.temp {
		return
	}
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		log.Printf("source: remove temp file %s: %v", f.Path, err)
	}
	f.temp = false
}

// Fetch makes rawURL available locally. Remote files are downloaded to a temp
// file the caller must Release; local files are only checked for existence.
func (o *Opener) Fetch(ctx context.Context, rawURL string) (*Fetched, error) {
	if file.IsLocal(rawURL) {
		p := file.PathFromURL(rawURL)
		st, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", datasource.ErrSourceUnavailable, p, err)
		}
		return &Fetched{Path: p, Size: st.Size()}, nil
	}
	path, n, err := o.Client.FetchToTemp(ctx, rawURL, o.TempDir)
	if err != nil {
		return nil, err
	}
	return &Fetched{Path: path, Size: n, temp: true}, nil
}

// OpenFetched opens a fetched file as Parquet.
func OpenFetched(f *Fetched, batchSize int) (parser.BatchReader, error) {
	r, err := parquetparser.Open(f.Path, batchSize)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Path, err)
	}
	return r, nil
}
