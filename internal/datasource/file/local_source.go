// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"taxietl/internal/datasource"
)

// Local is a data source that opens a file from the local disk.
type Local struct{ path string }

// NewLocal returns a Local bound to path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the filesystem path.
func (l *Local) Path() string { return l.path }

// Open opens the file for reading. A pre-canceled context returns the context
// error without touching the filesystem. Filesystem errors are wrapped with
// datasource.ErrSourceUnavailable and still match os.ErrNotExist.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", datasource.ErrSourceUnavailable, l.path, err)
	}
	return f, nil
}

// IsLocal reports whether raw names a local file: a file:// URL or a string
// without an http(s) scheme.
func IsLocal(raw string) bool {
	lower := strings.ToLower(raw)
	return !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://")
}

// PathFromURL strips a file:// scheme. Other inputs are returned unchanged.
func PathFromURL(raw string) string {
	if !strings.HasPrefix(strings.ToLower(raw), "file://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return raw[len("file://"):]
	}
	return u.Path
}
