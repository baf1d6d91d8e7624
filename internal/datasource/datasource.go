// Package datasource defines where raw bytes come from. Implementations live
// in the file (local disk) and httpds (HTTP) subpackages.
package datasource

import (
	"context"
	"errors"
	"io"
)

// ErrSourceUnavailable reports that a remote or local file could not be
// fetched: a non-success HTTP status, a transport failure or a missing file.
// It is fatal for the run.
var ErrSourceUnavailable = errors.New("source unavailable")

// Source opens a stream of bytes.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
