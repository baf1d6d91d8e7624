package httpds

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"taxietl/internal/datasource"
)

// FetchToTemp downloads url into a new file under dir (os.TempDir when
// empty) and returns its path and size. The file is removed again on any
// failure; on success the caller owns it and must remove it.
func (c *Client) FetchToTemp(ctx context.Context, url, dir string) (string, int64, error) {
	start := time.Now()
	resp, err := c.Get(ctx, url, nil)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	f, err := os.CreateTemp(dir, TempPattern(url))
	if err != nil {
		return "", 0, fmt.Errorf("httpds: create temp file: %w", err)
	}
	name := f.Name()

	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(name)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", 0, ctxErr
		}
		if copyErr != nil {
			return "", 0, fmt.Errorf("%w: download %s: %w", datasource.ErrSourceUnavailable, url, copyErr)
		}
		return "", 0, fmt.Errorf("httpds: close temp file: %w", closeErr)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		_ = os.Remove(name)
		return "", 0, fmt.Errorf("%w: download %s: got %d of %d bytes", datasource.ErrSourceUnavailable, url, n, resp.ContentLength)
	}

	log.Printf("source: downloaded %s (%d bytes) in %s", url, n, time.Since(start).Truncate(time.Millisecond))
	return name, n, nil
}
