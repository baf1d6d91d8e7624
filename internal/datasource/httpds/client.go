// Package httpds implements the HTTP data source used to stream and download
// the public trip files. Failures are never retried: a non-2xx status or a
// transport error is reported as datasource.ErrSourceUnavailable.
package httpds

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"taxietl/internal/datasource"
)

// Config configures the client. Zero values get defaults:
//   - ResponseHeaderTimeout: 60s
//   - UserAgent:             "taxietl"
type Config struct {
	// ResponseHeaderTimeout bounds the wait for response headers. The body
	// itself is not time-limited since trip files are large.
	ResponseHeaderTimeout time.Duration

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	UserAgent string

	// BaseHeaders are added to every request.
	BaseHeaders http.Header

	// Transport replaces the default *http.Transport when set.
	Transport http.RoundTripper
}

// Client wraps an http.Client.
type Client struct {
	httpClient  *http.Client
	baseHeaders http.Header
}

// NewClient constructs a Client from cfg.
func NewClient(cfg Config) *Client {
	if cfg.ResponseHeaderTimeout <= 0 {
		cfg.ResponseHeaderTimeout = 60 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "taxietl"
	}

	transport := cfg.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = cfg.ResponseHeaderTimeout
		t.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // explicitly configurable
		}
		transport = t
	}

	hdr := http.Header{}
	for k, vs := range cfg.BaseHeaders {
		for _, v := range vs {
			hdr.Add(k, v)
		}
	}
	if hdr.Get("User-Agent") == "" {
		hdr.Set("User-Agent", cfg.UserAgent)
	}

	return &Client{
		httpClient:  &http.Client{Transport: transport},
		baseHeaders: hdr,
	}
}

// Get issues a GET request and returns the response when the status is 2xx.
// The caller must close the body. Any other outcome is wrapped with
// datasource.ErrSourceUnavailable, except context cancellation which is
// returned as-is.
func (c *Client) Get(ctx context.Context, url string, headers http.Header) (*http.Response, error) {
	if url == "" {
		return nil, fmt.Errorf("httpds: url must not be empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("httpds: build request: %w", err)
	}
	for k, vs := range c.baseHeaders {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: GET %s: %w", datasource.ErrSourceUnavailable, url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: status %d", datasource.ErrSourceUnavailable, url, resp.StatusCode)
	}
	return resp, nil
}

// Open streams the body of url.
func (c *Client) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := c.Get(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Source adapts a Client and URL to datasource.Source.
type Source struct {
	Client *Client
	URL    string
}

// Open implements datasource.Source.
func (s Source) Open(ctx context.Context) (io.ReadCloser, error) {
	return s.Client.Open(ctx, s.URL)
}
