// Package fetch implements the bounded HTTP retrieval used by every network
// step of a download: each call finishes within its timeout and returns at
// once when the run is cancelled.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout applies when Options.Timeout is zero.
const DefaultTimeout = 15 * time.Second

// DefaultMaxBytes applies when Options.MaxBytes is zero.
const DefaultMaxBytes = 64 << 20

// bodies are grown in advance up to this size; larger ones grow as read
const preallocLimit = 4 << 20

// Options tunes a single call.
type Options struct {
	Timeout time.Duration
	Referer string
	Accept  string
	// Anonymous strips cookies from the request.
	Anonymous bool
	// MaxBytes caps the response body.
	MaxBytes int64
}

// Response is a fully read HTTP response.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

//go:generate mockgen -destination=mocks/mock_fetcher.go -package=mocks . Fetcher

// Fetcher is the retrieval contract the engine depends on.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts Options) (*Response, error)
}

// Client is the default Fetcher.
type Client struct {
	http    *http.Client
	onBytes func(n int64)
}

// NewClient wraps hc. onBytes, when set, receives the size of every body
// chunk read.
func NewClient(hc *http.Client, onBytes func(n int64)) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{http: hc, onBytes: onBytes}
}

// Fetch performs a GET bounded by opts.Timeout. ctx is the run's cancellation
// signal: once it is done the call fails with ErrUserAborted. The request
// context is always released before returning.
func (c *Client) Fetch(ctx context.Context, url string, opts Options) (*Response, error) {
	if ctx.Err() != nil {
		return nil, ErrUserAborted
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if opts.Anonymous {
		reqCtx = context.WithValue(reqCtx, anonymousKey{}, true)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	if opts.Referer != "" {
		req.Header.Set("Referer", opts.Referer)
	}
	if opts.Accept != "" {
		req.Header.Set("Accept", opts.Accept)
	}
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(ctx, reqCtx, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{Code: resp.StatusCode}
	}

	limit := opts.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if resp.ContentLength > limit {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", ErrBodyTooLarge, resp.ContentLength, limit)
	}

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(min(resp.ContentLength, preallocLimit)))
	}
	n, err := copyWithProgress(&buf, io.LimitReader(resp.Body, limit+1), c.onBytes)
	if err != nil {
		return nil, classify(ctx, reqCtx, err)
	}
	if n > limit {
		return nil, fmt.Errorf("%w: limit %d", ErrBodyTooLarge, limit)
	}

	return &Response{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        buf.Bytes(),
	}, nil
}

func classify(parent, reqCtx context.Context, err error) error {
	if parent.Err() != nil {
		return ErrUserAborted
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return fmt.Errorf("network error: %w", err)
}
