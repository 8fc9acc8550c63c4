// Package httpx is the outbound HTTP layer for provider calls: bounded
// retries with exponential backoff and jitter, gated by the per-upstream
// circuit breaker.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/ragstack/ragchat/internal/config"
)

// ErrCircuitOpen is returned without any network I/O when the breaker is
// open for the upstream key. Callers can distinguish "upstream degraded"
// from a bad request via errors.Is.
var ErrCircuitOpen = errors.New("circuit open")

// Breaker is the gate consulted before and updated after every attempt.
type Breaker interface {
	Allow(ctx context.Context, key string) bool
	RecordSuccess(ctx context.Context, key string)
	RecordFailure(ctx context.Context, key string)
}

// retryStatuses are the HTTP statuses treated as transient. Anything else,
// 4xx included, is handed back to the caller and counts as a breaker
// success: a 401 means the upstream is healthy and the request is bad.
var retryStatuses = map[int]bool{
	http.StatusRequestTimeout:      true, // 408
	http.StatusConflict:            true, // 409
	http.StatusTooEarly:            true, // 425
	http.StatusTooManyRequests:     true, // 429
	http.StatusInternalServerError: true, // 500
	http.StatusBadGateway:          true, // 502
	http.StatusServiceUnavailable:  true, // 503
	http.StatusGatewayTimeout:      true, // 504
}

type Response struct {
	StatusCode int
	Body       []byte
}

// StreamResponse owns the response body of an established stream. The
// caller must Close it.
type StreamResponse struct {
	StatusCode int
	Body       io.ReadCloser
}

type Client struct {
	http        *http.Client
	breaker     Breaker
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

func NewClient(b Breaker, cfg config.HTTPRetryConfig) *Client {
	return &Client{
		http:        &http.Client{},
		breaker:     b,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
	}
}

// PostJSON posts the JSON-encoded body and returns the full response. Every
// attempt's outcome updates the breaker for the given upstream key.
func (c *Client) PostJSON(ctx context.Context, key, rawURL string, headers map[string]string, body any, timeout time.Duration) (*Response, error) {
	if !c.breaker.Allow(ctx, key) {
		return nil, fmt.Errorf("%w for %s", ErrCircuitOpen, key)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.attempt(ctx, rawURL, headers, payload, timeout)
		if err == nil && !retryStatuses[resp.StatusCode] {
			c.breaker.RecordSuccess(ctx, key)
			defer resp.Body.Close()
			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, fmt.Errorf("read response body: %w", err)
			}
			return &Response{StatusCode: resp.StatusCode, Body: data}, nil
		}

		if err == nil {
			resp.Body.Close()
			lastErr = fmt.Errorf("retryable status %d from %s", resp.StatusCode, rawURL)
		} else {
			lastErr = err
		}
		c.breaker.RecordFailure(ctx, key)

		if attempt >= c.maxAttempts {
			break
		}
		if err := c.sleep(ctx, attempt); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// OpenStream establishes a streaming POST. Only the connect/handshake phase
// is retried; once the body is handed to the caller, failures mid-stream
// surface there instead of being retried (a retry would duplicate deltas
// that already reached the client).
func (c *Client) OpenStream(ctx context.Context, key, rawURL string, headers, params map[string]string, body any, timeout time.Duration) (*StreamResponse, error) {
	if !c.breaker.Allow(ctx, key) {
		return nil, fmt.Errorf("%w for %s", ErrCircuitOpen, key)
	}

	if len(params) > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse stream URL: %w", err)
		}
		q := u.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		rawURL = u.String()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.attempt(ctx, rawURL, headers, payload, timeout)
		if err == nil && !retryStatuses[resp.StatusCode] {
			c.breaker.RecordSuccess(ctx, key)
			return &StreamResponse{StatusCode: resp.StatusCode, Body: resp.Body}, nil
		}

		if err == nil {
			resp.Body.Close()
			lastErr = fmt.Errorf("retryable status %d from %s", resp.StatusCode, rawURL)
		} else {
			lastErr = err
		}
		c.breaker.RecordFailure(ctx, key)

		if attempt >= c.maxAttempts {
			break
		}
		if err := c.sleep(ctx, attempt); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, rawURL string, headers map[string]string, payload []byte, timeout time.Duration) (*http.Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		// The body outlives this function for streams; tie the timeout's
		// cancel to body close instead of deferring it here.
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
		if err != nil {
			cancel()
			return nil, fmt.Errorf("build request: %w", err)
		}
		applyHeaders(req, headers)
		resp, err := c.http.Do(req)
		if err != nil {
			cancel()
			return nil, err
		}
		resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	applyHeaders(req, headers)
	return c.http.Do(req)
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	backoff := c.baseDelay << (attempt - 1)
	if backoff > c.maxDelay {
		backoff = c.maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(150 * time.Millisecond)))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff + jitter):
		return nil
	}
}

func applyHeaders(req *http.Request, headers map[string]string) {
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
