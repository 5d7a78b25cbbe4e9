// Package transport is the HTTP plumbing shared by the backend adapters:
// JSON requests, error classification and retry with exponential backoff.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxResponseSize limits a response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Client sends requests to one backend.
type Client struct {
	backend    string
	httpClient *http.Client
	retry      RetryConfig
	header     http.Header
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.httpClient = &http.Client{Timeout: d}
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(client *Client) {
		client.retry = cfg
	}
}

// WithHeader adds a header sent with every request. Empty values are ignored.
func WithHeader(key, value string) Option {
	return func(client *Client) {
		if value != "" {
			client.header.Set(key, value)
		}
	}
}

// WithBearerToken sets the Authorization header. An empty token sends none.
func WithBearerToken(token string) Option {
	return func(client *Client) {
		if token != "" {
			client.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		client.logger = logger
	}
}

// New creates a client for the named backend.
func New(backend string, opts ...Option) *Client {
	c := &Client{
		backend:    backend,
		httpClient: &http.Client{Timeout: 180 * time.Second},
		retry:      DefaultRetryConfig(),
		header:     make(http.Header),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.MaxAttempts < 1 {
		c.retry.MaxAttempts = 1
	}
	return c
}

// PostJSON marshals in, posts it to url and decodes the response into out,
// retrying transient failures.
func (c *Client) PostJSON(ctx context.Context, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return NewFatalError(fmt.Errorf("marshaling %s request: %w", c.backend, err))
	}
	respBody, err := c.Post(ctx, url, "application/json", body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return NewFatalError(fmt.Errorf("decoding %s response: %w", c.backend, err))
	}
	return nil
}

// Post sends body to url and returns the response body of a 2xx reply,
// retrying transient failures.
func (c *Client) Post(ctx context.Context, url, contentType string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		respBody, err := c.do(ctx, url, contentType, body)
		if err == nil {
			return respBody, nil
		}
		lastErr = err

		if IsFatal(err) || ctx.Err() != nil {
			return nil, err
		}

		if attempt < c.retry.MaxAttempts {
			backoff := c.retry.Backoff(attempt)
			c.logger.Debug("Request failed, retrying",
				"backend", c.backend,
				"attempt", attempt,
				"max_attempts", c.retry.MaxAttempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, url, contentType string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("creating %s request: %w", c.backend, err))
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range c.header {
		req.Header[k] = v
	}

	c.logger.Debug("Sending request", "backend", c.backend, "url", url, "bytes", len(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("calling %s: %w", c.backend, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("reading %s response: %w", c.backend, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, ClassifyStatus(c.backend, resp.StatusCode, respBody)
	}
	return respBody, nil
}
