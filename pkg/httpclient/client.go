// Package httpclient is the shared HTTP transport for provider
// adapters: JSON POST requests and SSE streams with per-provider auth
// headers. It deliberately performs no retries; failure policy belongs
// to the caller.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client wraps an http.Client with default headers applied to every
// request. Safe for concurrent use.
type Client struct {
	client  *http.Client
	headers map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout sets the underlying client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

// WithHeader adds a header sent on every request, e.g. authorization.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// New builds a client. The default timeout is generous because
// streaming responses hold the connection open for the whole
// generation.
func New(opts ...Option) *Client {
	client := &Client{
		client:  &http.Client{Timeout: 5 * time.Minute},
		headers: map[string]string{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// StatusError reports a non-2xx response with its decoded body.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, string(e.Body))
}

// PostJSON sends a JSON POST and decodes the 2xx response body into
// out. Non-2xx responses return a *StatusError with the body preserved.
func (c *Client) PostJSON(ctx context.Context, url string, payload any, out any) error {
	resp, err := c.postForReading(ctx, url, payload, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// PostStream sends a JSON POST for an SSE response and returns an event
// scanner. The caller must Close the stream; cancelling ctx aborts the
// connection.
func (c *Client) PostStream(ctx context.Context, url string, payload any) (*SSEStream, error) {
	resp, err := c.postForReading(ctx, url, payload, "text/event-stream")
	if err != nil {
		return nil, err
	}
	return newSSEStream(resp.Body), nil
}

func (c *Client) postForReading(ctx context.Context, url string, payload any, accept string) (*http.Response, error) {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			body = []byte(fmt.Sprintf("(failed to read error body: %v)", readErr))
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}
	return resp, nil
}
