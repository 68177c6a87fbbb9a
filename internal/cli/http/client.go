// Package httpclient talks to the judge service over HTTP and websockets.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// Response is a completed HTTP exchange.
type Response struct {
	StatusCode int
	RequestID  string
	Body       []byte
	Duration   time.Duration
}

// Client holds the service address and the timeout of plain requests. Runs
// block until judged, so the timeout should cover a whole run.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	c := &Client{http: &http.Client{}}
	c.SetBaseURL(baseURL)
	c.SetTimeout(timeout)
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// SetTimeout ignores non-positive values.
func (c *Client) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.timeout = timeout
		c.http.Timeout = timeout
	}
}

// Do sends body as JSON and reads the whole reply. Each request carries a
// fresh request id so it can be found in the service log.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) (Response, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Response{RequestID: requestID, Duration: time.Since(start)}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	out := Response{
		StatusCode: resp.StatusCode,
		RequestID:  requestID,
		Body:       data,
		Duration:   time.Since(start),
	}
	if echoed := resp.Header.Get(requestIDHeader); echoed != "" {
		out.RequestID = echoed
	}
	if err != nil {
		return out, fmt.Errorf("read response body: %w", err)
	}
	return out, nil
}
