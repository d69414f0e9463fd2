// Package transport is the HTTP layer shared by vendor clients: one Client per
// vendor session, rate limited, with typed errors for non-2xx responses.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"fwlog/pkg/models"
)

// Options configures a session client.
type Options struct {
	Timeout     time.Duration
	InsecureTLS bool
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int
	// HTTPClient overrides the constructed client (tests).
	HTTPClient *http.Client
}

// APIError represents a non-2xx HTTP response.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Client sends requests relative to a base URL.
type Client struct {
	baseURL    string
	header     http.Header
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a session client for baseURL.
func New(baseURL string, opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		tr := http.DefaultTransport.(*http.Transport).Clone()
		// Management interfaces usually present self-signed certificates.
		if opts.InsecureTLS {
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		hc = &http.Client{Timeout: timeout, Transport: tr}
	}
	c := &Client{
		baseURL:    baseURL,
		header:     make(http.Header),
		httpClient: hc,
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// SetHeader sets a header sent with every subsequent request.
func (c *Client) SetHeader(key, value string) {
	c.header.Set(key, value)
}

// URL joins the base URL with path and query.
func (c *Client) URL(path string, query url.Values) string {
	u := c.baseURL
	if path != "" {
		u = strings.TrimRight(u, "/") + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Get sends a GET request and returns the response body.
func (c *Client) Get(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	return c.Do(ctx, op, http.MethodGet, path, query, nil)
}

// PostJSON sends payload as a JSON body and returns the response body.
func (c *Client) PostJSON(ctx context.Context, op, path string, payload any) ([]byte, error) {
	return c.Do(ctx, op, http.MethodPost, path, nil, payload)
}

// Delete sends a DELETE request and returns the response body.
func (c *Client) Delete(ctx context.Context, op, path string) ([]byte, error) {
	return c.Do(ctx, op, http.MethodDelete, path, nil, nil)
}

// Do sends one request. Network failures, cancellation and non-2xx
// responses are returned as TransportError; for non-2xx the cause is an
// *APIError and the body is attached.
func (c *Client) Do(ctx context.Context, op, method, path string, query url.Values, payload any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, models.NewError(models.KindTransportError, op, err)
		}
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, models.NewError(models.KindTransportError, op, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, query), body)
	if err != nil {
		return nil, models.NewError(models.KindTransportError, op, err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "*/*")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, models.NewError(models.KindTransportError, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewError(models.KindTransportError, op, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyStr := string(data)
		if len(bodyStr) > 512 {
			bodyStr = bodyStr[:512]
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: bodyStr}
		return data, models.NewError(models.KindTransportError, op, apiErr).WithBody(string(data))
	}
	return data, nil
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
