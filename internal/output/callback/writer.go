// Package callback posts query responses to a requester-supplied URL.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fwlog/pkg/models"
)

// Config configures the HTTP writer.
type Config struct {
	Timeout time.Duration
	Headers map[string]string
}

// Writer sends responses to callback URLs.
type Writer struct {
	headers map[string]string
	client  *http.Client
}

// NewWriter creates an HTTP callback writer.
func NewWriter(cfg Config) *Writer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Writer{
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}
}

// WriteCallback posts resp as JSON to url.
func (w *Writer) WriteCallback(ctx context.Context, url string, resp models.QueryResponse) error {
	if url == "" {
		return fmt.Errorf("callback URL is empty")
	}

	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Fwlog-Request-Id", resp.ID)
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	httpResp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("callback request failed: %w", err)
	}
	_, _ = io.Copy(io.Discard, httpResp.Body)
	httpResp.Body.Close()

	if httpResp.StatusCode >= 300 {
		return fmt.Errorf("callback request failed with status %s", httpResp.Status)
	}
	return nil
}

// Close releases HTTP resources.
func (w *Writer) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
