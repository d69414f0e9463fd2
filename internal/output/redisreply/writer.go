// Package redisreply pushes query responses onto per-request Redis lists.
package redisreply

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"fwlog/pkg/models"
)

// Config configures the reply writer.
type Config struct {
	Prefix string
	TTL    time.Duration
}

// Writer RPUSHes one JSON response per request and expires the list, so
// replies are transport only.
type Writer struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewWriter creates a reply writer on an existing connection.
func NewWriter(client redis.Cmdable, cfg Config) (*Writer, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "fwlog:reply:"
	}
	return &Writer{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}, nil
}

// Key returns the reply list for req: reply_to when given, prefix+id otherwise.
func Key(prefix string, req models.QueryRequest) string {
	if to := strings.TrimSpace(req.ReplyTo); to != "" {
		return to
	}
	return prefix + req.ID
}

// WriteReply pushes resp to the reply list of req.
func (w *Writer) WriteReply(ctx context.Context, req models.QueryRequest, resp models.QueryResponse) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}
	key := Key(w.prefix, req)
	_, err = w.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, body)
		p.Expire(ctx, key, w.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis reply %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; the connection belongs to the consumer.
func (w *Writer) Close() error {
	return nil
}
