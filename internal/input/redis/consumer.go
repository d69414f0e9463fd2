// Package redis pops remote query requests from a Redis list.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Config configures the Redis consumer.
type Config struct {
	Addr         string
	Password     string
	DB           int
	Key          string
	BlockTimeout time.Duration
}

// Consumer pops query requests with BLPOP.
type Consumer struct {
	client       *redis.Client
	key          string
	blockTimeout time.Duration
}

// NewConsumer creates a Redis consumer for the query list.
func NewConsumer(cfg Config) (*Consumer, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis key is required")
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		// BLPOP holds the connection for up to BlockTimeout.
		ReadTimeout: cfg.BlockTimeout + 2*time.Second,
	})

	return &Consumer{
		client:       client,
		key:          cfg.Key,
		blockTimeout: cfg.BlockTimeout,
	}, nil
}

// Ping checks that Redis is reachable.
func (c *Consumer) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", c.client.Options().Addr, err)
	}
	return nil
}

// Client exposes the connection so reply writers can share it.
func (c *Consumer) Client() *redis.Client { return c.client }

// Key returns the list the consumer pops from.
func (c *Consumer) Key() string { return c.key }

// Pop returns the next raw request, or nil when the block timeout elapsed.
func (c *Consumer) Pop(ctx context.Context) ([]byte, error) {
	return popped(c.client.BLPop(ctx, c.blockTimeout, c.key).Result())
}

// popped maps a BLPOP reply ([key, value]) to the request body. A timed-out
// pop (redis.Nil) or a short reply yields nil.
func popped(res []string, err error) ([]byte, error) {
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}
	return []byte(res[1]), nil
}

// Close closes the consumer.
func (c *Consumer) Close() error {
	return c.client.Close()
}
