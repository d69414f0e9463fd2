package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConsumerDefaults(t *testing.T) {
	_, err := NewConsumer(Config{})
	require.Error(t, err)

	c, err := NewConsumer(Config{Key: "fwlog:queries"})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "fwlog:queries", c.Key())
	assert.Equal(t, 5*time.Second, c.blockTimeout)
	opts := c.Client().Options()
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)
	assert.Equal(t, 7*time.Second, opts.ReadTimeout)
}

func TestNewConsumerReadTimeoutCoversBlock(t *testing.T) {
	c, err := NewConsumer(Config{Addr: "redis:6380", Key: "q", BlockTimeout: 30 * time.Second})
	require.NoError(t, err)
	defer c.Close()

	assert.Greater(t, c.Client().Options().ReadTimeout, 30*time.Second)
}

func TestPopped(t *testing.T) {
	body, err := popped(nil, redis.Nil)
	require.NoError(t, err)
	assert.Nil(t, body, "timed-out pop")

	body, err = popped([]string{"q"}, nil)
	require.NoError(t, err)
	assert.Nil(t, body, "short reply")

	body, err = popped([]string{"q", `{"kind":"system"}`}, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"kind":"system"}`, string(body))

	boom := errors.New("connection reset")
	_, err = popped(nil, boom)
	assert.ErrorIs(t, err, boom)
}

func TestPopCancelled(t *testing.T) {
	c, err := NewConsumer(Config{Addr: "127.0.0.1:1", Key: "q", BlockTimeout: time.Second})
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	body, err := c.Pop(ctx)
	assert.Error(t, err)
	assert.Nil(t, body)
}
