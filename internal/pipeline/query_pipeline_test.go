package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"fwlog/internal/metrics"
	"fwlog/pkg/models"
)

type chanSource struct {
	ch     chan []byte
	closed bool
}

func (s *chanSource) Pop(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-s.ch:
		return msg, nil
	case <-time.After(5 * time.Millisecond):
		return nil, nil
	}
}

func (s *chanSource) Close() error {
	s.closed = true
	return nil
}

type recorder struct {
	mu        sync.Mutex
	replies   map[string]models.QueryResponse
	callbacks map[string]models.QueryResponse
	attempts  int
	failFirst bool
}

func newRecorder() *recorder {
	return &recorder{replies: map[string]models.QueryResponse{}, callbacks: map[string]models.QueryResponse{}}
}

func (r *recorder) WriteReply(ctx context.Context, req models.QueryRequest, resp models.QueryResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies[req.ID] = resp
	return nil
}

func (r *recorder) WriteCallback(ctx context.Context, url string, resp models.QueryResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.failFirst && r.attempts == 1 {
		return errors.New("connection refused")
	}
	r.callbacks[url] = resp
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.replies), len(r.callbacks)
}

func echoExec(ctx context.Context, req models.QueryRequest) ([]models.DeviceResult, error) {
	var out []models.DeviceResult
	for _, name := range req.Names() {
		out = append(out, models.DeviceResult{Device: name, Kind: req.Kind, Status: models.StatusOK})
	}
	return out, nil
}

func TestQueryPipeline(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &chanSource{ch: make(chan []byte, 8)}
	src.ch <- []byte(`{"id":"r1","kind":"traffic","devices":["fw1","fw2"]}`)
	src.ch <- []byte(`{`)
	src.ch <- []byte(`{"id":"r2","kind":"system"}`)
	src.ch <- []byte(`{"id":"r3","kind":"system","device":"fw1","severity":"high","callback_url":"http://hook.local/fw"}`)

	rec := newRecorder()
	rec.failFirst = true
	m := metrics.New()
	p := NewQueryPipeline(src, echoExec, rec, rec, m, Config{Workers: 2, RetryBackoff: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		replies, callbacks := rec.counts()
		return replies == 2 && callbacks == 1
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop")
	}
	require.NoError(t, p.Close())
	assert.True(t, src.closed)

	r1 := rec.replies["r1"]
	assert.Equal(t, "ok", r1.Status)
	require.Len(t, r1.Results, 2)
	assert.Equal(t, "fw2", r1.Results[1].Device)

	r2 := rec.replies["r2"]
	assert.Equal(t, "error", r2.Status)
	assert.Contains(t, r2.Error, "system query needs a device")
	assert.Empty(t, r2.Results)

	r3 := rec.callbacks["http://hook.local/fw"]
	assert.Equal(t, "r3", r3.ID)
	assert.Equal(t, 2, rec.attempts)
	_, replied := rec.replies["r3"]
	assert.False(t, replied)

	series, err := testutil.GatherAndCount(m.Registry(), "fwlog_query_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

func TestDecodeRequest(t *testing.T) {
	req, err := decodeRequest([]byte(`{"kind":"traffic","src":"10.0.0.1","dst":"10.0.0.2"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.True(t, req.Matched())

	_, err = decodeRequest([]byte(`not json`))
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "not_found", outcome(models.Errorf(models.KindNoCandidateDevices, "match", "none")))
	assert.Equal(t, "error", outcome(errors.New("boom")))
}
