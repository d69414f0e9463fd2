// Package pipeline serves queued query requests: a reader pops requests,
// workers run them, and a writer delivers the responses.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fwlog/internal/logger"
	"fwlog/internal/metrics"
	"fwlog/pkg/models"
)

// Config tunes the pipeline.
type Config struct {
	Workers         int
	DeliveryRetries int
	RetryBackoff    time.Duration
	DeliveryTimeout time.Duration
}

// QueryPipeline consumes query requests and writes responses.
type QueryPipeline struct {
	source   Source
	exec     ExecFunc
	replies  ReplyWriter
	callback CallbackWriter
	metrics  *metrics.Metrics
	cfg      Config
}

type delivery struct {
	req  models.QueryRequest
	resp models.QueryResponse
}

// NewQueryPipeline creates a pipeline. replies and callback may be nil.
func NewQueryPipeline(source Source, exec ExecFunc, replies ReplyWriter, callback CallbackWriter, m *metrics.Metrics, cfg Config) *QueryPipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.DeliveryRetries <= 0 {
		cfg.DeliveryRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}
	return &QueryPipeline{
		source:   source,
		exec:     exec,
		replies:  replies,
		callback: callback,
		metrics:  m,
		cfg:      cfg,
	}
}

// Run processes requests until ctx is cancelled. Requests already picked
// up are answered before Run returns.
func (p *QueryPipeline) Run(ctx context.Context) error {
	logger.Infof("Query pipeline started with %d worker(s)", p.cfg.Workers)

	msgCh := make(chan []byte, p.cfg.Workers)
	outCh := make(chan delivery, p.cfg.Workers*4)

	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		p.readLoop(ctx, msgCh)
		close(msgCh)
	}()

	var workers sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			p.workerLoop(ctx, msgCh, outCh)
		}()
	}

	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		p.writeLoop(ctx, outCh)
	}()

	readers.Wait()
	workers.Wait()
	close(outCh)
	writer.Wait()
	logger.Infof("Query pipeline stopped")
	return ctx.Err()
}

// Close releases pipeline resources.
func (p *QueryPipeline) Close() error {
	if p.callback != nil {
		if err := p.callback.Close(); err != nil {
			logger.Errorf("Failed to close callback writer: %v", err)
		}
	}
	if p.replies != nil {
		if err := p.replies.Close(); err != nil {
			logger.Errorf("Failed to close reply writer: %v", err)
		}
	}
	if p.source != nil {
		return p.source.Close()
	}
	return nil
}

func (p *QueryPipeline) readLoop(ctx context.Context, out chan<- []byte) {
	for {
		if ctx.Err() != nil {
			return
		}
		payload, err := p.source.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Errorf("Failed to pop query request: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if payload == nil {
			continue
		}
		select {
		case out <- payload:
		case <-ctx.Done():
			return
		}
	}
}

func (p *QueryPipeline) workerLoop(ctx context.Context, in <-chan []byte, out chan<- delivery) {
	for payload := range in {
		req, err := decodeRequest(payload)
		if err != nil && req.ID == "" {
			logger.Warnf("Dropping undecodable query request: %v", err)
			p.metrics.ObserveRequest("queue", "invalid")
			continue
		}

		var results []models.DeviceResult
		if err == nil {
			logger.Infof("Query %s: %s %s", req.ID, req.Kind, describe(req))
			results, err = p.exec(ctx, req)
		}
		resp := models.NewQueryResponse(req.ID, results, err)
		p.metrics.ObserveRequest("queue", outcome(err))
		if err != nil {
			logger.Warnf("Query %s: %v", req.ID, err)
		}
		out <- delivery{req: req, resp: resp}
	}
}

func (p *QueryPipeline) writeLoop(ctx context.Context, in <-chan delivery) {
	for d := range in {
		// Replies for requests already executed are delivered even during shutdown.
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.DeliveryTimeout)
		p.deliver(dctx, d)
		cancel()
	}
}

func (p *QueryPipeline) deliver(ctx context.Context, d delivery) {
	if p.replies != nil && (d.req.ReplyTo != "" || d.req.CallbackURL == "") {
		p.retry(ctx, "reply", d.req.ID, func() error {
			return p.replies.WriteReply(ctx, d.req, d.resp)
		})
	}
	if p.callback != nil && d.req.CallbackURL != "" {
		p.retry(ctx, "callback", d.req.ID, func() error {
			return p.callback.WriteCallback(ctx, d.req.CallbackURL, d.resp)
		})
	}
}

func (p *QueryPipeline) retry(ctx context.Context, what, id string, fn func() error) {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return
		}
		if attempt >= p.cfg.DeliveryRetries {
			logger.Errorf("Query %s: giving up on %s after %d attempt(s): %v", id, what, attempt, err)
			return
		}
		logger.Warnf("Query %s: %s failed (attempt %d): %v", id, what, attempt, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.RetryBackoff):
		}
	}
}

// decodeRequest parses and validates one payload. The returned request
// carries an id whenever the payload was valid JSON, so invalid requests
// can still be answered.
func decodeRequest(payload []byte) (models.QueryRequest, error) {
	var req models.QueryRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return models.QueryRequest{}, errors.Join(models.ErrInvalidRequest, err)
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	return req, req.Validate()
}

func describe(req models.QueryRequest) string {
	if names := req.Names(); len(names) > 0 {
		return "on " + strings.Join(names, ", ")
	}
	return "for " + req.Src + " -> " + req.Dst
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, models.ErrNoCandidateDevices):
		return "not_found"
	default:
		return "error"
	}
}
