package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fwlog/internal/api"
	inputredis "fwlog/internal/input/redis"
	"fwlog/internal/logger"
	"fwlog/internal/output/callback"
	"fwlog/internal/output/redisreply"
	"fwlog/internal/pipeline"
	"fwlog/pkg/models"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve queries from the Redis queue and the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(true)
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return a.serve(ctx)
	},
}

func (a *app) serve(ctx context.Context) error {
	c := &a.cfg.FWLog
	if !c.Queue.Enabled && !c.API.Enabled && !c.Metrics.Enabled {
		return errors.New("nothing to serve: enable queue, api or metrics in the config")
	}
	logger.Infof("fwlog serve starting")

	g, gctx := errgroup.WithContext(ctx)

	if c.Queue.Enabled {
		p, err := a.queuePipeline(gctx)
		if err != nil {
			return err
		}
		g.Go(func() error {
			defer p.Close()
			if err := p.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if c.API.Enabled {
		srv := api.New(a.orch, a.dir, a.metrics, c.API.CORSOrigins)
		g.Go(func() error {
			return srv.ListenAndServe(gctx, c.API.Listen)
		})
	}

	// The API already mounts /metrics; a separate listener only when it
	// differs.
	if c.Metrics.Enabled && (!c.API.Enabled || c.Metrics.Listen != c.API.Listen) {
		g.Go(func() error {
			return serveMetrics(gctx, c.Metrics.Listen, a.metrics.Handler())
		})
	}

	err := g.Wait()
	logger.Infof("fwlog serve stopped")
	return err
}

func (a *app) queuePipeline(ctx context.Context) (*pipeline.QueryPipeline, error) {
	q := a.cfg.FWLog.Queue
	consumer, err := inputredis.NewConsumer(inputredis.Config{
		Addr:         q.Redis.Addr,
		Password:     q.Redis.Password,
		DB:           q.Redis.DB,
		Key:          q.Redis.Key,
		BlockTimeout: q.Redis.BlockTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create Redis consumer: %w", err)
	}
	if err := consumer.Ping(ctx); err != nil {
		consumer.Close()
		return nil, err
	}

	replies, err := redisreply.NewWriter(consumer.Client(), redisreply.Config{Prefix: q.ReplyPrefix, TTL: q.ReplyTTL})
	if err != nil {
		consumer.Close()
		return nil, err
	}
	hooks := callback.NewWriter(callback.Config{Timeout: q.CallbackHTTP.Timeout, Headers: q.CallbackHTTP.Headers})
	logger.Infof("Query queue: redis %s key %s, replies %s* (ttl %s)", q.Redis.Addr, consumer.Key(), q.ReplyPrefix, q.ReplyTTL)

	exec := func(ctx context.Context, req models.QueryRequest) ([]models.DeviceResult, error) {
		return a.orch.Execute(ctx, a.dir, req)
	}
	return pipeline.NewQueryPipeline(consumer, exec, replies, hooks, a.metrics, pipeline.Config{Workers: q.Workers}), nil
}

func serveMetrics(ctx context.Context, addr string, handler http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Metrics listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
