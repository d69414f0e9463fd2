// Package orchestrator runs one log query against many firewalls and
// assembles per-device results in request order.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fwlog/internal/logger"
	"fwlog/internal/metrics"
	"fwlog/internal/normalize"
	"fwlog/internal/rules"
	vendor "fwlog/internal/firewall"
	"fwlog/pkg/models"
)

// Directory resolves device names.
type Directory interface {
	LookupByName(name string) (models.FirewallEndpoint, error)
}

// Matcher finds devices relevant to a flow.
type Matcher interface {
	FindCandidates(src, dst string) []string
}

// Orchestrator fans a query out to vendor clients through a bounded pool.
type Orchestrator struct {
	registry   *vendor.Registry
	normalizer *normalize.Normalizer
	engine     rules.Engine
	metrics    *metrics.Metrics
	workers    int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkers caps concurrent vendor sessions per run.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.normalizer = n
		}
	}
}

// WithRules tags every record with engine matches.
func WithRules(e rules.Engine) Option {
	return func(o *Orchestrator) { o.engine = e }
}

// WithMetrics records session metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an orchestrator.
func New(registry *vendor.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:   registry,
		normalizer: normalize.Default(),
		workers:    4,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run retrieves q from every endpoint. The result has one slot per endpoint,
// in input order; a failing device only fills its own slot.
func (o *Orchestrator) Run(ctx context.Context, endpoints []models.FirewallEndpoint, q models.LogQuery) []models.DeviceResult {
	runID := uuid.NewString()
	results := make([]models.DeviceResult, len(endpoints))
	if len(endpoints) == 0 {
		return results
	}
	logger.Infof("run %s: %s query on %d device(s)", runID, q.Kind, len(endpoints))

	var g errgroup.Group
	g.SetLimit(o.workers)
	for i, ep := range endpoints {
		i, ep := i, ep
		g.Go(func() error {
			results[i] = o.fetchOne(ctx, runID, ep, q)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logger.Infof("run %s: done, %d ok, %d failed", runID, len(results)-failed, failed)
	return results
}

func (o *Orchestrator) fetchOne(ctx context.Context, runID string, ep models.FirewallEndpoint, q models.LogQuery) models.DeviceResult {
	res := models.DeviceResult{Device: ep.Name, Vendor: ep.Vendor, Kind: q.Kind}
	defer func() { o.metrics.ObserveDevice(res) }()

	client, err := o.registry.Client(ep.Vendor)
	if err != nil {
		res.Status = models.StatusUnsupported
		res.Err = labelDevice(err, ep.Name)
		logger.Warnf("run %s: %s: %v", runID, ep.Name, err)
		return res
	}

	done := o.metrics.SessionStarted()
	start := time.Now()
	payload, err := vendor.Fetch(ctx, client, ep, q)
	res.Duration = time.Since(start)
	done()
	if err != nil {
		res.Status = models.StatusFailed
		res.Err = labelDevice(err, ep.Name)
		logger.Warnf("run %s: %s (%s) failed after %s: %v", runID, ep.Name, ep.Vendor, res.Duration.Round(time.Millisecond), err)
		return res
	}

	res.Status = models.StatusOK
	res.Records = o.normalizer.Normalize(q.Kind, payload)
	if o.engine != nil {
		rules.TagResult(ctx, o.engine, &res)
	}
	logger.Infof("run %s: %s (%s) returned %d record(s) in %s", runID, ep.Name, ep.Vendor, len(res.Records), res.Duration.Round(time.Millisecond))
	return res
}

func labelDevice(err error, device string) error {
	var typed *models.Error
	if errors.As(err, &typed) && typed.Device == "" {
		typed.WithDevice(device)
	}
	return err
}

// RunNamed resolves names through dir and runs q on the devices found.
// Repeated names are collapsed; unknown names become DeviceNotFound slots
// at their position.
func (o *Orchestrator) RunNamed(ctx context.Context, dir Directory, names []string, q models.LogQuery) []models.DeviceResult {
	type slot struct {
		name string
		ep   *models.FirewallEndpoint
		err  error
	}
	var slots []slot
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		ep, err := dir.LookupByName(name)
		key := name
		if err == nil {
			key = ep.Key()
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if err != nil {
			slots = append(slots, slot{name: name, err: err})
			continue
		}
		slots = append(slots, slot{name: name, ep: &ep})
	}

	var endpoints []models.FirewallEndpoint
	for _, s := range slots {
		if s.ep != nil {
			endpoints = append(endpoints, *s.ep)
		}
	}
	fetched := o.Run(ctx, endpoints, q)

	out := make([]models.DeviceResult, 0, len(slots))
	next := 0
	for _, s := range slots {
		if s.ep != nil {
			out = append(out, fetched[next])
			next++
			continue
		}
		res := models.DeviceResult{Device: s.name, Kind: q.Kind, Status: models.StatusFailed, Err: s.err}
		o.metrics.ObserveDevice(res)
		out = append(out, res)
	}
	return out
}

// RunMatched runs a traffic query on every candidate device for the flow.
// It returns NoCandidateDevices when the matcher finds none.
func (o *Orchestrator) RunMatched(ctx context.Context, dir Directory, matcher Matcher, q models.TrafficQuery) ([]models.DeviceResult, error) {
	names := matcher.FindCandidates(q.SrcAddr, q.DstAddr)
	if len(names) == 0 {
		return nil, models.Errorf(models.KindNoCandidateDevices, "match", "no device covers %s -> %s", q.SrcAddr, q.DstAddr)
	}
	logger.Debugf("matched %d device(s) for %s -> %s: %s", len(names), q.SrcAddr, q.DstAddr, strings.Join(names, ", "))
	return o.RunNamed(ctx, dir, names, models.NewTrafficQuery(q)), nil
}

// Resolver is a directory that can also match flows to devices.
type Resolver interface {
	Directory
	Matcher
}

// Execute serves a remote query request: named devices go through
// RunNamed, a traffic request without names through RunMatched.
func (o *Orchestrator) Execute(ctx context.Context, dir Resolver, req models.QueryRequest) ([]models.DeviceResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	q := req.Query()
	if req.Matched() {
		return o.RunMatched(ctx, dir, dir, *q.Traffic)
	}
	return o.RunNamed(ctx, dir, req.Names(), q), nil
}
