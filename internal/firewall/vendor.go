// Package vendor defines the vendor client contract, the client registry
// and the job polling loop shared by the protocol implementations.
package vendor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"fwlog/internal/firewall/transport"
	"fwlog/pkg/models"
)

// Client retrieves raw logs from one vendor family. Every call runs a fresh
// session (authenticate, submit, poll, fetch) against the endpoint.
type Client interface {
	FetchTrafficLog(ctx context.Context, ep models.FirewallEndpoint, q models.TrafficQuery) (models.RawPayload, error)
	FetchSystemLog(ctx context.Context, ep models.FirewallEndpoint, q models.SystemQuery) (models.RawPayload, error)
}

// Options are the session parameters handed to client constructors.
type Options struct {
	Poll            PollPolicy
	PageSize        int
	MaxRows         int
	TeardownTimeout time.Duration
	TrafficLookback time.Duration
	SystemLookback  time.Duration
	Transport       transport.Options
	// Now is the clock used for query time windows.
	Now func() time.Time
}

// DefaultOptions returns the built-in session parameters.
func DefaultOptions() Options {
	return Options{
		Poll:            DefaultPollPolicy(),
		PageSize:        100,
		MaxRows:         100,
		TeardownTimeout: 5 * time.Second,
		TrafficLookback: 30000 * time.Second,
		SystemLookback:  60000 * time.Second,
		Transport:       transport.Options{Timeout: 30 * time.Second, InsecureTLS: true},
		Now:             time.Now,
	}
}

// WithDefaults fills zero fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.Poll.Interval <= 0 {
		o.Poll.Interval = d.Poll.Interval
	}
	if o.Poll.Deadline <= 0 {
		o.Poll.Deadline = d.Poll.Deadline
	}
	if o.PageSize <= 0 {
		o.PageSize = d.PageSize
	}
	if o.MaxRows <= 0 {
		o.MaxRows = d.MaxRows
	}
	if o.TeardownTimeout <= 0 {
		o.TeardownTimeout = d.TeardownTimeout
	}
	if o.TrafficLookback <= 0 {
		o.TrafficLookback = d.TrafficLookback
	}
	if o.SystemLookback <= 0 {
		o.SystemLookback = d.SystemLookback
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

// Session opens a transport client for one vendor session.
func (o Options) Session(baseURL string) *transport.Client {
	return transport.New(baseURL, o.Transport)
}

// Fetch dispatches q to the matching client method.
func Fetch(ctx context.Context, c Client, ep models.FirewallEndpoint, q models.LogQuery) (models.RawPayload, error) {
	switch q.Kind {
	case models.KindTraffic:
		if q.Traffic == nil {
			return models.RawPayload{}, models.Errorf(models.KindSubmissionFailed, "fetch", "traffic query without parameters")
		}
		return c.FetchTrafficLog(ctx, ep, *q.Traffic)
	case models.KindSystem:
		if q.System == nil {
			return models.RawPayload{}, models.Errorf(models.KindSubmissionFailed, "fetch", "system query without parameters")
		}
		return c.FetchSystemLog(ctx, ep, *q.System)
	default:
		return models.RawPayload{}, models.Errorf(models.KindSubmissionFailed, "fetch", "unknown query kind %q", q.Kind)
	}
}

// Constructor builds a client from session options.
type Constructor func(Options) Client

var (
	mu           sync.RWMutex
	constructors = map[models.Vendor]Constructor{}
)

// Register adds a client constructor under the given vendor.
func Register(v models.Vendor, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	constructors[v] = ctor
}

// Vendors returns the registered vendor names, sorted.
func Vendors() []models.Vendor {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]models.Vendor, 0, len(constructors))
	for v := range constructors {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Registry resolves vendors to clients built with one set of options.
type Registry struct {
	clients map[models.Vendor]Client
}

// NewRegistry builds a client for every registered vendor.
func NewRegistry(opts Options) *Registry {
	opts = opts.WithDefaults()
	mu.RLock()
	defer mu.RUnlock()
	r := &Registry{clients: make(map[models.Vendor]Client, len(constructors))}
	for v, ctor := range constructors {
		r.clients[v] = ctor(opts)
	}
	return r
}

// NewStaticRegistry wraps prebuilt clients.
func NewStaticRegistry(clients map[models.Vendor]Client) *Registry {
	r := &Registry{clients: make(map[models.Vendor]Client, len(clients))}
	for v, c := range clients {
		r.clients[v] = c
	}
	return r
}

// Client returns the client for v, or an UnsupportedVendor error.
func (r *Registry) Client(v models.Vendor) (Client, error) {
	if c, ok := r.clients[v]; ok {
		return c, nil
	}
	name := strings.TrimSpace(string(v))
	if name == "" {
		name = "(empty)"
	}
	return nil, models.NewError(models.KindUnsupportedVendor, "dispatch", fmt.Errorf("unsupported vendor: %s", name))
}
