// Package metrics exposes Prometheus collectors for vendor sessions and the
// query queue.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fwlog/pkg/models"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	fetches  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	records  *prometheus.CounterVec
	inflight prometheus.Gauge
	requests *prometheus.CounterVec
}

// New creates collectors on a private registry, with Go and process
// collectors attached.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fwlog",
			Name:      "device_fetch_total",
			Help:      "Device retrievals by vendor, log kind and outcome.",
		}, []string{"vendor", "kind", "status", "error_kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fwlog",
			Name:      "device_fetch_duration_seconds",
			Help:      "Wall time of one device retrieval session.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"vendor", "kind"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fwlog",
			Name:      "records_total",
			Help:      "Canonical records produced.",
		}, []string{"kind"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fwlog",
			Name:      "inflight_sessions",
			Help:      "Vendor sessions currently running.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fwlog",
			Name:      "query_requests_total",
			Help:      "Remote query requests by source and outcome.",
		}, []string{"source", "outcome"}),
	}
	m.registry.MustRegister(
		m.fetches, m.duration, m.records, m.inflight, m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SessionStarted marks a vendor session as running and returns the func
// that marks it finished.
func (m *Metrics) SessionStarted() func() {
	if m == nil {
		return func() {}
	}
	m.inflight.Inc()
	return m.inflight.Dec
}

// ObserveDevice records the outcome of one device slot.
func (m *Metrics) ObserveDevice(res models.DeviceResult) {
	if m == nil {
		return
	}
	vendor := string(res.Vendor)
	if vendor == "" {
		vendor = "unknown"
	}
	m.fetches.WithLabelValues(vendor, string(res.Kind), string(res.Status), string(models.KindOf(res.Err))).Inc()
	if res.Status != models.StatusUnsupported && res.Duration > 0 {
		m.duration.WithLabelValues(vendor, string(res.Kind)).Observe(res.Duration.Seconds())
	}
	if n := len(res.Records); n > 0 {
		m.records.WithLabelValues(string(res.Kind)).Add(float64(n))
	}
}

// ObserveRequest counts one remote query request.
func (m *Metrics) ObserveRequest(source, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(source, outcome).Inc()
}
