// Package metrics holds the Prometheus collectors of the guid service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "guid"

// Parse results.
const (
	ResultOK      = "ok"
	ResultInvalid = "invalid"
)

// Metrics is the service collector set, registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	Minted          *prometheus.CounterVec
	Parsed          *prometheus.CounterVec
	Registered      prometheus.Counter
	Throttled       prometheus.Counter
	RequestDuration *prometheus.HistogramVec
	LeasedPlatform  prometheus.Gauge
}

// New creates the collectors on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Minted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "minted_total",
				Help:      "Identifiers minted, by shape.",
			},
			[]string{"shape"},
		),
		Parsed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parse_total",
				Help:      "Identifiers inspected, by result.",
			},
			[]string{"result"},
		),
		Registered: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registered_total",
				Help:      "Identifiers written to the registry.",
			},
		),
		Throttled: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "throttled_total",
				Help:      "Mint requests rejected by the rate limit.",
			},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency, by route.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 100us to ~1.6s
			},
			[]string{"route"},
		),
		LeasedPlatform: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "leased_platform_id",
				Help:      "Platform id held from the Redis pool, -1 when none.",
			},
		),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveMint counts n identifiers of shape.
func (m *Metrics) ObserveMint(shape string, n int) {
	m.Minted.WithLabelValues(shape).Add(float64(n))
}

// ObserveParse counts one inspection.
func (m *Metrics) ObserveParse(err error) {
	result := ResultOK
	if err != nil {
		result = ResultInvalid
	}
	m.Parsed.WithLabelValues(result).Inc()
}

// ObserveRequest records the time since start under route.
func (m *Metrics) ObserveRequest(route string, start time.Time) {
	m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}
