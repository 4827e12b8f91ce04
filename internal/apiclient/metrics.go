package apiclient

import (
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts API calls per route and outcome on a private registry,
// so a run can dump them in textfile-collector format when it ends.
type Metrics struct {
	registry *prometheus.Registry
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates and registers the call metrics.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.calls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickcheck_api_calls_total",
			Help: "Total number of API calls issued by the harness",
		},
		[]string{"method", "route", "outcome"},
	)
	m.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tickcheck_api_call_duration_seconds",
			Help:    "Duration of API calls issued by the harness",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.registry.MustRegister(m.calls, m.duration)
	return m
}

// Observe records one call.
func (m *Metrics) Observe(method, endpoint, outcome string, d time.Duration) {
	route := Route(endpoint)
	m.calls.WithLabelValues(method, route, outcome).Inc()
	m.duration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Registry exposes the registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current metrics to path.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

var numericSegment = regexp.MustCompile(`^[0-9]+$`)

// Route collapses an endpoint into a low-cardinality label: the query is
// dropped and numeric path segments become ":id".
func Route(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		endpoint = endpoint[:i]
	}
	parts := strings.Split(endpoint, "/")
	for i, p := range parts {
		if numericSegment.MatchString(p) {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
