package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// defaultNamespace prefixes every metric name.
const defaultNamespace = "recorder_launcher"

// PrometheusCollector implements Collector on a private Prometheus registry.
type PrometheusCollector struct {
	downloadedBytes *prometheus.CounterVec
	provisioned     *prometheus.CounterVec
	backendStarts   *prometheus.CounterVec
	readiness       prometheus.Histogram

	registry *prometheus.Registry
}

// NewPrometheusCollector creates and registers the launcher metrics.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	if namespace == "" {
		namespace = defaultNamespace
	}

	c := &PrometheusCollector{
		registry: prometheus.NewRegistry(),
	}

	c.downloadedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloaded_bytes_total",
			Help:      "Bytes transferred while fetching dependencies",
		},
		[]string{"resource"},
	)

	c.provisioned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resources_provisioned_total",
			Help:      "Provisioned resources by outcome",
		},
		[]string{"resource", "outcome"},
	)

	c.backendStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_starts_total",
			Help:      "Backend start attempts by outcome",
		},
		[]string{"outcome"},
	)

	c.readiness = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_readiness_seconds",
			Help:      "Time from spawning the backend until it reports readiness",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	c.registry.MustRegister(c.downloadedBytes, c.provisioned, c.backendStarts, c.readiness)

	return c
}

// DownloadedBytes adds n transferred bytes for a resource.
func (c *PrometheusCollector) DownloadedBytes(resource string, n int64) {
	c.downloadedBytes.WithLabelValues(resource).Add(float64(n))
}

// ResourceProvisioned records the outcome of provisioning one resource.
func (c *PrometheusCollector) ResourceProvisioned(resource string, outcome Outcome) {
	c.provisioned.WithLabelValues(resource, string(outcome)).Inc()
}

// BackendStart records how a backend start attempt settled.
func (c *PrometheusCollector) BackendStart(outcome Outcome) {
	c.backendStarts.WithLabelValues(string(outcome)).Inc()
}

// BackendReadiness records the time from spawn to readiness.
func (c *PrometheusCollector) BackendReadiness(d time.Duration) {
	c.readiness.Observe(d.Seconds())
}

// Registry exposes the private registry.
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
