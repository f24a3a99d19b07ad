package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the request instrumentation and the registry it lives in.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestLatency   *prometheus.HistogramVec
	simulatedErrorsTotal prometheus.Counter
	httpRateLimitedTotal *prometheus.CounterVec
}

// NewCollector registers the service metrics plus Go runtime and process
// collectors on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_http_requests_total",
				Help: "Total number of HTTP requests handled by Beacon",
			},
			[]string{"route", "method", "status"},
		),
		httpRequestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beacon_http_request_latency_seconds",
				Help:    "Latency of HTTP requests handled by Beacon",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		simulatedErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "beacon_simulated_errors_total",
			Help: "Total number of simulated application errors served",
		}),
		httpRateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_http_rate_limited_total",
				Help: "Total number of HTTP requests rate limited by Beacon",
			},
			[]string{"route"},
		),
	}
}

// ObserveRequest records one finished request.
func (c *Collector) ObserveRequest(route, method, status string, seconds float64) {
	c.httpRequestsTotal.WithLabelValues(route, method, status).Inc()
	c.httpRequestLatency.WithLabelValues(route, method).Observe(seconds)
}

// SimulatedError counts one response from the error-simulation route.
func (c *Collector) SimulatedError() {
	c.simulatedErrorsTotal.Inc()
}

// RateLimited counts one rejected request.
func (c *Collector) RateLimited(route string) {
	c.httpRateLimitedTotal.WithLabelValues(route).Inc()
}

// Registry exposes the underlying registry, mostly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
