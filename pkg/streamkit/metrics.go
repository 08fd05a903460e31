package streamkit

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamkit_http_requests_total",
			Help: "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamkit_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamkit_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	)

	httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamkit_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000},
		},
		[]string{"method", "path", "status"},
	)
)

// PrometheusConfig configures the Prometheus middleware.
type PrometheusConfig struct {
	SkipPaths []string
}

// DefaultPrometheusConfig skips the /metrics endpoint itself.
func DefaultPrometheusConfig() PrometheusConfig {
	return PrometheusConfig{SkipPaths: []string{"/metrics"}}
}

// Prometheus returns a middleware recording request count, duration,
// in-flight gauge, and response size, ported from the teacher's
// pkg/celeris/metrics.go onto streamkit.Context.
func Prometheus() Middleware { return PrometheusWithConfig(DefaultPrometheusConfig()) }

// PrometheusWithConfig is Prometheus with an explicit skip-list.
func PrometheusWithConfig(config PrometheusConfig) Middleware {
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}

	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *Context) error {
			if skip[ctx.Path()] {
				return next.Serve(ctx)
			}

			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			err := next.Serve(ctx)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(ctx.Status())
			method, path := ctx.Method(), ctx.Path()

			httpRequestsTotal.WithLabelValues(method, path, status).Inc()
			httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
			httpResponseSize.WithLabelValues(method, path, status).Observe(float64(ctx.res.Body.Len()))

			return err
		})
	}
}
