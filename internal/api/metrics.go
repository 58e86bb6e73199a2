package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "authvault_http_requests_total",
		Help: "Total number of HTTP requests to the local listener.",
	}, []string{"method", "path", "status"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "authvault_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	vaultHealthy = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "authvault_vault_healthy",
		Help: "Result of the last health check: 0=unreadable, 1=readable.",
	})
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, vaultHealthy)
}

// MetricsHandler returns the Prometheus metrics HTTP handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// metricsMiddleware records request metrics, labelled by route pattern.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rr := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rr, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		dur := time.Since(start).Seconds()
		requestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rr.statusCode)).Inc()
		requestDuration.WithLabelValues(r.Method, path).Observe(dur)
	})
}
