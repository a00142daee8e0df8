// Package metrics exposes the Prometheus collectors of the storefront client
// and its mock backend.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	clientRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Outgoing API attempts by method, endpoint and status.",
		},
		[]string{"method", "endpoint", "status"},
	)

	clientDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outgoing API attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "endpoint"},
	)

	clientRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "client",
			Name:      "retries_total",
			Help:      "Automatic retries issued by the API client.",
		},
		[]string{"method", "endpoint"},
	)

	loadingActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: "ui",
			Name:      "loading",
			Help:      "1 while the named loading flag is set.",
		},
		[]string{"type"},
	)

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests served.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests served.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests served.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(
		clientRequests,
		clientDuration,
		clientRetries,
		loadingActive,
		httpInFlight,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordClientAttempt records one outgoing attempt. status 0 means no
// response was received.
func RecordClientAttempt(method, endpoint string, status int, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	endpoint = CanonicalPath(endpoint)
	clientRequests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	clientDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordClientRetry records an automatic retry.
func RecordClientRetry(method, endpoint string) {
	clientRetries.WithLabelValues(method, CanonicalPath(endpoint)).Inc()
}

// SetLoading mirrors a loading flag.
func SetLoading(loadingType string, active bool) {
	v := 0.0
	if active {
		v = 1
	}
	loadingActive.WithLabelValues(loadingType).Set(v)
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		path := CanonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// CanonicalPath collapses entity ids and query strings so label cardinality
// stays bounded: /products/p3?x=1 becomes /products/:id.
func CanonicalPath(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	for i, p := range parts {
		if i == 0 || isStaticSegment(p) {
			continue
		}
		parts[i] = ":id"
	}
	return "/" + strings.Join(parts, "/")
}

var staticSegments = map[string]bool{
	"featured": true, "search": true, "items": true, "profile": true,
	"addresses": true, "login": true, "articles": true, "heritage": true,
	"fault": true, "reset": true, "state": true, "api": true, "products": true,
	"categories": true, "content": true, "user": true, "cart": true,
	"orders": true, "auth": true, "admin": true,
}

func isStaticSegment(s string) bool {
	return staticSegments[s]
}
