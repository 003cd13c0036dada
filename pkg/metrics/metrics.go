// Package metrics provides Prometheus metrics for the assistant: HTTP traffic,
// dispatched intents, completion calls and memory store operations.
package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Completion outcomes.
const (
	CompletionOK      = "ok"
	CompletionError   = "error"
	CompletionTimeout = "timeout"
)

// Metrics holds the assistant collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	TotalHTTPRequestsCounter prometheus.Counter
	HTTPDurationHistogram    prometheus.Histogram

	mu                   sync.Mutex
	httpResponseCounters map[int]prometheus.Counter

	Intents            *prometheus.CounterVec
	Completions        *prometheus.CounterVec
	CompletionDuration prometheus.Histogram
	StoreOperations    *prometheus.CounterVec

	namespace string
}

// NewMetrics creates a Metrics instance whose metric names are prefixed with namespace.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		reg:                  prometheus.NewRegistry(),
		httpResponseCounters: make(map[int]prometheus.Counter),
		namespace:            namespace,
	}

	m.TotalHTTPRequestsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "total_http_requests",
		Help:      "Total HTTP requests",
	})
	m.HTTPDurationHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   []float64{0.1, 0.3, 0.5, 0.7, 1.0, 3.0, 5.0, 7.0, 10.0, 30.0},
	})
	m.Intents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "intents_total",
		Help:      "Utterances handled, by dispatch rule",
	}, []string{"intent"})
	m.Completions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "completions_total",
		Help:      "Fallback completion calls, by outcome",
	}, []string{"outcome"})
	m.CompletionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "completion_duration_seconds",
		Help:      "Fallback completion latency in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 25},
	})
	m.StoreOperations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_operations_total",
		Help:      "Memory store operations, by operation and status",
	}, []string{"operation", "status"})

	m.reg.MustRegister(
		m.TotalHTTPRequestsCounter,
		m.HTTPDurationHistogram,
		m.Intents,
		m.Completions,
		m.CompletionDuration,
		m.StoreOperations,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveIntent counts one utterance handled by the named rule.
func (m *Metrics) ObserveIntent(intent string) {
	if m == nil {
		return
	}
	m.Intents.WithLabelValues(intent).Inc()
}

// ObserveCompletion records the outcome and latency of one completion call.
func (m *Metrics) ObserveCompletion(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Completions.WithLabelValues(outcome).Inc()
	m.CompletionDuration.Observe(d.Seconds())
}

// ObserveStoreOp counts one memory store operation.
func (m *Metrics) ObserveStoreOp(operation, status string) {
	if m == nil {
		return
	}
	m.StoreOperations.WithLabelValues(operation, status).Inc()
}

// AddCustomMetric registers a custom Prometheus collector.
func (m *Metrics) AddCustomMetric(c prometheus.Collector) {
	m.reg.MustRegister(c)
}

// IncrementHTTPResponseCounter increments the counter for the given HTTP status code.
func (m *Metrics) IncrementHTTPResponseCounter(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.httpResponseCounters[code]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace,
			Name:      fmt.Sprintf("total_%d_http_responses", code),
			Help:      fmt.Sprintf("Total %s HTTP responses returned", http.StatusText(code)),
		})
		m.reg.MustRegister(c)
		m.httpResponseCounters[code] = c
	}
	c.Inc()
}

// HTTPMiddleware returns a Chi-compatible middleware that tracks HTTP metrics
func (m *Metrics) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.TotalHTTPRequestsCounter.Inc()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			m.HTTPDurationHistogram.Observe(time.Since(start).Seconds())
			m.IncrementHTTPResponseCounter(rw.statusCode)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
