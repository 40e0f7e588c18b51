package observability

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type ledgerMetrics struct {
	instructions *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	rejections   *prometheus.CounterVec
}

type httpMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics

	httpMetricsOnce sync.Once
	httpRegistry    *httpMetrics
)

// Ledger returns the lazily-initialised metrics tracking instruction execution.
func Ledger() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sharepool",
				Name:      "instructions_total",
				Help:      "Instructions processed segmented by type and outcome.",
			}, []string{"op", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "sharepool",
				Name:      "instruction_duration_seconds",
				Help:      "Latency distribution for applying an instruction, commit included.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sharepool",
				Name:      "instruction_rejections_total",
				Help:      "Rejected instructions segmented by type and error code.",
			}, []string{"op", "code"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.instructions,
			ledgerRegistry.latency,
			ledgerRegistry.rejections,
		)
	})
	return ledgerRegistry
}

// Observe records one applied or rejected instruction. code is empty on success.
func (m *ledgerMetrics) Observe(op, code string, duration time.Duration) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if code != "" {
		outcome = "error"
		m.rejections.WithLabelValues(op, code).Inc()
	}
	m.instructions.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// HTTP returns the metrics registry for the RPC server.
func HTTP() *httpMetrics {
	httpMetricsOnce.Do(func() {
		httpRegistry = &httpMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sharepool",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests segmented by route, method and status code.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "sharepool",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for HTTP handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sharepool",
				Subsystem: "http",
				Name:      "throttles_total",
				Help:      "Requests rejected by the rate limiter.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(httpRegistry.requests, httpRegistry.latency, httpRegistry.throttles)
	})
	return httpRegistry
}

// Observe records the outcome of one HTTP request.
func (m *httpMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, strings.ToUpper(method), strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route, strings.ToUpper(method)).Observe(duration.Seconds())
}

// RecordThrottle counts a rate-limited request. Reasons should be stable strings
// such as "rate_limit" so dashboards remain consistent.
func (m *httpMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}
