package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"sharepool/core/events"
)

type eventMetrics struct {
	published *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking published ledger events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sharepool",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.published)
	})
	return eventRegistry
}

// Emit implements events.Emitter so the registry can sit in the node's fanout.
func (m *eventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	typ := strings.TrimSpace(evt.EventType())
	if typ == "" {
		typ = "unknown"
	}
	m.published.WithLabelValues(typ).Inc()
}
