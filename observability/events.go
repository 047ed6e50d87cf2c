package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EventMetrics counts committed events and the deliveries lost by
// downstream consumers.
type EventMetrics struct {
	emitted *prometheus.CounterVec
	dropped *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *EventMetrics
)

// Events returns the lazily registered event metrics.
func Events() *EventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &EventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "credit",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Committed events by module and type.",
			}, []string{"module", "type"}),
			dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "credit",
				Subsystem: "events",
				Name:      "dropped_total",
				Help:      "Results a consumer could not accept, by consumer and reason.",
			}, []string{"consumer", "reason"}),
		}
		prometheus.MustRegister(eventRegistry.emitted, eventRegistry.dropped)
	})
	return eventRegistry
}

// RecordEvent counts one committed event of type "<module>.<action>".
func (m *EventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	normalized := normalizeLabel(eventType)
	module, _, _ := strings.Cut(normalized, ".")
	m.emitted.WithLabelValues(module, normalized).Inc()
}

// RecordDropped counts a result that consumer discarded.
func (m *EventMetrics) RecordDropped(consumer, reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(normalizeLabel(consumer), normalizeLabel(reason)).Inc()
}
