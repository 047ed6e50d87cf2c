package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// ExecutorMetrics tracks transactions processed by the executor.
type ExecutorMetrics struct {
	txs     *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// ProtocolMetrics tracks protocol level activity.
type ProtocolMetrics struct {
	accruals     *prometheus.CounterVec
	liquidations *prometheus.CounterVec
	actions      *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	executorMetricsOnce sync.Once
	executorRegistry    *ExecutorMetrics

	protocolMetricsOnce sync.Once
	protocolRegistry    *ProtocolMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record HTTP API activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "credit",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by module, method and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "credit",
				Subsystem: "api",
				Name:      "errors_total",
				Help:      "Total API errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "credit",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "credit",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// Executor returns the executor metrics registry.
func Executor() *ExecutorMetrics {
	executorMetricsOnce.Do(func() {
		executorRegistry = &ExecutorMetrics{
			txs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "credit",
				Subsystem: "executor",
				Name:      "transactions_total",
				Help:      "Transactions processed segmented by target contract and outcome.",
			}, []string{"contract", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "credit",
				Subsystem: "executor",
				Name:      "transaction_duration_seconds",
				Help:      "Wall time spent executing a transaction including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"contract"}),
		}
		prometheus.MustRegister(executorRegistry.txs, executorRegistry.latency)
	})
	return executorRegistry
}

// Observe records one transaction outcome.
func (m *ExecutorMetrics) Observe(contract string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	contract = normalizeLabel(contract)
	outcome := "committed"
	if err != nil {
		outcome = "reverted"
	}
	m.txs.WithLabelValues(contract, outcome).Inc()
	m.latency.WithLabelValues(contract).Observe(duration.Seconds())
}

// Protocol returns the protocol metrics registry.
func Protocol() *ProtocolMetrics {
	protocolMetricsOnce.Do(func() {
		protocolRegistry = &ProtocolMetrics{
			accruals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "credit",
				Subsystem: "redbank",
				Name:      "index_accruals_total",
				Help:      "Market index updates segmented by denom.",
			}, []string{"denom"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "credit",
				Subsystem: "protocol",
				Name:      "liquidations_total",
				Help:      "Liquidations segmented by engine and collateral bucket.",
			}, []string{"engine", "bucket"}),
			actions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "credit",
				Subsystem: "creditmanager",
				Name:      "actions_total",
				Help:      "Credit account actions dispatched segmented by action kind.",
			}, []string{"action"}),
		}
		prometheus.MustRegister(protocolRegistry.accruals, protocolRegistry.liquidations, protocolRegistry.actions)
	})
	return protocolRegistry
}

// RecordAccrual counts an index update for denom.
func (m *ProtocolMetrics) RecordAccrual(denom string) {
	if m == nil {
		return
	}
	m.accruals.WithLabelValues(normalizeLabel(denom)).Inc()
}

// RecordLiquidation counts a liquidation by engine ("redbank", "creditmanager")
// and collateral bucket.
func (m *ProtocolMetrics) RecordLiquidation(engine, bucket string) {
	if m == nil {
		return
	}
	m.liquidations.WithLabelValues(normalizeLabel(engine), normalizeLabel(bucket)).Inc()
}

// RecordAction counts a dispatched credit account action.
func (m *ProtocolMetrics) RecordAction(action string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(normalizeLabel(action)).Inc()
}

func normalizeLabel(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}
