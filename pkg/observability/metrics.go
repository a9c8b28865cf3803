// Package observability provides Prometheus metrics, health checks and
// the HTTP server that exposes them for the conversation memory service.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session metrics
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatmem_sessions_active",
			Help: "Number of sessions currently retained in the store",
		},
	)

	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmem_messages_total",
			Help: "Total number of messages ingested",
		},
		[]string{"role"},
	)

	// Summarization metrics
	summarizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmem_summarizations_total",
			Help: "Summarization attempts by outcome",
		},
		[]string{"outcome"},
	)

	summarizationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatmem_summarization_duration_seconds",
			Help:    "Summarization call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Lifecycle metrics
	evictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmem_sessions_evicted_total",
			Help: "Sessions evicted from the store by reason",
		},
		[]string{"reason"},
	)

	recoveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmem_corruption_recoveries_total",
			Help: "Corruption guard recoveries by outcome",
		},
		[]string{"outcome"},
	)

	cleanupRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatmem_cleanup_runs_total",
			Help: "Total number of cleanup passes executed",
		},
	)

	initOnce sync.Once
)

// InitMetrics registers all metrics with the default registry.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			activeSessions,
			messagesTotal,
			summarizationsTotal,
			summarizationDuration,
			evictionsTotal,
			recoveriesTotal,
			cleanupRunsTotal,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// SetActiveSessions sets the retained-session gauge.
func SetActiveSessions(count int) {
	activeSessions.Set(float64(count))
}

// RecordMessage counts one ingested message.
func RecordMessage(role string) {
	messagesTotal.WithLabelValues(role).Inc()
}

// RecordSummarization counts one summarization attempt. A zero duration
// is recorded only for outcomes that never reached the backend.
func RecordSummarization(outcome string, duration time.Duration) {
	summarizationsTotal.WithLabelValues(outcome).Inc()
	if duration > 0 {
		summarizationDuration.Observe(duration.Seconds())
	}
}

// RecordEvictions counts evicted sessions by reason.
func RecordEvictions(reason string, count int) {
	evictionsTotal.WithLabelValues(reason).Add(float64(count))
}

// RecordRecovery counts one corruption guard recovery by outcome.
func RecordRecovery(outcome string) {
	recoveriesTotal.WithLabelValues(outcome).Inc()
}

// RecordCleanupRun counts one cleanup pass.
func RecordCleanupRun() {
	cleanupRunsTotal.Inc()
}
