package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ProjectionMetrics records indexer progress. It satisfies the projection
// Observer and the chain FailureObserver.
type ProjectionMetrics struct {
	registry         *prometheus.Registry
	applied          *prometheus.CounterVec
	skipped          *prometheus.CounterVec
	accessorFailures *prometheus.CounterVec
	applyDuration    *prometheus.HistogramVec
	lastBlock        prometheus.Gauge
}

// NewProjection builds the collectors on a private registry so that several
// indexers, or tests, never collide on registration.
func NewProjection() *ProjectionMetrics {
	m := &ProjectionMetrics{
		registry: prometheus.NewRegistry(),
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logbook",
			Subsystem: "projection",
			Name:      "events_applied_total",
			Help:      "Count of contract events applied by type.",
		}, []string{"type"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logbook",
			Subsystem: "projection",
			Name:      "skipped_total",
			Help:      "Count of mutations skipped because a referenced entity was absent or already recorded.",
		}, []string{"type", "reason"}),
		accessorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "logbook",
			Subsystem: "chain",
			Name:      "accessor_failures_total",
			Help:      "Count of contract reads that failed and fell back to defaults.",
		}, []string{"call"}),
		applyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "logbook",
			Subsystem: "projection",
			Name:      "apply_duration_seconds",
			Help:      "Latency of applying a single event, including contract reads.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		lastBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "logbook",
			Subsystem: "projection",
			Name:      "last_block",
			Help:      "Last block fully applied and checkpointed.",
		}),
	}
	m.registry.MustRegister(
		m.applied,
		m.skipped,
		m.accessorFailures,
		m.applyDuration,
		m.lastBlock,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *ProjectionMetrics) Applied(eventType string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.applied.WithLabelValues(eventType).Inc()
	m.applyDuration.WithLabelValues(eventType).Observe(elapsed.Seconds())
}

func (m *ProjectionMetrics) Skipped(eventType, reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(eventType, reason).Inc()
}

func (m *ProjectionMetrics) AccessorFailed(call string) {
	if m == nil {
		return
	}
	m.accessorFailures.WithLabelValues(call).Inc()
}

func (m *ProjectionMetrics) SetLastBlock(block uint64) {
	if m == nil {
		return
	}
	m.lastBlock.Set(float64(block))
}

// Handler exposes the registry in the Prometheus text format.
func (m *ProjectionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
