package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "traffic_monitor"

// Metrics holds the Prometheus collectors for the poller, notifier and
// dashboard.
type Metrics struct {
	PollerRunning prometheus.Gauge
	Rounds        prometheus.Counter
	RoundsSkipped prometheus.Counter
	RoundDuration prometheus.Histogram

	// Per-source metrics.
	FetchErrors             *prometheus.CounterVec // labels: source, kind={network,http_status,parse}
	IncidentsFetched        *prometheus.CounterVec // labels: source
	ClassificationFallbacks *prometheus.CounterVec // labels: source
	SourceState             *prometheus.GaugeVec   // labels: source; value is the State ordinal

	// Dedup and delivery.
	Decisions          *prometheus.CounterVec // labels: source, action, reason
	Notifications      *prometheus.CounterVec // labels: source, outcome={sent,network,http_status,unauthorized}
	DedupStoreSize     prometheus.Gauge
	DecisionsPublished *prometheus.CounterVec // labels: outcome={success,error}

	BoardRefreshes *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates all metrics and registers them with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewMetricsForTesting registers with a throwaway registry so repeated calls
// from tests do not panic with "already registered".
func NewMetricsForTesting() *Metrics {
	return newMetrics(prometheus.NewRegistry())
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PollerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poller_running",
			Help:      "1 while the poll scheduler is active, 0 when shut down.",
		}),
		Rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Completed poll rounds.",
		}),
		RoundsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_skipped_total",
			Help:      "Ticks dropped because the previous round was still running.",
		}),
		RoundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_duration_seconds",
			Help:      "Duration of a complete poll round across all sources.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Feed fetch failures by source and kind.",
		}, []string{"source", "kind"}),
		IncidentsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_fetched_total",
			Help:      "Normalized incidents returned by each source.",
		}, []string{"source"}),
		ClassificationFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classification_fallbacks_total",
			Help:      "Incidents classified by the default rule.",
		}, []string{"source"}),
		SourceState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_state",
			Help:      "Current cycle state per source (0 idle, 1 fetching, 2 normalizing, 3 deduping, 4 notifying).",
		}, []string{"source"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Dedup decisions by source, action and reason.",
		}, []string{"source", "action", "reason"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		DedupStoreSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dedup_store_size",
			Help:      "Records held by the transient dedup store after reconciliation.",
		}),
		DecisionsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_published_total",
			Help:      "Decision batches written to the decision stream.",
		}, []string{"outcome"}),
		BoardRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "board_refreshes_total",
			Help:      "Dashboard refreshes by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.PollerRunning,
		m.Rounds,
		m.RoundsSkipped,
		m.RoundDuration,
		m.FetchErrors,
		m.IncidentsFetched,
		m.ClassificationFallbacks,
		m.SourceState,
		m.Decisions,
		m.Notifications,
		m.DedupStoreSize,
		m.DecisionsPublished,
		m.BoardRefreshes,
	)

	return m
}
