package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wrf_postprocess"

// Metrics holds the Prometheus counters, histograms, and gauges for one run.
type Metrics struct {
	ChunksScanned  *prometheus.CounterVec // labels: state={ready,incomplete,missing}
	MissingYears   prometheus.Gauge
	FilesMatched   *prometheus.CounterVec // labels: kind
	ScanDuration   prometheus.Histogram
	ListingLookups *prometheus.CounterVec // labels: result={hit,miss}

	// Dispatch metrics.
	Invocations        *prometheus.CounterVec   // labels: collaborator, outcome={success,error,planned}
	InvocationDuration *prometheus.HistogramVec // labels: collaborator
	ObligationsSkipped *prometheus.CounterVec   // labels: collaborator
	Inconsistencies    prometheus.Counter

	// Readiness events.
	EventsPublished prometheus.Counter
	PublishErrors   prometheus.Counter

	// Command-file generation.
	CommandsEmitted *prometheus.CounterVec // labels: frequency
	CommandsSkipped *prometheus.CounterVec // labels: frequency

	LastSuccess prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		ChunksScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_scanned_total",
			Help:      "Chunk directories scanned by resulting state.",
		}, []string{"state"}),
		MissingYears: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "missing_years",
			Help:      "Counted years found incomplete across all chunks in the last scan.",
		}),
		FilesMatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_matched_total",
			Help:      "Raw output files recognized by pattern kind.",
		}, []string{"kind"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of a full fleet scan.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		ListingLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_lookups_total",
			Help:      "Directory listing cache lookups by result.",
		}, []string{"result"}),
		Invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Collaborator invocations by collaborator and outcome.",
		}, []string{"collaborator", "outcome"}),
		InvocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Wall time of collaborator invocations.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"collaborator"}),
		ObligationsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "obligations_skipped_total",
			Help:      "Obligations skipped because their output already exists.",
		}, []string{"collaborator"}),
		Inconsistencies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inconsistencies_total",
			Help:      "Ready chunks whose plot inputs were missing.",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readiness_events_published_total",
			Help:      "Chunk status events written to Kafka.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readiness_publish_errors_total",
			Help:      "Failed chunk status publishes.",
		}),
		CommandsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_emitted_total",
			Help:      "Command-file lines written by target frequency.",
		}, []string{"frequency"}),
		CommandsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_skipped_total",
			Help:      "Command groups skipped because their output exists.",
		}, []string{"frequency"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that finished without error.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ChunksScanned,
		m.MissingYears,
		m.FilesMatched,
		m.ScanDuration,
		m.ListingLookups,
		m.Invocations,
		m.InvocationDuration,
		m.ObligationsSkipped,
		m.Inconsistencies,
		m.EventsPublished,
		m.PublishErrors,
		m.CommandsEmitted,
		m.CommandsSkipped,
		m.LastSuccess,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsRegistry creates Metrics registered on a fresh registry, for
// commands that export their own metrics instead of the default registry's.
func NewMetricsRegistry() (*Metrics, *prometheus.Registry) {
	m := newMetrics()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.collectors()...)
	return m, reg
}

// NewMetricsForTesting creates Metrics registered on a fresh registry to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() (*Metrics, *prometheus.Registry) {
	return NewMetricsRegistry()
}
