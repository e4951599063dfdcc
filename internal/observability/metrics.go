package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "covid_history"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// refresh pipeline and query API.
type Metrics struct {
	// Refresh cycle metrics.
	Refreshes       *prometheus.CounterVec // labels: outcome={success,error,stale}
	RefreshDuration prometheus.Histogram
	SchedulerActive prometheus.Gauge

	// Source metrics.
	FetchDuration *prometheus.HistogramVec // labels: resource
	FetchErrors   *prometheus.CounterVec   // labels: resource
	ParseErrors   *prometheus.CounterVec   // labels: resource

	// Snapshot metrics.
	SnapshotRecords   prometheus.Gauge
	SnapshotTimestamp prometheus.Gauge

	// Query metrics.
	Queries    *prometheus.CounterVec // labels: outcome={ok,empty}
	QueryCache *prometheus.CounterVec // labels: result={hit,miss}

	// Publisher metrics.
	RecordsPublished prometheus.Counter
	PublishErrors    prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Refreshes,
		m.RefreshDuration,
		m.SchedulerActive,
		m.FetchDuration,
		m.FetchErrors,
		m.ParseErrors,
		m.SnapshotRecords,
		m.SnapshotTimestamp,
		m.Queries,
		m.QueryCache,
		m.RecordsPublished,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Refresh cycles by outcome.",
		}, []string{"outcome"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete fetch-reshape-persist cycle.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		SchedulerActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 when the periodic refresh loop is active, 0 when shut down.",
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Source file download and parse duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"resource"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Source fetch failures by resource.",
		}, []string{"resource"}),
		ParseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Malformed cells treated as missing values, by resource.",
		}, []string{"resource"}),
		SnapshotRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_records",
			Help:      "Number of records in the active unified table.",
		}),
		SnapshotTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_timestamp_seconds",
			Help:      "Unix time at which the active snapshot was fetched.",
		}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Series queries by outcome.",
		}, []string{"outcome"}),
		QueryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_total",
			Help:      "Series query cache lookups by result.",
		}, []string{"result"}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Latest-day records written to the Kafka feed.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed snapshot publications.",
		}),
	}
}
