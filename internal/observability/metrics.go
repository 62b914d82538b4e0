package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hydro"

// Metrics holds the Prometheus counters, histograms, and gauges for telemetry
// ingestion and snapshot materialization.
type Metrics struct {
	// Record store metrics.
	FilesRead      prometheus.Counter
	FileErrors     *prometheus.CounterVec // labels: kind={list,read,parse}
	PartitionsRead prometheus.Counter

	// Merge and history metrics.
	StationsMerged           prometheus.Gauge
	StationsMissingTelemetry prometheus.Gauge
	HistoricalRequests       *prometheus.CounterVec // labels: interval, outcome={success,invalid,error}

	// Materializer metrics.
	MaterializeRuns     *prometheus.CounterVec // labels: outcome={success,error}
	MaterializeDuration prometheus.Histogram
	SnapshotStations    prometheus.Gauge
	MaterializerRunning prometheus.Gauge

	// Tile timestamp metrics.
	TimestampCache       *prometheus.CounterVec // labels: result={hit,miss}
	TimestampAPIDuration prometheus.Histogram

	// Tile image proxy.
	TileRequests *prometheus.CounterVec // labels: status
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FilesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_files_read_total",
			Help:      "Per-station daily files parsed successfully.",
		}),
		FileErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_file_errors_total",
			Help:      "Record store units skipped, by failure kind.",
		}, []string{"kind"}),
		PartitionsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partitions_read_total",
			Help:      "Year/month partitions listed for historical requests.",
		}),
		StationsMerged: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stations_merged",
			Help:      "Stations produced by the most recent inventory merge.",
		}),
		StationsMissingTelemetry: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "station_days_missing_telemetry",
			Help:      "Station-day files absent or unreadable in the most recent merge.",
		}),
		HistoricalRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "historical_requests_total",
			Help:      "Historical window requests by interval and outcome.",
		}, []string{"interval", "outcome"}),
		MaterializeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "materialize_runs_total",
			Help:      "Snapshot materialization runs by outcome.",
		}, []string{"outcome"}),
		MaterializeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "materialize_duration_seconds",
			Help:      "Duration of a complete snapshot materialization.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		SnapshotStations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_stations",
			Help:      "Stations written to the most recent snapshot.",
		}),
		MaterializerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "materializer_running",
			Help:      "1 when the scheduled materializer is active, 0 when stopped.",
		}),
		TimestampCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_timestamp_cache_total",
			Help:      "Tile timestamp cache lookups by result.",
		}, []string{"result"}),
		TimestampAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tile_timestamp_api_duration_seconds",
			Help:      "RealEarth times API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		TileRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_requests_total",
			Help:      "RealEarth image API requests by upstream status (\"error\" on transport failure).",
		}, []string{"status"}),
	}

	prometheus.MustRegister(
		m.FilesRead,
		m.FileErrors,
		m.PartitionsRead,
		m.StationsMerged,
		m.StationsMissingTelemetry,
		m.HistoricalRequests,
		m.MaterializeRuns,
		m.MaterializeDuration,
		m.SnapshotStations,
		m.MaterializerRunning,
		m.TimestampCache,
		m.TimestampAPIDuration,
		m.TileRequests,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FilesRead:                prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "station_files_read_total"}),
		FileErrors:               prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "station_file_errors_total"}, []string{"kind"}),
		PartitionsRead:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "partitions_read_total"}),
		StationsMerged:           prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "stations_merged"}),
		StationsMissingTelemetry: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "station_days_missing_telemetry"}),
		HistoricalRequests:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "historical_requests_total"}, []string{"interval", "outcome"}),
		MaterializeRuns:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "materialize_runs_total"}, []string{"outcome"}),
		MaterializeDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "materialize_duration_seconds"}),
		SnapshotStations:         prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "snapshot_stations"}),
		MaterializerRunning:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "materializer_running"}),
		TimestampCache:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "tile_timestamp_cache_total"}, []string{"result"}),
		TimestampAPIDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "tile_timestamp_api_duration_seconds"}),
		TileRequests:             prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "tile_requests_total"}, []string{"status"}),
	}
}
