package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// aggregation pipeline.
type Metrics struct {
	PipelineRunning prometheus.Gauge
	YearsCompleted  prometheus.Counter
	YearsFailed     prometheus.Counter

	// Overlay diagnostics, set once when the extraction point set is built.
	SubPolygonsRetained prometheus.Gauge
	SliversDropped      prometheus.Gauge
	UnassignedDropped   prometheus.Gauge
	PointsGapFilled     prometheus.Gauge

	// Per-year output quality.
	RecordsWritten     *prometheus.CounterVec // label: format={csv,parquet}
	MissingResults     prometheus.Counter
	OrderingViolations prometheus.Counter

	YearProcessingDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PipelineRunning,
		m.YearsCompleted,
		m.YearsFailed,
		m.SubPolygonsRetained,
		m.SliversDropped,
		m.UnassignedDropped,
		m.PointsGapFilled,
		m.RecordsWritten,
		m.MissingResults,
		m.OrderingViolations,
		m.YearProcessingDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "era5_heat",
			Name:      "pipeline_running",
			Help:      "1 while a processing year is active, 0 otherwise.",
		}),
		YearsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "era5_heat",
			Name:      "years_completed_total",
			Help:      "Processing years that finished and wrote output.",
		}),
		YearsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "era5_heat",
			Name:      "years_failed_total",
			Help:      "Processing years that aborted with a fatal error.",
		}),
		SubPolygonsRetained: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "era5_heat",
			Name:      "overlay_subpolygons_retained",
			Help:      "Sub-polygons kept after dropping unassigned pieces and slivers.",
		}),
		SliversDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "era5_heat",
			Name:      "overlay_slivers_dropped",
			Help:      "Overlay pieces dropped for falling below the area threshold.",
		}),
		UnassignedDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "era5_heat",
			Name:      "overlay_unassigned_dropped",
			Help:      "Overlay pieces dropped for lacking an administrative ID.",
		}),
		PointsGapFilled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "era5_heat",
			Name:      "points_gap_filled",
			Help:      "Extraction points substituted from their nearest covered neighbor.",
		}),
		RecordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "era5_heat",
			Name:      "records_written_total",
			Help:      "Output rows written, by sink format.",
		}, []string{"format"}),
		MissingResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "era5_heat",
			Name:      "missing_results_total",
			Help:      "Output (unit, day, variable) results with no value.",
		}),
		OrderingViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "era5_heat",
			Name:      "ordering_violations_total",
			Help:      "Output rows violating min <= mean <= max.",
		}),
		YearProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "era5_heat",
			Name:      "year_processing_duration_seconds",
			Help:      "Wall time to process one year end to end.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		}),
	}
}
