package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for one
// pipeline run. Counters accumulate while the run processes rows; gauges are
// set once from the run report.
type Metrics struct {
	registry *prometheus.Registry

	// Survey metrics.
	SurveyRows        prometheus.Counter
	UnmappedResponses prometheus.Counter
	SkippedSurveyRows prometheus.Counter
	Neighborhoods     prometheus.Gauge

	// Incident metrics.
	IncidentsTotal       prometheus.Counter
	IncidentsOutOfBounds prometheus.Counter
	IncidentsBadCoord    prometheus.Counter
	GridCells            prometheus.Gauge
	HeatmapPoints        prometheus.Gauge

	// Street metrics.
	StreetRecords prometheus.Counter
	RankedStreets prometheus.Gauge

	StageDuration *prometheus.HistogramVec // label: stage={survey,incidents,streets,assemble}
	ArtifactBytes prometheus.Gauge
}

// NewMetrics creates all pipeline metrics on a private registry, the one
// PushMetrics ships to the Pushgateway at the end of a run.
func NewMetrics() *Metrics {
	m := newMetrics()
	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(
		m.SurveyRows,
		m.UnmappedResponses,
		m.SkippedSurveyRows,
		m.Neighborhoods,
		m.IncidentsTotal,
		m.IncidentsOutOfBounds,
		m.IncidentsBadCoord,
		m.GridCells,
		m.HeatmapPoints,
		m.StreetRecords,
		m.RankedStreets,
		m.StageDuration,
		m.ArtifactBytes,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can exercise the
// pipeline without a registry or a Pushgateway.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SurveyRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "safety_etl",
			Name:      "survey_rows_total",
			Help:      "Total survey responses read from the CSV.",
		}),
		UnmappedResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "safety_etl",
			Name:      "unmapped_responses_total",
			Help:      "Total answers with no score mapping, excluded from means.",
		}),
		SkippedSurveyRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "safety_etl",
			Name:      "skipped_survey_rows_total",
			Help:      "Total survey rows dropped for a blank neighborhood label.",
		}),
		Neighborhoods: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "safety_etl",
			Name:      "neighborhoods",
			Help:      "Distinct neighborhood labels scored in the run.",
		}),
		IncidentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "safety_etl",
			Name:      "incidents_total",
			Help:      "Total incident rows read from the CSV.",
		}),
		IncidentsOutOfBounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "safety_etl",
			Name:      "incidents_out_of_bounds_total",
			Help:      "Total incidents outside the bounding box.",
		}),
		IncidentsBadCoord: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "safety_etl",
			Name:      "incidents_bad_coordinate_total",
			Help:      "Total incidents with unparseable coordinates.",
		}),
		GridCells: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "safety_etl",
			Name:      "grid_cells",
			Help:      "Occupied heatmap grid cells in the run.",
		}),
		HeatmapPoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "safety_etl",
			Name:      "heatmap_points",
			Help:      "Incident points retained for the heatmap in the run.",
		}),
		StreetRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "safety_etl",
			Name:      "street_records_total",
			Help:      "Total street incident rows read from the CSV.",
		}),
		RankedStreets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "safety_etl",
			Name:      "ranked_streets",
			Help:      "Streets at or above the incident floor in the run.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "safety_etl",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}),
		ArtifactBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "safety_etl",
			Name:      "artifact_bytes",
			Help:      "Size of the written artifact in bytes.",
		}),
	}
}
