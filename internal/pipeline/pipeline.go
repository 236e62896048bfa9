package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat"

	"github.com/imonbus/safety-data-etl/internal/config"
	"github.com/imonbus/safety-data-etl/internal/dataset"
	"github.com/imonbus/safety-data-etl/internal/domain"
	"github.com/imonbus/safety-data-etl/internal/observability"
)

// Sources are the three loaded input tables. The pipeline never touches the
// filesystem; callers load the tables and sinks write the artifact.
type Sources struct {
	Survey    *dataset.Table
	Incidents *dataset.Table
	Streets   *dataset.Table
}

// Params are the knobs for one run.
type Params struct {
	Bound              orb.Bound
	Grid               domain.GridSpec
	StreetMinIncidents int
	HeatmapPointCap    int
	Scoring            domain.Scoring
}

// ParamsFromConfig builds run parameters from the environment configuration,
// with the default scoring tables.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		Bound:              cfg.Bound,
		Grid:               cfg.Grid,
		StreetMinIncidents: cfg.StreetMinIncidents,
		HeatmapPointCap:    cfg.HeatmapPointCap,
		Scoring:            domain.DefaultScoring(),
	}
}

// Report summarizes one run for logs, the archive, and the metrics push.
type Report struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	SurveyRows    int
	Neighborhoods int
	UnsafePlaces  map[string]int

	IncidentsTotal    int
	IncidentsInBounds int
	GridCells         int
	MaxCellCount      int
	MeanCellCount     float64
	HeatmapPoints     int

	StreetsRanked int

	// ArtifactBytes is filled in by the caller once the artifact is on disk.
	ArtifactBytes int64
}

// Pipeline runs the survey, incident, and street stages and assembles the
// artifact.
type Pipeline struct {
	params  Params
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Pipeline with the given parameters and observability.
func New(params Params, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		params:  params,
		logger:  logger,
		metrics: metrics,
	}
}

// Run executes the three stages in order, checking for cancellation between
// them, and assembles the artifact. The returned Report is valid for the
// stages that completed even when an error cuts the run short.
func (p *Pipeline) Run(ctx context.Context, src Sources) (domain.Artifact, Report, error) {
	report := Report{
		RunID:     uuid.NewString(),
		StartedAt: domain.Now(),
	}
	start := time.Now()

	p.logger.Info("pipeline started",
		"run_id", report.RunID,
		"survey_rows", len(src.Survey.Rows),
		"incident_rows", len(src.Incidents.Rows),
		"street_rows", len(src.Streets.Rows),
	)

	scores, err := p.surveyStage(src.Survey, &report)
	if err != nil {
		return domain.Artifact{}, report, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Artifact{}, report, err
	}

	binned, err := p.incidentStage(src.Incidents, &report)
	if err != nil {
		return domain.Artifact{}, report, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Artifact{}, report, err
	}

	streets, err := p.streetStage(src.Streets, &report)
	if err != nil {
		return domain.Artifact{}, report, err
	}

	artifact := p.assemble(scores, binned, streets, &report)
	report.Duration = time.Since(start)

	p.logger.Info("pipeline finished",
		"run_id", report.RunID,
		"duration", report.Duration,
		"neighborhoods", report.Neighborhoods,
		"grid_cells", report.GridCells,
		"heatmap_points", report.HeatmapPoints,
		"streets_ranked", report.StreetsRanked,
	)

	return artifact, report, nil
}

// surveyStage resolves the survey vocabulary, aggregates per-neighborhood
// scores, and logs the risk ranking plus the unsafe-place tally.
func (p *Pipeline) surveyStage(survey *dataset.Table, report *Report) (map[string]domain.NeighborhoodScore, error) {
	defer p.observeStage("survey", time.Now())

	cols, err := domain.ResolveSurveyColumns(survey)
	if err != nil {
		return nil, fmt.Errorf("resolve survey columns: %w", err)
	}
	p.logger.Debug("survey columns resolved",
		"neighborhood", cols.Neighborhood,
		"yes_no", len(cols.YesNo),
		"intensity", len(cols.Intensity),
		"unsafe_places", len(cols.UnsafePlaces),
	)

	scores := domain.AggregateNeighborhoods(survey, cols, p.params.Scoring)
	unmapped := domain.CountUnmapped(survey, cols, p.params.Scoring)

	counted := 0
	for _, s := range scores {
		counted += s.Count
	}
	skipped := len(survey.Rows) - counted

	p.metrics.SurveyRows.Add(float64(len(survey.Rows)))
	p.metrics.UnmappedResponses.Add(float64(unmapped))
	p.metrics.SkippedSurveyRows.Add(float64(skipped))
	p.metrics.Neighborhoods.Set(float64(len(scores)))

	report.SurveyRows = len(survey.Rows)
	report.Neighborhoods = len(scores)
	report.UnsafePlaces = domain.TallyUnsafePlaces(survey, cols.UnsafePlaces)

	p.logger.Info("survey aggregated",
		"rows", len(survey.Rows),
		"neighborhoods", len(scores),
		"skipped_rows", skipped,
		"unmapped_answers", unmapped,
	)
	p.logger.Info("neighborhood ranking", "by_risk", riskRanking(scores))
	if len(report.UnsafePlaces) > 0 {
		p.logger.Info("unsafe places", "tally", sortedTally(report.UnsafePlaces))
	}

	return scores, nil
}

// incidentStage filters and bins the geolocated incidents.
func (p *Pipeline) incidentStage(incidents *dataset.Table, report *Report) (domain.BinnedIncidents, error) {
	defer p.observeStage("incidents", time.Now())

	binned, err := domain.BinIncidents(incidents, p.params.Bound, p.params.Grid)
	if err != nil {
		return domain.BinnedIncidents{}, fmt.Errorf("bin incidents: %w", err)
	}

	p.metrics.IncidentsTotal.Add(float64(binned.Total))
	p.metrics.IncidentsOutOfBounds.Add(float64(binned.OutOfBounds))
	p.metrics.IncidentsBadCoord.Add(float64(binned.BadCoord))
	p.metrics.GridCells.Set(float64(len(binned.Cells)))

	report.IncidentsTotal = binned.Total
	report.IncidentsInBounds = len(binned.Points)
	report.GridCells = len(binned.Cells)
	report.MaxCellCount = binned.MaxCellCount()
	report.MeanCellCount = meanCellCount(binned.Cells)

	p.logger.Info("incidents binned",
		"total", binned.Total,
		"in_bounds", len(binned.Points),
		"out_of_bounds", binned.OutOfBounds,
		"bad_coordinates", binned.BadCoord,
		"grid_cells", len(binned.Cells),
		"max_cell", busiestCell(binned.Cells),
		"max_cell_count", report.MaxCellCount,
	)

	return binned, nil
}

// streetStage counts incidents per street name and applies the floor.
func (p *Pipeline) streetStage(streets *dataset.Table, report *Report) (map[string]int, error) {
	defer p.observeStage("streets", time.Now())

	ranked, err := domain.RankStreets(streets, p.params.StreetMinIncidents)
	if err != nil {
		return nil, fmt.Errorf("rank streets: %w", err)
	}

	p.metrics.StreetRecords.Add(float64(len(streets.Rows)))
	p.metrics.RankedStreets.Set(float64(len(ranked)))

	report.StreetsRanked = len(ranked)

	p.logger.Info("streets ranked",
		"records", len(streets.Rows),
		"ranked", len(ranked),
		"min_incidents", p.params.StreetMinIncidents,
	)

	return ranked, nil
}

// assemble builds the artifact and applies the heatmap point cap.
func (p *Pipeline) assemble(scores map[string]domain.NeighborhoodScore, binned domain.BinnedIncidents, streets map[string]int, report *Report) domain.Artifact {
	defer p.observeStage("assemble", time.Now())

	artifact := domain.NewArtifact(scores, binned.Cells, p.params.Grid, streets, binned.Points, p.params.HeatmapPointCap)

	p.metrics.HeatmapPoints.Set(float64(len(artifact.IncidentPoints)))
	report.HeatmapPoints = len(artifact.IncidentPoints)

	return artifact
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// riskRanking formats neighborhoods descending by risk score for the log.
func riskRanking(scores map[string]domain.NeighborhoodScore) []string {
	ranked := domain.RankByRisk(scores)
	out := make([]string, len(ranked))
	for i, name := range ranked {
		out[i] = fmt.Sprintf("%s=%.3f", name, scores[name].RiskScore)
	}
	return out
}

// sortedTally formats the unsafe-place tally descending by count for the log.
func sortedTally(tally map[string]int) []string {
	names := make([]string, 0, len(tally))
	for name := range tally {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if tally[names[i]] != tally[names[j]] {
			return tally[names[i]] > tally[names[j]]
		}
		return names[i] < names[j]
	})

	out := make([]string, len(names))
	for i, name := range names {
		out[i] = fmt.Sprintf("%s=%d", name, tally[name])
	}
	return out
}

// busiestCell returns the key of the most loaded cell, ties broken by key so
// the log stays stable across runs.
func busiestCell(cells map[string]int) string {
	best, bestN := "", 0
	for key, n := range cells {
		if n > bestN || (n == bestN && bestN > 0 && key < best) {
			best, bestN = key, n
		}
	}
	return best
}

// meanCellCount is the average incident count across occupied cells.
func meanCellCount(cells map[string]int) float64 {
	if len(cells) == 0 {
		return 0
	}
	counts := make([]float64, 0, len(cells))
	for _, n := range cells {
		counts = append(counts, float64(n))
	}
	return stat.Mean(counts, nil)
}
