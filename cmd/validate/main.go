// Command validate performs end-to-end integrity checks between the source
// CSVs and a generated artifact: column resolution, artifact shape, full
// recomputation of every aggregate, and grid geometry.
//
// Usage:
//
//	go run ./cmd/validate -data-dir dataset -artifact out/safetyData.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/imonbus/safety-data-etl/internal/dataset"
	"github.com/imonbus/safety-data-etl/internal/domain"
)

// artifactKeys are the top-level keys every artifact carries.
var artifactKeys = []string{
	"neighborhoodScores",
	"incidentGrid",
	"gridConfig",
	"dangerousStreets",
	"incidentPoints2023",
}

// artifactDoc mirrors the artifact with scores kept as raw field maps, since
// the flattened "<problem>_rate" keys only exist on the wire.
type artifactDoc struct {
	NeighborhoodScores map[string]map[string]float64 `json:"neighborhoodScores"`
	IncidentGrid       map[string]int                `json:"incidentGrid"`
	GridConfig         domain.GridSpec               `json:"gridConfig"`
	DangerousStreets   map[string]int                `json:"dangerousStreets"`
	IncidentPoints     []domain.HeatPoint            `json:"incidentPoints2023"`
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "", "directory containing the three source CSVs")
	surveyFile := flag.String("survey-file", "resource_sicurezza.csv", "survey CSV filename")
	incidentsFile := flag.String("incidents-file", "incidenti_2023.csv", "geolocated incidents CSV filename")
	streetsFile := flag.String("streets-file", "sinistri_2017.csv", "street-level incidents CSV filename")
	artifactPath := flag.String("artifact", "", "path to the generated artifact JSON")
	streetMin := flag.Int("street-min", 2, "street incident floor the artifact was built with")
	flag.Parse()

	if *dataDir == "" || *artifactPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dataDir, *surveyFile, *incidentsFile, *streetsFile, *artifactPath, *streetMin); code != 0 {
		os.Exit(code)
	}
}

func run(dataDir, surveyFile, incidentsFile, streetsFile, artifactPath string, streetMin int) int {
	fmt.Println("=== Safety Artifact Integrity Validation ===")
	fmt.Println()

	survey, err := dataset.Load(filepath.Join(dataDir, surveyFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load survey: %v\n", err)
		return 1
	}
	incidents, err := dataset.Load(filepath.Join(dataDir, incidentsFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load incidents: %v\n", err)
		return 1
	}
	streets, err := dataset.Load(filepath.Join(dataDir, streetsFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load streets: %v\n", err)
		return 1
	}

	data, err := os.ReadFile(artifactPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load artifact: %v\n", err)
		return 1
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse artifact: %v\n", err)
		return 1
	}
	var art artifactDoc
	if err := json.Unmarshal(data, &art); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse artifact: %v\n", err)
		return 1
	}

	// The bounding box is not recoverable from the artifact, so recomputation
	// assumes the production default.
	bound := domain.DefaultBound

	phases := []*phase{
		validateSourceColumns(survey, incidents, streets),
		validateArtifactShape(raw, art),
		validateRecomputation(art, survey, incidents, streets, bound, streetMin),
		validateGridGeometry(art, bound),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-44s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d survey, %d incidents, %d streets | %d neighborhoods, %d grid cells, %d ranked streets\n",
		len(survey.Rows), len(incidents.Rows), len(streets.Rows),
		len(art.NeighborhoodScores), len(art.IncidentGrid), len(art.DangerousStreets))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Source Columns ──
// Validates that every column the pipeline needs resolves in the CSVs.

func validateSourceColumns(survey, incidents, streets *dataset.Table) *phase {
	p := &phase{name: "Phase 1: Source Columns (CSV files)"}

	cols, err := domain.ResolveSurveyColumns(survey)
	if err != nil {
		p.errorf("survey: %v", err)
	} else {
		for _, prob := range domain.Problems {
			if _, ok := cols.YesNo[prob]; !ok {
				p.errorf("survey: no yes/no column for %q", prob)
			}
			if _, ok := cols.Intensity[prob]; !ok {
				p.errorf("survey: no intensity column for %q", prob)
			}
		}
		if len(cols.UnsafePlaces) == 0 {
			p.errorf("survey: no unsafe-place columns")
		}
	}

	if _, err := incidents.Column("latit"); err != nil {
		p.errorf("incidents: %v", err)
	}
	if _, err := incidents.Column("longit"); err != nil {
		p.errorf("incidents: %v", err)
	}
	if _, err := streets.Column("denominaz"); err != nil {
		p.errorf("streets: %v", err)
	}

	return p
}

// ── Phase 2: Artifact Shape ──
// Validates the artifact document against the contract the front-end relies
// on: all five keys present, scores and counts within range.

func validateArtifactShape(raw map[string]json.RawMessage, art artifactDoc) *phase {
	p := &phase{name: "Phase 2: Artifact Shape (JSON)"}

	for _, key := range artifactKeys {
		if _, ok := raw[key]; !ok {
			p.errorf("missing top-level key %q", key)
		}
	}

	if art.GridConfig.LatStep <= 0 || art.GridConfig.LonStep <= 0 {
		p.errorf("gridConfig steps must be positive, got %g x %g", art.GridConfig.LatStep, art.GridConfig.LonStep)
	}

	for label, fields := range art.NeighborhoodScores {
		if label == "" {
			p.errorf("empty neighborhood label")
		}
		if count, ok := fields["count"]; !ok || count < 1 {
			p.errorf("%s: count must be >= 1, got %g", label, count)
		}
		if risk, ok := fields["risk_score"]; !ok {
			p.errorf("%s: missing risk_score", label)
		} else if risk < 0 || risk > 1 {
			p.errorf("%s: risk_score %g outside [0,1]", label, risk)
		}
		for key, v := range fields {
			if key == "count" || key == "risk_score" {
				continue
			}
			if !strings.HasSuffix(key, "_rate") && !strings.HasSuffix(key, "_intensity") {
				p.errorf("%s: unexpected score key %q", label, key)
				continue
			}
			if v < 0 || v > 1 {
				p.errorf("%s: %s %g outside [0,1]", label, key, v)
			}
		}
	}

	for cell, n := range art.IncidentGrid {
		if n < 1 {
			p.errorf("grid cell %s: count %d < 1", cell, n)
		}
	}
	for street, n := range art.DangerousStreets {
		if street == "" {
			p.errorf("empty street name in dangerousStreets")
		}
		if n < 1 {
			p.errorf("street %q: count %d < 1", street, n)
		}
	}

	return p
}

// ── Phase 3: Recomputation ──
// Re-runs every aggregation from the CSVs and compares with the artifact.

func validateRecomputation(art artifactDoc, survey, incidents, streets *dataset.Table, bound orb.Bound, streetMin int) *phase {
	p := &phase{name: "Phase 3: Recomputation (CSV vs artifact)"}

	cols, err := domain.ResolveSurveyColumns(survey)
	if err != nil {
		p.errorf("resolve survey columns: %v", err)
		return p
	}
	scores := domain.AggregateNeighborhoods(survey, cols, domain.DefaultScoring())

	if len(scores) != len(art.NeighborhoodScores) {
		p.errorf("neighborhood count: recomputed %d, artifact has %d", len(scores), len(art.NeighborhoodScores))
	}
	for label, want := range scores {
		got, ok := art.NeighborhoodScores[label]
		if !ok {
			p.errorf("neighborhood %q missing from artifact", label)
			continue
		}
		if !floatEq(got["risk_score"], want.RiskScore) {
			p.errorf("%s: risk_score: recomputed %g, artifact %g", label, want.RiskScore, got["risk_score"])
		}
		if int(got["count"]) != want.Count {
			p.errorf("%s: count: recomputed %d, artifact %g", label, want.Count, got["count"])
		}
		for prob, rate := range want.Rates {
			if !floatEq(got[string(prob)+"_rate"], rate) {
				p.errorf("%s: %s_rate: recomputed %g, artifact %g", label, prob, rate, got[string(prob)+"_rate"])
			}
		}
		for prob, intensity := range want.Intensities {
			if !floatEq(got[string(prob)+"_intensity"], intensity) {
				p.errorf("%s: %s_intensity: recomputed %g, artifact %g", label, prob, intensity, got[string(prob)+"_intensity"])
			}
		}
	}

	binned, err := domain.BinIncidents(incidents, bound, art.GridConfig)
	if err != nil {
		p.errorf("bin incidents: %v", err)
		return p
	}
	if len(binned.Cells) != len(art.IncidentGrid) {
		p.errorf("grid cell count: recomputed %d, artifact has %d", len(binned.Cells), len(art.IncidentGrid))
	}
	for cell, want := range binned.Cells {
		if got, ok := art.IncidentGrid[cell]; !ok {
			p.errorf("grid cell %s missing from artifact", cell)
		} else if got != want {
			p.errorf("grid cell %s: recomputed %d, artifact %d", cell, want, got)
		}
	}

	// The artifact's point list is a cap-truncated prefix of the binner's
	// output, so compare positionally up to the artifact's length.
	if len(art.IncidentPoints) > len(binned.Points) {
		p.errorf("artifact has %d points, only %d incidents in bounds", len(art.IncidentPoints), len(binned.Points))
	}
	for i, pt := range art.IncidentPoints {
		if i >= len(binned.Points) {
			break
		}
		if pt != binned.Points[i] {
			p.errorf("point %d: recomputed %v, artifact %v", i, binned.Points[i], pt)
		}
	}

	ranked, err := domain.RankStreets(streets, streetMin)
	if err != nil {
		p.errorf("rank streets: %v", err)
		return p
	}
	if len(ranked) != len(art.DangerousStreets) {
		p.errorf("ranked street count: recomputed %d, artifact has %d", len(ranked), len(art.DangerousStreets))
	}
	for street, want := range ranked {
		if got, ok := art.DangerousStreets[street]; !ok {
			p.errorf("street %q missing from artifact", street)
		} else if got != want {
			p.errorf("street %q: recomputed %d, artifact %d", street, want, got)
		}
	}

	return p
}

// ── Phase 4: Grid Geometry ──
// Validates that cells and points sit inside the bounding box.

func validateGridGeometry(art artifactDoc, bound orb.Bound) *phase {
	p := &phase{name: "Phase 4: Grid Geometry (bbox)"}

	for cell := range art.IncidentGrid {
		lat, lon, err := parseCellKey(cell)
		if err != nil {
			p.errorf("%v", err)
			continue
		}
		// A cell origin is floor-quantized from an in-bounds point, so it may
		// sit up to one step below the box minimum but never above the maximum.
		if lat > bound.Max[1] || lon > bound.Max[0] {
			p.errorf("cell %s sits above the bounding box", cell)
		}
		if lat < bound.Min[1]-art.GridConfig.LatStep || lon < bound.Min[0]-art.GridConfig.LonStep {
			p.errorf("cell %s sits below the bounding box", cell)
		}
	}

	for i, pt := range art.IncidentPoints {
		if !bound.Contains(orb.Point{pt[1], pt[0]}) {
			p.errorf("point %d [%g, %g] outside the bounding box", i, pt[0], pt[1])
		}
	}

	return p
}

// ── Helpers ──

func parseCellKey(key string) (lat, lon float64, err error) {
	latS, lonS, ok := strings.Cut(key, ",")
	if !ok {
		return 0, 0, fmt.Errorf("malformed cell key %q", key)
	}
	lat, err = strconv.ParseFloat(latS, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed cell key %q: %w", key, err)
	}
	lon, err = strconv.ParseFloat(lonS, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed cell key %q: %w", key, err)
	}
	return lat, lon, nil
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
