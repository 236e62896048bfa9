package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Artifact is the single JSON document the map front-end consumes. All five
// keys are always present; empty collections stay {} or [], never null.
type Artifact struct {
	NeighborhoodScores map[string]NeighborhoodScore `json:"neighborhoodScores"`
	IncidentGrid       map[string]int               `json:"incidentGrid"`
	GridConfig         GridSpec                     `json:"gridConfig"`
	DangerousStreets   map[string]int               `json:"dangerousStreets"`
	IncidentPoints     []HeatPoint                  `json:"incidentPoints2023"`
}

// NewArtifact assembles the sub-pipeline outputs into the output document,
// normalizing nil collections and truncating the heatmap list to the first
// pointCap points in input order.
func NewArtifact(scores map[string]NeighborhoodScore, grid map[string]int, spec GridSpec, streets map[string]int, points []HeatPoint, pointCap int) Artifact {
	if scores == nil {
		scores = map[string]NeighborhoodScore{}
	}
	if grid == nil {
		grid = map[string]int{}
	}
	if streets == nil {
		streets = map[string]int{}
	}
	if pointCap < 0 {
		pointCap = 0
	}
	if len(points) > pointCap {
		points = points[:pointCap]
	}
	if points == nil {
		points = []HeatPoint{}
	}

	return Artifact{
		NeighborhoodScores: scores,
		IncidentGrid:       grid,
		GridConfig:         spec,
		DangerousStreets:   streets,
		IncidentPoints:     points,
	}
}

// Encode writes the artifact as two-space-indented JSON with HTML escaping
// off, so the Italian labels ("Sì", "Libertà") come out verbatim.
func (a Artifact) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}

// WriteFile creates the parent directory if needed and writes the artifact
// in a single call, returning the byte size written. Nothing touches the
// disk when encoding fails.
func (a Artifact) WriteFile(path string) (int64, error) {
	var buf bytes.Buffer
	if err := a.Encode(&buf); err != nil {
		return 0, fmt.Errorf("encode artifact: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("write artifact: %w", err)
	}

	return int64(buf.Len()), nil
}
