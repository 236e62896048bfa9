package domain

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/imonbus/safety-data-etl/internal/dataset"
)

// DefaultBound is the Bari metropolitan bounding box. Incidents outside it
// are discarded before binning; the box is closed, points exactly on an edge
// stay in.
var DefaultBound = orb.Bound{
	Min: orb.Point{16.72, 41.02},
	Max: orb.Point{17.08, 41.17},
}

// DefaultGrid is the production cell size, roughly 330m squares at Bari's
// latitude.
var DefaultGrid = GridSpec{LatStep: 0.003, LonStep: 0.004}

// GridSpec is the heatmap cell size in degrees. It doubles as the artifact's
// gridConfig block.
type GridSpec struct {
	LatStep float64 `json:"latStep"`
	LonStep float64 `json:"lonStep"`
}

// Key returns the cell identifier for a point: the floor-quantized cell
// origin rounded to 4 decimals, as "<lat>,<lon>". Floor rather than round,
// so a point exactly on a cell boundary lands in the cell starting there and
// negative coordinates bin toward more negative cells.
func (g GridSpec) Key(lat, lon float64) string {
	glat := roundPlaces(math.Floor(lat/g.LatStep)*g.LatStep, 4)
	glon := roundPlaces(math.Floor(lon/g.LonStep)*g.LonStep, 4)
	return formatCoord(glat) + "," + formatCoord(glon)
}

// formatCoord prints the shortest decimal form of a coordinate, the format
// the front-end parses cell keys back from.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// HeatPoint is one retained incident coordinate as [lat, lon].
type HeatPoint [2]float64

// BinnedIncidents is the spatial-binning result: per-cell counts plus every
// in-bounds point in file order. Capping the point list is the assembler's
// job, not the binner's.
type BinnedIncidents struct {
	Cells       map[string]int
	Points      []HeatPoint
	Total       int
	OutOfBounds int
	BadCoord    int
}

// BinIncidents filters the incident table to the bounding box, closed on all
// edges, and buckets the survivors into grid cells. The coordinate columns
// resolve by substring ("latit"/"longit"); rows whose coordinates do not
// parse are counted in BadCoord and skipped, the same fate blank cells met
// in the source export.
func BinIncidents(t *dataset.Table, bound orb.Bound, spec GridSpec) (BinnedIncidents, error) {
	latCol, err := t.Column("latit")
	if err != nil {
		return BinnedIncidents{}, err
	}
	lonCol, err := t.Column("longit")
	if err != nil {
		return BinnedIncidents{}, err
	}

	out := BinnedIncidents{
		Cells: make(map[string]int),
		Total: len(t.Rows),
	}

	for _, row := range t.Rows {
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(row[latCol]), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(row[lonCol]), 64)
		if errLat != nil || errLon != nil {
			out.BadCoord++
			continue
		}
		if !bound.Contains(orb.Point{lon, lat}) {
			out.OutOfBounds++
			continue
		}
		out.Cells[spec.Key(lat, lon)]++
		out.Points = append(out.Points, HeatPoint{roundPlaces(lat, 5), roundPlaces(lon, 5)})
	}

	return out, nil
}

// MaxCellCount returns the highest incident count across cells, 0 when no
// cell exists.
func (b BinnedIncidents) MaxCellCount() int {
	max := 0
	for _, n := range b.Cells {
		if n > max {
			max = n
		}
	}
	return max
}
