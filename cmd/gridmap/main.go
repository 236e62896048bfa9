// Command gridmap renders the incident grid from a pipeline artifact as a
// PNG heat map, one rectangle per cell colored by incident count.
//
// Usage:
//
//	go run ./cmd/gridmap -artifact out/safetyData.json -out out/gridmap.png
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/paulmach/orb"

	"github.com/imonbus/safety-data-etl/internal/domain"
)

// artifact is the slice of the pipeline output this tool needs; the rest of
// the document is ignored.
type artifact struct {
	IncidentGrid map[string]int  `json:"incidentGrid"`
	GridConfig   domain.GridSpec `json:"gridConfig"`
}

// cell is one grid rectangle, addressed by its origin corner.
type cell struct {
	lat, lon float64
	count    int
}

// gradient anchors colors at positions in [0,1]; lookups blend between the
// surrounding anchors in HCL space.
type gradient []struct {
	col colorful.Color
	pos float64
}

func (g gradient) at(t float64) colorful.Color {
	for i := 0; i < len(g)-1; i++ {
		c1, c2 := g[i], g[i+1]
		if c1.pos <= t && t <= c2.pos {
			f := (t - c1.pos) / (c2.pos - c1.pos)
			return c1.col.BlendHcl(c2.col, f).Clamped()
		}
	}
	return g[len(g)-1].col
}

// heatRamp is the ColorBrewer YlOrRd ramp, pale yellow for quiet cells up to
// dark red for the busiest one.
var heatRamp = gradient{
	{mustHex("#ffffb2"), 0.0},
	{mustHex("#fecc5c"), 0.25},
	{mustHex("#fd8d3c"), 0.5},
	{mustHex("#f03b20"), 0.75},
	{mustHex("#bd0026"), 1.0},
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic("mustHex: " + err.Error())
	}
	return c
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	artifactPath := flag.String("artifact", filepath.Join("out", "safetyData.json"), "pipeline artifact to read")
	outPath := flag.String("out", filepath.Join("out", "gridmap.png"), "PNG file to write")
	width := flag.Int("width", 1000, "image width in pixels")
	flag.Parse()

	raw, err := os.ReadFile(*artifactPath)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	var art artifact
	if err := json.Unmarshal(raw, &art); err != nil {
		return fmt.Errorf("parse artifact: %w", err)
	}
	if len(art.IncidentGrid) == 0 {
		return fmt.Errorf("%s has no grid cells to draw", *artifactPath)
	}
	if art.GridConfig.LatStep <= 0 || art.GridConfig.LonStep <= 0 {
		return fmt.Errorf("%s has no usable gridConfig", *artifactPath)
	}

	cells, bound, maxCount, err := collectCells(art)
	if err != nil {
		return err
	}

	dc := render(cells, bound, art.GridConfig, maxCount, *width)

	if dir := filepath.Dir(*outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := dc.SavePNG(*outPath); err != nil {
		return fmt.Errorf("write png: %w", err)
	}

	log.Printf("%s: %d cells, max count %d", *outPath, len(cells), maxCount)
	return nil
}

// collectCells parses the grid keys back into coordinates and accumulates the
// bounding box over every cell rectangle.
func collectCells(art artifact) ([]cell, orb.Bound, int, error) {
	cells := make([]cell, 0, len(art.IncidentGrid))
	var bound orb.Bound
	maxCount := 0
	first := true

	for key, count := range art.IncidentGrid {
		lat, lon, err := parseCellKey(key)
		if err != nil {
			return nil, orb.Bound{}, 0, err
		}
		cells = append(cells, cell{lat: lat, lon: lon, count: count})

		origin := orb.Point{lon, lat}
		far := orb.Point{lon + art.GridConfig.LonStep, lat + art.GridConfig.LatStep}
		if first {
			bound = orb.Bound{Min: origin, Max: origin}
			first = false
		}
		bound = bound.Extend(origin).Extend(far)

		if count > maxCount {
			maxCount = count
		}
	}

	return cells, bound, maxCount, nil
}

// parseCellKey inverts the "<lat>,<lon>" cell key format.
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

func render(cells []cell, bound orb.Bound, spec domain.GridSpec, maxCount, width int) *gg.Context {
	lonSpan := bound.Max[0] - bound.Min[0]
	latSpan := bound.Max[1] - bound.Min[1]
	midLat := (bound.Min[1] + bound.Max[1]) / 2

	// Degrees of longitude shrink with latitude; correct the aspect ratio so
	// cells keep their ground proportions.
	aspect := latSpan / (lonSpan * math.Cos(midLat*math.Pi/180))
	height := int(float64(width) * aspect)
	if height < 1 {
		height = 1
	}

	xf := float64(width) / lonSpan
	yf := float64(height) / latSpan

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for _, c := range cells {
		// Pixel y grows downward, so the rectangle hangs from the cell's
		// top edge.
		x := xf * (c.lon - bound.Min[0])
		y := float64(height) - yf*(c.lat+spec.LatStep-bound.Min[1])
		dc.DrawRectangle(x, y, xf*spec.LonStep, yf*spec.LatStep)
		dc.SetColor(heatRamp.at(float64(c.count) / float64(maxCount)))
		dc.Fill()
	}

	return dc
}
