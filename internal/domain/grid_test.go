package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imonbus/safety-data-etl/internal/dataset"
)

func TestGridSpecKey(t *testing.T) {
	grid := DefaultGrid

	tests := []struct {
		name string
		lat  float64
		lon  float64
		want string
	}{
		{name: "exact cell origin", lat: 41.1, lon: 16.8, want: "41.1,16.8"},
		{name: "lat between origins floors down", lat: 41.05, lon: 16.8, want: "41.049,16.8"},
		{name: "nearby point shares the cell", lat: 41.0505, lon: 16.8005, want: "41.049,16.8"},
		{name: "bound southwest corner", lat: 41.02, lon: 16.72, want: "41.019,16.72"},
		{name: "bound northeast corner", lat: 41.17, lon: 17.08, want: "41.169,17.076"},
		{name: "city centre point", lat: 41.1234, lon: 16.9876, want: "41.121,16.984"},
		{name: "long mantissa", lat: 41.0712345, lon: 16.8654321, want: "41.07,16.864"},
		{name: "negative coordinates floor away from zero", lat: -0.001, lon: -0.001, want: "-0.003,-0.004"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, grid.Key(tt.lat, tt.lon))
		})
	}
}

func incidentTable(rows ...map[string]string) *dataset.Table {
	return &dataset.Table{
		Path:    "incidents.csv",
		Headers: []string{"data_ora", "latitudine", "longitudine"},
		Rows:    rows,
	}
}

func incidentRow(lat, lon string) map[string]string {
	return map[string]string{"latitudine": lat, "longitudine": lon}
}

func TestBinIncidents(t *testing.T) {
	t.Run("points in one cell accumulate", func(t *testing.T) {
		tbl := incidentTable(
			incidentRow("41.05", "16.8"),
			incidentRow("41.0505", "16.8005"),
			incidentRow("41.1", "16.8"),
		)

		got, err := BinIncidents(tbl, DefaultBound, DefaultGrid)
		require.NoError(t, err)

		assert.Equal(t, map[string]int{
			"41.049,16.8": 2,
			"41.1,16.8":   1,
		}, got.Cells)
		assert.Equal(t, []HeatPoint{
			{41.05, 16.8},
			{41.0505, 16.8005},
			{41.1, 16.8},
		}, got.Points)
		assert.Equal(t, 3, got.Total)
		assert.Zero(t, got.OutOfBounds)
		assert.Zero(t, got.BadCoord)
	})

	t.Run("bound edges are inclusive", func(t *testing.T) {
		tbl := incidentTable(
			incidentRow("41.02", "16.72"),
			incidentRow("41.17", "17.08"),
			incidentRow("41.171", "17.08"),
			incidentRow("41.17", "17.081"),
		)

		got, err := BinIncidents(tbl, DefaultBound, DefaultGrid)
		require.NoError(t, err)

		assert.Len(t, got.Points, 2)
		assert.Equal(t, 2, got.OutOfBounds)
		assert.Contains(t, got.Cells, "41.019,16.72")
		assert.Contains(t, got.Cells, "41.169,17.076")
	})

	t.Run("unparseable coordinates are skipped", func(t *testing.T) {
		tbl := incidentTable(
			incidentRow("", ""),
			incidentRow("n/d", "16.8"),
			incidentRow("41,05", "16.8"),
			incidentRow(" 41.05 ", " 16.8 "),
		)

		got, err := BinIncidents(tbl, DefaultBound, DefaultGrid)
		require.NoError(t, err)

		assert.Equal(t, 3, got.BadCoord)
		assert.Equal(t, 4, got.Total)
		assert.Equal(t, []HeatPoint{{41.05, 16.8}}, got.Points)
	})

	t.Run("retained points round to five decimals", func(t *testing.T) {
		tbl := incidentTable(incidentRow("41.0712345", "16.8654321"))

		got, err := BinIncidents(tbl, DefaultBound, DefaultGrid)
		require.NoError(t, err)

		assert.Equal(t, []HeatPoint{{41.07123, 16.86543}}, got.Points)
		assert.Contains(t, got.Cells, "41.07,16.864")
	})

	t.Run("missing coordinate column is fatal", func(t *testing.T) {
		tbl := &dataset.Table{
			Path:    "incidents.csv",
			Headers: []string{"data_ora", "longitudine"},
		}

		_, err := BinIncidents(tbl, DefaultBound, DefaultGrid)
		require.Error(t, err)

		var notFound *dataset.ColumnNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, []string{"latit"}, notFound.Tokens)
	})
}

func TestMaxCellCount(t *testing.T) {
	assert.Zero(t, BinnedIncidents{}.MaxCellCount())

	b := BinnedIncidents{Cells: map[string]int{"a": 2, "b": 7, "c": 1}}
	assert.Equal(t, 7, b.MaxCellCount())
}
