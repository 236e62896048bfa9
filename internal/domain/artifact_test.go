package domain

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewArtifact(t *testing.T) {
	t.Run("nil collections become empty ones", func(t *testing.T) {
		a := NewArtifact(nil, nil, DefaultGrid, nil, nil, 500)

		assert.NotNil(t, a.NeighborhoodScores)
		assert.NotNil(t, a.IncidentGrid)
		assert.NotNil(t, a.DangerousStreets)
		assert.NotNil(t, a.IncidentPoints)
		assert.Empty(t, a.IncidentPoints)
	})

	t.Run("point cap keeps the first points in order", func(t *testing.T) {
		points := []HeatPoint{{41.1, 16.8}, {41.2, 16.9}, {41.3, 17.0}}

		a := NewArtifact(nil, nil, DefaultGrid, nil, points, 2)
		assert.Equal(t, []HeatPoint{{41.1, 16.8}, {41.2, 16.9}}, a.IncidentPoints)
	})

	t.Run("cap above the list length keeps everything", func(t *testing.T) {
		points := []HeatPoint{{41.1, 16.8}}

		a := NewArtifact(nil, nil, DefaultGrid, nil, points, 500)
		assert.Equal(t, points, a.IncidentPoints)
	})

	t.Run("negative cap empties the list", func(t *testing.T) {
		points := []HeatPoint{{41.1, 16.8}}

		a := NewArtifact(nil, nil, DefaultGrid, nil, points, -1)
		assert.NotNil(t, a.IncidentPoints)
		assert.Empty(t, a.IncidentPoints)
	})
}

func TestArtifactEncode(t *testing.T) {
	t.Run("empty artifact keeps all five keys", func(t *testing.T) {
		var buf bytes.Buffer
		err := NewArtifact(nil, nil, DefaultGrid, nil, nil, 500).Encode(&buf)
		require.NoError(t, err)

		want := `{
  "neighborhoodScores": {},
  "incidentGrid": {},
  "gridConfig": {
    "latStep": 0.003,
    "lonStep": 0.004
  },
  "dangerousStreets": {},
  "incidentPoints2023": []
}
`
		assert.Equal(t, want, buf.String())
	})

	t.Run("populated artifact", func(t *testing.T) {
		a := NewArtifact(
			map[string]NeighborhoodScore{
				"Libertà": {
					Rates:     map[Problem]float64{ProblemSpaccio: 0.667},
					RiskScore: 0.167,
					Count:     3,
				},
			},
			map[string]int{"41.049,16.8": 2},
			DefaultGrid,
			map[string]int{"VIA NAPOLI": 3},
			[]HeatPoint{{41.05, 16.8}},
			500,
		)

		var buf bytes.Buffer
		require.NoError(t, a.Encode(&buf))

		want := `{
  "neighborhoodScores": {
    "Libertà": {
      "spaccio_rate": 0.667,
      "risk_score": 0.167,
      "count": 3
    }
  },
  "incidentGrid": {
    "41.049,16.8": 2
  },
  "gridConfig": {
    "latStep": 0.003,
    "lonStep": 0.004
  },
  "dangerousStreets": {
    "VIA NAPOLI": 3
  },
  "incidentPoints2023": [
    [
      41.05,
      16.8
    ]
  ]
}
`
		assert.Equal(t, want, buf.String())
	})

	t.Run("no HTML escaping in labels", func(t *testing.T) {
		a := NewArtifact(nil, nil, DefaultGrid,
			map[string]int{"S.S.16 <TANGENZIALE> & COMPLANARE": 4}, nil, 500)

		var buf bytes.Buffer
		require.NoError(t, a.Encode(&buf))

		assert.Contains(t, buf.String(), `"S.S.16 <TANGENZIALE> & COMPLANARE"`)
		assert.NotContains(t, buf.String(), `\u003c`)
	})
}

func TestArtifactWriteFile(t *testing.T) {
	t.Run("creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out", "nested", "safety_data.json")

		n, err := NewArtifact(nil, nil, DefaultGrid, nil, nil, 500).WriteFile(path)
		require.NoError(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), n)

		var doc map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Len(t, doc, 5)
		for _, key := range []string{
			"neighborhoodScores", "incidentGrid", "gridConfig",
			"dangerousStreets", "incidentPoints2023",
		} {
			assert.Contains(t, doc, key)
		}
	})

	t.Run("parent blocked by a file", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

		_, err := NewArtifact(nil, nil, DefaultGrid, nil, nil, 500).
			WriteFile(filepath.Join(blocker, "safety_data.json"))
		require.Error(t, err)
	})
}
