package domain

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Score lookup tables for the two survey scales. A value outside its table
// is treated as unanswered and excluded from means.
var (
	// YesNoScores maps the binary problem answers. Both accent spellings of
	// "sì" occur in the export.
	YesNoScores = map[string]float64{
		"Sì": 1.0,
		"Si": 1.0,
		"No": 0.0,
	}

	// IntensityScores maps the ordinal intensity answers.
	IntensityScores = map[string]float64{
		"Molto":      1.0,
		"Moltissimo": 1.0,
		"Abbastanza": 0.7,
		"Poco":       0.3,
		"Per nulla":  0.0,
	}
)

// MeanScore maps values through the lookup table and returns their mean
// rounded to 3 decimals. Unmapped values are excluded from the mean; when
// nothing maps the result is 0.0, never NaN.
func MeanScore(lookup map[string]float64, values []string) float64 {
	scores := make([]float64, 0, len(values))
	for _, v := range values {
		if s, ok := lookup[v]; ok {
			scores = append(scores, s)
		}
	}
	if len(scores) == 0 {
		return 0.0
	}
	return roundPlaces(stat.Mean(scores, nil), 3)
}

// roundPlaces rounds half away from zero at the given number of decimals.
func roundPlaces(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
