package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/imonbus/safety-data-etl/internal/dataset"
)

// Problem enumerates the perceived-problem categories in the survey.
type Problem string

const (
	ProblemSpaccio       Problem = "spaccio"
	ProblemCriminali     Problem = "criminali"
	ProblemRagazzini     Problem = "ragazzini"
	ProblemIlluminazione Problem = "illuminazione"
	ProblemDegrado       Problem = "degrado_marciapiedi"
	ProblemBarboni       Problem = "barboni"
)

// Problems lists the categories in canonical order, which is also the order
// their score keys appear in the artifact.
var Problems = []Problem{
	ProblemSpaccio,
	ProblemCriminali,
	ProblemRagazzini,
	ProblemIlluminazione,
	ProblemDegrado,
	ProblemBarboni,
}

// problemTokens locates each problem's survey columns. Tokens are partial
// words ("criminal", "illuminaz") so they match the question text across its
// inflections.
var problemTokens = map[Problem]string{
	ProblemSpaccio:       "spaccio",
	ProblemCriminali:     "criminal",
	ProblemRagazzini:     "ragazzini",
	ProblemIlluminazione: "illuminaz",
	ProblemDegrado:       "marciapiedi",
	ProblemBarboni:       "barboni",
}

// DefaultWeights is the risk-score weighting per problem. Weights sum to 1.0
// so the composite stays in [0,1].
var DefaultWeights = map[Problem]float64{
	ProblemSpaccio:       0.25,
	ProblemCriminali:     0.25,
	ProblemRagazzini:     0.15,
	ProblemIlluminazione: 0.15,
	ProblemDegrado:       0.10,
	ProblemBarboni:       0.10,
}

// Scoring bundles the lookup tables and weights the aggregation uses, so
// tests can inject variants without touching the package defaults.
type Scoring struct {
	YesNo     map[string]float64
	Intensity map[string]float64
	Weights   map[Problem]float64
}

// DefaultScoring returns the production tables.
func DefaultScoring() Scoring {
	return Scoring{
		YesNo:     YesNoScores,
		Intensity: IntensityScores,
		Weights:   DefaultWeights,
	}
}

// SurveyColumns maps the survey's verbose headers to the fields the
// aggregation needs. Problems whose columns did not resolve are absent from
// the maps and contribute nothing downstream.
type SurveyColumns struct {
	Neighborhood string
	YesNo        map[Problem]string
	Intensity    map[Problem]string
	UnsafePlaces []string
}

// ResolveSurveyColumns locates the neighborhood, per-problem, and
// unsafe-place columns. Only the neighborhood column is required; when the
// specific phrasings miss, any header containing "quartiere" is accepted.
func ResolveSurveyColumns(t *dataset.Table) (SurveyColumns, error) {
	cols := SurveyColumns{
		YesNo:     make(map[Problem]string),
		Intensity: make(map[Problem]string),
	}

	nbh := t.MatchAny("quartiere_abita", "quale_quartiere")
	if len(nbh) == 0 {
		nbh = t.Match("quartiere")
	}
	if len(nbh) == 0 {
		return SurveyColumns{}, &dataset.ColumnNotFoundError{Tokens: []string{"quartiere"}, Path: t.Path}
	}
	cols.Neighborhood = nbh[0]

	for _, p := range Problems {
		if match := t.Match("problemiquartiere", "scala_1", problemTokens[p]); len(match) > 0 {
			cols.YesNo[p] = match[0]
		}
		if match := t.Match("problemiquartiere", "scala_2", problemTokens[p]); len(match) > 0 {
			cols.Intensity[p] = match[0]
		}
	}

	cols.UnsafePlaces = t.Match("luoghiinsicurezza")

	return cols, nil
}

// NeighborhoodScore is the per-neighborhood aggregate: yes rate and mean
// intensity per resolved problem, the weighted risk score, and the number of
// respondents in the group.
type NeighborhoodScore struct {
	Rates       map[Problem]float64
	Intensities map[Problem]float64
	RiskScore   float64
	Count       int
}

// MarshalJSON flattens the score into the artifact shape: one
// "<problem>_rate" and "<problem>_intensity" key per resolved problem in
// canonical order, then risk_score and count. A key is present exactly when
// the matching survey column resolved, so an all-"No" neighborhood still
// shows its zero rates.
func (s NeighborhoodScore) MarshalJSON() ([]byte, error) {
	fields := make([]string, 0, 2*len(Problems)+2)
	for _, p := range Problems {
		if v, ok := s.Rates[p]; ok {
			fields = append(fields, fmt.Sprintf("%q:%s", string(p)+"_rate", formatScore(v)))
		}
	}
	for _, p := range Problems {
		if v, ok := s.Intensities[p]; ok {
			fields = append(fields, fmt.Sprintf("%q:%s", string(p)+"_intensity", formatScore(v)))
		}
	}
	fields = append(fields, `"risk_score":`+formatScore(s.RiskScore))
	fields = append(fields, `"count":`+strconv.Itoa(s.Count))
	return []byte("{" + strings.Join(fields, ",") + "}"), nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// AggregateNeighborhoods groups survey rows by the verbatim neighborhood
// label and scores each group. Labels are not folded or trimmed, so spelling
// variants stay separate groups; rows with an empty label are dropped rather
// than grouped under "".
func AggregateNeighborhoods(t *dataset.Table, cols SurveyColumns, sc Scoring) map[string]NeighborhoodScore {
	groups := make(map[string][]map[string]string)
	for _, row := range t.Rows {
		label := row[cols.Neighborhood]
		if label == "" {
			continue
		}
		groups[label] = append(groups[label], row)
	}

	scores := make(map[string]NeighborhoodScore, len(groups))
	for label, rows := range groups {
		s := NeighborhoodScore{
			Rates:       make(map[Problem]float64),
			Intensities: make(map[Problem]float64),
			Count:       len(rows),
		}

		for _, p := range Problems {
			if col, ok := cols.YesNo[p]; ok {
				s.Rates[p] = MeanScore(sc.YesNo, columnValues(rows, col))
			}
			if col, ok := cols.Intensity[p]; ok {
				s.Intensities[p] = MeanScore(sc.Intensity, columnValues(rows, col))
			}
		}

		// Summed in canonical problem order so the result is bit-stable
		// across runs; a missing rate contributes 0.
		var risk float64
		for _, p := range Problems {
			if rate, ok := s.Rates[p]; ok {
				risk += sc.Weights[p] * rate
			}
		}
		s.RiskScore = roundPlaces(risk, 3)

		scores[label] = s
	}

	return scores
}

func columnValues(rows []map[string]string, col string) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row[col]
	}
	return out
}

// RankByRisk returns the neighborhood labels sorted by descending risk
// score, ties broken by label. Display order only; the artifact itself keeps
// map semantics.
func RankByRisk(scores map[string]NeighborhoodScore) []string {
	labels := make([]string, 0, len(scores))
	for l := range scores {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		si, sj := scores[labels[i]].RiskScore, scores[labels[j]].RiskScore
		if si != sj {
			return si > sj
		}
		return labels[i] < labels[j]
	})
	return labels
}

// CountUnmapped reports how many non-blank answers across the resolved yes/no
// and intensity columns have no score mapping.
func CountUnmapped(t *dataset.Table, cols SurveyColumns, sc Scoring) int {
	n := 0
	for _, row := range t.Rows {
		for _, col := range cols.YesNo {
			if v := row[col]; v != "" {
				if _, ok := sc.YesNo[v]; !ok {
					n++
				}
			}
		}
		for _, col := range cols.Intensity {
			if v := row[col]; v != "" {
				if _, ok := sc.Intensity[v]; !ok {
					n++
				}
			}
		}
	}
	return n
}

// SelectedMark is the cell literal the survey export places in a chosen
// unsafe-place column.
const SelectedMark = "Selezionato"

// TallyUnsafePlaces counts, per unsafe-place column, how many respondents
// selected it. The tally is diagnostic output only and never reaches the
// artifact.
func TallyUnsafePlaces(t *dataset.Table, cols []string) map[string]int {
	tally := make(map[string]int, len(cols))
	for _, col := range cols {
		n := 0
		for _, v := range t.Values(col) {
			if v == SelectedMark {
				n++
			}
		}
		tally[col] = n
	}
	return tally
}
