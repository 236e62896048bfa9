package domain

import (
	"github.com/imonbus/safety-data-etl/internal/dataset"
)

// RankStreets counts incidents per exact street name in the historical table
// and keeps streets reported at least minIncidents times. The name column
// resolves by the "denominaz" substring. Empty names are ignored; no case or
// whitespace folding, so spelling variants count apart.
func RankStreets(t *dataset.Table, minIncidents int) (map[string]int, error) {
	col, err := t.Column("denominaz")
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, name := range t.Values(col) {
		if name == "" {
			continue
		}
		counts[name]++
	}

	for name, n := range counts {
		if n < minIncidents {
			delete(counts, name)
		}
	}

	return counts, nil
}
