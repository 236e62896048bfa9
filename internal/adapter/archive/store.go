// Package archive persists run summaries to a local SQLite database, so
// consecutive batch runs can be compared without re-parsing old artifacts.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/imonbus/safety-data-etl/internal/domain"
	"github.com/imonbus/safety-data-etl/internal/pipeline"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	generated_at TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	survey_rows INTEGER NOT NULL,
	neighborhoods INTEGER NOT NULL,
	incidents_in_bounds INTEGER NOT NULL,
	grid_cells INTEGER NOT NULL,
	ranked_streets INTEGER NOT NULL,
	artifact_bytes INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS neighborhood_scores (
	run_id TEXT NOT NULL,
	neighborhood TEXT NOT NULL,
	risk_score REAL NOT NULL,
	respondents INTEGER NOT NULL,
	PRIMARY KEY (run_id, neighborhood)
);`

// Store is the run archive over a SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens or creates the archive database and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create archive schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun inserts the run summary and its per-neighborhood scores in one
// transaction, so a half-written run never shows up in queries.
func (s *Store) SaveRun(ctx context.Context, report pipeline.Report, scores map[string]domain.NeighborhoodScore) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, generated_at, duration_ms, survey_rows, neighborhoods,
			incidents_in_bounds, grid_cells, ranked_streets, artifact_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		report.StartedAt.UTC().Format(time.RFC3339),
		report.Duration.Milliseconds(),
		report.SurveyRows,
		report.Neighborhoods,
		report.IncidentsInBounds,
		report.GridCells,
		report.StreetsRanked,
		report.ArtifactBytes,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO neighborhood_scores (run_id, neighborhood, risk_score, respondents)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare score insert: %w", err)
	}
	defer stmt.Close()

	for label, score := range scores {
		if _, err := stmt.ExecContext(ctx, report.RunID, label, score.RiskScore, score.Count); err != nil {
			return fmt.Errorf("insert score for %s: %w", label, err)
		}
	}

	return tx.Commit()
}
