package repository

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"anchor-e2e/internal/model"
)

// SQLiteStore keeps scenario results in a local SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the results database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Create table if not exists
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS scenario_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			scenario TEXT NOT NULL,
			result TEXT NOT NULL,
			transaction_ids TEXT NOT NULL DEFAULT '[]',
			quote_ids TEXT NOT NULL DEFAULT '[]',
			error TEXT NOT NULL DEFAULT '',
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_results_run_id ON scenario_results(run_id);
		CREATE INDEX IF NOT EXISTS idx_results_scenario ON scenario_results(scenario);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record saves one scenario result
func (s *SQLiteStore) Record(ctx context.Context, r model.ScenarioResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scenario_results (run_id, scenario, result, transaction_ids, quote_ids, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.Scenario, r.Result, encodeIDs(r.TransactionIDs), encodeIDs(r.QuoteIDs), r.Error, r.StartedAt, r.FinishedAt)
	return err
}

// ListRun returns the results of one run in execution order
func (s *SQLiteStore) ListRun(ctx context.Context, runID string) ([]model.ScenarioResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, scenario, result, transaction_ids, quote_ids, error, started_at, finished_at
		FROM scenario_results
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.ScenarioResult
	for rows.Next() {
		var (
			r               model.ScenarioResult
			txIDs, quoteIDs string
			started, done   time.Time
		)
		if err := rows.Scan(&r.RunID, &r.Scenario, &r.Result, &txIDs, &quoteIDs, &r.Error, &started, &done); err != nil {
			return nil, err
		}
		r.TransactionIDs = decodeIDs(txIDs)
		r.QuoteIDs = decodeIDs(quoteIDs)
		r.StartedAt = started.UTC()
		r.FinishedAt = done.UTC()
		r.Duration = done.Sub(started)
		results = append(results, r)
	}
	return results, rows.Err()
}

// CountFailures returns how many failed results are stored for a scenario
func (s *SQLiteStore) CountFailures(ctx context.Context, scenario string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM scenario_results WHERE scenario = ? AND result = ?
	`, scenario, model.ResultFailed).Scan(&count)
	return count, err
}
