package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"anchor-e2e/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS scenario_results (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	scenario TEXT NOT NULL,
	result TEXT NOT NULL,
	transaction_ids JSONB NOT NULL DEFAULT '[]',
	quote_ids JSONB NOT NULL DEFAULT '[]',
	error TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_results_run_id ON scenario_results(run_id);
`

// PostgresStore keeps scenario results in a shared Postgres database
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, pings and creates the schema
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to create schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Record(ctx context.Context, r model.ScenarioResult) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scenario_results (run_id, scenario, result, transaction_ids, quote_ids, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7, $8)
	`, r.RunID, r.Scenario, r.Result, encodeIDs(r.TransactionIDs), encodeIDs(r.QuoteIDs), r.Error, r.StartedAt, r.FinishedAt)
	return err
}

func (s *PostgresStore) CountFailures(ctx context.Context, scenario string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM scenario_results WHERE scenario = $1 AND result = $2
	`, scenario, model.ResultFailed).Scan(&count)
	return count, err
}

func (s *PostgresStore) ListRun(ctx context.Context, runID string) ([]model.ScenarioResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, scenario, result, transaction_ids::text, quote_ids::text, error, started_at, finished_at
		FROM scenario_results
		WHERE run_id = $1
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
