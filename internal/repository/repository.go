package repository

import (
	"context"
	"encoding/json"
	"strings"

	"anchor-e2e/internal/model"
)

// RunStore persists scenario results so runs can be compared over time
type RunStore interface {
	Record(ctx context.Context, result model.ScenarioResult) error
	ListRun(ctx context.Context, runID string) ([]model.ScenarioResult, error)
	CountFailures(ctx context.Context, scenario string) (int64, error)
	Close() error
}

// Open picks the backend from dsn: postgres:// and postgresql:// URLs use
// Postgres, anything else is a SQLite file path.
func Open(ctx context.Context, dsn string) (RunStore, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return NewPostgresStore(ctx, dsn)
	}
	return NewSQLiteStore(dsn)
}

func encodeIDs(ids []string) string {
	if len(ids) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(ids)
	return string(b)
}

func decodeIDs(raw string) []string {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil || len(ids) == 0 {
		return nil
	}
	return ids
}
