package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"anchor-e2e/internal/model"
	"anchor-e2e/internal/repository"
	"anchor-e2e/pkg/logger"
)

func TestLogFailureHistory(t *testing.T) {
	ctx := context.Background()
	store, err := repository.Open(ctx, filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	now := time.Now().UTC()
	for i := 0; i < 2; i++ {
		if err := store.Record(ctx, model.ScenarioResult{
			RunID:      "earlier",
			Scenario:   "sep31_flow",
			Result:     model.ResultFailed,
			StartedAt:  now,
			FinishedAt: now,
		}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	var out bytes.Buffer
	logFailureHistory(ctx, store, []string{"sep31_flow", "omnibus_allowlist"}, logger.NewWithWriter("INFO", &out))

	logs := out.String()
	if !strings.Contains(logs, `"scenario":"sep31_flow","failures":2`) {
		t.Fatalf("expected failure count for sep31_flow, got:\n%s", logs)
	}
	if strings.Contains(logs, "omnibus_allowlist") {
		t.Fatalf("scenario without failures should not be logged, got:\n%s", logs)
	}
}
