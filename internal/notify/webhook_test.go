package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"anchor-e2e/internal/model"
	"anchor-e2e/pkg/logger"
)

func failingSummary() model.RunSummary {
	return model.RunSummary{
		RunID:  "run-7",
		Domain: "anchor.example",
		Results: []model.ScenarioResult{
			{Scenario: "omnibus_allowlist", Result: model.ResultFailed, Error: "assertion failed"},
		},
	}
}

func TestWebhookRetriesUntilDelivered(t *testing.T) {
	var calls atomic.Int32
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hook := NewWebhook(srv.URL, time.Second, 3, logger.Discard())
	hook.backoff = time.Millisecond

	if err := hook.Notify(context.Background(), failingSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
	if got.Passed || got.Failed != 1 || got.Summary.RunID != "run-7" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if !strings.Contains(got.Text, "[FAIL] omnibus_allowlist") {
		t.Fatalf("payload text missing failure line: %q", got.Text)
	}
}

func TestWebhookGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	hook := NewWebhook(srv.URL, time.Second, 2, logger.Discard())
	hook.backoff = time.Millisecond

	err := hook.Notify(context.Background(), failingSummary())
	if err == nil || !strings.Contains(err.Error(), "after 3 attempts") {
		t.Fatalf("expected give-up error, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}
