package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	eventskafka "anchor-e2e/internal/events/kafka"
	"anchor-e2e/internal/model"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestRecordPublishesScenarioCompleted(t *testing.T) {
	w := &fakeWriter{}
	p := eventskafka.NewPublisherWithWriter(w, "localhost:8080")

	finished := time.Date(2024, 5, 1, 12, 0, 6, 0, time.UTC)
	err := p.Record(context.Background(), model.ScenarioResult{
		RunID:          "run-1",
		Scenario:       "sep31_flow",
		Result:         model.ResultPassed,
		TransactionIDs: []string{"tx-1"},
		StartedAt:      finished.Add(-1500 * time.Millisecond),
		FinishedAt:     finished,
		Duration:       1500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(w.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.messages))
	}
	msg := w.messages[0]
	if string(msg.Key) != "run-1" {
		t.Fatalf("expected key run-1, got %q", msg.Key)
	}

	var event model.ScenarioCompleted
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Domain != "localhost:8080" || event.Scenario != "sep31_flow" || event.DurationMillis != 1500 {
		t.Fatalf("unexpected event %+v", event)
	}
	if !event.OccurredAt.Equal(finished) {
		t.Fatalf("expected occurred_at %s, got %s", finished, event.OccurredAt)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Fatalf("expected writer to be closed, err=%v", err)
	}
}

func TestRecordWrapsWriterErrors(t *testing.T) {
	brokerDown := errors.New("dial tcp: connection refused")
	p := eventskafka.NewPublisherWithWriter(&fakeWriter{err: brokerDown}, "anchor.example")

	err := p.Record(context.Background(), model.ScenarioResult{RunID: "run-2", Scenario: "omnibus_allowlist"})
	if !errors.Is(err, brokerDown) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
}
