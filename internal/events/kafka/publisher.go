package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"anchor-e2e/internal/model"
)

// MessageWriter is the part of *kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher emits a ScenarioCompleted event for every finished scenario
type Publisher struct {
	writer MessageWriter
	domain string
}

// NewPublisher creates a publisher writing to topic on brokers
func NewPublisher(brokers []string, topic, domain string) *Publisher {
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
	}, domain)
}

// NewPublisherWithWriter wraps an existing writer
func NewPublisherWithWriter(w MessageWriter, domain string) *Publisher {
	return &Publisher{writer: w, domain: domain}
}

// Record publishes the result keyed by run ID so a run's events stay
// ordered within one partition.
func (p *Publisher) Record(ctx context.Context, r model.ScenarioResult) error {
	event := model.ScenarioCompleted{
		RunID:          r.RunID,
		Domain:         p.domain,
		Scenario:       r.Scenario,
		Result:         r.Result,
		TransactionIDs: r.TransactionIDs,
		Error:          r.Error,
		DurationMillis: r.Duration.Milliseconds(),
		OccurredAt:     r.FinishedAt,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(r.RunID),
		Value: data,
	}); err != nil {
		return fmt.Errorf("failed to publish %s result: %w", r.Scenario, err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}
