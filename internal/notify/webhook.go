package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"anchor-e2e/internal/model"
	"anchor-e2e/pkg/logger"
)

// Webhook posts run summaries as JSON to an HTTP endpoint
type Webhook struct {
	httpClient *http.Client
	url        string
	retries    int
	backoff    time.Duration
	logger     *logger.Logger
}

var _ Notifier = (*Webhook)(nil)

// webhookPayload is the body of every delivery
type webhookPayload struct {
	Event   string           `json:"event"`
	Passed  bool             `json:"passed"`
	Failed  int              `json:"failed"`
	Text    string           `json:"text"`
	Summary model.RunSummary `json:"summary"`
}

// NewWebhook creates a webhook notifier. Failed deliveries are retried up
// to retries times with exponential backoff starting at one second.
func NewWebhook(url string, timeout time.Duration, retries int, log *logger.Logger) *Webhook {
	return &Webhook{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		retries:    retries,
		backoff:    time.Second,
		logger:     log,
	}
}

// Notify delivers the summary, retrying on failure
func (w *Webhook) Notify(ctx context.Context, summary model.RunSummary) error {
	failed := summary.Failed()
	payload := webhookPayload{
		Event:   "anchor_e2e_run_finished",
		Passed:  failed == 0,
		Failed:  failed,
		Text:    FormatSummary(summary),
		Summary: summary,
	}
	log := w.logger.WithRun(summary.RunID)

	var lastErr error
	for attempt := 0; attempt <= w.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * w.backoff
			log.Warn("Retrying webhook delivery",
				"attempt", attempt+1,
				"backoff_seconds", backoff.Seconds(),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := w.send(ctx, payload)
		if err == nil {
			if attempt > 0 {
				log.Info("Webhook delivered", "attempt", attempt+1)
			}
			return nil
		}

		lastErr = err
		log.Warn("Webhook delivery failed",
			"attempt", attempt+1,
			"error", err,
		)
	}

	return fmt.Errorf("webhook delivery failed after %d attempts: %w", w.retries+1, lastErr)
}

// send performs the actual HTTP request
func (w *Webhook) send(ctx context.Context, payload webhookPayload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "anchor-e2e/1.0")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}
