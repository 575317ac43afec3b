// Package notify delivers run summaries to people watching the anchor.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"anchor-e2e/internal/model"
)

// Notifier announces a finished run
type Notifier interface {
	Notify(ctx context.Context, summary model.RunSummary) error
}

// FormatSummary renders a run as a short plain-text report
func FormatSummary(s model.RunSummary) string {
	var b strings.Builder

	failed := s.Failed()
	verdict := "PASSED"
	if failed > 0 {
		verdict = "FAILED"
	}

	fmt.Fprintf(&b, "Anchor E2E %s\n", verdict)
	fmt.Fprintf(&b, "Domain: %s\n", s.Domain)
	fmt.Fprintf(&b, "Run: %s\n", s.RunID)
	fmt.Fprintf(&b, "Scenarios: %d run, %d failed\n", len(s.Results), failed)
	if !s.StartedAt.IsZero() && !s.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "Duration: %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
	}

	for _, r := range s.Results {
		mark := "ok"
		if !r.Passed() {
			mark = "FAIL"
		}
		fmt.Fprintf(&b, "\n[%s] %s (%s)", mark, r.Scenario, r.Duration.Round(time.Millisecond))
		if r.Error != "" {
			fmt.Fprintf(&b, "\n  %s", r.Error)
		}
	}
	return b.String()
}
