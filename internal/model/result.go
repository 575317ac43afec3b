package model

import "time"

// Scenario outcomes
const (
	ResultPassed = "passed"
	ResultFailed = "failed"
)

// ScenarioResult records one executed scenario of a run
type ScenarioResult struct {
	RunID          string        `json:"run_id"`
	Scenario       string        `json:"scenario"`
	Result         string        `json:"result"`
	TransactionIDs []string      `json:"transaction_ids,omitempty"`
	QuoteIDs       []string      `json:"quote_ids,omitempty"`
	Error          string        `json:"error,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
	Duration       time.Duration `json:"duration_ns"`
}

// Passed reports whether the scenario succeeded
func (r ScenarioResult) Passed() bool {
	return r.Result == ResultPassed
}

// RunSummary aggregates the scenario results of one invocation
type RunSummary struct {
	RunID      string           `json:"run_id"`
	Domain     string           `json:"domain"`
	Results    []ScenarioResult `json:"results"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// Failed returns the number of failed scenarios
func (s RunSummary) Failed() int {
	n := 0
	for _, r := range s.Results {
		if !r.Passed() {
			n++
		}
	}
	return n
}

// ScenarioCompleted is the event published for every finished scenario
type ScenarioCompleted struct {
	RunID          string    `json:"run_id"`
	Domain         string    `json:"domain"`
	Scenario       string    `json:"scenario"`
	Result         string    `json:"result"`
	TransactionIDs []string  `json:"transaction_ids,omitempty"`
	Error          string    `json:"error,omitempty"`
	DurationMillis int64     `json:"duration_ms"`
	OccurredAt     time.Time `json:"occurred_at"`
}
