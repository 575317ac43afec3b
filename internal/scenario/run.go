package scenario

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"anchor-e2e/internal/model"
)

// Recorder receives every finished scenario
type Recorder interface {
	Record(ctx context.Context, result model.ScenarioResult) error
}

// Recorders fans a result out to several recorders, attempting all of
// them and returning the first error.
type Recorders []Recorder

// Record implements Recorder
func (rs Recorders) Record(ctx context.Context, result model.ScenarioResult) error {
	var first error
	for _, r := range rs {
		if err := r.Record(ctx, result); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (r *Runner) execute(ctx context.Context, name string, tr *trace) error {
	switch name {
	case Sep31:
		r.logger.Info("Testing SEP-31 send flow")
		_, err := r.sep31Flow(ctx, tr, TransactionFor("USDC"), nil)
		return err
	case Sep31WithSep38:
		return r.sep31FlowWithSep38(ctx, tr)
	case Sep38CreateQuoteName:
		r.logger.Info("Testing POST quote")
		quote, err := r.Sep38CreateQuote(ctx, USDCToJPYCQuote())
		if quote != nil {
			tr.quoteIDs = append(tr.quoteIDs, quote.ID)
		}
		return err
	case OmnibusAllowlistName:
		r.logger.Info("Testing omnibus allowlist")
		return r.OmnibusAllowlist(ctx)
	default:
		return fmt.Errorf("%w %s", ErrUnknownScenario, name)
	}
}

// Run executes the named scenarios in order. The first failing scenario
// stops the run and its error is returned; scenarios after it are not
// started. The summary covers everything that did run. Recorder failures
// are logged and never fail the run.
func (r *Runner) Run(ctx context.Context, names []string) (model.RunSummary, error) {
	summary := model.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: r.opts.Now().UTC(),
	}
	log := r.logger.WithRun(summary.RunID)

	names, err := ParseNames(names)
	if err != nil {
		summary.FinishedAt = r.opts.Now().UTC()
		return summary, err
	}

	for _, name := range names {
		result, err := r.runOne(ctx, summary.RunID, name)
		summary.Results = append(summary.Results, result)

		if rerr := r.recorder.Record(ctx, result); rerr != nil {
			log.Warn("Failed to record scenario result", "scenario", name, "error", rerr)
		}

		if err != nil {
			log.WithScenario(name).Error("Scenario failed, aborting run", "error", err)
			summary.FinishedAt = r.opts.Now().UTC()
			return summary, fmt.Errorf("%s: %w", name, err)
		}
	}

	summary.FinishedAt = r.opts.Now().UTC()
	log.Info("All scenarios passed", "count", len(summary.Results))
	return summary, nil
}

func (r *Runner) runOne(ctx context.Context, runID, name string) (model.ScenarioResult, error) {
	tr := &trace{}
	started := r.opts.Now().UTC()

	err := r.execute(ctx, name, tr)

	finished := r.opts.Now().UTC()
	result := model.ScenarioResult{
		RunID:          runID,
		Scenario:       name,
		Result:         model.ResultPassed,
		TransactionIDs: tr.transactionIDs,
		QuoteIDs:       tr.quoteIDs,
		StartedAt:      started,
		FinishedAt:     finished,
		Duration:       finished.Sub(started),
	}
	if err != nil {
		result.Result = model.ResultFailed
		result.Error = err.Error()
	}
	r.metrics.ObserveScenario(name, result.Result)
	return result, err
}
