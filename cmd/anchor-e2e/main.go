package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"anchor-e2e/internal/anchor"
	"anchor-e2e/internal/config"
	eventskafka "anchor-e2e/internal/events/kafka"
	"anchor-e2e/internal/ledger"
	"anchor-e2e/internal/metrics"
	"anchor-e2e/internal/model"
	"anchor-e2e/internal/notify"
	"anchor-e2e/internal/poll"
	"anchor-e2e/internal/repository"
	"anchor-e2e/internal/scenario"
	"anchor-e2e/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := applyFlags(cfg, os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLogger := logger.New(cfg.Run.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.WithError(err).Error("End-to-end run failed")
		stop()
		os.Exit(1)
	}
	appLogger.Info("End-to-end run passed")
}

func run(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) error {
	// Unknown names fail here, before the anchor is contacted
	names, err := scenario.ParseNames(cfg.Run.Tests)
	if err != nil {
		return err
	}

	amount, err := decimal.NewFromString(cfg.Ledger.PaymentAmount)
	if err != nil || !amount.IsPositive() {
		return fmt.Errorf("invalid PAYMENT_AMOUNT %q", cfg.Ledger.PaymentAmount)
	}

	signer, err := ledger.NewSigner(cfg.Anchor.Secret, cfg.Ledger.NetworkPassphrase)
	if err != nil {
		return err
	}

	appMetrics := metrics.New("anchor_e2e")
	defer func() {
		if cfg.Report.MetricsFile == "" {
			return
		}
		if err := appMetrics.WriteTextfile(cfg.Report.MetricsFile); err != nil {
			appLogger.Warn("Failed to write metrics file", "path", cfg.Report.MetricsFile, "error", err)
		}
	}()

	appLogger.Info("Starting anchor end-to-end run",
		"domain", cfg.Anchor.Domain,
		"tests", names,
		"account", signer.Address(),
	)

	if cfg.Run.Delay > 0 {
		appLogger.Info("Delaying start", "delay", cfg.Run.Delay.String())
		if !waitDelay(ctx.Done(), cfg.Run.Delay) {
			return ctx.Err()
		}
	}

	httpClient := &http.Client{Timeout: cfg.Anchor.HTTPTimeout}

	if err := waitForAnchor(ctx, cfg, httpClient, appLogger, appMetrics); err != nil {
		return err
	}

	endpoints, err := anchor.ResolveEndpoints(ctx, httpClient, cfg.Anchor.Domain, cfg.Anchor.UseHTTPS)
	if err != nil {
		return fmt.Errorf("failed to resolve anchor endpoints: %w", err)
	}
	appLogger.Info("Anchor endpoints resolved",
		"auth", endpoints.Auth,
		"customer", endpoints.Customer,
		"quote", endpoints.Quote,
		"transactions", endpoints.Transactions,
	)

	recorders, closeRecorders := openRecorders(ctx, cfg, names, appLogger)
	defer closeRecorders()

	runner := scenario.NewRunner(
		anchor.NewClientWithHTTP(endpoints, httpClient, appLogger, appMetrics),
		ledger.NewSender(&cfg.Ledger, cfg.Anchor.HTTPTimeout, signer, appLogger),
		signer,
		recorders,
		scenario.Options{
			PaymentAmount: amount,
			QuoteTTL:      cfg.Run.QuoteTTL,
			StatusPoll: poll.Options{
				Interval: cfg.Polling.StatusInterval,
				Timeout:  cfg.Polling.StatusTimeout,
			},
		},
		appLogger,
		appMetrics,
	)

	summary, runErr := runner.Run(ctx, names)
	summary.Domain = cfg.Anchor.Domain
	appLogger.WithRun(summary.RunID).Info("Run finished",
		"scenarios", len(summary.Results),
		"failed", summary.Failed(),
		"duration", summary.FinishedAt.Sub(summary.StartedAt).String(),
	)

	sendNotification(ctx, cfg, summary, appLogger)
	return runErr
}

// waitForAnchor polls stellar.toml until the anchor answers
func waitForAnchor(ctx context.Context, cfg *config.Config, httpClient *http.Client, appLogger *logger.Logger, appMetrics *metrics.Metrics) error {
	url := anchor.TomlURL(cfg.Anchor.Domain, cfg.Anchor.UseHTTPS)
	appLogger.Info("Waiting for anchor platform", "url", url, "timeout", cfg.Polling.ReadyTimeout.String())

	err := poll.WaitReady(ctx, poll.Options{
		Interval: cfg.Polling.ReadyInterval,
		Timeout:  cfg.Polling.ReadyTimeout,
		OnAttempt: func(attempt int, err error) {
			if err != nil {
				appMetrics.ObservePoll("readiness", "pending")
				appLogger.Info("Anchor not ready yet", "attempt", attempt, "error", err)
				return
			}
			appMetrics.ObservePoll("readiness", "done")
		},
	}, func(ctx context.Context) error {
		_, err := anchor.FetchStellarToml(ctx, httpClient, cfg.Anchor.Domain, cfg.Anchor.UseHTTPS)
		return err
	})
	if err != nil {
		return fmt.Errorf("anchor platform at %s never became ready: %w", url, err)
	}

	appLogger.Info("Anchor platform is ready")
	return nil
}

// openRecorders connects the optional result sinks. A sink that cannot be
// opened is skipped so reporting never blocks a run.
func openRecorders(ctx context.Context, cfg *config.Config, names []string, appLogger *logger.Logger) (scenario.Recorders, func()) {
	var (
		recorders scenario.Recorders
		closers   []func() error
	)

	if cfg.Report.DB != "" {
		store, err := repository.Open(ctx, cfg.Report.DB)
		if err != nil {
			appLogger.Warn("Result store unavailable", "error", err)
		} else {
			recorders = append(recorders, store)
			closers = append(closers, store.Close)
			logFailureHistory(ctx, store, names, appLogger)
		}
	}

	if len(cfg.Report.KafkaBrokers) > 0 {
		publisher := eventskafka.NewPublisher(cfg.Report.KafkaBrokers, cfg.Report.KafkaTopic, cfg.Anchor.Domain)
		recorders = append(recorders, publisher)
		closers = append(closers, publisher.Close)
	}

	return recorders, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				appLogger.Warn("Failed to close result sink", "error", err)
			}
		}
	}
}

// logFailureHistory logs how often each selected scenario failed in
// earlier runs
func logFailureHistory(ctx context.Context, store repository.RunStore, names []string, appLogger *logger.Logger) {
	for _, name := range names {
		failures, err := store.CountFailures(ctx, name)
		if err != nil {
			appLogger.Warn("Failed to read failure history", "scenario", name, "error", err)
			return
		}
		if failures > 0 {
			appLogger.Info("Scenario failed in earlier runs", "scenario", name, "failures", failures)
		}
	}
}

// sendNotification reports the run to the configured webhook and WhatsApp
// recipient. Delivery failures are logged only.
func sendNotification(ctx context.Context, cfg *config.Config, summary model.RunSummary, appLogger *logger.Logger) {
	// The run context may already be cancelled; delivery gets its own deadline
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()

	if cfg.Report.WebhookURL != "" {
		hook := notify.NewWebhook(cfg.Report.WebhookURL, cfg.Report.WebhookTimeout, cfg.Report.WebhookRetries, appLogger)
		if err := hook.Notify(ctx, summary); err != nil {
			appLogger.Warn("Failed to deliver run summary webhook", "error", err)
		}
	}

	if cfg.WhatsApp.NotifyJID != "" {
		notifyWhatsApp(ctx, cfg, summary, appLogger)
	}
}

func notifyWhatsApp(ctx context.Context, cfg *config.Config, summary model.RunSummary, appLogger *logger.Logger) {
	wa, err := notify.NewWhatsApp(ctx, &cfg.WhatsApp, appLogger)
	if err != nil {
		appLogger.Warn("WhatsApp notifier unavailable", "error", err)
		return
	}
	if err := wa.Connect(); err != nil {
		appLogger.Warn("Failed to connect to WhatsApp", "error", err)
		return
	}
	defer wa.Disconnect()

	if err := wa.WaitLoggedIn(ctx); err != nil {
		appLogger.Warn("WhatsApp session did not log in", "error", err)
		return
	}
	if err := wa.Notify(ctx, summary); err != nil {
		appLogger.Warn("Failed to send run summary", "error", err)
	}
}
