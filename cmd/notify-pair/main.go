package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"anchor-e2e/internal/config"
	"anchor-e2e/internal/notify"
	"anchor-e2e/pkg/logger"
)

// notify-pair links the WhatsApp device used for run summaries
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Run.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wa, err := notify.NewWhatsApp(ctx, &cfg.WhatsApp, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize WhatsApp: %v", err)
	}
	defer wa.Disconnect()

	if err := wa.Pair(ctx, os.Stdout); err != nil {
		appLogger.Error("Pairing failed", "error", err)
		wa.Disconnect()
		stop()
		os.Exit(1)
	}
	appLogger.Info("WhatsApp device linked", "db", cfg.WhatsApp.DBPath)
}
