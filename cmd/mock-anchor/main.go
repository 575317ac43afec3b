package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anchor-e2e/internal/config"
	"anchor-e2e/internal/metrics"
	"anchor-e2e/internal/mockanchor"
	"anchor-e2e/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Run.LogLevel)
	appLogger.Info("Starting mock anchor platform")

	server, err := mockanchor.New(mockanchor.Config{
		HomeDomain:        cfg.MockAnchor.HomeDomain,
		SigningSecret:     cfg.MockAnchor.SigningSecret,
		NetworkPassphrase: cfg.Ledger.NetworkPassphrase,
		Allowlist:         cfg.MockAnchor.Allowlist,
		CompleteAfter:     cfg.MockAnchor.CompleteAfter,
	}, appLogger, metrics.New("mock_anchor"))
	if err != nil {
		log.Fatalf("Failed to initialize mock anchor: %v", err)
	}

	addr := fmt.Sprintf(":%s", cfg.MockAnchor.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		appLogger.Info("HTTP server starting", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server error", "error", err)
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	appLogger.Info("Mock anchor started",
		"address", addr,
		"signing_key", server.SigningAddress(),
		"allowlist_size", len(cfg.MockAnchor.Allowlist),
		"complete_after", cfg.MockAnchor.CompleteAfter,
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	customers, quotes, transactions := server.Counts()
	appLogger.Info("Server stopped gracefully",
		"customers", customers,
		"quotes", quotes,
		"transactions", transactions,
	)
}
