package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sarathsp06/hookline/internal/capture"
	"github.com/sarathsp06/hookline/internal/config"
	"github.com/sarathsp06/hookline/internal/httpapi"
	"github.com/sarathsp06/hookline/internal/logger"
	"github.com/sarathsp06/hookline/internal/observability"
	"github.com/sarathsp06/hookline/internal/queue"
	"github.com/sarathsp06/hookline/internal/webhooks"
)

// handleWebhook is the business handler run for every captured webhook
func handleWebhook(ctx context.Context, record webhooks.WebhookRecord) error {
	logger.NewLogger("handler").InfoContext(ctx, "Handling webhook",
		"pk", record.Key.PartitionKey,
		"origin", record.Origin,
		"event_type", record.EventType,
		"created_at", record.CreatedAt,
	)
	return nil
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.NewLogger("main").Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	log := logger.NewLogger("main")

	shutdownTelemetry, err := observability.Setup(ctx, observability.FromSettings(
		cfg.ServiceVersion, cfg.Environment, cfg.OTLPEndpoint, cfg.EnableTracing, cfg.EnableMetrics,
	))
	if err != nil {
		log.Error("Failed to set up OpenTelemetry", "error", err)
		os.Exit(1)
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		log.Error("Failed to create metrics", "error", err)
		os.Exit(1)
	}

	queueManager, err := queue.NewManager(ctx, cfg, handleWebhook, metrics)
	if err != nil {
		log.Error("Failed to create queue manager", "error", err)
		os.Exit(1)
	}

	if err := queueManager.Start(ctx); err != nil {
		log.Error("Failed to start queue manager", "error", err)
		os.Exit(1)
	}
	log.Info("Processing pipeline ready",
		"max_retries", queueManager.GetProcessor().MaxRetries(),
		"dispatcher", cfg.RetryDispatcher,
	)

	service := capture.NewService(webhooks.DefaultAdapters(), queueManager.GetRepository(),
		capture.WithMetrics(metrics),
	)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewServer(service, nil).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down HTTP server", "error", err)
	}
	if err := queueManager.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop queue manager", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Error("Failed to shut down OpenTelemetry", "error", err)
	}
	log.Info("Shutdown complete")
}
