// Command retry-lambda consumes the failed-webhooks SQS queue and resumes the
// processing pipeline for each message.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sarathsp06/hookline/internal/config"
	"github.com/sarathsp06/hookline/internal/logger"
	"github.com/sarathsp06/hookline/internal/observability"
	"github.com/sarathsp06/hookline/internal/pipeline"
	"github.com/sarathsp06/hookline/internal/sqsbatch"
	"github.com/sarathsp06/hookline/internal/webhooks"
)

func handleWebhook(ctx context.Context, record webhooks.WebhookRecord) error {
	logger.NewLogger("handler").InfoContext(ctx, "Handling webhook retry",
		"pk", record.Key.PartitionKey,
		"origin", record.Origin,
		"event_type", record.EventType,
	)
	return nil
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.NewLogger("retry-lambda").Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	log := logger.NewLogger("retry-lambda")
	log.Info("Retry Lambda initializing (cold start)")

	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("Failed to create database pool", "error", err)
		os.Exit(1)
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		log.Error("Failed to create metrics", "error", err)
		os.Exit(1)
	}

	// Unresolved items go back to SQS through batch item failures, so the
	// processor runs without a dispatcher of its own
	processor := pipeline.NewProcessor(webhooks.NewRepository(dbPool), handleWebhook,
		pipeline.WithMaxRetries(cfg.MaxRetries),
		pipeline.WithConcurrency(cfg.WorkerConcurrency),
		pipeline.WithMetrics(metrics),
	)

	log.Info("Retry Lambda initialized", "max_retries", cfg.MaxRetries)
	lambda.Start(sqsbatch.NewHandler(processor).Handle)
}
