package queue

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/sarathsp06/hookline/internal/config"
	"github.com/sarathsp06/hookline/internal/dispatch"
	"github.com/sarathsp06/hookline/internal/jobs"
	"github.com/sarathsp06/hookline/internal/logger"
	"github.com/sarathsp06/hookline/internal/observability"
	"github.com/sarathsp06/hookline/internal/pipeline"
	"github.com/sarathsp06/hookline/internal/webhooks"
	"github.com/sarathsp06/hookline/internal/workers"
)

// Manager owns the database pool, the River client and the processing pipeline
type Manager struct {
	client    *river.Client[pgx.Tx]
	dbPool    *pgxpool.Pool
	repo      *webhooks.Repository
	processor *pipeline.Processor
	consumer  *dispatch.RedisConsumer
	cancel    context.CancelFunc
	log       *slog.Logger
}

// NewManager creates a new queue manager running handler for every webhook
func NewManager(ctx context.Context, cfg *config.Config, handler pipeline.Handler, metrics *observability.Metrics) (*Manager, error) {
	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	riverWorkers := river.NewWorkers()

	// Create River client first (needed by the change-feed and dispatcher)
	riverClient, err := river.NewClient(riverpgxv5.New(dbPool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 1},
			jobs.QueueWebhooks: {MaxWorkers: cfg.WorkerConcurrency},
			jobs.QueueRetries:  {MaxWorkers: max(1, cfg.WorkerConcurrency/2)},
		},
		Workers: riverWorkers,
	})
	if err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	repo := webhooks.NewRepository(dbPool).WithChangeFeed(NewChangeFeed(riverClient))

	m := &Manager{
		client: riverClient,
		dbPool: dbPool,
		repo:   repo,
		log:    logger.NewLogger("queue-manager"),
	}

	dispatcher, err := m.newDispatcher(ctx, cfg)
	if err != nil {
		dbPool.Close()
		return nil, err
	}

	m.processor = pipeline.NewProcessor(repo, handler,
		pipeline.WithDispatcher(dispatcher),
		pipeline.WithMaxRetries(cfg.MaxRetries),
		pipeline.WithConcurrency(cfg.WorkerConcurrency),
		pipeline.WithMetrics(metrics),
	)

	// Add workers that need dependencies
	river.AddWorker(riverWorkers, workers.NewProcessWorker(m.processor, cfg.WorkTimeout))
	river.AddWorker(riverWorkers, workers.NewRetryWorker(m.processor, cfg.WorkTimeout))

	return m, nil
}

func (m *Manager) newDispatcher(ctx context.Context, cfg *config.Config) (pipeline.RetryDispatcher, error) {
	switch cfg.RetryDispatcher {
	case config.DispatcherRedis:
		client := dispatch.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		// The consumer needs the processor, which is built after the dispatcher
		m.consumer = dispatch.NewRedisConsumer(client, cfg.RedisKey, processorRef{m}, cfg.RetryBackoff, cfg.RetryBackoffMax)
		m.log.Info("Using Redis retry dispatcher", "addr", cfg.RedisAddr, "key", cfg.RedisKey)
		return dispatch.NewRedisDispatcher(client, cfg.RedisKey), nil

	case config.DispatcherSQS:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		m.log.Info("Using SQS retry dispatcher", "queue_url", cfg.SQSQueueURL)
		return dispatch.NewSQSDispatcher(sqs.NewFromConfig(awsCfg), cfg.SQSQueueURL), nil

	default:
		m.log.Info("Using River retry dispatcher", "queue", jobs.QueueRetries)
		return dispatch.NewRiverDispatcher(m.client, cfg.RetryBackoff, cfg.RetryBackoffMax), nil
	}
}

// processorRef resolves the processor lazily
type processorRef struct{ m *Manager }

func (r processorRef) ProcessBatch(ctx context.Context, triggers []pipeline.Trigger) pipeline.BatchResult {
	return r.m.processor.ProcessBatch(ctx, triggers)
}

// Start starts the queue processing
func (m *Manager) Start(ctx context.Context) error {
	if err := m.client.Start(ctx); err != nil {
		m.log.Error("Failed to start River client", "error", err)
		return fmt.Errorf("failed to start River client: %w", err)
	}

	if m.consumer != nil {
		consumerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		m.cancel = cancel
		go func() {
			_ = m.consumer.Run(consumerCtx)
		}()
	}

	m.log.Info("Connected to database")
	m.log.Info("River queue started successfully")
	return nil
}

// Stop stops the queue processing
func (m *Manager) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	err := m.client.Stop(ctx)
	m.dbPool.Close()
	return err
}

// GetRepository returns the webhook repository
func (m *Manager) GetRepository() *webhooks.Repository {
	return m.repo
}

// GetProcessor returns the processing pipeline
func (m *Manager) GetProcessor() *pipeline.Processor {
	return m.processor
}
