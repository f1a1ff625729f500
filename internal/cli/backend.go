package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/sarathsp06/hookline/internal/config"
	"github.com/sarathsp06/hookline/internal/queue"
	"github.com/sarathsp06/hookline/internal/webhooks"
)

// Backend is the storage the commands operate on
type Backend interface {
	GetStatus(ctx context.Context, key webhooks.WebhookKey) (webhooks.StatusRecord, error)
	ListByStatus(ctx context.Context, status webhooks.Status, limit int) ([]webhooks.StatusRecord, error)
	Release(ctx context.Context, key webhooks.WebhookKey) (webhooks.StatusRecord, error)
	Close()
}

// BackendFactory opens a Backend
type BackendFactory func(ctx context.Context) (Backend, error)

type postgresBackend struct {
	*webhooks.Repository
	pool   *pgxpool.Pool
	client *river.Client[pgx.Tx]
}

// OpenPostgres connects to the configured database. The River client is
// insert-only; it runs no workers.
func OpenPostgres(ctx context.Context) (Backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &postgresBackend{
		Repository: webhooks.NewRepository(pool),
		pool:       pool,
		client:     client,
	}, nil
}

func (b *postgresBackend) Release(ctx context.Context, key webhooks.WebhookKey) (webhooks.StatusRecord, error) {
	return queue.Release(ctx, b.Repository, b.client, key)
}

func (b *postgresBackend) Close() {
	b.pool.Close()
}

// parseKey accepts either a partition key ("WH#ABC") or a provider id ("abc")
func parseKey(arg string) webhooks.WebhookKey {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(strings.ToUpper(arg), "WH#") {
		return webhooks.KeyFor(arg[len("WH#"):])
	}
	return webhooks.KeyFor(arg)
}
