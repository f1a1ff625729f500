package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChangeFeed is notified inside the capture transaction so that processing
// is triggered if and only if the capture commits.
type ChangeFeed interface {
	Publish(ctx context.Context, tx pgx.Tx, record WebhookRecord) error
}

// Repository is the PostgreSQL Store
type Repository struct {
	db   *pgxpool.Pool
	feed ChangeFeed
}

// NewRepository creates a new webhook repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// WithChangeFeed sets the feed published to on every capture
func (r *Repository) WithChangeFeed(feed ChangeFeed) *Repository {
	r.feed = feed
	return r
}

// PutNew stores the immutable record and its initial status in one transaction
func (r *Repository) PutNew(ctx context.Context, record WebhookRecord, status StatusRecord) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin capture transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO webhooks (pk, sk, origin, event_type, created_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (pk) DO NOTHING
	`,
		record.Key.PartitionKey,
		record.Key.SortKey,
		string(record.Origin),
		record.EventType,
		record.CreatedAt,
		[]byte(record.Payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}

	updatedAt := status.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO webhook_statuses (pk, sk, status, retries, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		record.Key.PartitionKey,
		SortKeyStatus,
		string(status.Status),
		status.Retries,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert webhook status: %w", err)
	}

	if r.feed != nil {
		if err := r.feed.Publish(ctx, tx, record); err != nil {
			return fmt.Errorf("failed to publish capture: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit capture: %w", err)
	}
	return nil
}

// GetStatus reads the current status record for key
func (r *Repository) GetStatus(ctx context.Context, key WebhookKey) (StatusRecord, error) {
	row := r.db.QueryRow(ctx, `
		SELECT status, retries, updated_at
		FROM webhook_statuses
		WHERE pk = $1
	`, key.PartitionKey)
	return scanStatus(key, row)
}

// GetRecord reads the captured record for key
func (r *Repository) GetRecord(ctx context.Context, key WebhookKey) (WebhookRecord, error) {
	var (
		record  WebhookRecord
		origin  string
		payload []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT pk, sk, origin, event_type, created_at, payload
		FROM webhooks
		WHERE pk = $1
	`, key.PartitionKey).Scan(
		&record.Key.PartitionKey,
		&record.Key.SortKey,
		&origin,
		&record.EventType,
		&record.CreatedAt,
		&payload,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WebhookRecord{}, ErrNotFound
		}
		return WebhookRecord{}, fmt.Errorf("failed to get webhook: %w", err)
	}
	record.Origin = Origin(origin)
	record.Payload = payload
	return record, nil
}

// TransitionStatus conditionally updates the status for key
func (r *Repository) TransitionStatus(ctx context.Context, key WebhookKey, from *Status, to Status, incrementRetries bool) (StatusRecord, error) {
	increment := 0
	if incrementRetries {
		increment = 1
	}

	query := `
		UPDATE webhook_statuses
		SET status = $2, retries = retries + $3, updated_at = now()
		WHERE pk = $1
	`
	args := []interface{}{key.PartitionKey, string(to), increment}
	if from != nil {
		query += ` AND status = $4`
		args = append(args, string(*from))
	}
	query += ` RETURNING status, retries, updated_at`

	updated, err := scanStatus(key, r.db.QueryRow(ctx, query, args...))
	if !errors.Is(err, ErrNotFound) {
		return updated, err
	}

	// No row matched: either the key is unknown or the condition lost
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM webhook_statuses WHERE pk = $1)`, key.PartitionKey).Scan(&exists); err != nil {
		return StatusRecord{}, fmt.Errorf("failed to check webhook status: %w", err)
	}
	if exists {
		return StatusRecord{}, ErrConditionFailed
	}
	return StatusRecord{}, ErrNotFound
}

// ListByStatus returns status records in the given status, oldest first
func (r *Repository) ListByStatus(ctx context.Context, status Status, limit int) ([]StatusRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT pk, status, retries, updated_at
		FROM webhook_statuses
		WHERE status = $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []StatusRecord
	for rows.Next() {
		var (
			record StatusRecord
			value  string
		)
		if err := rows.Scan(&record.Key.PartitionKey, &value, &record.Retries, &record.UpdatedAt); err != nil {
			return nil, err
		}
		record.Key.SortKey = SortKeyWebhook
		record.Status = Status(value)
		statuses = append(statuses, record)
	}
	return statuses, rows.Err()
}

func scanStatus(key WebhookKey, row pgx.Row) (StatusRecord, error) {
	var (
		record StatusRecord
		value  string
	)
	if err := row.Scan(&value, &record.Retries, &record.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StatusRecord{}, ErrNotFound
		}
		return StatusRecord{}, fmt.Errorf("failed to read webhook status: %w", err)
	}
	record.Key = key
	record.Status = Status(value)
	return record, nil
}

var _ Store = (*Repository)(nil)
