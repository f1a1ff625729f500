package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/sarathsp06/hookline/internal/jobs"
	"github.com/sarathsp06/hookline/internal/webhooks"
)

// TxInserter is the part of the River client used to enqueue inside a transaction
type TxInserter interface {
	InsertTx(ctx context.Context, tx pgx.Tx, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// ChangeFeed enqueues a webhook_process job in the capture transaction, so a
// job exists if and only if the capture committed
type ChangeFeed struct {
	client TxInserter
}

// NewChangeFeed creates a change-feed backed by client
func NewChangeFeed(client TxInserter) *ChangeFeed {
	return &ChangeFeed{client: client}
}

func (f *ChangeFeed) Publish(ctx context.Context, tx pgx.Tx, record webhooks.WebhookRecord) error {
	if _, err := f.client.InsertTx(ctx, tx, jobs.NewProcessArgs(record), nil); err != nil {
		return fmt.Errorf("failed to insert process job: %w", err)
	}
	return nil
}

var _ webhooks.ChangeFeed = (*ChangeFeed)(nil)

// Inserter enqueues jobs outside a transaction
type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// StatusTransitioner is the part of the store used to release a webhook
type StatusTransitioner interface {
	GetStatus(ctx context.Context, key webhooks.WebhookKey) (webhooks.StatusRecord, error)
	GetRecord(ctx context.Context, key webhooks.WebhookKey) (webhooks.WebhookRecord, error)
	TransitionStatus(ctx context.Context, key webhooks.WebhookKey, from *webhooks.Status, to webhooks.Status, incrementRetries bool) (webhooks.StatusRecord, error)
}

// Release clears an operator_required webhook back to received and enqueues
// it for processing. Releasing an already received webhook only re-enqueues
// it, so a release interrupted after the status write can be repeated.
func Release(ctx context.Context, store StatusTransitioner, inserter Inserter, key webhooks.WebhookKey) (webhooks.StatusRecord, error) {
	status, err := store.TransitionStatus(ctx, key, webhooks.StatusOperatorRequired.Ptr(), webhooks.StatusReceived, false)
	if errors.Is(err, webhooks.ErrConditionFailed) {
		current, getErr := store.GetStatus(ctx, key)
		if getErr != nil {
			return webhooks.StatusRecord{}, fmt.Errorf("failed to read webhook status: %w", getErr)
		}
		if current.Status != webhooks.StatusReceived {
			return current, fmt.Errorf("webhook %s is %s, not %s: %w",
				key.PartitionKey, current.Status, webhooks.StatusOperatorRequired, err)
		}
		status, err = current, nil
	}
	if err != nil {
		return webhooks.StatusRecord{}, err
	}

	record, err := store.GetRecord(ctx, key)
	if err != nil {
		return status, fmt.Errorf("failed to read webhook: %w", err)
	}
	if _, err := inserter.Insert(ctx, jobs.NewProcessArgs(record), nil); err != nil {
		return status, fmt.Errorf("failed to enqueue released webhook: %w", err)
	}
	return status, nil
}
