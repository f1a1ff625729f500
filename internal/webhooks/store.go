package webhooks

import "context"

// Store is the durable storage contract for captured webhooks.
//
// Reads are strongly consistent. PutNew writes the immutable record and its
// initial status in one transaction and fails with ErrAlreadyExists rather than
// overwriting. TransitionStatus is a compare-and-swap on the stored status: it
// applies only when the stored status equals *from (or always when from is nil)
// and fails with ErrConditionFailed otherwise.
type Store interface {
	GetStatus(ctx context.Context, key WebhookKey) (StatusRecord, error)
	GetRecord(ctx context.Context, key WebhookKey) (WebhookRecord, error)
	PutNew(ctx context.Context, record WebhookRecord, status StatusRecord) error
	TransitionStatus(ctx context.Context, key WebhookKey, from *Status, to Status, incrementRetries bool) (StatusRecord, error)
}
