package jobs

import (
	"encoding/json"
	"time"

	"github.com/riverqueue/river"

	"github.com/sarathsp06/hookline/internal/webhooks"
)

// River queue names
const (
	QueueWebhooks = "webhooks"
	QueueRetries  = "webhook_retries"
)

// ProcessArgs is enqueued in the capture transaction; it is the change-feed
// entry that triggers processing of a newly captured webhook
type ProcessArgs struct {
	PartitionKey string          `json:"pk"`
	SortKey      string          `json:"sk"`
	Origin       webhooks.Origin `json:"origin"`
}

// Kind returns the job kind for River queue
func (ProcessArgs) Kind() string {
	return "webhook_process"
}

// InsertOpts routes process jobs to the webhooks queue
func (ProcessArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueWebhooks,
		MaxAttempts: 5,
	}
}

// Key returns the webhook key the job refers to
func (a ProcessArgs) Key() webhooks.WebhookKey {
	return webhooks.WebhookKey{PartitionKey: a.PartitionKey, SortKey: a.SortKey}
}

// NewProcessArgs builds the change-feed job for a captured record
func NewProcessArgs(record webhooks.WebhookRecord) ProcessArgs {
	return ProcessArgs{
		PartitionKey: record.Key.PartitionKey,
		SortKey:      record.Key.SortKey,
		Origin:       record.Origin,
	}
}

// RetryArgs carries a failed webhook back into the pipeline. The record is
// denormalized so the worker does not need a second read.
type RetryArgs struct {
	PartitionKey string          `json:"pk"`
	SortKey      string          `json:"sk"`
	Origin       webhooks.Origin `json:"origin"`
	EventType    string          `json:"event_type"`
	CreatedAt    time.Time       `json:"created_at"`
	Payload      json.RawMessage `json:"payload"`
	Retries      int             `json:"retries"`
	Reason       string          `json:"reason,omitempty"`
}

// Kind returns the job kind for River queue
func (RetryArgs) Kind() string {
	return "webhook_retry"
}

// InsertOpts routes retry jobs to the retry queue
func (RetryArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueRetries,
		MaxAttempts: 5,
	}
}

// Key returns the webhook key the job refers to
func (a RetryArgs) Key() webhooks.WebhookKey {
	return webhooks.WebhookKey{PartitionKey: a.PartitionKey, SortKey: a.SortKey}
}

// Record rebuilds the stored record, or nil when the job carries no payload
func (a RetryArgs) Record() *webhooks.WebhookRecord {
	if len(a.Payload) == 0 {
		return nil
	}
	return &webhooks.WebhookRecord{
		Key:       a.Key(),
		Origin:    a.Origin,
		EventType: a.EventType,
		CreatedAt: a.CreatedAt,
		Payload:   a.Payload,
	}
}
