package webhooks

import (
	"encoding/json"
	"fmt"
	"time"
)

// Origin identifies the external provider that pushed a webhook
type Origin string

const (
	OriginBigCommerce Origin = "bigcommerce"
	OriginStripe      Origin = "stripe"
)

// Sort key discriminators. The payload and status records share a partition key.
const (
	SortKeyWebhook = "WEBHOOK"
	SortKeyStatus  = "STATUS"
)

// WebhookKey is the composite key identifying a single webhook occurrence
type WebhookKey struct {
	PartitionKey string `json:"pk" db:"pk"`
	SortKey      string `json:"sk" db:"sk"`
}

func (k WebhookKey) String() string {
	return fmt.Sprintf("%s/%s", k.PartitionKey, k.SortKey)
}

// IsZero reports whether the key has no partition component
func (k WebhookKey) IsZero() bool {
	return k.PartitionKey == ""
}

// WebhookRecord represents a captured webhook. It is never mutated after capture.
type WebhookRecord struct {
	Key       WebhookKey      `json:"key"`
	Origin    Origin          `json:"origin" db:"origin"`
	EventType string          `json:"event_type" db:"event_type"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	Payload   json.RawMessage `json:"payload" db:"payload"`
}

// StatusRecord holds the mutable processing state for a webhook key
type StatusRecord struct {
	Key       WebhookKey `json:"key"`
	Status    Status     `json:"status" db:"status"`
	Retries   int        `json:"retries" db:"retries"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// NewStatusRecord returns the initial status written alongside a new record
func NewStatusRecord(key WebhookKey, now time.Time) StatusRecord {
	return StatusRecord{
		Key:       key,
		Status:    StatusReceived,
		Retries:   0,
		UpdatedAt: now,
	}
}
