// Package dispatch publishes failed webhooks to a retry channel. River, a
// Redis list and an SQS queue are supported.
package dispatch

import (
	"encoding/json"
	"time"

	"github.com/sarathsp06/hookline/internal/pipeline"
	"github.com/sarathsp06/hookline/internal/webhooks"
)

// RetryMessage is the payload published for a failed webhook. It carries the
// whole record so a consumer can resume the pipeline without a second read.
type RetryMessage struct {
	Key       webhooks.WebhookKey `json:"key"`
	Origin    webhooks.Origin     `json:"origin"`
	EventType string              `json:"event_type"`
	CreatedAt time.Time           `json:"created_at"`
	Payload   json.RawMessage     `json:"payload,omitempty"`
	Retries   int                 `json:"retries"`
	Reason    string              `json:"reason,omitempty"`
	// Attempts counts deliveries of this message that ended unresolved.
	// Transports without their own redelivery bound use it.
	Attempts  int                 `json:"attempts,omitempty"`
}

// NewRetryMessage builds the message for a failed pipeline item
func NewRetryMessage(item pipeline.PipelineItem) RetryMessage {
	msg := RetryMessage{
		Key:       item.Key,
		Origin:    item.Record.Origin,
		EventType: item.Record.EventType,
		CreatedAt: item.Record.CreatedAt,
		Payload:   item.Record.Payload,
		Retries:   item.Retries,
	}
	if item.Err != nil {
		msg.Reason = item.Err.Error()
	}
	return msg
}

// Trigger converts the message back into a processing trigger
func (m RetryMessage) Trigger(batchItemID string) pipeline.Trigger {
	trigger := pipeline.Trigger{BatchItemID: batchItemID, Key: m.Key}
	if len(m.Payload) > 0 {
		trigger.Record = &webhooks.WebhookRecord{
			Key:       m.Key,
			Origin:    m.Origin,
			EventType: m.EventType,
			CreatedAt: m.CreatedAt,
			Payload:   m.Payload,
		}
	}
	return trigger
}

// Backoff returns the delay before retry number retries+1: base doubled per
// retry and capped at limit. A zero base disables the delay.
func Backoff(retries int, base, limit time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 0; i < retries; i++ {
		delay *= 2
		if limit > 0 && delay >= limit {
			return limit
		}
	}
	if limit > 0 && delay > limit {
		return limit
	}
	return delay
}
