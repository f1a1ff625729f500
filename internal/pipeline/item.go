package pipeline

import (
	"context"

	"github.com/sarathsp06/hookline/internal/webhooks"
)

// Trigger is one processing request delivered by a change-feed or retry channel.
// Record is optional; when nil the processor re-reads it from the store.
type Trigger struct {
	BatchItemID string
	Key         webhooks.WebhookKey
	Record      *webhooks.WebhookRecord
}

// PipelineItem carries one webhook through the stages. Each stage inspects
// Stage and leaves terminal items untouched.
type PipelineItem struct {
	Key         webhooks.WebhookKey
	Record      webhooks.WebhookRecord
	BatchItemID string
	Stage       webhooks.Stage
	Retries     int
	Err         error

	// Redispatched is set once a failed item has been handed to the retry channel
	Redispatched bool

	status      webhooks.Status
	hasRecord   bool
	claimed     bool
	failedWrite bool
}

func newItem(trigger Trigger) *PipelineItem {
	item := &PipelineItem{
		Key:         trigger.Key,
		BatchItemID: trigger.BatchItemID,
		Stage:       webhooks.StageContinue,
	}
	if trigger.Record != nil {
		item.Record = *trigger.Record
		item.hasRecord = true
	}
	return item
}

// Origin returns the provider of the item's record, or "" before it is loaded
func (i *PipelineItem) Origin() webhooks.Origin {
	return i.Record.Origin
}

// Faulted reports whether the item carries an unexpected fault
func (i *PipelineItem) Faulted() bool {
	return webhooks.TextCode(i.Err) == webhooks.TextCodeFault
}

func (i *PipelineItem) fail(err error) {
	i.Stage = webhooks.StageFailed
	i.Err = err
}

func (i *PipelineItem) metadata() map[string]any {
	return map[string]any{
		"pk":            i.Key.PartitionKey,
		"batch_item_id": i.BatchItemID,
		"retries":       i.Retries,
	}
}

// RetryDispatcher hands a failed item to a secondary channel for redelivery
type RetryDispatcher interface {
	Dispatch(ctx context.Context, item PipelineItem) error
}

// Handler is the business operation run for each webhook
type Handler func(ctx context.Context, record webhooks.WebhookRecord) error
