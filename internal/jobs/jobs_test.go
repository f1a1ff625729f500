package jobs

import (
	"testing"
	"time"

	"github.com/sarathsp06/hookline/internal/webhooks"
)

func TestKinds(t *testing.T) {
	if kind := (ProcessArgs{}).Kind(); kind != "webhook_process" {
		t.Errorf("Expected ProcessArgs.Kind() to return 'webhook_process', got '%s'", kind)
	}
	if kind := (RetryArgs{}).Kind(); kind != "webhook_retry" {
		t.Errorf("Expected RetryArgs.Kind() to return 'webhook_retry', got '%s'", kind)
	}
}

func TestInsertOptsQueues(t *testing.T) {
	if queue := (ProcessArgs{}).InsertOpts().Queue; queue != QueueWebhooks {
		t.Errorf("Expected process jobs on %q, got %q", QueueWebhooks, queue)
	}
	if queue := (RetryArgs{}).InsertOpts().Queue; queue != QueueRetries {
		t.Errorf("Expected retry jobs on %q, got %q", QueueRetries, queue)
	}
}

func TestNewProcessArgs(t *testing.T) {
	record := webhooks.WebhookRecord{Key: webhooks.KeyFor("abc"), Origin: webhooks.OriginBigCommerce}
	args := NewProcessArgs(record)

	if args.Key() != record.Key {
		t.Errorf("Expected key %v, got %v", record.Key, args.Key())
	}
	if args.Origin != webhooks.OriginBigCommerce {
		t.Errorf("Expected origin bigcommerce, got %s", args.Origin)
	}
}

func TestRetryArgsRecord(t *testing.T) {
	if (RetryArgs{PartitionKey: "WH#ABC"}).Record() != nil {
		t.Error("Expected nil record without payload")
	}

	created := time.Unix(1700000000, 0).UTC()
	args := RetryArgs{
		PartitionKey: "WH#EVT_1",
		SortKey:      webhooks.SortKeyWebhook,
		Origin:       webhooks.OriginStripe,
		EventType:    "invoice.paid",
		CreatedAt:    created,
		Payload:      []byte(`{"id":"evt_1"}`),
		Retries:      1,
	}
	record := args.Record()
	if record == nil {
		t.Fatal("Expected record")
	}
	if record.Key.PartitionKey != "WH#EVT_1" || record.EventType != "invoice.paid" || !record.CreatedAt.Equal(created) {
		t.Errorf("Unexpected record %+v", record)
	}
}
