package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/sarathsp06/hookline/internal/jobs"
	"github.com/sarathsp06/hookline/internal/pipeline"
	"github.com/sarathsp06/hookline/internal/webhooks"
)

func seed(t *testing.T, store *webhooks.MemoryStore, id string) webhooks.WebhookRecord {
	t.Helper()
	record := webhooks.WebhookRecord{
		Key:       webhooks.KeyFor(id),
		Origin:    webhooks.OriginBigCommerce,
		EventType: "store/order/created",
		CreatedAt: time.Unix(1700000000, 0).UTC(),
		Payload:   []byte(`{"hash":"` + id + `"}`),
	}
	if err := store.PutNew(context.Background(), record, webhooks.NewStatusRecord(record.Key, time.Now())); err != nil {
		t.Fatalf("Failed to seed record: %v", err)
	}
	return record
}

func TestProcessWorkerCompletes(t *testing.T) {
	store := webhooks.NewMemoryStore()
	record := seed(t, store, "abc")
	processor := pipeline.NewProcessor(store, func(context.Context, webhooks.WebhookRecord) error { return nil })
	worker := NewProcessWorker(processor, 30*time.Second)

	job := &river.Job[jobs.ProcessArgs]{
		JobRow: &rivertype.JobRow{ID: 7, Attempt: 1},
		Args:   jobs.NewProcessArgs(record),
	}
	if err := worker.Work(context.Background(), job); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	status, err := store.GetStatus(context.Background(), record.Key)
	if err != nil {
		t.Fatalf("Failed to read status: %v", err)
	}
	if status.Status != webhooks.StatusCompleted {
		t.Errorf("Expected status completed, got %s", status.Status)
	}
	if worker.Timeout(job) != 30*time.Second {
		t.Errorf("Expected timeout 30s, got %s", worker.Timeout(job))
	}
}

func TestProcessWorkerReturnsErrorForUnresolvedItem(t *testing.T) {
	store := webhooks.NewMemoryStore()
	record := seed(t, store, "def")
	processor := pipeline.NewProcessor(store, func(context.Context, webhooks.WebhookRecord) error {
		return errors.New("downstream unavailable")
	})
	worker := NewProcessWorker(processor, time.Second)

	job := &river.Job[jobs.ProcessArgs]{
		JobRow: &rivertype.JobRow{ID: 8, Attempt: 1},
		Args:   jobs.NewProcessArgs(record),
	}
	if err := worker.Work(context.Background(), job); err == nil {
		t.Fatal("Expected an error so River retries the job")
	}
}

func TestRetryWorkerUsesDenormalizedRecord(t *testing.T) {
	store := webhooks.NewMemoryStore()
	record := seed(t, store, "ghi")
	if _, err := store.TransitionStatus(context.Background(), record.Key, nil, webhooks.StatusFailed, false); err != nil {
		t.Fatalf("Failed to mark failed: %v", err)
	}

	var seen string
	processor := pipeline.NewProcessor(store, func(_ context.Context, r webhooks.WebhookRecord) error {
		seen = r.EventType
		return nil
	})
	worker := NewRetryWorker(processor, time.Second)

	job := &river.Job[jobs.RetryArgs]{
		JobRow: &rivertype.JobRow{ID: 9, Attempt: 1},
		Args: jobs.RetryArgs{
			PartitionKey: record.Key.PartitionKey,
			SortKey:      record.Key.SortKey,
			Origin:       record.Origin,
			EventType:    "from.retry",
			CreatedAt:    record.CreatedAt,
			Payload:      record.Payload,
			Retries:      0,
		},
	}
	if err := worker.Work(context.Background(), job); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if seen != "from.retry" {
		t.Errorf("Expected handler to see retry payload, got %q", seen)
	}

	status, err := store.GetStatus(context.Background(), record.Key)
	if err != nil {
		t.Fatalf("Failed to read status: %v", err)
	}
	if status.Retries != 1 {
		t.Errorf("Expected retries 1, got %d", status.Retries)
	}
}
