package workers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/riverqueue/river"

	"github.com/sarathsp06/hookline/internal/dispatch"
	"github.com/sarathsp06/hookline/internal/jobs"
	"github.com/sarathsp06/hookline/internal/logger"
	"github.com/sarathsp06/hookline/internal/pipeline"
)

// ProcessWorker handles change-feed jobs for newly captured webhooks
type ProcessWorker struct {
	river.WorkerDefaults[jobs.ProcessArgs]
	processor dispatch.BatchProcessor
	timeout   time.Duration
}

// NewProcessWorker creates a worker that bounds each attempt by timeout
func NewProcessWorker(processor dispatch.BatchProcessor, timeout time.Duration) *ProcessWorker {
	return &ProcessWorker{
		processor: processor,
		timeout:   timeout,
	}
}

// Timeout bounds the handler invocation; the pipeline itself sets no deadline
func (w *ProcessWorker) Timeout(*river.Job[jobs.ProcessArgs]) time.Duration {
	return w.timeout
}

// Work runs the captured webhook through the pipeline
func (w *ProcessWorker) Work(ctx context.Context, job *river.Job[jobs.ProcessArgs]) error {
	log := logger.NewLogger("process-worker")

	log.Info("Processing webhook",
		"job_id", job.ID,
		"attempt", job.Attempt,
		"pk", job.Args.PartitionKey,
		"origin", job.Args.Origin,
	)

	trigger := pipeline.Trigger{
		BatchItemID: strconv.FormatInt(job.ID, 10),
		Key:         job.Args.Key(),
	}
	return settle(ctx, w.processor, trigger)
}

// RetryWorker handles jobs published by the River retry dispatcher
type RetryWorker struct {
	river.WorkerDefaults[jobs.RetryArgs]
	processor dispatch.BatchProcessor
	timeout   time.Duration
}

// NewRetryWorker creates a worker that bounds each attempt by timeout
func NewRetryWorker(processor dispatch.BatchProcessor, timeout time.Duration) *RetryWorker {
	return &RetryWorker{
		processor: processor,
		timeout:   timeout,
	}
}

// Timeout bounds the handler invocation; the pipeline itself sets no deadline
func (w *RetryWorker) Timeout(*river.Job[jobs.RetryArgs]) time.Duration {
	return w.timeout
}

// Work resumes a failed webhook from the denormalized retry payload
func (w *RetryWorker) Work(ctx context.Context, job *river.Job[jobs.RetryArgs]) error {
	log := logger.NewLogger("retry-worker")

	log.Info("Retrying webhook",
		"job_id", job.ID,
		"pk", job.Args.PartitionKey,
		"retries", job.Args.Retries,
		"reason", job.Args.Reason,
	)

	trigger := pipeline.Trigger{
		BatchItemID: strconv.FormatInt(job.ID, 10),
		Key:         job.Args.Key(),
		Record:      job.Args.Record(),
	}
	return settle(ctx, w.processor, trigger)
}

// settle processes a single trigger and returns an error only when the item is
// still unresolved, leaving redelivery to River's own retry
func settle(ctx context.Context, processor dispatch.BatchProcessor, trigger pipeline.Trigger) error {
	result := processor.ProcessBatch(ctx, []pipeline.Trigger{trigger})
	if result.Empty() {
		return nil
	}
	return fmt.Errorf("webhook %s unresolved", trigger.Key.PartitionKey)
}
