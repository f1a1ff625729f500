package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/sarathsp06/hookline/internal/jobs"
	"github.com/sarathsp06/hookline/internal/logger"
	"github.com/sarathsp06/hookline/internal/pipeline"
)

// JobInserter is the part of the River client the dispatcher needs
type JobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// RiverDispatcher enqueues failed webhooks as webhook_retry jobs
type RiverDispatcher struct {
	client     JobInserter
	backoff    time.Duration
	backoffMax time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewRiverDispatcher creates a dispatcher. Retry jobs are scheduled with an
// exponential delay starting at backoff and capped at backoffMax.
func NewRiverDispatcher(client JobInserter, backoff, backoffMax time.Duration) *RiverDispatcher {
	return &RiverDispatcher{
		client:     client,
		backoff:    backoff,
		backoffMax: backoffMax,
		now:        time.Now,
		logger:     logger.NewLogger("river-dispatcher"),
	}
}

// RetryArgs converts a retry message to its River job arguments
func RetryArgs(msg RetryMessage) jobs.RetryArgs {
	return jobs.RetryArgs{
		PartitionKey: msg.Key.PartitionKey,
		SortKey:      msg.Key.SortKey,
		Origin:       msg.Origin,
		EventType:    msg.EventType,
		CreatedAt:    msg.CreatedAt,
		Payload:      msg.Payload,
		Retries:      msg.Retries,
		Reason:       msg.Reason,
	}
}

func (d *RiverDispatcher) Dispatch(ctx context.Context, item pipeline.PipelineItem) error {
	msg := NewRetryMessage(item)
	args := RetryArgs(msg)

	opts := args.InsertOpts()
	if delay := Backoff(msg.Retries, d.backoff, d.backoffMax); delay > 0 {
		opts.ScheduledAt = d.now().Add(delay)
	}

	res, err := d.client.Insert(ctx, args, &opts)
	if err != nil {
		return fmt.Errorf("failed to insert retry job: %w", err)
	}

	d.logger.Info("Scheduled webhook retry",
		"job_id", res.Job.ID,
		"pk", msg.Key.PartitionKey,
		"retries", msg.Retries,
		"scheduled_at", opts.ScheduledAt,
	)
	return nil
}

var _ pipeline.RetryDispatcher = (*RiverDispatcher)(nil)
