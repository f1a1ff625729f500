package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sarathsp06/hookline/internal/webhooks"
)

type stage struct {
	name string
	run  func(ctx context.Context, item *PipelineItem)
}

func (p *Processor) stages() []stage {
	return []stage{
		{name: "validate", run: p.validate},
		{name: "mark_processing", run: p.markProcessing},
		{name: "do_work", run: p.doWork},
		{name: "finalize_status", run: p.finalizeStatus},
		{name: "dispatch_retry", run: p.dispatchRetryOrEscalate},
	}
}

// validate loads the current status and decides whether the item may run
func (p *Processor) validate(ctx context.Context, item *PipelineItem) {
	if item.Stage.Terminal() {
		return
	}

	status, err := p.store.GetStatus(ctx, item.Key)
	switch {
	case errors.Is(err, webhooks.ErrNotFound):
		item.fail(webhooks.ValidationError("webhooks: no status for key", item.metadata()))
		return
	case err != nil:
		item.fail(webhooks.StorageError(err, "webhooks: failed to read status", item.metadata()))
		return
	}

	item.status = status.Status
	item.Retries = status.Retries
	item.Stage = webhooks.Classify(status.Status)
	if item.Stage.Terminal() || item.hasRecord {
		return
	}

	record, err := p.store.GetRecord(ctx, item.Key)
	switch {
	case errors.Is(err, webhooks.ErrNotFound):
		item.fail(webhooks.ValidationError("webhooks: no record for key", item.metadata()))
	case err != nil:
		item.fail(webhooks.StorageError(err, "webhooks: failed to read record", item.metadata()))
	default:
		item.Record = record
		item.hasRecord = true
	}
}

// markProcessing claims the item. Losing the compare-and-swap means another
// processor owns it.
func (p *Processor) markProcessing(ctx context.Context, item *PipelineItem) {
	if item.Stage.Terminal() {
		return
	}

	from, incrementRetries, ok := webhooks.ProcessingFrom(item.status)
	if !ok {
		item.Stage = webhooks.StageDuplicate
		return
	}

	// A failed webhook with no attempts left is one whose escalation write
	// did not land. Finish the escalation instead of starting another attempt.
	if item.status == webhooks.StatusFailed && webhooks.ShouldEscalate(item.Retries, p.maxRetries) {
		p.escalate(ctx, item, webhooks.StatusFailed.Ptr())
		return
	}

	updated, err := p.store.TransitionStatus(ctx, item.Key, from.Ptr(), webhooks.StatusProcessing, incrementRetries)
	switch {
	case errors.Is(err, webhooks.ErrConditionFailed):
		p.logger.Info("Lost processing claim", "pk", item.Key.PartitionKey, "expected", from)
		item.Stage = webhooks.StageDuplicate
	case errors.Is(err, webhooks.ErrNotFound):
		item.fail(webhooks.ValidationError("webhooks: status disappeared", item.metadata()))
	case err != nil:
		item.fail(webhooks.StorageError(err, "webhooks: failed to mark processing", item.metadata()))
	default:
		item.status = updated.Status
		item.Retries = updated.Retries
		item.claimed = true
	}
}

func (p *Processor) doWork(ctx context.Context, item *PipelineItem) {
	if item.Stage.Terminal() {
		return
	}

	start := time.Now()
	err := p.invoke(ctx, item.Record)
	p.metrics.RecordWork(ctx, time.Since(start).Seconds(), err == nil)
	if err != nil {
		item.fail(webhooks.WorkError(err, item.metadata()))
	}
}

func (p *Processor) invoke(ctx context.Context, record webhooks.WebhookRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return p.handler(ctx, record)
}

// finalizeStatus writes the outcome of the attempt. Items that never reached
// processing have nothing to finalize.
func (p *Processor) finalizeStatus(ctx context.Context, item *PipelineItem) {
	if !item.claimed {
		return
	}

	switch item.Stage {
	case webhooks.StageContinue:
		next := webhooks.NextOnSuccess(item.status)
		updated, err := p.store.TransitionStatus(ctx, item.Key, webhooks.StatusProcessing.Ptr(), next, false)
		switch {
		case errors.Is(err, webhooks.ErrConditionFailed):
			p.logger.Warn("Status changed while processing", "pk", item.Key.PartitionKey)
			item.Stage = webhooks.StageDuplicate
		case err != nil:
			item.fail(webhooks.StorageError(err, "webhooks: failed to mark completed", item.metadata()))
		default:
			item.status = updated.Status
			item.Stage = webhooks.StageCompleted
		}

	case webhooks.StageFailed:
		next := webhooks.NextOnFailure(item.status)
		updated, err := p.store.TransitionStatus(ctx, item.Key, webhooks.StatusProcessing.Ptr(), next, false)
		if err != nil {
			p.logger.Error("Failed to mark webhook failed",
				"pk", item.Key.PartitionKey,
				"error", err,
				"work_error", item.Err,
			)
			item.Err = webhooks.StorageError(errors.Join(item.Err, err), "webhooks: failed to mark failed", item.metadata())
			return
		}
		item.status = updated.Status
		item.failedWrite = true
	}
}

// dispatchRetryOrEscalate either hands a failed item to the retry channel or,
// once its attempts are used up, escalates it to operator_required
func (p *Processor) dispatchRetryOrEscalate(ctx context.Context, item *PipelineItem) {
	if item.Stage != webhooks.StageFailed || !item.failedWrite {
		return
	}

	retries := item.Retries
	if status, err := p.store.GetStatus(ctx, item.Key); err == nil {
		retries = status.Retries
		item.Retries = retries
	} else {
		p.logger.Warn("Failed to re-read retries, using claimed count", "pk", item.Key.PartitionKey, "error", err)
	}

	if webhooks.ShouldEscalate(retries, p.maxRetries) {
		p.escalate(ctx, item, nil)
		return
	}

	if p.dispatcher == nil {
		return
	}
	if err := p.dispatcher.Dispatch(ctx, *item); err != nil {
		p.metrics.RecordDispatch(ctx, false)
		item.Err = webhooks.DispatchError(errors.Join(item.Err, err), item.metadata())
		return
	}
	p.metrics.RecordDispatch(ctx, true)
	item.Redispatched = true
}

// escalate routes the item to operator_required. A nil from escalates
// unconditionally; otherwise losing the compare-and-swap means another
// processor already moved the webhook on.
func (p *Processor) escalate(ctx context.Context, item *PipelineItem, from *webhooks.Status) {
	_, err := p.store.TransitionStatus(ctx, item.Key, from, webhooks.StatusOperatorRequired, false)
	switch {
	case errors.Is(err, webhooks.ErrConditionFailed):
		item.Stage = webhooks.StageDuplicate
		return
	case err != nil:
		item.fail(webhooks.StorageError(errors.Join(item.Err, err), "webhooks: failed to escalate", item.metadata()))
		return
	}

	p.logger.Warn("Webhook requires operator",
		"pk", item.Key.PartitionKey,
		"origin", item.Origin(),
		"retries", item.Retries,
		"error", item.Err,
	)
	p.metrics.RecordEscalation(ctx, string(item.Origin()))
	item.status = webhooks.StatusOperatorRequired
	item.Stage = webhooks.StageOperatorRequired
}

// logResult reports the final state of the item. It never mutates it.
func (p *Processor) logResult(ctx context.Context, item *PipelineItem) {
	attrs := []any{
		"pk", item.Key.PartitionKey,
		"batch_item_id", item.BatchItemID,
		"origin", item.Origin(),
		"stage", item.Stage,
		"retries", item.Retries,
		"redispatched", item.Redispatched,
	}
	switch {
	case item.Faulted():
		p.logger.Error("Webhook processing faulted", append(attrs, "error", item.Err)...)
	case item.Stage == webhooks.StageFailed:
		p.logger.Warn("Webhook processing failed", append(attrs, "error", item.Err)...)
	default:
		p.logger.Info("Webhook processed", attrs...)
	}
	p.metrics.RecordOutcome(ctx, string(item.Origin()), string(item.Stage), item.Redispatched)
}
