// Package pipeline runs captured webhooks through the processing stages:
// validate, mark processing, do work, finalize status, then dispatch a retry
// or escalate. Per-item pipelines run concurrently; stages within an item run
// in order.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sarathsp06/hookline/internal/logger"
	"github.com/sarathsp06/hookline/internal/observability"
	"github.com/sarathsp06/hookline/internal/webhooks"
)

const (
	DefaultMaxRetries  = 3
	DefaultConcurrency = 10
)

// Processor runs triggers through the pipeline
type Processor struct {
	store       webhooks.Store
	handler     Handler
	dispatcher  RetryDispatcher
	maxRetries  int
	concurrency int
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     *observability.Metrics
}

// Option configures a Processor
type Option func(*Processor)

// WithDispatcher sets the retry channel. Without one, failed items are left
// to the batch transport's own redelivery.
func WithDispatcher(d RetryDispatcher) Option {
	return func(p *Processor) { p.dispatcher = d }
}

// WithMaxRetries sets the number of attempts before escalation
func WithMaxRetries(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxRetries = n
		}
	}
}

// WithConcurrency bounds the number of items processed at once in a batch
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithMetrics records pipeline counters on m
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// NewProcessor creates a processor that runs handler for every claimed webhook
func NewProcessor(store webhooks.Store, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		store:       store,
		handler:     handler,
		maxRetries:  DefaultMaxRetries,
		concurrency: DefaultConcurrency,
		logger:      logger.NewLogger("pipeline"),
		tracer:      observability.GetTracer("hookline.pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxRetries returns the configured attempt budget
func (p *Processor) MaxRetries() int {
	return p.maxRetries
}

// Run processes a single trigger. Unexpected panics in any stage are turned
// into a failed item carrying a fault.
func (p *Processor) Run(ctx context.Context, trigger Trigger) PipelineItem {
	ctx, span := p.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("pk", trigger.Key.PartitionKey),
			attribute.String("batch_item_id", trigger.BatchItemID),
		),
	)
	defer span.End()

	item := newItem(trigger)
	p.runStages(ctx, item)
	p.logResult(ctx, item)

	span.SetAttributes(
		attribute.String("stage", string(item.Stage)),
		attribute.Int("retries", item.Retries),
		attribute.Bool("redispatched", item.Redispatched),
	)
	if item.Err != nil {
		span.RecordError(item.Err)
	}
	if item.Stage == webhooks.StageFailed {
		span.SetStatus(otelcodes.Error, "webhook processing failed")
	}
	return *item
}

func (p *Processor) runStages(ctx context.Context, item *PipelineItem) {
	defer func() {
		if r := recover(); r != nil {
			item.fail(webhooks.Fault(fmt.Errorf("panic: %v", r), item.metadata()))
		}
	}()

	for _, s := range p.stages() {
		p.runStage(ctx, s, item)
	}
}

func (p *Processor) runStage(ctx context.Context, s stage, item *PipelineItem) {
	ctx, span := p.tracer.Start(ctx, "pipeline."+s.name)
	defer span.End()

	s.run(ctx, item)
	span.SetAttributes(attribute.String("stage", string(item.Stage)))
}

// RunBatch processes triggers concurrently and returns the items in input order
func (p *Processor) RunBatch(ctx context.Context, triggers []Trigger) []PipelineItem {
	items := make([]PipelineItem, len(triggers))
	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	for i, trigger := range triggers {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, trigger Trigger) {
			defer wg.Done()
			defer func() { <-sem }()
			items[i] = p.Run(ctx, trigger)
		}(i, trigger)
	}
	wg.Wait()
	return items
}

// ProcessBatch processes triggers and reports which batch items the transport
// should redeliver
func (p *Processor) ProcessBatch(ctx context.Context, triggers []Trigger) BatchResult {
	items := p.RunBatch(ctx, triggers)
	result := BuildBatchResult(items)

	p.logger.Info("Processed batch",
		"items", len(items),
		"retry_items", len(result.RetryItemIDs),
	)
	return result
}
