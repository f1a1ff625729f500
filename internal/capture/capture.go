// Package capture records inbound webhooks exactly once.
//
// Providers retry on any non-2xx response, so a duplicate capture is a normal
// outcome and is reported as such rather than as an error.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sarathsp06/hookline/internal/logger"
	"github.com/sarathsp06/hookline/internal/observability"
	"github.com/sarathsp06/hookline/internal/webhooks"
)

// Result is the outcome of a capture call
type Result string

const (
	Accepted  Result = "accepted"
	Duplicate Result = "duplicate"
	Rejected  Result = "rejected"
)

// Outcome describes what happened to one inbound webhook
type Outcome struct {
	Result Result
	Key    webhooks.WebhookKey
	Reason string
	Err    error
}

// Retryable reports whether the provider should redeliver: only storage
// failures are worth retrying, validation failures never are.
func (o Outcome) Retryable() bool {
	return o.Result == Rejected && !webhooks.IsValidation(o.Err)
}

// Service dedupes and stores inbound webhooks
type Service struct {
	adapters webhooks.Adapters
	store    webhooks.Store
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *observability.Metrics
	now      func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithMetrics records capture counters on m
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the clock used for status timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a capture service
func NewService(adapters webhooks.Adapters, store webhooks.Store, opts ...Option) *Service {
	s := &Service{
		adapters: adapters,
		store:    store,
		logger:   logger.NewLogger("capture"),
		tracer:   observability.GetTracer("hookline.capture"),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capture derives the key for payload, and stores it unless it was seen before
func (s *Service) Capture(ctx context.Context, origin webhooks.Origin, payload []byte) Outcome {
	ctx, span := s.tracer.Start(ctx, "capture.webhook",
		trace.WithAttributes(attribute.String("origin", string(origin))),
	)
	defer span.End()

	outcome := s.capture(ctx, origin, payload)

	span.SetAttributes(
		attribute.String("result", string(outcome.Result)),
		attribute.String("pk", outcome.Key.PartitionKey),
	)
	if outcome.Err != nil {
		span.RecordError(outcome.Err)
		span.SetStatus(otelcodes.Error, outcome.Reason)
	}
	s.metrics.RecordCapture(ctx, string(origin), string(outcome.Result))
	return outcome
}

func (s *Service) capture(ctx context.Context, origin webhooks.Origin, payload []byte) Outcome {
	key, err := s.adapters.DeriveKey(origin, payload)
	if err != nil {
		s.logger.Warn("Rejected webhook", "origin", origin, "error", err)
		return Outcome{Result: Rejected, Reason: err.Error(), Err: err}
	}

	_, err = s.store.GetStatus(ctx, key)
	switch {
	case err == nil:
		s.logger.Info("Duplicate webhook received", "origin", origin, "pk", key.PartitionKey)
		return Outcome{Result: Duplicate, Key: key}
	case !errors.Is(err, webhooks.ErrNotFound):
		return s.storageFailure(origin, key, err, "webhooks: failed to check for duplicate")
	}

	record, err := s.adapters.Normalize(origin, payload)
	if err != nil {
		s.logger.Warn("Rejected webhook", "origin", origin, "pk", key.PartitionKey, "error", err)
		return Outcome{Result: Rejected, Key: key, Reason: err.Error(), Err: err}
	}

	err = s.store.PutNew(ctx, record, webhooks.NewStatusRecord(key, s.now()))
	switch {
	case err == nil:
		s.logger.Info("Captured webhook",
			"origin", origin,
			"pk", key.PartitionKey,
			"event_type", record.EventType,
		)
		return Outcome{Result: Accepted, Key: key}
	case errors.Is(err, webhooks.ErrAlreadyExists):
		// Lost the race between the probe and the write
		s.logger.Info("Duplicate webhook received", "origin", origin, "pk", key.PartitionKey, "raced", true)
		return Outcome{Result: Duplicate, Key: key}
	default:
		return s.storageFailure(origin, key, err, "webhooks: failed to store webhook")
	}
}

func (s *Service) storageFailure(origin webhooks.Origin, key webhooks.WebhookKey, err error, message string) Outcome {
	wrapped := webhooks.StorageError(err, message, map[string]any{
		"origin": string(origin),
		"pk":     key.PartitionKey,
	})
	s.logger.Error("Failed to capture webhook",
		"origin", origin,
		"pk", key.PartitionKey,
		"error", err,
	)
	return Outcome{Result: Rejected, Key: key, Reason: message, Err: wrapped}
}
