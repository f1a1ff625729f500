package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds application-specific instruments
type Metrics struct {
	Captures         metric.Int64Counter
	PipelineOutcomes metric.Int64Counter
	RetryDispatches  metric.Int64Counter
	Escalations      metric.Int64Counter
	WorkDuration     metric.Float64Histogram
}

// NewMetrics creates the webhook capture and processing instruments
func NewMetrics() (*Metrics, error) {
	meter := GetMeter("hookline")

	captures, err := meter.Int64Counter(
		"hookline_captures_total",
		metric.WithDescription("Total number of capture attempts by origin and result"),
	)
	if err != nil {
		return nil, err
	}

	outcomes, err := meter.Int64Counter(
		"hookline_pipeline_outcomes_total",
		metric.WithDescription("Total number of processed webhooks by final stage"),
	)
	if err != nil {
		return nil, err
	}

	dispatches, err := meter.Int64Counter(
		"hookline_retry_dispatches_total",
		metric.WithDescription("Total number of failed webhooks handed to the retry channel"),
	)
	if err != nil {
		return nil, err
	}

	escalations, err := meter.Int64Counter(
		"hookline_escalations_total",
		metric.WithDescription("Total number of webhooks escalated to operator_required"),
	)
	if err != nil {
		return nil, err
	}

	workDuration, err := meter.Float64Histogram(
		"hookline_work_duration_seconds",
		metric.WithDescription("Duration of webhook handler invocations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Captures:         captures,
		PipelineOutcomes: outcomes,
		RetryDispatches:  dispatches,
		Escalations:      escalations,
		WorkDuration:     workDuration,
	}, nil
}

// RecordCapture counts one capture attempt. Safe on a nil receiver.
func (m *Metrics) RecordCapture(ctx context.Context, origin, result string) {
	if m == nil {
		return
	}
	m.Captures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("origin", origin),
		attribute.String("result", result),
	))
}

// RecordOutcome counts one finished pipeline item. Safe on a nil receiver.
func (m *Metrics) RecordOutcome(ctx context.Context, origin, stage string, redispatched bool) {
	if m == nil {
		return
	}
	m.PipelineOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("origin", origin),
		attribute.String("stage", stage),
		attribute.Bool("redispatched", redispatched),
	))
}

// RecordDispatch counts one retry dispatch attempt. Safe on a nil receiver.
func (m *Metrics) RecordDispatch(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	m.RetryDispatches.Add(ctx, 1, metric.WithAttributes(attribute.Bool("ok", ok)))
}

// RecordEscalation counts one escalation. Safe on a nil receiver.
func (m *Metrics) RecordEscalation(ctx context.Context, origin string) {
	if m == nil {
		return
	}
	m.Escalations.Add(ctx, 1, metric.WithAttributes(attribute.String("origin", origin)))
}

// RecordWork records one handler duration in seconds. Safe on a nil receiver.
func (m *Metrics) RecordWork(ctx context.Context, seconds float64, ok bool) {
	if m == nil {
		return
	}
	m.WorkDuration.Record(ctx, seconds, metric.WithAttributes(attribute.Bool("ok", ok)))
}
