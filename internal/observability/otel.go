// Package observability wires OpenTelemetry tracing and metrics for the
// capture and processing paths.
package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationVersion = "1.0.0"

// Config holds OpenTelemetry configuration
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	OTLPHeaders    map[string]string
	// Insecure sends OTLP over plain HTTP, for a collector sidecar
	Insecure       bool
	EnableTracing  bool
	EnableMetrics  bool
	SampleRate     float64 // 0.0 to 1.0
	MetricInterval time.Duration
}

// DefaultConfig returns the development defaults: local collector, every
// trace sampled
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "hookline",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		OTLPEndpoint:   "localhost:4318",
		Insecure:       true,
		EnableTracing:  true,
		EnableMetrics:  true,
		SampleRate:     1.0,
		MetricInterval: 30 * time.Second,
	}
}

// FromSettings builds a Config from the service settings. Production samples
// one trace in ten.
func FromSettings(version, environment, endpoint string, tracing, metrics bool) *Config {
	cfg := DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Environment = environment
	if endpoint != "" {
		cfg.OTLPEndpoint = endpoint
	}
	cfg.EnableTracing = tracing
	cfg.EnableMetrics = metrics
	if environment == "production" {
		cfg.SampleRate = 0.1
	}
	return cfg
}

// shutdowns collects provider shutdown hooks
type shutdowns []func(context.Context) error

func (s shutdowns) run(ctx context.Context) error {
	var errs []error
	for _, fn := range s {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to shutdown OpenTelemetry: %w", errors.Join(errs...))
	}
	return nil
}

// Setup installs the global tracer and meter providers and returns a
// shutdown function that flushes them. When both signals are disabled the
// global no-op providers stay in place.
func Setup(ctx context.Context, config *Config) (func(context.Context) error, error) {
	if !config.EnableTracing && !config.EnableMetrics {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var hooks shutdowns
	if config.EnableTracing {
		tp, err := newTracerProvider(ctx, res, config)
		if err != nil {
			return nil, fmt.Errorf("failed to setup tracing: %w", err)
		}
		hooks = append(hooks, tp.Shutdown)
		otel.SetTracerProvider(tp)
	}
	if config.EnableMetrics {
		mp, err := newMeterProvider(ctx, res, config)
		if err != nil {
			_ = hooks.run(ctx)
			return nil, fmt.Errorf("failed to setup metrics: %w", err)
		}
		hooks = append(hooks, mp.Shutdown)
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return hooks.run, nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

func newTracerProvider(ctx context.Context, res *resource.Resource, config *Config) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(config.OTLPEndpoint)}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(config.OTLPHeaders) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(config.OTLPHeaders))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(config.SampleRate)),
	), nil
}

func newMeterProvider(ctx context.Context, res *resource.Resource, config *Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(config.OTLPEndpoint)}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(config.OTLPHeaders) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(config.OTLPHeaders))
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(config.MetricInterval))
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	), nil
}

// GetTracer returns a tracer for the given name
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name, trace.WithInstrumentationVersion(instrumentationVersion))
}

// GetMeter returns a meter for the given name
func GetMeter(name string) metric.Meter {
	return otel.Meter(name, metric.WithInstrumentationVersion(instrumentationVersion))
}
