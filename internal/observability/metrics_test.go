package observability

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNewMetrics(t *testing.T) {
	metrics, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics() failed: %v", err)
	}

	ctx := context.Background()
	metrics.RecordCapture(ctx, "stripe", "accepted")
	metrics.RecordOutcome(ctx, "stripe", "completed", false)
	metrics.RecordDispatch(ctx, true)
	metrics.RecordEscalation(ctx, "stripe")
	metrics.RecordWork(ctx, 0.25, true)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	ctx := context.Background()
	metrics.RecordCapture(ctx, "stripe", "accepted")
	metrics.RecordOutcome(ctx, "stripe", "failed", true)
	metrics.RecordDispatch(ctx, false)
	metrics.RecordEscalation(ctx, "stripe")
	metrics.RecordWork(ctx, 1, false)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ServiceName != "hookline" {
		t.Errorf("expected service name hookline, got %q", cfg.ServiceName)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected full sampling by default, got %v", cfg.SampleRate)
	}
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings("2.0.0", "production", "collector:4318", true, false)
	if cfg.OTLPEndpoint != "collector:4318" || cfg.ServiceVersion != "2.0.0" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.SampleRate >= 1.0 {
		t.Errorf("expected reduced sampling in production, got %v", cfg.SampleRate)
	}
	if !cfg.EnableTracing || cfg.EnableMetrics {
		t.Errorf("signal toggles not applied: %+v", cfg)
	}
}

func TestSetupDisabledIsNoop(t *testing.T) {
	cfg := FromSettings("1.0.0", "test", "", false, false)
	shutdown, err := Setup(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Setup() failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1.0, want: "AlwaysOnSampler"},
		{rate: 0, want: "AlwaysOffSampler"},
		{rate: 0.1, want: "ParentBased"},
	}
	for _, tt := range tests {
		got := sampler(tt.rate).Description()
		if !strings.HasPrefix(got, tt.want) {
			t.Errorf("sampler(%v) = %q, want prefix %q", tt.rate, got, tt.want)
		}
	}
}

func TestShutdownsJoinErrors(t *testing.T) {
	boom := errors.New("exporter unreachable")
	hooks := shutdowns{
		func(context.Context) error { return nil },
		func(context.Context) error { return boom },
	}
	if err := hooks.run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected joined error to wrap %v, got %v", boom, err)
	}
}
