package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewMetricsCreatesAllInstruments(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	if m.AssessDuration == nil || m.TTSDuration == nil ||
		m.ProviderRequests == nil || m.ProviderErrors == nil ||
		m.SuppressedTranscripts == nil || m.SessionsCompleted == nil ||
		m.ActiveSessions == nil {
		t.Fatal("NewMetrics() left instruments nil")
	}
}

func TestRecordAssessCountsErrors(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	ctx := context.Background()
	m.RecordAssess(ctx, "generate_questions", "primary", 1.2, false)
	m.RecordAssess(ctx, "generate_questions", "primary", 0.3, true)
	m.RecordSuppressed(ctx, true)
	m.RecordSessionCompleted(ctx, "local")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			found[met.Name] = true
		}
	}
	for _, name := range []string{
		"intervox.assess.duration",
		"intervox.provider.requests",
		"intervox.provider.errors",
		"intervox.capture.suppressed",
		"intervox.sessions.completed",
	} {
		if !found[name] {
			t.Errorf("metric %q not collected (have %v)", name, found)
		}
	}
}

func TestDefaultMetricsIsSingleton(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Fatal("DefaultMetrics() returned different instances")
	}
}
