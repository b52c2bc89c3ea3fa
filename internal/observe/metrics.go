// Package observe provides application-wide observability primitives for
// Intervox: OpenTelemetry metrics and the Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter is wired via [InitProvider] so metrics can be scraped from the
// standard /metrics endpoint. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Intervox metrics.
const meterName = "github.com/intervox-ai/intervox"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// AssessDuration tracks AI assessment call latency. Use with attributes:
	//   attribute.String("operation", ...), attribute.String("tier", ...)
	AssessDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency per utterance.
	TTSDuration metric.Float64Histogram

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// SuppressedTranscripts counts transcripts dropped by the noise filter.
	// Use with attribute: attribute.String("stage", "interim"|"final")
	SuppressedTranscripts metric.Int64Counter

	// SessionsCompleted counts sessions that reached the feedback phase.
	// Use with attribute: attribute.String("tier", ...)
	SessionsCompleted metric.Int64Counter

	// ActiveSessions tracks the number of live interview sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// remote AI and synthesis calls.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.AssessDuration, err = m.Float64Histogram("intervox.assess.duration",
		metric.WithDescription("Latency of AI assessment operations."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("intervox.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("intervox.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("intervox.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.SuppressedTranscripts, err = m.Int64Counter("intervox.capture.suppressed",
		metric.WithDescription("Transcripts dropped by the noise filter, by stage."),
	); err != nil {
		return nil, err
	}
	if met.SessionsCompleted, err = m.Int64Counter("intervox.sessions.completed",
		metric.WithDescription("Interview sessions that reached the feedback phase."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("intervox.active_sessions",
		metric.WithDescription("Number of live interview sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordAssess records one assessment call's latency and request counter.
func (m *Metrics) RecordAssess(ctx context.Context, operation, tier string, seconds float64, failed bool) {
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("tier", tier),
	)
	m.AssessDuration.Record(ctx, seconds, attrs)

	status := "ok"
	if failed {
		status = "error"
	}
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", tier),
		attribute.String("kind", operation),
		attribute.String("status", status),
	))
	if failed {
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", tier),
			attribute.String("kind", operation),
		))
	}
}

// RecordSuppressed counts one transcript dropped by the noise filter.
func (m *Metrics) RecordSuppressed(ctx context.Context, interim bool) {
	stage := "final"
	if interim {
		stage = "interim"
	}
	m.SuppressedTranscripts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordSessionCompleted counts one session reaching feedback, tagged with
// the tier that produced the report.
func (m *Metrics) RecordSessionCompleted(ctx context.Context, tier string) {
	m.SessionsCompleted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("tier", tier)))
}
