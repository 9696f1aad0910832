// Package observe provides the observability primitives shared by the
// analysis engine, the transcription adapters and the HTTP surface:
// OpenTelemetry metrics, tracing helpers, trace-aware logging and an HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exported
// to Prometheus by [InitProvider]. A package-level [Metrics] instance
// ([DefaultMetrics]) exists for convenience; tests should use [NewMetrics]
// with their own [metric.MeterProvider].
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all voicemeter metrics.
const meterName = "github.com/MrWong99/voicemeter"

// Metrics holds all metric instruments. All fields are safe for concurrent
// use.
type Metrics struct {
	// AnalysisDuration tracks end-to-end analysis latency. Attributes:
	//   attribute.String("language", ...), attribute.String("status", ...)
	AnalysisDuration metric.Float64Histogram

	// StageDuration tracks per-stage latency inside one analysis. Attribute:
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// TranscriptionDuration tracks upstream transcription latency. Attribute:
	//   attribute.String("provider", ...)
	TranscriptionDuration metric.Float64Histogram

	// Analyses counts completed analyses by language and status.
	Analyses metric.Int64Counter

	// AnalysisErrors counts failed analyses by error code and stage.
	AnalysisErrors metric.Int64Counter

	// Pauses counts detected pauses by duration band.
	Pauses metric.Int64Counter

	// FeedbackItems counts emitted feedback items by rule and severity.
	FeedbackItems metric.Int64Counter

	// TranscriberRequests counts transcription calls by provider and status.
	TranscriberRequests metric.Int64Counter

	// ActiveAnalyses tracks analyses currently in flight.
	ActiveAnalyses metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AnalysisDuration, err = m.Float64Histogram("voicemeter.analysis.duration",
		metric.WithDescription("Latency of a complete speech analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("voicemeter.analysis.stage.duration",
		metric.WithDescription("Latency of a single analysis stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("voicemeter.transcription.duration",
		metric.WithDescription("Latency of upstream transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Analyses, err = m.Int64Counter("voicemeter.analyses",
		metric.WithDescription("Total analyses by language and status."),
	); err != nil {
		return nil, err
	}
	if met.AnalysisErrors, err = m.Int64Counter("voicemeter.analysis.errors",
		metric.WithDescription("Total failed analyses by error code and stage."),
	); err != nil {
		return nil, err
	}
	if met.Pauses, err = m.Int64Counter("voicemeter.pauses",
		metric.WithDescription("Total detected pauses by duration band."),
	); err != nil {
		return nil, err
	}
	if met.FeedbackItems, err = m.Int64Counter("voicemeter.feedback.items",
		metric.WithDescription("Total feedback items by rule and severity."),
	); err != nil {
		return nil, err
	}
	if met.TranscriberRequests, err = m.Int64Counter("voicemeter.transcriber.requests",
		metric.WithDescription("Total transcription requests by provider and status."),
	); err != nil {
		return nil, err
	}

	if met.ActiveAnalyses, err = m.Int64UpDownCounter("voicemeter.active_analyses",
		metric.WithDescription("Number of analyses currently in flight."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("voicemeter.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call from [otel.GetMeterProvider]. Panics if instrument creation
// fails.
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

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordAnalysis records one finished analysis with its latency.
func (m *Metrics) RecordAnalysis(ctx context.Context, language, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("language", language),
		attribute.String("status", status),
	)
	m.Analyses.Add(ctx, 1, attrs)
	m.AnalysisDuration.Record(ctx, seconds, attrs)
}

// RecordStage records the latency of one analysis stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, seconds float64) {
	m.StageDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordAnalysisError counts a failed analysis.
func (m *Metrics) RecordAnalysisError(ctx context.Context, code, stage string) {
	m.AnalysisErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("code", code),
			attribute.String("stage", stage),
		),
	)
}

// RecordPause counts one detected pause in the given band.
func (m *Metrics) RecordPause(ctx context.Context, band string) {
	m.Pauses.Add(ctx, 1, metric.WithAttributes(attribute.String("band", band)))
}

// RecordFeedback counts one emitted feedback item.
func (m *Metrics) RecordFeedback(ctx context.Context, rule, severity string) {
	m.FeedbackItems.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("rule", rule),
			attribute.String("severity", severity),
		),
	)
}

// RecordTranscription records one upstream transcription call.
func (m *Metrics) RecordTranscription(ctx context.Context, provider, status string, seconds float64) {
	m.TranscriberRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
	m.TranscriptionDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("provider", provider)))
}
