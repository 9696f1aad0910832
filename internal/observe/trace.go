package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationScope names the tracer every voicemeter span comes from.
const instrumentationScope = "github.com/MrWong99/voicemeter"

// Span attribute keys set by the analysis and transcription spans.
const (
	AttrLanguage     = attribute.Key("analysis.language")
	AttrFailedStage  = attribute.Key("analysis.failed_stage")
	AttrErrorCode    = attribute.Key("analysis.error_code")
	AttrBatchSize    = attribute.Key("analysis.batch_size")
	AttrProvider     = attribute.Key("transcribe.provider")
	AttrAudioSeconds = attribute.Key("transcribe.audio_seconds")
)

// StartSpan starts a span on the global tracer provider. The caller ends it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationScope).Start(ctx, name, opts...)
}

// Fail marks span as failed by err and attaches attrs.
func Fail(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
}

// CorrelationID is the trace ID of the span in ctx, or "". The HTTP
// middleware echoes it as X-Correlation-ID.
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with trace_id and span_id of the span
// in ctx. Without a span it is [slog.Default].
func Logger(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return slog.Default()
	}
	return slog.Default().With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}
