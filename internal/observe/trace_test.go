package observe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// useTracer installs an in-memory tracer provider as the global one for the
// duration of the test. Tests calling it must not run in parallel.
func useTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

// captureLogs routes the default logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func TestNewResource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  ProviderConfig
		want map[attribute.Key]string
		omit []attribute.Key
	}{
		{
			name: "full",
			cfg: ProviderConfig{
				ServiceVersion:        "1.4.0",
				DefaultLanguage:       "en-US",
				TranscriptionBackends: []string{"whisper", "openai"},
				APIAddr:               ":8080",
			},
			want: map[attribute.Key]string{
				semconv.ServiceNameKey:    "voicemeter",
				semconv.ServiceVersionKey: "1.4.0",
				ResDefaultLanguage:        "en-US",
				ResAPIAddr:                ":8080",
			},
		},
		{
			name: "caller supplies transcripts",
			cfg:  ProviderConfig{ServiceName: "voicemeter-batch"},
			want: map[attribute.Key]string{semconv.ServiceNameKey: "voicemeter-batch"},
			omit: []attribute.Key{semconv.ServiceVersionKey, ResDefaultLanguage, ResAPIAddr},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := newResource(context.Background(), tt.cfg)
			if err != nil {
				t.Fatalf("newResource: %v", err)
			}
			set := res.Set()
			for k, want := range tt.want {
				if v, ok := set.Value(k); !ok || v.AsString() != want {
					t.Errorf("%s = %q (present %v), want %q", k, v.AsString(), ok, want)
				}
			}
			for _, k := range tt.omit {
				if _, ok := set.Value(k); ok {
					t.Errorf("%s present, want omitted", k)
				}
			}
			if _, ok := set.Value(semconv.TelemetrySDKNameKey); !ok {
				t.Error("telemetry SDK attributes missing")
			}
		})
	}
}

func TestNewResource_Backends(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		backends []string
		want     []string
	}{
		{[]string{"whisper", "openai"}, []string{"whisper", "openai"}},
		{nil, []string{"none"}},
	} {
		res, err := newResource(context.Background(), ProviderConfig{TranscriptionBackends: tc.backends})
		if err != nil {
			t.Fatalf("newResource: %v", err)
		}
		v, _ := res.Set().Value(ResTranscription)
		if got := v.AsStringSlice(); !slices.Equal(got, tc.want) {
			t.Errorf("backends %v: attribute = %v, want %v", tc.backends, got, tc.want)
		}
	}
}

func TestFail(t *testing.T) {
	exp := useTracer(t)

	_, span := StartSpan(context.Background(), "analysis.Analyze")
	Fail(span, errors.New("duration must be positive"),
		AttrFailedStage.String("metrics"),
		AttrErrorCode.String("ANALYSIS_ERROR"),
	)
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	s := spans[0]
	if s.Status.Code != codes.Error || s.Status.Description != "duration must be positive" {
		t.Errorf("status = %+v", s.Status)
	}
	if len(s.Events) != 1 || s.Events[0].Name != "exception" {
		t.Errorf("events = %+v, want one exception event", s.Events)
	}
	got := map[attribute.Key]string{}
	for _, a := range s.Attributes {
		got[a.Key] = a.Value.AsString()
	}
	if got[AttrFailedStage] != "metrics" || got[AttrErrorCode] != "ANALYSIS_ERROR" {
		t.Errorf("attributes = %v", got)
	}
	if s.InstrumentationScope.Name != instrumentationScope {
		t.Errorf("scope = %q, want %q", s.InstrumentationScope.Name, instrumentationScope)
	}
}

func TestCorrelationID_RemoteParent(t *testing.T) {
	t.Parallel()

	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID without span = %q, want empty", got)
	}

	tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: tid,
		SpanID:  sid,
		Remote:  true,
	}))
	if got := CorrelationID(ctx); got != tid.String() {
		t.Errorf("CorrelationID = %q, want %q", got, tid.String())
	}
}

func TestLogger(t *testing.T) {
	useTracer(t)
	buf := captureLogs(t)

	Logger(context.Background()).Info("analysis complete", "language", "pt-BR")
	ctx, span := StartSpan(context.Background(), "analysis.Analyze")
	Logger(ctx).Info("analysis complete", "language", "en-US")
	span.End()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("logged %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if strings.Contains(lines[0], "trace_id=") {
		t.Errorf("line without span carries trace_id: %s", lines[0])
	}
	sc := span.SpanContext()
	for _, want := range []string{"trace_id=" + sc.TraceID().String(), "span_id=" + sc.SpanID().String()} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("line %q missing %q", lines[1], want)
		}
	}
}
