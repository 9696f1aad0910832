package transcribe_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/MrWong99/voicemeter/internal/observe"
	"github.com/MrWong99/voicemeter/internal/transcribe"
	"github.com/MrWong99/voicemeter/internal/transcribe/mock"
	"github.com/MrWong99/voicemeter/pkg/audio"
)

func TestBaseLanguage(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"pt-BR", "pt"},
		{"en-US", "en"},
		{"en", "en"},
		{"", ""},
		{"not a tag!", ""},
	}
	for _, tt := range tests {
		if got := transcribe.BaseLanguage(tt.in); got != tt.want {
			t.Errorf("BaseLanguage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrepare(t *testing.T) {
	t.Parallel()

	stereo := audio.PCM{SampleRate: 48000, Channels: 2, Data: make([]byte, 48000*4)}
	got := transcribe.Prepare(stereo, transcribe.WhisperRate)
	if got.Channels != 1 || got.SampleRate != transcribe.WhisperRate {
		t.Fatalf("Prepare = %d ch @ %d Hz", got.Channels, got.SampleRate)
	}
	if got.Frames() != transcribe.WhisperRate {
		t.Errorf("frames = %d, want %d", got.Frames(), transcribe.WhisperRate)
	}
}

func TestInstrument(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}

	ok := &mock.Transcriber{Result: transcribe.Transcription{Text: "hi", Duration: time.Second}}
	tr, err := transcribe.Instrument("whisper", ok, m).Transcribe(context.Background(), transcribe.Request{Language: "en"})
	if err != nil || tr.Text != "hi" {
		t.Fatalf("Transcribe = %+v, %v", tr, err)
	}
	if ok.CallCount() != 1 || ok.Calls[0].Req.Language != "en" {
		t.Errorf("calls = %+v", ok.Calls)
	}

	boom := errors.New("boom")
	failing := &mock.Transcriber{Err: boom}
	_, err = transcribe.Instrument("openai", failing, m).Transcribe(context.Background(), transcribe.Request{})
	if !errors.Is(err, boom) || !errors.Is(err, transcribe.ErrFailed) || !strings.Contains(err.Error(), "openai:") {
		t.Errorf("err = %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	var points int
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "voicemeter.transcriber.requests" {
				continue
			}
			points = len(met.Data.(metricdata.Sum[int64]).DataPoints)
		}
	}
	if points != 2 {
		t.Errorf("request data points = %d, want 2 (ok + error)", points)
	}
}

// Swaps the global tracer provider; must not run in parallel.
func TestInstrument_Span(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})

	second := audio.PCM{SampleRate: 16000, Channels: 1, Data: make([]byte, 32000)}
	ok := &mock.Transcriber{Result: transcribe.Transcription{Text: "olá"}}
	if _, err := transcribe.Instrument("whisper", ok, nil).Transcribe(context.Background(), transcribe.Request{Audio: second}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	failing := &mock.Transcriber{Err: errors.New("503 from upstream")}
	if _, err := transcribe.Instrument("openai", failing, nil).Transcribe(context.Background(), transcribe.Request{Audio: second}); err == nil {
		t.Fatal("expected error")
	}

	spans := map[string]tracetest.SpanStub{}
	for _, s := range exp.GetSpans() {
		spans[s.Name] = s
	}
	for name, wantErr := range map[string]bool{"transcribe.whisper": false, "transcribe.openai": true} {
		s, found := spans[name]
		if !found {
			t.Errorf("span %s not recorded", name)
			continue
		}
		attrs := map[string]string{}
		for _, a := range s.Attributes {
			attrs[string(a.Key)] = a.Value.Emit()
		}
		if want := strings.TrimPrefix(name, "transcribe."); attrs["transcribe.provider"] != want {
			t.Errorf("%s: transcribe.provider = %q, want %q", name, attrs["transcribe.provider"], want)
		}
		if attrs["transcribe.audio_seconds"] != "1" {
			t.Errorf("%s: transcribe.audio_seconds = %q, want 1", name, attrs["transcribe.audio_seconds"])
		}
		if gotErr := s.Status.Code == codes.Error; gotErr != wantErr {
			t.Errorf("%s: error status = %v, want %v", name, gotErr, wantErr)
		}
	}
}
