package whisper_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/voicemeter/internal/transcribe"
	"github.com/MrWong99/voicemeter/internal/transcribe/whisper"
	"github.com/MrWong99/voicemeter/pkg/audio"
)

// tone returns one second of 440 Hz mono audio at 44.1 kHz.
func tone() audio.PCM {
	const rate = 44100
	samples := make([]float64, rate)
	for i := range samples {
		samples[i] = 0.3 * math.Sin(2*math.Pi*440*float64(i)/rate)
	}
	return audio.FromSamples(samples, rate)
}

type captured struct {
	fields map[string]string
	wav    audio.PCM
}

// newServer answers POST /inference with resp and records the upload.
func newServer(t *testing.T, status int, resp any, got *captured, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		calls.Add(1)
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if got != nil {
			got.fields = map[string]string{}
			for k, v := range r.MultipartForm.Value {
				got.fields[k] = v[0]
			}
			f, _, err := r.FormFile("file")
			if err == nil {
				got.wav, _ = audio.DecodeWAV(f)
				_ = f.Close()
			}
		}
		w.WriteHeader(status)
		if s, ok := resp.(string); ok {
			_, _ = io.WriteString(w, s)
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_EmptyServerURL(t *testing.T) {
	t.Parallel()
	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty serverURL")
	}
}

func TestTranscribe_UploadsWhisperReadyWAV(t *testing.T) {
	t.Parallel()

	var got captured
	var calls atomic.Int32
	srv := newServer(t, http.StatusOK, map[string]any{
		"text":     "  o rato roeu a roupa  ",
		"language": "pt",
		"duration": 1.0,
	}, &got, &calls)

	c, err := whisper.New(srv.URL+"/", whisper.WithModel("small"), whisper.WithTimeout(5*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	tr, err := c.Transcribe(context.Background(), transcribe.Request{Audio: tone(), Language: "pt-BR"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "o rato roeu a roupa" || tr.Language != "pt" || tr.Duration != time.Second {
		t.Errorf("transcription = %+v", tr)
	}
	if calls.Load() != 1 {
		t.Errorf("server calls = %d, want 1", calls.Load())
	}
	if got.fields["language"] != "pt" || got.fields["model"] != "small" || got.fields["response_format"] != "verbose_json" {
		t.Errorf("form fields = %v", got.fields)
	}
	if got.wav.SampleRate != transcribe.WhisperRate || got.wav.Channels != 1 {
		t.Errorf("uploaded wav = %d Hz %d ch, want 16000 Hz mono", got.wav.SampleRate, got.wav.Channels)
	}
	if d := got.wav.Seconds(); math.Abs(d-1) > 0.01 {
		t.Errorf("uploaded duration = %.3f s, want ≈ 1", d)
	}
}

func TestTranscribe_AutoLanguageAndFallbackDuration(t *testing.T) {
	t.Parallel()

	var got captured
	var calls atomic.Int32
	srv := newServer(t, http.StatusOK, map[string]string{"text": "hello"}, &got, &calls)
	c, _ := whisper.New(srv.URL)

	tr, err := c.Transcribe(context.Background(), transcribe.Request{Audio: tone()})
	if err != nil {
		t.Fatal(err)
	}
	if got.fields["language"] != "auto" {
		t.Errorf("language field = %q, want auto", got.fields["language"])
	}
	if _, ok := got.fields["model"]; ok {
		t.Error("model field sent without WithModel")
	}
	if tr.Duration != time.Second {
		t.Errorf("duration = %v, want 1s from the audio", tr.Duration)
	}
}

func TestTranscribe_Errors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	bad := newServer(t, http.StatusInternalServerError, "model not loaded", nil, &calls)
	garbage := newServer(t, http.StatusOK, "{not json", nil, &calls)

	tests := []struct {
		name string
		url  string
		req  transcribe.Request
		want string
	}{
		{"empty audio", bad.URL, transcribe.Request{}, "empty audio"},
		{"server error", bad.URL, transcribe.Request{Audio: tone()}, "HTTP 500: model not loaded"},
		{"bad json", garbage.URL, transcribe.Request{Audio: tone()}, "parse JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, _ := whisper.New(tt.url)
			_, err := c.Transcribe(context.Background(), tt.req)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestTranscribe_ContextCancelled(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newServer(t, http.StatusOK, map[string]string{"text": "x"}, nil, &calls)
	c, _ := whisper.New(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Transcribe(ctx, transcribe.Request{Audio: tone()})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
