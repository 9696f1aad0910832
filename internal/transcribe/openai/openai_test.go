package openai_test

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/voicemeter/internal/transcribe"
	"github.com/MrWong99/voicemeter/internal/transcribe/openai"
	"github.com/MrWong99/voicemeter/pkg/audio"
)

func tone() audio.PCM {
	const rate = 16000
	samples := make([]float64, 2*rate)
	for i := range samples {
		samples[i] = 0.3 * math.Sin(2*math.Pi*300*float64(i)/rate)
	}
	return audio.FromSamples(samples, rate)
}

func TestNew_EmptyAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := openai.New("", ""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestTranscribe_VerboseJSON(t *testing.T) {
	t.Parallel()

	var fields atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fields.Store(map[string]string{
			"model":           r.FormValue("model"),
			"language":        r.FormValue("language"),
			"response_format": r.FormValue("response_format"),
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"task":"transcribe","language":"portuguese","duration":2.0,"text":" o rato roeu a roupa "}`))
	}))
	t.Cleanup(srv.Close)

	c, err := openai.New("sk-test", "", openai.WithBaseURL(srv.URL+"/"), openai.WithMaxRetries(0), openai.WithTimeout(5*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	tr, err := c.Transcribe(context.Background(), transcribe.Request{Audio: tone(), Language: "pt-BR"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "o rato roeu a roupa" {
		t.Errorf("text = %q", tr.Text)
	}
	if tr.Language != "portuguese" || tr.Duration != 2*time.Second {
		t.Errorf("language = %q duration = %v", tr.Language, tr.Duration)
	}
	got := fields.Load().(map[string]string)
	if got["model"] != string(openai.DefaultModel) || got["language"] != "pt" || got["response_format"] != "verbose_json" {
		t.Errorf("form fields = %v", got)
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad audio","type":"invalid_request_error"}}`))
	}))
	t.Cleanup(srv.Close)

	c, _ := openai.New("sk-test", "whisper-1", openai.WithBaseURL(srv.URL+"/"), openai.WithMaxRetries(0))
	_, err := c.Transcribe(context.Background(), transcribe.Request{Audio: tone()})
	if err == nil || !strings.HasPrefix(err.Error(), "openai transcribe:") {
		t.Errorf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 with retries disabled", calls.Load())
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	t.Parallel()
	c, _ := openai.New("sk-test", "")
	if _, err := c.Transcribe(context.Background(), transcribe.Request{}); err != transcribe.ErrEmptyAudio {
		t.Errorf("err = %v, want ErrEmptyAudio", err)
	}
}
