package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/voicemeter/internal/analysis"
	"github.com/MrWong99/voicemeter/internal/api"
	"github.com/MrWong99/voicemeter/internal/observe"
	"github.com/MrWong99/voicemeter/internal/transcribe"
	"github.com/MrWong99/voicemeter/internal/transcribe/mock"
	"github.com/MrWong99/voicemeter/pkg/audio"
	"github.com/MrWong99/voicemeter/pkg/lang"
	"github.com/MrWong99/voicemeter/pkg/types"
)

const expectedText = "O rato roeu a roupa"

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// toneWAV returns seconds of a 220 Hz tone as a 16 kHz mono WAV file.
func toneWAV(seconds float64) []byte {
	const rate = 16000
	samples := make([]float64, int(seconds*rate))
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*220*float64(i)/rate)
	}
	return audio.EncodeWAV(audio.FromSamples(samples, rate))
}

// form builds a multipart body. A nil wav omits the audio part.
func form(t *testing.T, wav []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if wav != nil {
		fw, err := mw.CreateFormFile("audio", "take.wav")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(wav); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func newServer(t *testing.T, opts ...api.Option) http.Handler {
	t.Helper()
	m := testMetrics(t)
	orch, err := analysis.NewDefault(lang.Default(), nil, nil, analysis.WithMetrics(m))
	if err != nil {
		t.Fatalf("NewDefault: %v", err)
	}
	return api.New(orch, append([]api.Option{api.WithMetrics(m)}, opts...)...).Handler()
}

func post(t *testing.T, h http.Handler, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/analyses", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func TestCreateAnalysis_WithTranscript(t *testing.T) {
	t.Parallel()

	h := newServer(t, api.WithEnvelopePoints(20))
	body, ct := form(t, toneWAV(2), map[string]string{
		"expected_text": expectedText,
		"transcript":    "o rato roeu a roupa",
		"language":      "pt-BR",
	})
	rec := post(t, h, body, ct)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var got analysis.Record
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.RequestID == "" || rec.Header().Get("X-Request-ID") != got.RequestID {
		t.Errorf("request id = %q, header = %q", got.RequestID, rec.Header().Get("X-Request-ID"))
	}
	if got.Language != "pt-BR" || got.SimilarityRatio != 1 {
		t.Errorf("language = %q similarity = %v", got.Language, got.SimilarityRatio)
	}
	if math.Abs(got.WordsPerMinute-150) > 1e-9 {
		t.Errorf("wpm = %v, want 150", got.WordsPerMinute)
	}
	if len(got.VolumeSamples) == 0 || len(got.VolumeSamples) > 20 {
		t.Errorf("volume samples = %d, want 1..20", len(got.VolumeSamples))
	}
	if len(got.Feedback) == 0 {
		t.Error("no feedback messages")
	}
}

func TestCreateAnalysis_Transcribes(t *testing.T) {
	t.Parallel()

	m := &mock.Transcriber{Result: transcribe.Transcription{Text: "o rato roeu a ropa", Language: "portuguese"}}
	h := newServer(t, api.WithTranscriber(m))

	body, ct := form(t, toneWAV(2), map[string]string{"expected_text": expectedText})
	rec := post(t, h, body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if m.CallCount() != 1 {
		t.Fatalf("transcriber calls = %d, want 1", m.CallCount())
	}
	if sr := m.Calls[0].Req.Audio.SampleRate; sr != 16000 {
		t.Errorf("audio sample rate = %d", sr)
	}

	var got analysis.Record
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Language != "pt-BR" {
		t.Errorf("language = %q, want detected pt-BR", got.Language)
	}
	if got.TranscribedText != "o rato roeu a ropa" {
		t.Errorf("transcribed_text = %q", got.TranscribedText)
	}
}

func TestCreateAnalysis_Errors(t *testing.T) {
	t.Parallel()

	failing := transcribe.Instrument("mock", &mock.Transcriber{Err: errors.New("connection refused")}, nil)

	tests := []struct {
		name       string
		opts       []api.Option
		wav        []byte
		fields     map[string]string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing expected text",
			wav:        toneWAV(1),
			fields:     map[string]string{"transcript": "oi"},
			wantStatus: http.StatusBadRequest,
			wantCode:   types.CodeValidation,
		},
		{
			name:       "missing audio",
			fields:     map[string]string{"expected_text": expectedText, "transcript": "oi"},
			wantStatus: http.StatusBadRequest,
			wantCode:   types.CodeValidation,
		},
		{
			name:       "not a wav",
			wav:        []byte("definitely not RIFF"),
			fields:     map[string]string{"expected_text": expectedText, "transcript": "oi"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   types.CodeAudioProcessing,
		},
		{
			name:       "no transcript and no transcriber",
			wav:        toneWAV(1),
			fields:     map[string]string{"expected_text": expectedText},
			wantStatus: http.StatusBadRequest,
			wantCode:   types.CodeValidation,
		},
		{
			name:       "bad duration",
			wav:        toneWAV(1),
			fields:     map[string]string{"expected_text": expectedText, "transcript": "oi", "duration_seconds": "long"},
			wantStatus: http.StatusBadRequest,
			wantCode:   types.CodeValidation,
		},
		{
			name:       "duration disagrees with samples",
			wav:        toneWAV(1),
			fields:     map[string]string{"expected_text": expectedText, "transcript": "oi", "duration_seconds": "5"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   types.CodeAudioProcessing,
		},
		{
			name:       "zero duration",
			wav:        toneWAV(1),
			fields:     map[string]string{"expected_text": expectedText, "transcript": "oi", "duration_seconds": "0"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   types.CodeAnalysis,
		},
		{
			name:       "transcriber failure",
			opts:       []api.Option{api.WithTranscriber(failing)},
			wav:        toneWAV(1),
			fields:     map[string]string{"expected_text": expectedText},
			wantStatus: http.StatusBadGateway,
			wantCode:   "TRANSCRIPTION_ERROR",
		},
		{
			name:       "upload too large",
			opts:       []api.Option{api.WithMaxUploadBytes(1024)},
			wav:        toneWAV(1),
			fields:     map[string]string{"expected_text": expectedText, "transcript": "oi"},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "PAYLOAD_TOO_LARGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newServer(t, tt.opts...)
			body, ct := form(t, tt.wav, tt.fields)
			rec := post(t, h, body, ct)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body = %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if e := decodeError(t, rec); e.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q (%s)", e.Error.Code, tt.wantCode, e.Error.Message)
			}
		})
	}
}

func TestCreateAnalysis_NotMultipart(t *testing.T) {
	t.Parallel()

	rec := post(t, newServer(t), bytes.NewBufferString(`{"expected_text":"x"}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

type stubAnalyzer struct{ err error }

func (s stubAnalyzer) Analyze(context.Context, types.Utterance) (analysis.Result, error) {
	return analysis.Result{}, s.err
}

func TestCreateAnalysis_UnexpectedError(t *testing.T) {
	t.Parallel()

	h := api.New(stubAnalyzer{err: errors.New("boom")}, api.WithMetrics(testMetrics(t))).Handler()
	body, ct := form(t, toneWAV(1), map[string]string{"expected_text": expectedText, "transcript": "oi"})
	rec := post(t, h, body, ct)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if e := decodeError(t, rec); e.Error.Code != "INTERNAL" {
		t.Errorf("code = %q", e.Error.Code)
	}
}

func TestListLanguages(t *testing.T) {
	t.Parallel()

	h := newServer(t, api.WithLanguages(lang.Default().Codes()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/languages", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Languages []string `json:"languages"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, c := range body.Languages {
		if c == "pt-BR" {
			found = true
		}
	}
	if !found {
		t.Errorf("languages = %v, want pt-BR listed", body.Languages)
	}
}

func TestCORS(t *testing.T) {
	t.Parallel()

	h := newServer(t, api.WithCORSOrigins("https://app.example.com"))
	req := httptest.NewRequest(http.MethodOptions, "/v1/analyses", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
