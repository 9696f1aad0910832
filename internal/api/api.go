// Package api is the HTTP upload adapter: it accepts a WAV recording and
// the rehearsed text, obtains a transcript (from the caller or a
// [transcribe.Transcriber]), runs the analysis and returns the presentation
// record as JSON.
//
// Routes:
//
//	POST /v1/analyses   multipart: audio, expected_text, [transcript], [language], [duration_seconds]
//	GET  /v1/languages  language profiles known to the server
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/MrWong99/voicemeter/internal/analysis"
	"github.com/MrWong99/voicemeter/internal/observe"
	"github.com/MrWong99/voicemeter/internal/transcribe"
	"github.com/MrWong99/voicemeter/pkg/audio"
	"github.com/MrWong99/voicemeter/pkg/types"
)

const (
	defaultMaxUploadBytes = 32 << 20
	multipartMemory       = 8 << 20
)

// Analyzer runs one analysis. [*analysis.Orchestrator] implements it.
type Analyzer interface {
	Analyze(ctx context.Context, u types.Utterance) (analysis.Result, error)
}

var _ Analyzer = (*analysis.Orchestrator)(nil)

// Option configures a [Server].
type Option func(*Server)

// WithTranscriber sets the backend used when a request carries no
// transcript. Without one, the transcript field is required.
func WithTranscriber(t transcribe.Transcriber) Option {
	return func(s *Server) { s.transcriber = t }
}

// WithLanguages sets the codes listed by GET /v1/languages.
func WithLanguages(codes []types.LanguageCode) Option {
	return func(s *Server) { s.languages = codes }
}

// WithEnvelopePoints caps the volume samples in each record.
func WithEnvelopePoints(n int) Option {
	return func(s *Server) { s.envelopePoints = n }
}

// WithMaxUploadBytes caps the request body. Default: 32 MiB.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithCORSOrigins allows browser calls from origins.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithMetrics sets the instruments used by the request middleware.
// Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// Server serves the upload API.
type Server struct {
	analyzer       Analyzer
	transcriber    transcribe.Transcriber
	languages      []types.LanguageCode
	envelopePoints int
	maxUploadBytes int64
	corsOrigins    []string
	metrics        *observe.Metrics

	now   func() time.Time
	newID func() uuid.UUID
}

// New creates a [Server] around a.
func New(a Analyzer, opts ...Option) *Server {
	s := &Server{
		analyzer:       a,
		maxUploadBytes: defaultMaxUploadBytes,
		now:            time.Now,
		newID:          uuid.New,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Handler returns the routed handler with its middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(observe.Middleware(s.metrics))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "traceparent"},
		ExposedHeaders: []string{"X-Request-ID", "X-Correlation-ID"},
		MaxAge:         300,
	}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyses", s.createAnalysis)
		r.Get("/languages", s.listLanguages)
	})
	return r
}

func (s *Server) createAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := s.newID()
	w.Header().Set("X-Request-ID", id.String())

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeTooLarge, "upload exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		}
		writeError(w, http.StatusBadRequest, types.CodeValidation, "expected a multipart/form-data body: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	expected := r.FormValue("expected_text")
	if strings.TrimSpace(expected) == "" {
		writeTaxonomyError(ctx, w, &types.ValidationError{Field: "expected_text", Reason: "is required"})
		return
	}

	pcm, err := readAudio(r)
	if err != nil {
		writeTaxonomyError(ctx, w, err)
		return
	}

	duration := pcm.Seconds()
	if v := r.FormValue("duration_seconds"); v != "" {
		duration, err = strconv.ParseFloat(v, 64)
		if err != nil {
			writeTaxonomyError(ctx, w, &types.ValidationError{Field: "duration_seconds", Reason: "not a number"})
			return
		}
	}

	language := types.LanguageCode(strings.TrimSpace(r.FormValue("language")))
	transcript, detected, err := s.transcript(ctx, r, pcm, language)
	if err != nil {
		writeTaxonomyError(ctx, w, err)
		return
	}

	res, err := s.analyzer.Analyze(ctx, types.Utterance{
		ExpectedText:     expected,
		TranscribedText:  transcript,
		LanguageCode:     language,
		DetectedLanguage: detected,
		Waveform:         pcm.Samples(),
		SampleRate:       pcm.SampleRate,
		DurationSeconds:  duration,
	})
	if err != nil {
		writeTaxonomyError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis.NewRecord(id, s.now(), res, s.envelopePoints))
}

// readAudio decodes the "audio" form file.
func readAudio(r *http.Request) (audio.PCM, error) {
	f, _, err := r.FormFile("audio")
	if err != nil {
		return audio.PCM{}, &types.ValidationError{Field: "audio", Reason: "a WAV file is required"}
	}
	defer f.Close()

	pcm, err := audio.DecodeWAV(f)
	if err != nil {
		return audio.PCM{}, &types.AudioProcessingError{Reason: "cannot decode WAV upload", Err: err}
	}
	return pcm, nil
}

// transcript returns the caller's transcript, or transcribes pcm when the
// form field is absent. An explicitly empty transcript is kept as is.
func (s *Server) transcript(ctx context.Context, r *http.Request, pcm audio.PCM, language types.LanguageCode) (text, detected string, err error) {
	if _, ok := r.MultipartForm.Value["transcript"]; ok {
		return r.FormValue("transcript"), "", nil
	}
	if s.transcriber == nil {
		return "", "", &types.ValidationError{Field: "transcript", Reason: "is required when server-side transcription is not configured"}
	}
	tr, err := s.transcriber.Transcribe(ctx, transcribe.Request{Audio: pcm, Language: string(language)})
	if err != nil {
		return "", "", err
	}
	return tr.Text, tr.Language, nil
}

type languagesResponse struct {
	Languages []types.LanguageCode `json:"languages"`
}

func (s *Server) listLanguages(w http.ResponseWriter, _ *http.Request) {
	codes := s.languages
	if codes == nil {
		codes = []types.LanguageCode{}
	}
	writeJSON(w, http.StatusOK, languagesResponse{Languages: codes})
}
