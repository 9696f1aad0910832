// Package transcribe defines the transcription collaborator: an upstream
// service that maps recorded audio to text plus an optional language tag.
//
// The analysis engine never calls a [Transcriber] itself. The CLI and the
// HTTP API transcribe first and hand the text to the engine. Failures are
// upstream errors and are wrapped, never mapped into the analysis error
// taxonomy.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/text/language"

	"github.com/MrWong99/voicemeter/internal/observe"
	"github.com/MrWong99/voicemeter/pkg/audio"
)

// WhisperRate is the sample rate whisper models are trained on.
const WhisperRate = 16000

var (
	// ErrEmptyAudio is returned when a request carries no samples.
	ErrEmptyAudio = errors.New("transcribe: empty audio")

	// ErrFailed wraps every error produced by a backend.
	ErrFailed = errors.New("transcribe: failed")
)

// Request is one transcription job.
type Request struct {
	Audio audio.PCM

	// Language is an optional BCP-47 hint such as "pt-BR". Empty lets the
	// backend detect the language.
	Language string
}

// Transcription is the backend's answer.
type Transcription struct {
	Text string

	// Language is the language reported by the backend, possibly a short
	// code ("pt") or an English name ("portuguese"). Empty when unknown.
	Language string

	// Duration is the audio length as reported by the backend, or zero.
	Duration time.Duration
}

// Transcriber converts audio to text. Implementations must be safe for
// concurrent use.
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (Transcription, error)
}

// Prepare returns p as mono PCM at rate.
func Prepare(p audio.PCM, rate int) audio.PCM {
	return p.Mono().Resample(rate)
}

// BaseLanguage reduces a BCP-47 code to its base language ("pt-BR" → "pt").
// Unparseable input yields "".
func BaseLanguage(code string) string {
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}

// Instrumented records latency, outcome and a span for every call to the
// wrapped [Transcriber].
type Instrumented struct {
	name    string
	next    Transcriber
	metrics *observe.Metrics
}

var _ Transcriber = (*Instrumented)(nil)

// Instrument wraps t. A nil m uses [observe.DefaultMetrics].
func Instrument(name string, t Transcriber, m *observe.Metrics) *Instrumented {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Instrumented{name: name, next: t, metrics: m}
}

// Transcribe implements [Transcriber].
func (i *Instrumented) Transcribe(ctx context.Context, req Request) (Transcription, error) {
	ctx, span := observe.StartSpan(ctx, "transcribe."+i.name)
	defer span.End()
	span.SetAttributes(
		observe.AttrProvider.String(i.name),
		observe.AttrAudioSeconds.Float64(req.Audio.Seconds()),
	)

	start := time.Now()
	tr, err := i.next.Transcribe(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		observe.Fail(span, err)
		i.metrics.RecordTranscription(ctx, i.name, "error", elapsed.Seconds())
		return Transcription{}, fmt.Errorf("%w: %s: %w", ErrFailed, i.name, err)
	}
	i.metrics.RecordTranscription(ctx, i.name, "ok", elapsed.Seconds())
	observe.Logger(ctx).Debug("transcription done",
		"provider", i.name,
		"elapsed", elapsed,
		"language", tr.Language,
		"chars", len(tr.Text),
	)
	return tr, nil
}
