//go:build whispercpp

// In-process transcription through the whisper.cpp cgo bindings. The static
// library (libwhisper.a) and header (whisper.h) must be reachable through
// LIBRARY_PATH and C_INCLUDE_PATH at build time.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/voicemeter/internal/transcribe"
)

var _ transcribe.Transcriber = (*Native)(nil)

// Native runs whisper.cpp in-process. The model is loaded once and shared;
// every call creates its own context, so calls may run concurrently.
type Native struct {
	model whisperlib.Model
}

// NewNative loads the model at modelPath. Call Close when done.
func NewNative(modelPath string) (*Native, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	return &Native{model: model}, nil
}

// Close releases the model.
func (n *Native) Close() error {
	if n.model != nil {
		return n.model.Close()
	}
	return nil
}

// Transcribe implements [transcribe.Transcriber]. Inference is not
// interruptible; ctx is only checked before it starts.
func (n *Native) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Transcription, error) {
	if err := ctx.Err(); err != nil {
		return transcribe.Transcription{}, fmt.Errorf("whisper: %w", err)
	}
	if req.Audio.Frames() == 0 {
		return transcribe.Transcription{}, transcribe.ErrEmptyAudio
	}
	samples64 := transcribe.Prepare(req.Audio, transcribe.WhisperRate).Samples()
	samples := make([]float32, len(samples64))
	for i, s := range samples64 {
		samples[i] = float32(s)
	}

	wctx, err := n.model.NewContext()
	if err != nil {
		return transcribe.Transcription{}, fmt.Errorf("whisper: create context: %w", err)
	}
	lang := transcribe.BaseLanguage(req.Language)
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using model default", "language", lang, "err", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return transcribe.Transcription{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return transcribe.Transcription{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return transcribe.Transcription{
		Text:     strings.Join(parts, " "),
		Language: wctx.DetectedLanguage(),
		Duration: req.Audio.Duration(),
	}, nil
}
