package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/voicemeter/internal/observe"
	"github.com/MrWong99/voicemeter/internal/transcribe"
)

// TranscriberGroup is a [transcribe.Transcriber] that fails over across
// several backends.
type TranscriberGroup struct {
	group *FallbackGroup[transcribe.Transcriber]
}

var _ transcribe.Transcriber = (*TranscriberGroup)(nil)

// NewTranscriberGroup creates a group with primary as the preferred backend.
func NewTranscriberGroup(primaryName string, primary transcribe.Transcriber, cfg FallbackConfig) *TranscriberGroup {
	return &TranscriberGroup{group: NewFallbackGroup(primaryName, primary, cfg)}
}

// AddFallback registers another backend, tried after those added before.
func (g *TranscriberGroup) AddFallback(name string, t transcribe.Transcriber) {
	g.group.AddFallback(name, t)
}

// Names returns the backend names in failover order.
func (g *TranscriberGroup) Names() []string { return g.group.Names() }

// Transcribe implements [transcribe.Transcriber]. Empty audio is rejected up
// front so it does not count against any backend.
func (g *TranscriberGroup) Transcribe(ctx context.Context, req transcribe.Request) (transcribe.Transcription, error) {
	if req.Audio.Frames() == 0 {
		return transcribe.Transcription{}, transcribe.ErrEmptyAudio
	}
	tr, name, err := Call(ctx, g.group, func(ctx context.Context, t transcribe.Transcriber) (transcribe.Transcription, error) {
		return t.Transcribe(ctx, req)
	})
	if err != nil {
		return transcribe.Transcription{}, fmt.Errorf("%w: %w", transcribe.ErrFailed, err)
	}
	observe.Logger(ctx).Debug("transcribed", "backend", name)
	return tr, nil
}

// Ready is a readiness check: it fails when every backend's breaker is open.
func (g *TranscriberGroup) Ready(context.Context) error {
	if g.group.Available() {
		return nil
	}
	var open []string
	for name, st := range g.group.States() {
		open = append(open, name+"="+st.String())
	}
	return errors.New("all transcription backends unavailable: " + strings.Join(open, ", "))
}
