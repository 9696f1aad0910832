//go:build whispercpp

package main

import (
	"github.com/MrWong99/voicemeter/internal/config"
	"github.com/MrWong99/voicemeter/internal/observe"
	"github.com/MrWong99/voicemeter/internal/transcribe"
	"github.com/MrWong99/voicemeter/internal/transcribe/whisper"
)

func registerNative(reg *config.Registry, m *observe.Metrics) {
	reg.RegisterTranscriber("whisper-native", func(e config.BackendEntry) (transcribe.Transcriber, error) {
		n, err := whisper.NewNative(e.Model)
		if err != nil {
			return nil, err
		}
		return transcribe.Instrument("whisper-native", n, m), nil
	})
}
