//go:build !whispercpp

package main

import (
	"errors"

	"github.com/MrWong99/voicemeter/internal/config"
	"github.com/MrWong99/voicemeter/internal/observe"
	"github.com/MrWong99/voicemeter/internal/transcribe"
)

func registerNative(reg *config.Registry, _ *observe.Metrics) {
	reg.RegisterTranscriber("whisper-native", func(config.BackendEntry) (transcribe.Transcriber, error) {
		return nil, errors.New("whisper-native requires a build with -tags whispercpp")
	})
}
