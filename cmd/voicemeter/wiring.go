package main

import (
	"fmt"
	"log/slog"

	"github.com/MrWong99/voicemeter/internal/analysis"
	"github.com/MrWong99/voicemeter/internal/config"
	"github.com/MrWong99/voicemeter/internal/feedback"
	"github.com/MrWong99/voicemeter/internal/observe"
	"github.com/MrWong99/voicemeter/internal/resilience"
	"github.com/MrWong99/voicemeter/internal/transcribe"
	"github.com/MrWong99/voicemeter/internal/transcribe/openai"
	"github.com/MrWong99/voicemeter/internal/transcribe/whisper"
	"github.com/MrWong99/voicemeter/pkg/lang"
)

// engine bundles everything built from a config.
type engine struct {
	table       *lang.Table
	analyzer    *analysis.Orchestrator
	transcriber *resilience.TranscriberGroup // nil when not configured
}

// registerBuiltinBackends wires the transcription backends shipped with
// voicemeter into reg. Every backend is wrapped with metrics and tracing.
func registerBuiltinBackends(reg *config.Registry, m *observe.Metrics) {
	reg.RegisterTranscriber("whisper", func(e config.BackendEntry) (transcribe.Transcriber, error) {
		opts := []whisper.Option{whisper.WithTimeout(e.Timeout())}
		if e.Model != "" {
			opts = append(opts, whisper.WithModel(e.Model))
		}
		c, err := whisper.New(e.BaseURL, opts...)
		if err != nil {
			return nil, err
		}
		return transcribe.Instrument("whisper", c, m), nil
	})

	reg.RegisterTranscriber("openai", func(e config.BackendEntry) (transcribe.Transcriber, error) {
		opts := []openai.Option{openai.WithTimeout(e.Timeout())}
		if e.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(e.BaseURL))
		}
		c, err := openai.New(e.APIKey, e.Model, opts...)
		if err != nil {
			return nil, err
		}
		return transcribe.Instrument("openai", c, m), nil
	})

	registerNative(reg, m)

	for _, name := range config.ValidBackendNames {
		slog.Debug("registered transcription backend", "name", name)
	}
}

// loadTable returns the configured language table.
func loadTable(cfg *config.Config) (*lang.Table, error) {
	table := lang.Default()
	if cfg.Languages.File != "" {
		t, err := lang.LoadFile(cfg.Languages.File)
		if err != nil {
			return nil, err
		}
		table = t
	}
	if cfg.Analysis.DefaultLanguage != "" {
		t, err := table.WithDefault(cfg.Analysis.DefaultLanguage)
		if err != nil {
			return nil, fmt.Errorf("analysis.default_language: %w", err)
		}
		table = t
	}
	return table, nil
}

// buildEngine constructs the language table, the analysis pipeline and,
// when configured, the transcription failover group.
func buildEngine(cfg *config.Config, m *observe.Metrics) (*engine, error) {
	table, err := loadTable(cfg)
	if err != nil {
		return nil, err
	}

	orch, err := analysis.NewDefault(table,
		cfg.Analysis.AcousticOptions(),
		[]feedback.Option{feedback.WithThresholds(cfg.Feedback.Thresholds())},
		analysis.WithMetrics(m),
		analysis.WithBatchLimit(cfg.Analysis.BatchConcurrency),
	)
	if err != nil {
		return nil, err
	}

	reg := config.NewRegistry()
	registerBuiltinBackends(reg, m)
	group, err := reg.BuildTranscriber(cfg.Transcription)
	if err != nil {
		return nil, err
	}
	if group != nil {
		slog.Info("transcription configured", "backends", group.Names())
	}

	return &engine{table: table, analyzer: orch, transcriber: group}, nil
}
