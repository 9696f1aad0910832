// Package config provides the configuration schema, loader, transcriber
// registry and file watcher for the voicemeter service.
package config

import (
	"time"

	"github.com/MrWong99/voicemeter/internal/acoustic"
	"github.com/MrWong99/voicemeter/internal/feedback"
	"github.com/MrWong99/voicemeter/internal/resilience"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Analysis      AnalysisConfig      `yaml:"analysis"`
	Languages     LanguagesConfig     `yaml:"languages"`
	Feedback      FeedbackConfig      `yaml:"feedback"`
	Transcription TranscriptionConfig `yaml:"transcription"`
}

// ServerConfig holds listener and logging settings.
type ServerConfig struct {
	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// APIAddr is where the upload API listens. Default: ":8080".
	APIAddr string `yaml:"api_addr"`

	// OpsAddr serves /metrics, /healthz and /readyz. Default: ":9090".
	OpsAddr string `yaml:"ops_addr"`

	// MaxUploadMB caps the multipart body of one analysis request.
	// Default: 32.
	MaxUploadMB int `yaml:"max_upload_mb"`

	// CORSOrigins lists the origins allowed to call the upload API. Empty
	// allows none.
	CORSOrigins []string `yaml:"cors_origins"`
}

// AnalysisConfig tunes the signal analysis and batch execution.
type AnalysisConfig struct {
	FrameMS                  int     `yaml:"frame_ms"`
	HopMS                    int     `yaml:"hop_ms"`
	SilenceOffsetDB          float64 `yaml:"silence_offset_db"`
	FloorDB                  float64 `yaml:"floor_db"`
	MinPauseSeconds          float64 `yaml:"min_pause_seconds"`
	DurationToleranceSeconds float64 `yaml:"duration_tolerance_seconds"`

	// EnvelopePoints caps the volume samples in a presentation record.
	EnvelopePoints int `yaml:"envelope_points"`

	// BatchConcurrency bounds how many utterances of one batch are analysed
	// at once.
	BatchConcurrency int `yaml:"batch_concurrency"`

	// DefaultLanguage overrides the language table's default.
	DefaultLanguage string `yaml:"default_language"`
}

// LanguagesConfig points at an optional language profile table. When File
// is empty the embedded profiles are used.
type LanguagesConfig struct {
	File string `yaml:"file"`
}

// FeedbackConfig overrides the trigger points of the feedback rules. Zero
// values keep the built-in thresholds.
type FeedbackConfig struct {
	AccuracyCritical   float64 `yaml:"accuracy_critical"`
	AccuracyWarning    float64 `yaml:"accuracy_warning"`
	AccuracyExcellent  float64 `yaml:"accuracy_excellent"`
	RateCriticalFactor float64 `yaml:"rate_critical_factor"`
	ManyPausesRatio    float64 `yaml:"many_pauses_ratio"`
	FewPausesRatio     float64 `yaml:"few_pauses_ratio"`
	FillerWarning      float64 `yaml:"filler_warning"`
	FillerCritical     float64 `yaml:"filler_critical"`
	MaxRepetitions     int     `yaml:"max_repetitions"`
	MaxSelfCorrections int     `yaml:"max_self_corrections"`
}

// TranscriptionConfig declares the transcription backends, tried in order.
// An empty Primary.Name disables server-side transcription; callers must
// then supply the transcript themselves.
type TranscriptionConfig struct {
	Primary        BackendEntry         `yaml:"primary"`
	Fallbacks      []BackendEntry       `yaml:"fallbacks"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// BackendEntry is the configuration block of one transcription backend.
// Name selects the constructor in the [Registry].
type BackendEntry struct {
	// Name selects the registered backend (e.g. "whisper", "openai").
	Name string `yaml:"name"`

	// APIKey authenticates against hosted backends.
	APIKey string `yaml:"api_key"`

	// BaseURL is the server address for self-hosted backends, or an
	// endpoint override for hosted ones.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the backend. For "whisper-native" it is
	// the path of the ggml model file.
	Model string `yaml:"model"`

	// TimeoutSeconds bounds one transcription request. Default: 60.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// CircuitBreakerConfig tunes the breaker in front of each backend.
type CircuitBreakerConfig struct {
	MaxFailures         int `yaml:"max_failures"`
	ResetTimeoutSeconds int `yaml:"reset_timeout_seconds"`
	HalfOpenMax         int `yaml:"half_open_max"`
}

// AcousticOptions converts the analysis section into analyzer options.
func (a AnalysisConfig) AcousticOptions() []acoustic.Option {
	return []acoustic.Option{
		acoustic.WithFrame(time.Duration(a.FrameMS)*time.Millisecond, time.Duration(a.HopMS)*time.Millisecond),
		acoustic.WithSilenceOffset(a.SilenceOffsetDB),
		acoustic.WithFloor(a.FloorDB),
		acoustic.WithMinPause(seconds(a.MinPauseSeconds)),
		acoustic.WithDurationTolerance(seconds(a.DurationToleranceSeconds)),
	}
}

// Thresholds merges the overrides onto the built-in thresholds.
func (f FeedbackConfig) Thresholds() feedback.Thresholds {
	th := feedback.DefaultThresholds()
	setIf(&th.AccuracyCritical, f.AccuracyCritical)
	setIf(&th.AccuracyWarning, f.AccuracyWarning)
	setIf(&th.AccuracyExcellent, f.AccuracyExcellent)
	setIf(&th.RateCriticalFactor, f.RateCriticalFactor)
	setIf(&th.ManyPausesRatio, f.ManyPausesRatio)
	setIf(&th.FewPausesRatio, f.FewPausesRatio)
	setIf(&th.FillerWarning, f.FillerWarning)
	setIf(&th.FillerCritical, f.FillerCritical)
	setIf(&th.MaxRepetitions, f.MaxRepetitions)
	setIf(&th.MaxSelfCorrections, f.MaxSelfCorrections)
	return th
}

// Resilience converts the breaker section for [resilience.NewTranscriberGroup].
func (c CircuitBreakerConfig) Resilience() resilience.FallbackConfig {
	return resilience.FallbackConfig{CircuitBreaker: resilience.CircuitBreakerConfig{
		MaxFailures:  c.MaxFailures,
		ResetTimeout: time.Duration(c.ResetTimeoutSeconds) * time.Second,
		HalfOpenMax:  c.HalfOpenMax,
	}}
}

// BackendNames lists the configured backends in failover order, or nil when
// server-side transcription is disabled.
func (t TranscriptionConfig) BackendNames() []string {
	if t.Primary.Name == "" {
		return nil
	}
	names := []string{t.Primary.Name}
	for _, f := range t.Fallbacks {
		names = append(names, f.Name)
	}
	return names
}

// Timeout returns the per-request timeout of the backend.
func (b BackendEntry) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func setIf[T int | float64](dst *T, v T) {
	if v != 0 {
		*dst = v
	}
}
