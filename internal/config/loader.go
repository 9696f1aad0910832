package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/voicemeter/pkg/lang"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultAPIAddr           = ":8080"
	DefaultOpsAddr           = ":9090"
	DefaultMaxUploadMB       = 32
	DefaultFrameMS           = 30
	DefaultHopMS             = 15
	DefaultSilenceOffsetDB   = 35
	DefaultFloorDB           = -100
	DefaultMinPause          = 0.25
	DefaultDurationTolerance = 0.25
	DefaultEnvelopePoints    = 200
	DefaultBatchConcurrency  = 4
	DefaultBackendTimeout    = 60
)

// ValidBackendNames lists the transcription backends known to this build.
// Used by [Validate] to warn about unrecognised names.
var ValidBackendNames = []string{"whisper", "whisper-native", "openai"}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero values with their defaults.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.APIAddr == "" {
		s.APIAddr = DefaultAPIAddr
	}
	if s.OpsAddr == "" {
		s.OpsAddr = DefaultOpsAddr
	}
	if s.MaxUploadMB == 0 {
		s.MaxUploadMB = DefaultMaxUploadMB
	}

	a := &cfg.Analysis
	if a.FrameMS == 0 {
		a.FrameMS = DefaultFrameMS
	}
	if a.HopMS == 0 {
		a.HopMS = DefaultHopMS
	}
	if a.SilenceOffsetDB == 0 {
		a.SilenceOffsetDB = DefaultSilenceOffsetDB
	}
	if a.FloorDB == 0 {
		a.FloorDB = DefaultFloorDB
	}
	if a.MinPauseSeconds == 0 {
		a.MinPauseSeconds = DefaultMinPause
	}
	if a.DurationToleranceSeconds == 0 {
		a.DurationToleranceSeconds = DefaultDurationTolerance
	}
	if a.EnvelopePoints == 0 {
		a.EnvelopePoints = DefaultEnvelopePoints
	}
	if a.BatchConcurrency == 0 {
		a.BatchConcurrency = DefaultBatchConcurrency
	}

	t := &cfg.Transcription
	if t.Primary.Name != "" && t.Primary.TimeoutSeconds == 0 {
		t.Primary.TimeoutSeconds = DefaultBackendTimeout
	}
	for i := range t.Fallbacks {
		if t.Fallbacks[i].TimeoutSeconds == 0 {
			t.Fallbacks[i].TimeoutSeconds = DefaultBackendTimeout
		}
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.APIAddr != "" && cfg.Server.APIAddr == cfg.Server.OpsAddr {
		errs = append(errs, fmt.Errorf("server.api_addr and server.ops_addr must differ, both are %q", cfg.Server.APIAddr))
	}
	if cfg.Server.MaxUploadMB < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb %d must not be negative", cfg.Server.MaxUploadMB))
	}

	// Analysis
	a := cfg.Analysis
	if a.FrameMS < 0 || a.HopMS < 0 {
		errs = append(errs, fmt.Errorf("analysis.frame_ms and analysis.hop_ms must not be negative"))
	}
	if a.HopMS > a.FrameMS {
		errs = append(errs, fmt.Errorf("analysis.hop_ms %d exceeds analysis.frame_ms %d", a.HopMS, a.FrameMS))
	}
	if a.SilenceOffsetDB < 0 {
		errs = append(errs, fmt.Errorf("analysis.silence_offset_db %.1f must be positive", a.SilenceOffsetDB))
	}
	if a.FloorDB > 0 {
		errs = append(errs, fmt.Errorf("analysis.floor_db %.1f must be negative", a.FloorDB))
	}
	if a.MinPauseSeconds < 0 || a.DurationToleranceSeconds < 0 {
		errs = append(errs, fmt.Errorf("analysis.min_pause_seconds and analysis.duration_tolerance_seconds must not be negative"))
	}
	if a.EnvelopePoints < 0 {
		errs = append(errs, fmt.Errorf("analysis.envelope_points %d must not be negative", a.EnvelopePoints))
	}
	if a.BatchConcurrency < 0 {
		errs = append(errs, fmt.Errorf("analysis.batch_concurrency %d must not be negative", a.BatchConcurrency))
	}
	if a.DefaultLanguage != "" {
		if _, err := lang.ParseCode(a.DefaultLanguage); err != nil {
			errs = append(errs, fmt.Errorf("analysis.default_language: %w", err))
		}
	}

	// Feedback
	f := cfg.Feedback
	if f.AccuracyCritical < 0 || f.AccuracyWarning < 0 || f.AccuracyExcellent < 0 ||
		f.AccuracyCritical > 1 || f.AccuracyWarning > 1 || f.AccuracyExcellent > 1 {
		errs = append(errs, fmt.Errorf("feedback accuracy thresholds must lie in [0, 1]"))
	}
	if th := f.Thresholds(); th.AccuracyCritical > th.AccuracyWarning {
		errs = append(errs, fmt.Errorf("feedback.accuracy_critical %.2f exceeds accuracy_warning %.2f", th.AccuracyCritical, th.AccuracyWarning))
	}
	if f.RateCriticalFactor != 0 && f.RateCriticalFactor < 1 {
		errs = append(errs, fmt.Errorf("feedback.rate_critical_factor %.2f must be at least 1", f.RateCriticalFactor))
	}

	// Transcription
	t := cfg.Transcription
	if t.Primary.Name == "" && len(t.Fallbacks) > 0 {
		errs = append(errs, fmt.Errorf("transcription.fallbacks require transcription.primary"))
	}
	entries := append([]BackendEntry{t.Primary}, t.Fallbacks...)
	for i, e := range entries {
		prefix := "transcription.primary"
		if i > 0 {
			prefix = fmt.Sprintf("transcription.fallbacks[%d]", i-1)
		}
		if e.Name == "" {
			if i > 0 {
				errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			}
			continue
		}
		if e.TimeoutSeconds < 0 {
			errs = append(errs, fmt.Errorf("%s.timeout_seconds %d must not be negative", prefix, e.TimeoutSeconds))
		}
		switch e.Name {
		case "whisper":
			if e.BaseURL == "" {
				errs = append(errs, fmt.Errorf("%s.base_url is required for backend %q", prefix, e.Name))
			}
		case "whisper-native":
			if e.Model == "" {
				errs = append(errs, fmt.Errorf("%s.model (ggml model path) is required for backend %q", prefix, e.Name))
			}
		case "openai":
			if e.APIKey == "" {
				slog.Warn("transcription backend has no api_key", "entry", prefix, "name", e.Name)
			}
		}
		validateBackendName(prefix, e.Name)
	}
	cb := t.CircuitBreaker
	if cb.MaxFailures < 0 || cb.ResetTimeoutSeconds < 0 || cb.HalfOpenMax < 0 {
		errs = append(errs, fmt.Errorf("transcription.circuit_breaker values must not be negative"))
	}

	return errors.Join(errs...)
}

// validateBackendName logs a warning if name is not in [ValidBackendNames].
func validateBackendName(entry, name string) {
	if slices.Contains(ValidBackendNames, name) {
		return
	}
	slog.Warn("unknown transcription backend; may be a typo or a third-party registration",
		"entry", entry,
		"name", name,
		"known", ValidBackendNames,
	)
}
