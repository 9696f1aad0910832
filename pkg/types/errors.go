package types

import "fmt"

// Error codes reported by [ValidationError], [AudioProcessingError] and
// [AnalysisError].
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeAudioProcessing = "AUDIO_PROCESSING_ERROR"
	CodeAnalysis        = "ANALYSIS_ERROR"
)

// ValidationError reports malformed or missing input text or fields.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Code returns [CodeValidation].
func (e *ValidationError) Code() string { return CodeValidation }

// AudioProcessingError reports an unusable waveform: empty samples, a bad
// sample rate, or a duration that disagrees with the samples.
type AudioProcessingError struct {
	Reason string
	Err    error
}

// Error implements error.
func (e *AudioProcessingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio processing: %s: %v", e.Reason, e.Err)
	}
	return "audio processing: " + e.Reason
}

// Code returns [CodeAudioProcessing].
func (e *AudioProcessingError) Code() string { return CodeAudioProcessing }

// Unwrap returns the underlying cause, if any.
func (e *AudioProcessingError) Unwrap() error { return e.Err }

// AnalysisError reports a failure while deriving metrics, such as a
// non-positive duration.
type AnalysisError struct {
	// Stage names the computation that failed (e.g. "speech_rate").
	Stage  string
	Reason string
	Err    error
}

// Error implements error.
func (e *AnalysisError) Error() string {
	msg := "analysis"
	if e.Stage != "" {
		msg += " " + e.Stage
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Code returns [CodeAnalysis].
func (e *AnalysisError) Code() string { return CodeAnalysis }

// Unwrap returns the underlying cause, if any.
func (e *AnalysisError) Unwrap() error { return e.Err }

// Coded is implemented by every error in the analysis taxonomy.
type Coded interface {
	error
	Code() string
}

var (
	_ Coded = (*ValidationError)(nil)
	_ Coded = (*AudioProcessingError)(nil)
	_ Coded = (*AnalysisError)(nil)
)
