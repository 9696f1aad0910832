// Package types defines the value objects shared by the voicemeter analysis
// packages.
//
// Each analysis stage owns its algorithm, but the data flowing between stages
// lives here to avoid circular imports. Every value is created once by the
// stage that computes it and is never mutated afterwards.
package types

// LanguageCode is a BCP 47 style tag such as "pt-BR" or "en-US".
type LanguageCode string

// Built-in language codes.
const (
	LanguagePortugueseBR LanguageCode = "pt-BR"
	LanguageEnglishUS    LanguageCode = "en-US"
)

// String returns the code as a plain string.
func (c LanguageCode) String() string { return string(c) }

// Utterance is one analysis request: the rehearsed text, what the speaker
// actually said, and the decoded recording.
type Utterance struct {
	// ExpectedText is the text the speaker intended to say.
	ExpectedText string

	// TranscribedText is the transcript produced by the transcription
	// collaborator.
	TranscribedText string

	// LanguageCode selects the language profile. When empty, DetectedLanguage
	// is used, and when that is empty too the language is guessed from the
	// transcript.
	LanguageCode LanguageCode

	// DetectedLanguage is the language tag reported by the transcription
	// collaborator, if any.
	DetectedLanguage string

	// Waveform holds mono amplitude samples in the range [-1, 1].
	Waveform []float64

	// SampleRate in Hz.
	SampleRate int

	// DurationSeconds is the caller-supplied length of the recording.
	DurationSeconds float64
}

// Token is a normalized word unit.
type Token struct {
	// Text is the normalized (lowercased, punctuation-free) form.
	Text string `json:"text"`

	// Surface is the word as it appeared in the source text.
	Surface string `json:"surface"`

	// Index is the zero-based position in the token sequence.
	Index int `json:"index"`
}

// AlignStatus classifies one alignment position.
type AlignStatus string

// Alignment statuses.
const (
	StatusMatched     AlignStatus = "matched"
	StatusSubstituted AlignStatus = "substituted"
	StatusMissing     AlignStatus = "missing"
	StatusExtra       AlignStatus = "extra"
)

// AlignmentEntry is one step of a word-level diff. Expected is nil for extra
// words and Actual is nil for missing words.
type AlignmentEntry struct {
	Expected *Token      `json:"expected,omitempty"`
	Actual   *Token      `json:"actual,omitempty"`
	Status   AlignStatus `json:"status"`

	// Mispronounced marks substitutions whose spelling is close enough to the
	// expected word to suggest a pronunciation slip rather than a different
	// word.
	Mispronounced bool `json:"mispronounced,omitempty"`
}

// PauseInterval is a detected silence. Intervals are non-overlapping and
// ordered by start time.
type PauseInterval struct {
	StartSeconds    float64 `json:"start_seconds"`
	EndSeconds      float64 `json:"end_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// VolumeSample is one point of the loudness envelope.
type VolumeSample struct {
	TimeSeconds float64 `json:"time_seconds"`
	AmplitudeDB float64 `json:"amplitude_db"`
}

// VolumeStats summarises the loudness of voiced frames.
type VolumeStats struct {
	MinDB  float64 `json:"min_db"`
	MaxDB  float64 `json:"max_db"`
	MeanDB float64 `json:"mean_db"`
}
