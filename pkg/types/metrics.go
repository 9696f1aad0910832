package types

// RateClass buckets a speaking rate against the language's ideal band.
type RateClass string

// Rate classes.
const (
	RateTooSlow RateClass = "too_slow"
	RateIdeal   RateClass = "ideal"
	RateTooFast RateClass = "too_fast"
)

// PauseBand buckets a pause by its duration.
type PauseBand string

// Pause bands, shortest first.
const (
	PauseMicro    PauseBand = "micro"
	PauseShort    PauseBand = "short"
	PauseNormal   PauseBand = "normal"
	PauseExtended PauseBand = "extended"
)

// PauseBands lists every band in ascending duration order.
var PauseBands = []PauseBand{PauseMicro, PauseShort, PauseNormal, PauseExtended}

// VocabularyLevel grades lexical diversity.
type VocabularyLevel string

// Vocabulary levels.
const (
	VocabularyBasic        VocabularyLevel = "basic"
	VocabularyIntermediate VocabularyLevel = "intermediate"
	VocabularyAdvanced     VocabularyLevel = "advanced"
	VocabularyExpert       VocabularyLevel = "expert"
)

// SpeechRateMetrics describes how fast the speaker talked. ArticulationRate
// is syllables per minute of speaking time, excluding pauses.
type SpeechRateMetrics struct {
	WordCount          int       `json:"word_count"`
	SyllableCount      int       `json:"syllable_count"`
	WordsPerMinute     float64   `json:"words_per_minute"`
	SyllablesPerSecond float64   `json:"syllables_per_second"`
	ArticulationRate   float64   `json:"articulation_rate"`
	IdealMinWPM        float64   `json:"ideal_min_wpm"`
	IdealMaxWPM        float64   `json:"ideal_max_wpm"`
	Classification     RateClass `json:"classification"`
}

// BandStats aggregates the pauses falling into one band.
type BandStats struct {
	Count                int     `json:"count"`
	TotalDurationSeconds float64 `json:"total_duration_seconds"`
	AverageSeconds       float64 `json:"average_seconds"`
}

// ClassifiedPause is a pause together with its band.
type ClassifiedPause struct {
	PauseInterval
	Band PauseBand `json:"band"`
}

// PauseMetrics describes the silences in a recording.
type PauseMetrics struct {
	Count                int                     `json:"count"`
	TotalDurationSeconds float64                 `json:"total_duration_seconds"`
	AverageSeconds       float64                 `json:"average_seconds"`
	LongestSeconds       float64                 `json:"longest_seconds"`
	PausesPerMinute      float64                 `json:"pauses_per_minute"`
	PauseRatio           float64                 `json:"pause_ratio"`
	Bands                map[PauseBand]BandStats `json:"bands"`
	Pauses               []ClassifiedPause       `json:"pauses"`
}

// VocabularyMetrics describes lexical diversity. RootTTR is Guiraud's index,
// distinct / sqrt(tokens), which depends less on length than TypeTokenRatio.
// AverageWordLength counts runes.
type VocabularyMetrics struct {
	TokenCount         int             `json:"token_count"`
	DistinctCount      int             `json:"distinct_count"`
	TypeTokenRatio     float64         `json:"type_token_ratio"`
	RootTTR            float64         `json:"root_ttr"`
	AverageWordLength  float64         `json:"average_word_length"`
	ComplexWordCount   int             `json:"complex_word_count"`
	ComplexWordRatio   float64         `json:"complex_word_ratio"`
	LexicalDensity     float64         `json:"lexical_density"`
	Level              VocabularyLevel `json:"level"`
	MostFrequentTokens []string        `json:"most_frequent_tokens,omitempty"`
}

// FluencyMetrics counts disfluencies.
type FluencyMetrics struct {
	FillerCount         int            `json:"filler_count"`
	FillerRatio         float64        `json:"filler_ratio"`
	Fillers             map[string]int `json:"fillers,omitempty"`
	RepetitionCount     int            `json:"repetition_count"`
	SelfCorrectionCount int            `json:"self_correction_count"`
	HesitationRate      float64        `json:"hesitation_rate"`
	Score               float64        `json:"score"`
}

// Scores are 0–100 grades derived from the metric bundle.
type Scores struct {
	Rate       float64 `json:"rate"`
	Pauses     float64 `json:"pauses"`
	Vocabulary float64 `json:"vocabulary"`
	Fluency    float64 `json:"fluency"`
	Overall    float64 `json:"overall"`
}

// Metrics is the bundle produced by the speech metrics calculator.
type Metrics struct {
	Language        LanguageCode      `json:"language"`
	DurationSeconds float64           `json:"duration_seconds"`
	Rate            SpeechRateMetrics `json:"rate"`
	Pauses          PauseMetrics      `json:"pauses"`
	Vocabulary      VocabularyMetrics `json:"vocabulary"`
	Fluency         FluencyMetrics    `json:"fluency"`
	Scores          Scores            `json:"scores"`
}
