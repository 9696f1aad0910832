package feedback

import (
	"cmp"
	"slices"
	"strings"

	"github.com/MrWong99/voicemeter/pkg/types"
)

// Thresholds are the trigger points of the default rules.
type Thresholds struct {
	AccuracyCritical  float64 // similarity below this is critical
	AccuracyWarning   float64 // similarity below this is a warning
	AccuracyExcellent float64 // similarity at or above this is praised

	// RateCriticalFactor scales the ideal band: faster than Max·factor or
	// slower than Min/factor is critical.
	RateCriticalFactor float64

	ManyPausesRatio    float64
	FewPausesRatio     float64
	FewPausesMinLength float64 // seconds of audio before "few pauses" applies

	FillerWarning  float64
	FillerCritical float64

	MaxRepetitions     int
	MaxSelfCorrections int

	RepetitiveTTR       float64
	RepetitiveMinTokens int
}

// DefaultThresholds returns the built-in thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AccuracyCritical:    0.5,
		AccuracyWarning:     0.85,
		AccuracyExcellent:   0.95,
		RateCriticalFactor:  1.25,
		ManyPausesRatio:     0.3,
		FewPausesRatio:      0.1,
		FewPausesMinLength:  10,
		FillerWarning:       0.05,
		FillerCritical:      0.1,
		MaxRepetitions:      3,
		MaxSelfCorrections:  2,
		RepetitiveTTR:       0.4,
		RepetitiveMinTokens: 20,
	}
}

// DefaultRules returns the built-in rules in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{ID: "accuracy_low", Metric: "similarity_ratio", Evaluate: accuracyLow},
		{ID: "accuracy_partial", Metric: "similarity_ratio", Evaluate: accuracyPartial},
		{ID: "missing_words", Metric: "missing_words", Evaluate: missingWords},
		{ID: "extra_words", Metric: "extra_words", Evaluate: extraWords},
		{ID: "rate_too_fast", Metric: "rate.words_per_minute", Evaluate: rateTooFast},
		{ID: "rate_too_slow", Metric: "rate.words_per_minute", Evaluate: rateTooSlow},
		{ID: "pauses_extended", Metric: "pauses.bands.extended", Evaluate: pausesExtended},
		{ID: "pauses_many", Metric: "pauses.pause_ratio", Evaluate: pausesMany},
		{ID: "pauses_few", Metric: "pauses.pause_ratio", Evaluate: pausesFew},
		{ID: "fillers_high", Metric: "fluency.filler_ratio", Evaluate: fillersHigh},
		{ID: "repetitions", Metric: "fluency.repetition_count", Evaluate: repetitions},
		{ID: "self_corrections", Metric: "fluency.self_correction_count", Evaluate: selfCorrections},
		{ID: "vocabulary_repetitive", Metric: "vocabulary.type_token_ratio", Evaluate: vocabularyRepetitive},
		{ID: "rate_ideal", Metric: "rate.words_per_minute", Evaluate: rateIdeal},
		{ID: "accuracy_excellent", Metric: "similarity_ratio", Evaluate: accuracyExcellent},
	}
}

func accuracyLow(b Bundle, th Thresholds) (types.Severity, Data, bool) {
	if b.ExpectedCount == 0 || b.SimilarityRatio >= th.AccuracyCritical {
		return "", Data{}, false
	}
	return types.SeverityCritical, Data{Value: b.SimilarityRatio}, true
}

func accuracyPartial(b Bundle, th Thresholds) (types.Severity, Data, bool) {
	r := b.SimilarityRatio
	if b.ExpectedCount == 0 || r < th.AccuracyCritical || r >= th.AccuracyWarning {
		return "", Data{}, false
	}
	return types.SeverityWarning, Data{Value: r}, true
}

func accuracyExcellent(b Bundle, th Thresholds) (types.Severity, Data, bool) {
	if b.ExpectedCount == 0 || b.SimilarityRatio < th.AccuracyExcellent {
		return "", Data{}, false
	}
	return types.SeverityInfo, Data{Value: b.SimilarityRatio}, true
}

func missingWords(b Bundle, _ Thresholds) (types.Severity, Data, bool) {
	if len(b.MissingWords) == 0 {
		return "", Data{}, false
	}
	return types.SeverityWarning, Data{Count: len(b.MissingWords), Words: listWords(b.MissingWords)}, true
}

func extraWords(b Bundle, _ Thresholds) (types.Severity, Data, bool) {
	if len(b.ExtraWords) == 0 {
		return "", Data{}, false
	}
	return types.SeverityInfo, Data{Count: len(b.ExtraWords), Words: listWords(b.ExtraWords)}, true
}

func rateData(r types.SpeechRateMetrics) Data {
	return Data{Value: r.WordsPerMinute, Min: r.IdealMinWPM, Max: r.IdealMaxWPM}
}

func rateTooFast(b Bundle, th Thresholds) (types.Severity, Data, bool) {
	r := b.Metrics.Rate
	if r.Classification != types.RateTooFast {
		return "", Data{}, false
	}
	sev := types.SeverityWarning
	if r.WordsPerMinute > r.IdealMaxWPM*th.RateCriticalFactor {
		sev = types.SeverityCritical
	}
	return sev, rateData(r), true
}

func rateTooSlow(b Bundle, th Thresholds) (types.Severity, Data, bool) {
	r := b.Metrics.Rate
	if r.Classification != types.RateTooSlow || r.WordCount == 0 {
		return "", Data{}, false
	}
	sev := types.SeverityWarning
	if r.WordsPerMinute < r.IdealMinWPM/th.RateCriticalFactor {
		sev = types.SeverityCritical
	}
	return sev, rateData(r), true
}

func rateIdeal(b Bundle, _ Thresholds) (types.Severity, Data, bool) {
	r := b.Metrics.Rate
	if r.Classification != types.RateIdeal {
		return "", Data{}, false
	}
	return types.SeverityInfo, rateData(r), true
}

func pausesExtended(b Bundle, _ Thresholds) (types.Severity, Data, bool) {
	p := b.Metrics.Pauses
	n := p.Bands[types.PauseExtended].Count
	if n == 0 {
		return "", Data{}, false
	}
	return types.SeverityWarning, Data{Count: n, Value: p.LongestSeconds}, true
}

func pausesMany(b Bundle, th Thresholds) (types.Severity, Data, bool) {
	p := b.Metrics.Pauses
	if p.PauseRatio <= th.ManyPausesRatio {
		return "", Data{}, false
	}
	return types.SeverityWarning, Data{Value: p.PauseRatio, Count: p.Count}, true
}

func pausesFew(b Bundle, th Thresholds) (types.Severity, Data, bool) {
	p := b.Metrics.Pauses
	if p.PauseRatio >= th.FewPausesRatio || b.Metrics.DurationSeconds <= th.FewPausesMinLength {
		return "", Data{}, false
	}
	return types.SeverityInfo, Data{Value: p.PauseRatio, Count: p.Count}, true
}

func fillersHigh(b Bundle, th Thresholds) (types.Severity, Data, bool) {
	f := b.Metrics.Fluency
	if f.FillerRatio <= th.FillerWarning {
		return "", Data{}, false
	}
	sev := types.SeverityWarning
	if f.FillerRatio > th.FillerCritical {
		sev = types.SeverityCritical
	}
	return sev, Data{Value: f.FillerRatio, Count: f.FillerCount, Words: listWords(topFillers(f.Fillers))}, true
}

// topFillers orders fillers by frequency, then alphabetically.
func topFillers(fillers map[string]int) []string {
	words := make([]string, 0, len(fillers))
	for w := range fillers {
		words = append(words, w)
	}
	slices.SortFunc(words, func(a, b string) int {
		return cmp.Or(cmp.Compare(fillers[b], fillers[a]), strings.Compare(a, b))
	})
	return words
}

func repetitions(b Bundle, th Thresholds) (types.Severity, Data, bool) {
	n := b.Metrics.Fluency.RepetitionCount
	if n <= th.MaxRepetitions {
		return "", Data{}, false
	}
	return types.SeverityWarning, Data{Count: n}, true
}

func selfCorrections(b Bundle, th Thresholds) (types.Severity, Data, bool) {
	n := b.Metrics.Fluency.SelfCorrectionCount
	if n <= th.MaxSelfCorrections {
		return "", Data{}, false
	}
	return types.SeverityWarning, Data{Count: n}, true
}

func vocabularyRepetitive(b Bundle, th Thresholds) (types.Severity, Data, bool) {
	v := b.Metrics.Vocabulary
	if v.TokenCount < th.RepetitiveMinTokens || v.TypeTokenRatio >= th.RepetitiveTTR {
		return "", Data{}, false
	}
	return types.SeverityInfo, Data{Value: v.TypeTokenRatio}, true
}
