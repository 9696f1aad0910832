// Package speechmetrics turns tokens, duration and pauses into rate, pause,
// vocabulary and fluency metrics.
//
// Every language-dependent value (rate bands, pause bands, filler words,
// function words, syllable rules) comes from the injected [lang.Table]; the
// calculator itself holds no per-language constants.
package speechmetrics

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/voicemeter/internal/similarity"
	"github.com/MrWong99/voicemeter/pkg/lang"
	"github.com/MrWong99/voicemeter/pkg/types"
)

// Self-corrections are consecutive words whose edit similarity lies strictly
// between these bounds: related, but not the same word.
const (
	selfCorrectionMin = 0.5
	selfCorrectionMax = 0.9

	// selfCorrectionMinRunes skips short words, where one edit already
	// changes most of the word.
	selfCorrectionMinRunes = 3

	topTokens = 5
)

// Score weights for the overall grade.
const (
	weightRate       = 0.25
	weightPauses     = 0.15
	weightVocabulary = 0.25
	weightFluency    = 0.35
)

// Calculator computes [types.Metrics]. It is read-only after construction
// and safe for concurrent use.
type Calculator struct {
	table *lang.Table
}

// New returns a [Calculator] backed by table.
func New(table *lang.Table) *Calculator {
	return &Calculator{table: table}
}

// ComputeOption adjusts a single [Calculator.Compute] call.
type ComputeOption func(*computeParams)

type computeParams struct {
	scripted map[int]bool
}

// WithScripted marks transcript tokens, by [types.Token.Index], that read a
// word of the expected text. A filler word at such a position is part of
// the script and is not counted as a filler.
func WithScripted(indexes ...int) ComputeOption {
	return func(p *computeParams) {
		if p.scripted == nil {
			p.scripted = make(map[int]bool, len(indexes))
		}
		for _, i := range indexes {
			p.scripted[i] = true
		}
	}
}

// ScriptedIndexes returns the transcript token indexes that an alignment
// matched against the expected text.
func ScriptedIndexes(entries []types.AlignmentEntry) []int {
	var out []int
	for _, e := range entries {
		if e.Status == types.StatusMatched && e.Actual != nil {
			out = append(out, e.Actual.Index)
		}
	}
	return out
}

// Compute derives the metric bundle for one utterance. tokens are the
// normalized transcript tokens and pauses come from the acoustic analyzer.
// It fails with [*types.AnalysisError] when durationSeconds is not a
// positive finite number or the pauses do not fit inside it.
func (c *Calculator) Compute(tokens []types.Token, durationSeconds float64, pauses []types.PauseInterval, code types.LanguageCode, opts ...ComputeOption) (types.Metrics, error) {
	if !(durationSeconds > 0) || math.IsInf(durationSeconds, 0) {
		return types.Metrics{}, &types.AnalysisError{
			Stage:  "speech_rate",
			Reason: fmt.Sprintf("duration must be positive, got %v", durationSeconds),
		}
	}
	var params computeParams
	for _, o := range opts {
		o(&params)
	}
	profile := c.table.Lookup(code)
	words := make([]string, len(tokens))
	scripted := make([]bool, len(tokens))
	for i, t := range tokens {
		words[i] = t.Text
		scripted[i] = params.scripted[t.Index]
	}

	pm, err := pauseMetrics(pauses, durationSeconds, profile.PauseBands())
	if err != nil {
		return types.Metrics{}, err
	}
	m := types.Metrics{
		Language:        code,
		DurationSeconds: durationSeconds,
		Rate:            rateMetrics(words, durationSeconds, pm.TotalDurationSeconds, profile),
		Pauses:          pm,
		Vocabulary:      vocabularyMetrics(words, profile),
	}
	m.Fluency = fluencyMetrics(words, scripted, durationSeconds, pm, profile)
	m.Scores = scores(m)
	return m, nil
}

func rateMetrics(words []string, duration, pauseTotal float64, p *lang.Profile) types.SpeechRateMetrics {
	count := CounterFor(p.SyllableRule())
	syllables := 0
	for _, w := range words {
		syllables += count(w)
	}
	band := p.IdealWPM()
	r := types.SpeechRateMetrics{
		WordCount:          len(words),
		SyllableCount:      syllables,
		WordsPerMinute:     float64(len(words)) / (duration / 60),
		SyllablesPerSecond: float64(syllables) / duration,
		IdealMinWPM:        band.Min,
		IdealMaxWPM:        band.Max,
	}
	if speaking := duration - pauseTotal; speaking > 0 {
		r.ArticulationRate = float64(syllables) / speaking * 60
	}
	switch {
	case r.WordsPerMinute < band.Min:
		r.Classification = types.RateTooSlow
	case r.WordsPerMinute > band.Max:
		r.Classification = types.RateTooFast
	default:
		r.Classification = types.RateIdeal
	}
	return r
}

func pauseMetrics(pauses []types.PauseInterval, duration float64, bands lang.PauseBands) (types.PauseMetrics, error) {
	pm := types.PauseMetrics{
		Count:  len(pauses),
		Bands:  make(map[types.PauseBand]types.BandStats, len(types.PauseBands)),
		Pauses: make([]types.ClassifiedPause, 0, len(pauses)),
	}
	for _, b := range types.PauseBands {
		pm.Bands[b] = types.BandStats{}
	}
	var prevEnd float64
	for i, p := range pauses {
		if p.StartSeconds < prevEnd || p.EndSeconds > duration+1e-9 || p.DurationSeconds < 0 {
			return types.PauseMetrics{}, &types.AnalysisError{
				Stage:  "pauses",
				Reason: fmt.Sprintf("pause %d [%.3f, %.3f] overlaps its predecessor or exceeds duration %.3f", i, p.StartSeconds, p.EndSeconds, duration),
			}
		}
		prevEnd = p.EndSeconds

		band := bands.Classify(p.DurationSeconds)
		st := pm.Bands[band]
		st.Count++
		st.TotalDurationSeconds += p.DurationSeconds
		pm.Bands[band] = st

		pm.Pauses = append(pm.Pauses, types.ClassifiedPause{PauseInterval: p, Band: band})
		pm.TotalDurationSeconds += p.DurationSeconds
		pm.LongestSeconds = max(pm.LongestSeconds, p.DurationSeconds)
	}
	for b, st := range pm.Bands {
		if st.Count > 0 {
			st.AverageSeconds = st.TotalDurationSeconds / float64(st.Count)
			pm.Bands[b] = st
		}
	}
	if pm.Count > 0 {
		pm.AverageSeconds = pm.TotalDurationSeconds / float64(pm.Count)
	}
	pm.PausesPerMinute = float64(pm.Count) / (duration / 60)
	pm.PauseRatio = pm.TotalDurationSeconds / duration
	return pm, nil
}

func vocabularyMetrics(words []string, p *lang.Profile) types.VocabularyMetrics {
	v := types.VocabularyMetrics{TokenCount: len(words), Level: types.VocabularyBasic}
	if len(words) == 0 {
		return v
	}
	freq := make(map[string]int, len(words))
	content, runes := 0, 0
	for _, w := range words {
		freq[w]++
		runes += utf8.RuneCountInString(w)
		if p.IsComplex(w) {
			v.ComplexWordCount++
		}
		if !p.IsFunctionWord(w) {
			content++
		}
	}
	n := float64(len(words))
	v.DistinctCount = len(freq)
	v.TypeTokenRatio = float64(len(freq)) / n
	v.RootTTR = float64(len(freq)) / math.Sqrt(n)
	v.AverageWordLength = float64(runes) / n
	v.ComplexWordRatio = float64(v.ComplexWordCount) / n
	v.LexicalDensity = float64(content) / n

	switch {
	case v.TypeTokenRatio >= 0.7:
		v.Level = types.VocabularyExpert
	case v.TypeTokenRatio >= 0.5:
		v.Level = types.VocabularyAdvanced
	case v.TypeTokenRatio >= 0.3:
		v.Level = types.VocabularyIntermediate
	}

	type wc struct {
		word  string
		count int
	}
	var repeated []wc
	for w, c := range freq {
		if c > 1 && !p.IsFunctionWord(w) {
			repeated = append(repeated, wc{w, c})
		}
	}
	slices.SortFunc(repeated, func(a, b wc) int {
		return cmp.Or(cmp.Compare(b.count, a.count), strings.Compare(a.word, b.word))
	})
	for _, r := range repeated[:min(len(repeated), topTokens)] {
		v.MostFrequentTokens = append(v.MostFrequentTokens, r.word)
	}
	return v
}

func fluencyMetrics(words []string, scripted []bool, duration float64, pm types.PauseMetrics, p *lang.Profile) types.FluencyMetrics {
	f := types.FluencyMetrics{}
	for i := 0; i < len(words); {
		if n := p.MatchFiller(words[i:]); n > 0 && !slices.Contains(scripted[i:i+n], true) {
			if f.Fillers == nil {
				f.Fillers = make(map[string]int)
			}
			f.Fillers[strings.Join(words[i:i+n], " ")]++
			f.FillerCount++
			i += n
			continue
		}
		i++
	}
	for i := 1; i < len(words); i++ {
		prev, cur := words[i-1], words[i]
		if prev == cur {
			f.RepetitionCount++
			continue
		}
		if isSelfCorrection(prev, cur, p) {
			f.SelfCorrectionCount++
		}
	}

	// Hesitations are pauses in the longest band.
	f.HesitationRate = float64(pm.Bands[types.PauseExtended].Count) / duration * 60

	if len(words) > 0 {
		n := float64(len(words))
		f.FillerRatio = float64(f.FillerCount) / n
		penalty := float64(f.RepetitionCount)/n*20 +
			float64(f.SelfCorrectionCount)/n*15 +
			f.HesitationRate*5
		f.Score = clamp(100 - penalty)
	}
	return f
}

func isSelfCorrection(prev, cur string, p *lang.Profile) bool {
	if len([]rune(prev)) < selfCorrectionMinRunes || len([]rune(cur)) < selfCorrectionMinRunes {
		return false
	}
	if p.IsFunctionWord(prev) || p.IsFunctionWord(cur) {
		return false
	}
	r := similarity.EditRatio(prev, cur)
	return r > selfCorrectionMin && r < selfCorrectionMax
}

func scores(m types.Metrics) types.Scores {
	var s types.Scores

	rate := m.Rate
	switch rate.Classification {
	case types.RateIdeal:
		s.Rate = 100
	case types.RateTooSlow:
		s.Rate = clamp(100 - (rate.IdealMinWPM-rate.WordsPerMinute)*2)
	case types.RateTooFast:
		s.Rate = clamp(100 - (rate.WordsPerMinute-rate.IdealMaxWPM)*2)
	}

	switch r := m.Pauses.PauseRatio; {
	case r < 0.1:
		s.Pauses = 80
	case r <= 0.25:
		s.Pauses = 100
	default:
		s.Pauses = 100 - (r-0.25)*200
	}
	if m.Pauses.LongestSeconds > 3 {
		s.Pauses -= 10
	}
	s.Pauses = clamp(s.Pauses)

	v := m.Vocabulary
	s.Vocabulary = clamp(50 + v.TypeTokenRatio*30 + min(v.ComplexWordRatio*50, 15) - m.Fluency.FillerRatio*50)
	s.Fluency = m.Fluency.Score

	s.Overall = clamp(s.Rate*weightRate + s.Pauses*weightPauses + s.Vocabulary*weightVocabulary + s.Fluency*weightFluency)
	return s
}

func clamp(v float64) float64 { return max(0, min(100, v)) }
