package lang

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/voicemeter/pkg/types"
)

// Band is an inclusive range of words per minute.
type Band struct {
	Min float64
	Max float64
}

// PauseBands holds the upper bounds, in seconds, of the micro, short and
// normal pause bands. Anything at or above Normal is extended.
type PauseBands struct {
	Micro  float64
	Short  float64
	Normal float64
}

// Classify returns the band a pause of d seconds falls into.
func (b PauseBands) Classify(d float64) types.PauseBand {
	switch {
	case d < b.Micro:
		return types.PauseMicro
	case d < b.Short:
		return types.PauseShort
	case d < b.Normal:
		return types.PauseNormal
	default:
		return types.PauseExtended
	}
}

// Profile is the read-only configuration for one language. All sets are
// private so analysis code cannot mutate a shared profile.
type Profile struct {
	code             types.LanguageCode
	name             string
	syllables        string
	wpm              Band
	pauseBands       PauseBands
	complexMinLength int
	accentChars      string
	fillers          [][]string
	functionWords    map[string]struct{}
	complexSuffixes  []string
	markers          map[string]struct{}
	messages         map[string]string
}

func newProfile(code types.LanguageCode, pf profileFile) (*Profile, error) {
	var errs []error
	switch pf.Syllables {
	case SyllablesPortuguese, SyllablesEnglish, SyllablesGeneric:
	case "":
		pf.Syllables = SyllablesGeneric
	default:
		errs = append(errs, fmt.Errorf("syllables %q is not one of pt, en, generic", pf.Syllables))
	}
	if pf.WPM.Min <= 0 || pf.WPM.Max <= pf.WPM.Min {
		errs = append(errs, fmt.Errorf("wpm band [%g, %g] must satisfy 0 < min < max", pf.WPM.Min, pf.WPM.Max))
	}
	pb := pf.PauseBands
	if pb.Micro <= 0 || pb.Short <= pb.Micro || pb.Normal <= pb.Short {
		errs = append(errs, fmt.Errorf("pause_bands must satisfy 0 < micro < short < normal (got %g, %g, %g)", pb.Micro, pb.Short, pb.Normal))
	}
	if pf.ComplexMinLength <= 0 {
		pf.ComplexMinLength = 10
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	p := &Profile{
		code:             code,
		name:             pf.Name,
		syllables:        pf.Syllables,
		wpm:              Band{Min: pf.WPM.Min, Max: pf.WPM.Max},
		pauseBands:       PauseBands{Micro: pb.Micro, Short: pb.Short, Normal: pb.Normal},
		complexMinLength: pf.ComplexMinLength,
		accentChars:      pf.AccentChars,
		functionWords:    toSet(pf.FunctionWords),
		markers:          toSet(pf.Markers),
		messages:         maps.Clone(pf.Messages),
	}
	for _, f := range pf.Fillers {
		if words := strings.Fields(strings.ToLower(f)); len(words) > 0 {
			p.fillers = append(p.fillers, words)
		}
	}
	// Longest fillers first so "you know" wins over a single-word match.
	slices.SortStableFunc(p.fillers, func(a, b []string) int { return len(b) - len(a) })
	for _, s := range pf.ComplexSuffixes {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			p.complexSuffixes = append(p.complexSuffixes, s)
		}
	}
	return p, nil
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

// Code returns the profile's language code.
func (p *Profile) Code() types.LanguageCode { return p.code }

// Name returns the human-readable language name.
func (p *Profile) Name() string { return p.name }

// SyllableRule names the syllable heuristic for this language.
func (p *Profile) SyllableRule() string { return p.syllables }

// IdealWPM returns the ideal speaking-rate band.
func (p *Profile) IdealWPM() Band { return p.wpm }

// PauseBands returns the pause duration bands.
func (p *Profile) PauseBands() PauseBands { return p.pauseBands }

// IsFunctionWord reports whether the normalized word is a grammatical word.
func (p *Profile) IsFunctionWord(word string) bool {
	_, ok := p.functionWords[word]
	return ok
}

// IsComplex reports whether the normalized word counts as complex: long, or
// ending in one of the language's derivational suffixes.
func (p *Profile) IsComplex(word string) bool {
	if utf8.RuneCountInString(word) >= p.complexMinLength {
		return true
	}
	for _, s := range p.complexSuffixes {
		if strings.HasSuffix(word, s) && word != s {
			return true
		}
	}
	return false
}

// MatchFiller reports the length, in tokens, of the filler starting at
// words[0], or zero when none starts there.
func (p *Profile) MatchFiller(words []string) int {
	for _, f := range p.fillers {
		if len(f) <= len(words) && slices.Equal(f, words[:len(f)]) {
			return len(f)
		}
	}
	return 0
}

// Message returns the feedback template for rule.
func (p *Profile) Message(rule string) (string, bool) {
	m, ok := p.messages[rule]
	return m, ok
}
