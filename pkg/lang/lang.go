// Package lang holds the per-language tables that drive speech analysis:
// filler words, function words, syllable rules, speaking-rate bands, pause
// bands, detection markers and localized feedback templates.
//
// A [Table] is built once at start-up and is read-only afterwards. Adding a
// language is a data change: supply another profile in the YAML table.
package lang

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/voicemeter/pkg/types"
)

//go:embed profiles.yaml
var builtinProfiles []byte

// Syllable rule names understood by the speech metrics calculator.
const (
	SyllablesPortuguese = "pt"
	SyllablesEnglish    = "en"
	SyllablesGeneric    = "generic"
)

// FallbackCode is the code reported for the profile used when a language has
// no dedicated entry.
const FallbackCode types.LanguageCode = "und"

// ErrUnknownLanguage is returned by [ParseCode] for malformed tags.
var ErrUnknownLanguage = errors.New("lang: unknown language")

// tableFile is the YAML layout of a profile table.
type tableFile struct {
	DefaultLanguage string                 `yaml:"default_language"`
	Fallback        profileFile            `yaml:"fallback"`
	Profiles        map[string]profileFile `yaml:"profiles"`
}

type profileFile struct {
	Name             string            `yaml:"name"`
	Syllables        string            `yaml:"syllables"`
	WPM              bandFile          `yaml:"wpm"`
	PauseBands       pauseBandsFile    `yaml:"pause_bands"`
	ComplexMinLength int               `yaml:"complex_min_length"`
	AccentChars      string            `yaml:"accent_chars"`
	Fillers          []string          `yaml:"fillers"`
	FunctionWords    []string          `yaml:"function_words"`
	ComplexSuffixes  []string          `yaml:"complex_suffixes"`
	Markers          []string          `yaml:"markers"`
	Messages         map[string]string `yaml:"messages"`
}

type bandFile struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

type pauseBandsFile struct {
	Micro  float64 `yaml:"micro"`
	Short  float64 `yaml:"short"`
	Normal float64 `yaml:"normal"`
}

// Table maps language codes to profiles. It is safe for concurrent use
// because nothing mutates it after construction.
type Table struct {
	defaultCode types.LanguageCode
	fallback    *Profile
	profiles    map[types.LanguageCode]*Profile
	codes       []types.LanguageCode
}

var builtin = sync.OnceValues(func() (*Table, error) {
	return LoadTable(strings.NewReader(string(builtinProfiles)))
})

// Default returns the built-in table. It panics if the embedded table is
// malformed, which is a build defect.
func Default() *Table {
	t, err := builtin()
	if err != nil {
		panic(fmt.Sprintf("lang: embedded profiles: %v", err))
	}
	return t
}

// LoadFile reads a profile table from the YAML file at path.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lang: open %q: %w", path, err)
	}
	defer f.Close()
	return LoadTable(f)
}

// LoadTable decodes and validates a YAML profile table from r. Unknown keys
// are rejected.
func LoadTable(r io.Reader) (*Table, error) {
	var tf tableFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&tf); err != nil {
		return nil, fmt.Errorf("lang: decode profiles: %w", err)
	}

	var errs []error
	t := &Table{profiles: make(map[types.LanguageCode]*Profile, len(tf.Profiles))}
	for raw, pf := range tf.Profiles {
		code, err := ParseCode(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("profiles.%s: %w", raw, err))
			continue
		}
		p, err := newProfile(code, pf)
		if err != nil {
			errs = append(errs, fmt.Errorf("profiles.%s: %w", raw, err))
			continue
		}
		t.profiles[code] = p
		t.codes = append(t.codes, code)
	}
	slices.Sort(t.codes)

	fb, err := newProfile(FallbackCode, tf.Fallback)
	if err != nil {
		errs = append(errs, fmt.Errorf("fallback: %w", err))
	}
	t.fallback = fb

	if tf.DefaultLanguage == "" {
		errs = append(errs, errors.New("default_language is required"))
	} else if code, err := ParseCode(tf.DefaultLanguage); err != nil {
		errs = append(errs, fmt.Errorf("default_language: %w", err))
	} else if _, ok := t.profiles[code]; !ok {
		errs = append(errs, fmt.Errorf("default_language %q has no profile", code))
	} else {
		t.defaultCode = code
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("lang: invalid profiles: %w", err)
	}
	return t, nil
}

// ParseCode canonicalizes a language tag such as "pt_br" or "EN-us" to its
// BCP 47 form ("pt-BR", "en-US"). Bare languages stay bare ("pt").
func ParseCode(s string) (types.LanguageCode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty tag", ErrUnknownLanguage)
	}
	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownLanguage, s)
	}
	return types.LanguageCode(tag.String()), nil
}

// DefaultCode returns the language used when nothing else decides.
func (t *Table) DefaultCode() types.LanguageCode { return t.defaultCode }

// WithDefault returns a copy of t whose default language is code. The
// profiles are shared, not copied.
func (t *Table) WithDefault(code string) (*Table, error) {
	c, err := ParseCode(code)
	if err != nil {
		return nil, err
	}
	if _, ok := t.profiles[c]; !ok {
		return nil, fmt.Errorf("%w: no profile for default %q", ErrUnknownLanguage, c)
	}
	cp := *t
	cp.defaultCode = c
	return &cp, nil
}

// Codes returns the languages with a dedicated profile, sorted.
func (t *Table) Codes() []types.LanguageCode { return slices.Clone(t.codes) }

// Fallback returns the language-agnostic profile.
func (t *Table) Fallback() *Profile { return t.fallback }

// Profile returns the profile registered for code, if any.
func (t *Table) Profile(code types.LanguageCode) (*Profile, bool) {
	p, ok := t.profiles[code]
	return p, ok
}

// Lookup returns the profile for code, or the fallback profile when the
// language has none.
func (t *Table) Lookup(code types.LanguageCode) *Profile {
	if p, ok := t.profiles[code]; ok {
		return p
	}
	return t.fallback
}

// Match maps an arbitrary tag onto a registered language. An exact match
// wins; otherwise the first profile (in sorted order) with the same base
// language is chosen, so "pt" and "pt-PT" resolve to "pt-BR". The second
// return value is false when no profile shares the base language.
func (t *Table) Match(s string) (types.LanguageCode, bool) {
	code, err := ParseCode(s)
	if err != nil {
		return t.matchName(s)
	}
	if _, ok := t.profiles[code]; ok {
		return code, true
	}
	base, _ := language.Make(string(code)).Base()
	for _, c := range t.codes {
		if b, _ := language.Make(string(c)).Base(); b == base {
			return c, true
		}
	}
	return "", false
}

// matchName resolves English language names ("portuguese"), which some
// transcription services report instead of tags.
func (t *Table) matchName(s string) (types.LanguageCode, bool) {
	s = strings.TrimSpace(s)
	names := display.English.Languages()
	for _, c := range t.codes {
		base, _ := language.Make(string(c)).Base()
		if strings.EqualFold(names.Name(base), s) {
			return c, true
		}
	}
	return "", false
}

// Resolve picks the language for an utterance: an explicit code first, then
// the transcription collaborator's detected language, then detection from
// the text itself.
func (t *Table) Resolve(explicit types.LanguageCode, detected, text string) types.LanguageCode {
	if explicit != "" {
		if code, ok := t.Match(string(explicit)); ok {
			return code
		}
		if code, err := ParseCode(string(explicit)); err == nil {
			return code
		}
	}
	if detected != "" {
		if code, ok := t.Match(detected); ok {
			return code
		}
	}
	return t.Detect(text)
}
