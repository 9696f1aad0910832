// Package similarity scores how alike two spoken words are.
//
// A [Scorer] combines two signals from matchr:
//
//  1. Phonetic overlap: Double Metaphone codes are computed for both words.
//     Words sharing a code "sound alike" and are accepted at a lower
//     Jaro-Winkler threshold (default 0.70).
//
//  2. Spelling similarity: words without phonetic overlap must clear a
//     higher Jaro-Winkler threshold (default 0.85).
//
// [EditRatio] is the plain normalized Levenshtein similarity used for
// near-duplicate detection.
package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a [Scorer].
type Option func(*Scorer)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for words that
// share a Double Metaphone code. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(s *Scorer) {
		s.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for words without
// phonetic overlap. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(s *Scorer) {
		s.fuzzyThreshold = threshold
	}
}

// Scorer decides whether two words are close variants of each other. It is
// read-only after construction and safe for concurrent use.
type Scorer struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Scorer] configured with opts.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Close reports the Jaro-Winkler similarity of a and b and whether they are
// close enough to count as the same word said differently. Identical words
// are not considered close: they are equal.
func (s *Scorer) Close(a, b string) (score float64, close bool) {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" || a == b {
		return 0, false
	}

	score = matchr.JaroWinkler(a, b, false)
	if codesOverlap(codes(a), codes(b)) {
		return score, score >= s.phoneticThreshold
	}
	return score, score >= s.fuzzyThreshold
}

// EditRatio returns 1 - levenshtein(a, b) / max(len(a), len(b)), counted in
// runes. Two empty strings have ratio 1.
func EditRatio(a, b string) float64 {
	n := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if n == 0 {
		return 1
	}
	return 1 - float64(matchr.Levenshtein(a, b))/float64(n)
}

// codes returns the Double Metaphone codes for word, skipping empty ones
// (produced for words with no consonants).
func codes(word string) map[string]struct{} {
	set := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(word)
	if p != "" {
		set[p] = struct{}{}
	}
	if s != "" {
		set[s] = struct{}{}
	}
	return set
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
