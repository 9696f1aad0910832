// Package textnorm turns free text into the token sequences used by every
// text-based metric.
//
// Normalization is NFC composition, language-aware lowercasing and
// punctuation stripping. Diacritics are preserved: in Portuguese "é" and
// "e" are different words. Apostrophes inside a word ("don't") and hyphens
// joining two letters ("guarda-chuva") are kept.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/MrWong99/voicemeter/pkg/types"
)

// Normalizer tokenizes text. The zero value is ready to use and it is safe
// for concurrent use.
type Normalizer struct{}

// New returns a [Normalizer].
func New() *Normalizer { return &Normalizer{} }

// Normalize tokenizes text and fails with a [*types.ValidationError] when
// no token survives normalization.
func (n *Normalizer) Normalize(text string, code types.LanguageCode) ([]types.Token, error) {
	tokens := n.Tokenize(text, code)
	if len(tokens) == 0 {
		return nil, &types.ValidationError{Field: "text", Reason: "empty or contains no words"}
	}
	return tokens, nil
}

// Tokenize returns the tokens of text, which may be none.
func (n *Normalizer) Tokenize(text string, code types.LanguageCode) []types.Token {
	text = norm.NFC.String(text)
	// Casers keep state between calls and must not be shared across
	// goroutines.
	lower := cases.Lower(tagFor(code))

	var tokens []types.Token
	for _, chunk := range strings.Fields(text) {
		for _, word := range splitWord(chunk) {
			tokens = append(tokens, types.Token{
				Text:    lower.String(word),
				Surface: word,
				Index:   len(tokens),
			})
		}
	}
	return tokens
}

// Texts returns the normalized text of each token.
func Texts(tokens []types.Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Text
	}
	return out
}

func tagFor(code types.LanguageCode) language.Tag {
	if code == "" {
		return language.Und
	}
	tag, err := language.Parse(string(code))
	if err != nil {
		return language.Und
	}
	return tag
}

// splitWord strips punctuation from a whitespace-delimited chunk, splitting
// it where punctuation separated two words ("rato,roeu").
func splitWord(chunk string) []string {
	runes := []rune(chunk)
	var (
		words []string
		cur   []rune
	)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
		}
		cur = nil
	}
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Mn, r):
			cur = append(cur, r)
		// A joiner only survives between two word characters.
		case isJoiner(r) && len(cur) > 0 && i+1 < len(runes) && isWordRune(runes[i+1]):
			if r == '’' {
				r = '\''
			}
			cur = append(cur, r)
		default:
			flush()
		}
	}
	flush()
	return words
}

func isJoiner(r rune) bool { return r == '\'' || r == '’' || r == '-' }

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsNumber(r) }
