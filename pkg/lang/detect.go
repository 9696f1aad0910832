package lang

import (
	"strings"
	"unicode"

	"github.com/MrWong99/voicemeter/pkg/types"
)

// minDetectScore is the score a language must exceed to be chosen over the
// table default.
const minDetectScore = 5.0

// maxAccentBonus caps the bonus awarded for language-specific characters.
const maxAccentBonus = 5.0

// Detection is the outcome of [Table.DetectScores].
type Detection struct {
	Language   types.LanguageCode
	Confidence float64
	Scores     map[types.LanguageCode]float64
}

// Detect guesses the language of text, returning the table default when the
// evidence is too weak.
func (t *Table) Detect(text string) types.LanguageCode {
	return t.DetectScores(text).Language
}

// DetectScores scores text against every profile. Each score is the share
// of the profile's marker words present in the text (0–100) plus a small
// bonus for the profile's accented characters.
func (t *Table) DetectScores(text string) Detection {
	d := Detection{Language: t.defaultCode, Scores: make(map[types.LanguageCode]float64, len(t.codes))}

	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	if len(words) == 0 {
		return d
	}
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[w] = struct{}{}
	}
	textRunes := len([]rune(lower))

	var best, total float64
	var bestCode types.LanguageCode
	tie := false
	for _, code := range t.codes {
		p := t.profiles[code]
		var score float64
		if len(p.markers) > 0 {
			hits := 0
			for w := range seen {
				if _, ok := p.markers[w]; ok {
					hits++
				}
			}
			score = float64(hits) / float64(len(p.markers)) * 100
		}
		if p.accentChars != "" {
			n := 0
			for _, r := range lower {
				if strings.ContainsRune(p.accentChars, r) {
					n++
				}
			}
			score += min(float64(n)/float64(max(textRunes, 1))*100, maxAccentBonus)
		}
		d.Scores[code] = score
		total += score
		switch {
		case score > best:
			best, bestCode, tie = score, code, false
		case score == best:
			tie = true
		}
	}

	if bestCode == "" || tie || best <= minDetectScore {
		return d
	}
	d.Language = bestCode
	d.Confidence = min(best/(total+0.1), 0.99)
	return d
}
