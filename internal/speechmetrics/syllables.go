package speechmetrics

import (
	"strings"
	"unicode"

	"github.com/MrWong99/voicemeter/pkg/lang"
)

// SyllableCounter estimates the syllables in one normalized word.
type SyllableCounter func(word string) int

// CounterFor returns the counter for a syllable rule name. Unknown names get
// the generic counter.
func CounterFor(rule string) SyllableCounter {
	switch rule {
	case lang.SyllablesPortuguese:
		return PortugueseSyllables
	case lang.SyllablesEnglish:
		return EnglishSyllables
	default:
		return GenericSyllables
	}
}

const (
	ptVowels = "aeiouáàâãéêíóôõú"
	enVowels = "aeiouy"
)

// Falling diphthongs that form a single Portuguese syllable.
var ptDiphthongs = map[string]struct{}{
	"ai": {}, "au": {}, "ei": {}, "eu": {}, "iu": {}, "oi": {}, "ou": {}, "ui": {},
	"ão": {}, "ãe": {}, "õe": {}, "éu": {}, "éi": {}, "ói": {},
}

var enExceptions = map[string]int{
	"the": 1, "be": 1, "are": 1, "were": 1, "have": 1,
	"give": 1, "live": 1, "love": 1, "move": 1, "come": 1,
}

// GenericSyllables counts vowel groups, treating any vowel-like letter
// (including accented ones) as a vowel. Words without vowels count as one.
func GenericSyllables(word string) int {
	if word == "" {
		return 0
	}
	count, prev := 0, false
	for _, r := range word {
		v := isGenericVowel(r)
		if v && !prev {
			count++
		}
		prev = v
	}
	return max(1, count)
}

func isGenericVowel(r rune) bool {
	if strings.ContainsRune(ptVowels+"yàèìòùäëïöüåæøœ", r) {
		return true
	}
	return unicode.Is(unicode.Mn, r)
}

// PortugueseSyllables counts syllable nuclei. Inside a run of vowels a new
// syllable starts at every vowel except the second half of a diphthong, so
// "roeu" is ro-eu and "saía" is sa-í-a. A "u" between q/g and a vowel
// ("que", "quando", "água") is a glide and never a nucleus.
func PortugueseSyllables(word string) int {
	if word == "" {
		return 0
	}
	runes := []rune(word)
	count := 0
	// inNucleus is true while the previous rune opened a nucleus that may
	// still absorb a diphthong glide.
	inNucleus, glided := false, false
	for i, r := range runes {
		if !strings.ContainsRune(ptVowels, r) {
			inNucleus, glided = false, false
			continue
		}
		if r == 'u' && i > 0 && (runes[i-1] == 'q' || runes[i-1] == 'g') &&
			i+1 < len(runes) && strings.ContainsRune(ptVowels, runes[i+1]) {
			continue
		}
		if inNucleus && !glided {
			if _, ok := ptDiphthongs[string(runes[i-1:i+1])]; ok {
				glided = true
				continue
			}
		}
		count++
		inNucleus, glided = true, false
	}
	return max(1, count)
}

// EnglishSyllables counts vowel groups with adjustments for silent final
// "e", consonant + "le" endings and "-ed" endings.
func EnglishSyllables(word string) int {
	if word == "" {
		return 0
	}
	if n, ok := enExceptions[word]; ok {
		return n
	}
	count, prev := 0, false
	for _, r := range word {
		v := strings.ContainsRune(enVowels, r)
		if v && !prev {
			count++
		}
		prev = v
	}

	runes := []rune(word)
	n := len(runes)
	switch {
	case n > 2 && strings.HasSuffix(word, "le") && !strings.ContainsRune(enVowels, runes[n-3]):
		// "table": the final e is voiced through the l, keep it.
	case strings.HasSuffix(word, "e") && count > 1:
		count--
	}
	if strings.HasSuffix(word, "ed") && count > 1 &&
		!strings.HasSuffix(word, "ted") && !strings.HasSuffix(word, "ded") {
		count--
	}
	return max(1, count)
}
