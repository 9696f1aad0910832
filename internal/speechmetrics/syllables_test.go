package speechmetrics_test

import (
	"testing"

	"github.com/MrWong99/voicemeter/internal/speechmetrics"
	"github.com/MrWong99/voicemeter/pkg/lang"
)

func TestPortugueseSyllables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		word string
		want int
	}{
		{"rato", 2},
		{"roeu", 2},
		{"roupa", 2},
		{"rei", 1},
		{"então", 2},
		{"que", 1},
		{"quando", 2},
		{"água", 2},
		{"saía", 3},
		{"comunicação", 5},
		{"você", 2},
		{"pneu", 1},
		{"", 0},
	}
	for _, tt := range tests {
		if got := speechmetrics.PortugueseSyllables(tt.word); got != tt.want {
			t.Errorf("PortugueseSyllables(%q) = %d, want %d", tt.word, got, tt.want)
		}
	}
}

func TestEnglishSyllables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		word string
		want int
	}{
		{"the", 1},
		{"make", 1},
		{"table", 2},
		{"people", 2},
		{"walked", 1},
		{"wanted", 2},
		{"beautiful", 3},
		{"rhythm", 1},
		{"hello", 2},
		{"", 0},
	}
	for _, tt := range tests {
		if got := speechmetrics.EnglishSyllables(tt.word); got != tt.want {
			t.Errorf("EnglishSyllables(%q) = %d, want %d", tt.word, got, tt.want)
		}
	}
}

func TestGenericSyllables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		word string
		want int
	}{
		{"bonjour", 2},
		{"über", 2},
		{"42", 1},
		{"", 0},
	}
	for _, tt := range tests {
		if got := speechmetrics.GenericSyllables(tt.word); got != tt.want {
			t.Errorf("GenericSyllables(%q) = %d, want %d", tt.word, got, tt.want)
		}
	}
}

func TestCounterFor(t *testing.T) {
	t.Parallel()

	if got := speechmetrics.CounterFor(lang.SyllablesPortuguese)("saía"); got != 3 {
		t.Errorf("pt counter(saía) = %d, want 3", got)
	}
	if got := speechmetrics.CounterFor("unknown")("make"); got != 2 {
		t.Errorf("fallback counter(make) = %d, want 2 vowel groups", got)
	}
}
