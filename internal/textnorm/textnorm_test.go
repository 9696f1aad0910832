package textnorm_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/voicemeter/internal/textnorm"
	"github.com/MrWong99/voicemeter/pkg/types"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		code types.LanguageCode
		want []string
	}{
		{"simple", "O rato roeu a roupa do Rei de Roma.", "pt-BR", []string{"o", "rato", "roeu", "a", "roupa", "do", "rei", "de", "roma"}},
		{"accents kept", "É você, José?", "pt-BR", []string{"é", "você", "josé"}},
		{"punctuation splits", "rato,roeu;a...roupa", "pt-BR", []string{"rato", "roeu", "a", "roupa"}},
		{"apostrophes", "Don't ‘quote’ me", "en-US", []string{"don't", "quote", "me"}},
		{"curly apostrophe", "it’s fine", "en-US", []string{"it's", "fine"}},
		{"hyphenated", "o guarda-chuva - e - o disse-me-disse", "pt-BR", []string{"o", "guarda-chuva", "e", "o", "disse-me-disse"}},
		{"whitespace collapse", "  one\t\ttwo\nthree  ", "en-US", []string{"one", "two", "three"}},
		{"numbers", "chapter 3, verse 16", "en-US", []string{"chapter", "3", "verse", "16"}},
		{"only punctuation", "... !!! ?", "en-US", nil},
		{"unknown language", "Hello World", "", []string{"hello", "world"}},
	}
	n := textnorm.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := textnorm.Texts(n.Tokenize(tt.text, tt.code))
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("Tokenize(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestTokenize_NFC(t *testing.T) {
	t.Parallel()

	// "é" as e + combining acute accent must equal the precomposed form.
	decomposed := "cafe\u0301"
	got := textnorm.New().Tokenize(decomposed, "pt-BR")
	if len(got) != 1 || got[0].Text != "café" {
		t.Fatalf("Tokenize(decomposed) = %+v, want single token \"café\"", got)
	}
}

func TestTokenize_SurfaceAndIndex(t *testing.T) {
	t.Parallel()

	got := textnorm.New().Tokenize("Hello, World!", "en-US")
	want := []types.Token{
		{Text: "hello", Surface: "Hello", Index: 0},
		{Text: "world", Surface: "World", Index: 1},
	}
	if !slices.Equal(got, want) {
		t.Errorf("Tokenize = %+v, want %+v", got, want)
	}
}

func TestTokenize_Deterministic(t *testing.T) {
	t.Parallel()

	n := textnorm.New()
	text := "Então, tipo... eu não sei, né?"
	a := n.Tokenize(text, "pt-BR")
	b := n.Tokenize(text, "pt-BR")
	if !slices.Equal(a, b) {
		t.Errorf("Tokenize is not deterministic: %+v vs %+v", a, b)
	}
}

func TestNormalize_Empty(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "   ", "\n\t", "?!"} {
		_, err := textnorm.New().Normalize(text, "pt-BR")
		var ve *types.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("Normalize(%q) error = %v, want ValidationError", text, err)
		}
	}
}
