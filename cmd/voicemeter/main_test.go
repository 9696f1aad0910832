package main

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/voicemeter/internal/analysis"
	"github.com/MrWong99/voicemeter/pkg/audio"
)

func writeTemp(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func tone(seconds float64) []byte {
	const rate = 16000
	s := make([]float64, int(seconds*rate))
	for i := range s {
		s[i] = 0.4 * math.Sin(2*math.Pi*200*float64(i)/rate)
	}
	return audio.EncodeWAV(audio.FromSamples(s, rate))
}

func TestRun_Analyze(t *testing.T) {
	dir := t.TempDir()
	wav := writeTemp(t, dir, "take.wav", tone(2))
	expected := writeTemp(t, dir, "script.txt", []byte("The quick brown fox jumps\n"))
	said := writeTemp(t, dir, "said.txt", []byte("the quick brown fox jumps"))

	var stdout, stderr bytes.Buffer
	code := run([]string{"analyze", "-audio", wav, "-expected", expected, "-transcript", said, "-lang", "en-US"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}

	var rec analysis.Record
	if err := json.Unmarshal(stdout.Bytes(), &rec); err != nil {
		t.Fatalf("decode output: %v\n%s", err, stdout.String())
	}
	if rec.Language != "en-US" || rec.SimilarityRatio != 1 {
		t.Errorf("language = %q similarity = %v", rec.Language, rec.SimilarityRatio)
	}
	if math.Abs(rec.WordsPerMinute-150) > 1e-9 {
		t.Errorf("wpm = %v, want 150", rec.WordsPerMinute)
	}
}

func TestRun_AnalyzeErrors(t *testing.T) {
	dir := t.TempDir()
	wav := writeTemp(t, dir, "take.wav", tone(1))
	bad := writeTemp(t, dir, "bad.wav", []byte("nope"))
	said := writeTemp(t, dir, "said.txt", []byte("hi"))

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{"no command", nil, 2, "usage"},
		{"unknown command", []string{"dance"}, 2, "unknown command"},
		{"missing audio", []string{"analyze", "-text", "hi"}, 2, "-audio"},
		{"both texts", []string{"analyze", "-audio", wav, "-text", "hi", "-expected", "x"}, 2, "exactly one"},
		{"no transcript", []string{"analyze", "-audio", wav, "-text", "hi"}, 1, "no transcription backend"},
		{"bad wav", []string{"analyze", "-audio", bad, "-text", "hi"}, 1, "AUDIO_PROCESSING_ERROR"},
		{"bad duration", []string{"analyze", "-audio", wav, "-text", "hi", "-transcript", said, "-duration", "-3"}, 1, "ANALYSIS_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(tt.args, &stdout, &stderr); code != tt.wantCode {
				t.Errorf("exit code = %d, want %d", code, tt.wantCode)
			}
			if !strings.Contains(stderr.String(), tt.wantErr) {
				t.Errorf("stderr = %q, want it to mention %q", stderr.String(), tt.wantErr)
			}
		})
	}
}

func TestLoadTable_DefaultLanguageOverride(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Analysis.DefaultLanguage = "en-US"
	table, err := loadTable(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if table.DefaultCode() != "en-US" {
		t.Errorf("DefaultCode = %q", table.DefaultCode())
	}
}
