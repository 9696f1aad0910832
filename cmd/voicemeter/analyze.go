package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/voicemeter/internal/analysis"
	"github.com/MrWong99/voicemeter/internal/observe"
	"github.com/MrWong99/voicemeter/internal/transcribe"
	"github.com/MrWong99/voicemeter/pkg/audio"
	"github.com/MrWong99/voicemeter/pkg/types"
)

type analyzeFlags struct {
	config     string
	audio      string
	expected   string
	text       string
	transcript string
	lang       string
	duration   float64
	compact    bool
}

func runAnalyze(args []string, stdout, stderr io.Writer) int {
	var f analyzeFlags
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.config, "config", "", "optional YAML configuration file")
	fs.StringVar(&f.audio, "audio", "", "16-bit PCM WAV recording (required)")
	fs.StringVar(&f.expected, "expected", "", "file holding the text the speaker meant to say")
	fs.StringVar(&f.text, "text", "", "expected text given inline instead of -expected")
	fs.StringVar(&f.transcript, "transcript", "", "file holding what was said; transcribed via the config when omitted")
	fs.StringVar(&f.lang, "lang", "", "language code such as pt-BR; detected when omitted")
	fs.Float64Var(&f.duration, "duration", 0, "recording length in seconds; taken from the WAV when 0")
	fs.BoolVar(&f.compact, "compact", false, "print JSON on one line")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if f.audio == "" || (f.expected == "") == (f.text == "") {
		fmt.Fprintln(stderr, "voicemeter analyze: -audio and exactly one of -expected or -text are required")
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(f.config)
	if err != nil {
		fmt.Fprintf(stderr, "voicemeter: %v\n", err)
		return 1
	}
	logger, _ := newLogger(stderr, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(cfg, observe.DefaultMetrics())
	if err != nil {
		slog.Error("failed to build analysis engine", "err", err)
		return 1
	}

	rec, err := analyzeOnce(ctx, eng, f, cfg.Analysis.EnvelopePoints)
	if err != nil {
		var coded types.Coded
		if errors.As(err, &coded) {
			fmt.Fprintf(stderr, "voicemeter: %s: %v\n", coded.Code(), err)
		} else {
			fmt.Fprintf(stderr, "voicemeter: %v\n", err)
		}
		return 1
	}

	enc := json.NewEncoder(stdout)
	if !f.compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(rec); err != nil {
		fmt.Fprintf(stderr, "voicemeter: write result: %v\n", err)
		return 1
	}
	return 0
}

func analyzeOnce(ctx context.Context, eng *engine, f analyzeFlags, points int) (analysis.Record, error) {
	pcm, err := readWAV(f.audio)
	if err != nil {
		return analysis.Record{}, err
	}

	expected := f.text
	if f.expected != "" {
		if expected, err = readText(f.expected); err != nil {
			return analysis.Record{}, err
		}
	}

	var transcript, detected string
	switch {
	case f.transcript != "":
		if transcript, err = readText(f.transcript); err != nil {
			return analysis.Record{}, err
		}
	case eng.transcriber != nil:
		tr, err := eng.transcriber.Transcribe(ctx, transcribe.Request{Audio: pcm, Language: f.lang})
		if err != nil {
			return analysis.Record{}, err
		}
		transcript, detected = tr.Text, tr.Language
	default:
		return analysis.Record{}, errors.New("no -transcript given and no transcription backend configured")
	}

	duration := f.duration
	if duration == 0 {
		duration = pcm.Seconds()
	}

	res, err := eng.analyzer.Analyze(ctx, types.Utterance{
		ExpectedText:     expected,
		TranscribedText:  transcript,
		LanguageCode:     types.LanguageCode(f.lang),
		DetectedLanguage: detected,
		Waveform:         pcm.Samples(),
		SampleRate:       pcm.SampleRate,
		DurationSeconds:  duration,
	})
	if err != nil {
		return analysis.Record{}, err
	}
	return analysis.NewRecord(uuid.New(), time.Now(), res, points), nil
}

func readWAV(path string) (audio.PCM, error) {
	fh, err := os.Open(path)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("open audio: %w", err)
	}
	defer fh.Close()
	pcm, err := audio.DecodeWAV(fh)
	if err != nil {
		return audio.PCM{}, &types.AudioProcessingError{Reason: "cannot decode " + path, Err: err}
	}
	return pcm, nil
}

func readText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
