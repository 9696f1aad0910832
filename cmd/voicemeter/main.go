// Command voicemeter analyses rehearsed speech: it compares a recording's
// transcript with the text the speaker meant to say and reports accuracy,
// pace, pauses, fluency and localized coaching feedback.
//
// Usage:
//
//	voicemeter analyze -audio take.wav -expected script.txt [-transcript said.txt] [-lang pt-BR] [-config config.yaml]
//	voicemeter serve [-config config.yaml]
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MrWong99/voicemeter/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	switch args[0] {
	case "analyze":
		return runAnalyze(args[1:], stdout, stderr)
	case "serve":
		return runServe(args[1:], stderr)
	case "-h", "--help", "help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "voicemeter: unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `usage: voicemeter <command> [flags]

commands:
  analyze   analyse one recording and print the result as JSON
  serve     run the upload API and the ops endpoints

run "voicemeter <command> -h" for the flags of a command.
`)
}

// loadConfig reads path, or returns the defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadFromReader(emptyReader{})
	}
	return config.Load(path)
}

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, io.EOF }

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger returns a text logger writing to w whose level can be changed
// later through the returned LevelVar.
func newLogger(w io.Writer, level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lv := new(slog.LevelVar)
	lv.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv})), lv
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
