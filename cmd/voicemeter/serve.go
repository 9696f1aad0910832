package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voicemeter/internal/api"
	"github.com/MrWong99/voicemeter/internal/config"
	"github.com/MrWong99/voicemeter/internal/health"
	"github.com/MrWong99/voicemeter/internal/observe"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func runServe(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(stderr, "voicemeter: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(stderr, "voicemeter: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, level := newLogger(stderr, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:           "voicemeter",
		ServiceVersion:        version,
		DefaultLanguage:       cfg.Analysis.DefaultLanguage,
		TranscriptionBackends: cfg.Transcription.BackendNames(),
		APIAddr:               cfg.Server.APIAddr,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Engine ────────────────────────────────────────────────────────────────
	eng, err := buildEngine(cfg, metrics)
	if err != nil {
		slog.Error("failed to build analysis engine", "err", err)
		return 1
	}

	checks := []health.Checker{{
		Name: "languages",
		Check: func(context.Context) error {
			if len(eng.table.Codes()) == 0 {
				return errors.New("no language profiles loaded")
			}
			return nil
		},
	}}
	if eng.transcriber != nil {
		checks = append(checks, health.Checker{Name: "transcription", Check: eng.transcriber.Ready})
	}
	hc := health.New(checks...)

	// ── Servers ───────────────────────────────────────────────────────────────
	apiOpts := []api.Option{
		api.WithMetrics(metrics),
		api.WithLanguages(eng.table.Codes()),
		api.WithEnvelopePoints(cfg.Analysis.EnvelopePoints),
		api.WithMaxUploadBytes(int64(cfg.Server.MaxUploadMB) << 20),
		api.WithCORSOrigins(cfg.Server.CORSOrigins...),
	}
	if eng.transcriber != nil {
		apiOpts = append(apiOpts, api.WithTranscriber(eng.transcriber))
	}
	apiSrv := &http.Server{
		Addr:              cfg.Server.APIAddr,
		Handler:           api.New(eng.analyzer, apiOpts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	opsMux := http.NewServeMux()
	hc.Register(opsMux)
	opsMux.Handle("GET /metrics", promhttp.Handler())
	opsSrv := &http.Server{
		Addr:              cfg.Server.OpsAddr,
		Handler:           opsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// ── Config reload ─────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if len(d.RestartRequired) > 0 {
			slog.Warn("configuration changes take effect after a restart", "sections", d.RestartRequired)
		}
	})
	if err != nil {
		slog.Error("failed to watch config", "err", err)
		return 1
	}

	printStartupSummary(stderr, cfg, eng)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listen(apiSrv, "api") })
	g.Go(func() error { return listen(opsSrv, "ops") })
	g.Go(func() error {
		watcher.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, draining…")
		hc.SetDraining(true)

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(apiSrv.Shutdown(sctx), opsSrv.Shutdown(sctx))
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// listen serves srv until it is shut down.
func listen(srv *http.Server, name string) error {
	slog.Info("listening", "server", name, "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(w io.Writer, cfg *config.Config, eng *engine) {
	fmt.Fprintln(w, "╔════════════════════════════════════════╗")
	fmt.Fprintln(w, "║       voicemeter startup summary       ║")
	fmt.Fprintln(w, "╠════════════════════════════════════════╣")
	printRow(w, "Version", version)
	printRow(w, "API addr", cfg.Server.APIAddr)
	printRow(w, "Ops addr", cfg.Server.OpsAddr)
	printRow(w, "Languages", fmt.Sprint(len(eng.table.Codes())))
	printRow(w, "Default lang", string(eng.table.DefaultCode()))
	backend := "(caller supplies)"
	if eng.transcriber != nil {
		backend = fmt.Sprint(eng.transcriber.Names())
	}
	printRow(w, "Transcription", backend)
	fmt.Fprintln(w, "╚════════════════════════════════════════╝")
}

func printRow(w io.Writer, label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Fprintf(w, "║  %-14s  : %-19s ║\n", label, value)
}
