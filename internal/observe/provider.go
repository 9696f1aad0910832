package observe

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Resource attribute keys describing how this voicemeter instance analyses.
const (
	ResDefaultLanguage = attribute.Key("voicemeter.default_language")
	ResTranscription   = attribute.Key("voicemeter.transcription.backends")
	ResAPIAddr         = attribute.Key("voicemeter.api.addr")
)

// ProviderConfig describes the process to the telemetry backends.
type ProviderConfig struct {
	// ServiceName defaults to "voicemeter".
	ServiceName    string
	ServiceVersion string

	// DefaultLanguage is the language assumed when nothing else decides.
	DefaultLanguage string

	// TranscriptionBackends lists the transcribers in failover order. Empty
	// means callers supply transcripts.
	TranscriptionBackends []string

	// APIAddr is the listen address of the upload API.
	APIAddr string

	// TraceExporter receives finished spans. Nil records spans without
	// exporting them.
	TraceExporter sdktrace.SpanExporter
}

// newResource builds the resource attached to every metric and span.
func newResource(ctx context.Context, cfg ProviderConfig) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "voicemeter"
	}
	backends := cfg.TranscriptionBackends
	if len(backends) == 0 {
		backends = []string{"none"}
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(name),
		ResTranscription.StringSlice(backends),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	if cfg.DefaultLanguage != "" {
		attrs = append(attrs, ResDefaultLanguage.String(cfg.DefaultLanguage))
	}
	if cfg.APIAddr != "" {
		attrs = append(attrs, ResAPIAddr.String(cfg.APIAddr))
	}

	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithProcessRuntimeName(),
		resource.WithProcessRuntimeVersion(),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: build resource: %w", err)
	}
	return res, nil
}

// InitProvider installs global meter and tracer providers described by cfg.
// Metrics are exposed through the Prometheus default registry, so the ops
// server can serve them with promhttp. The returned function flushes and
// closes both providers.
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
