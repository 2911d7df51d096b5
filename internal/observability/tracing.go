// Package observability configures the process-wide OpenTelemetry tracer
// provider this engine's components record spans against, following the
// teacher's internal/observability/tracing.go in spirit: a resource-tagged
// SDK TracerProvider installed as the global provider at startup.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// TraceConfig configures the installed tracer provider. Unlike the
// teacher's Tracer, this engine has no bundled OTLP exporter dependency:
// Exporter is supplied by the embedding application (e.g. an OTLP or
// stdout exporter it already depends on); a nil Exporter still produces a
// functioning TracerProvider, it simply has nothing registered to receive
// the spans it records.
type TraceConfig struct {
	ServiceName    string
	ServiceVersion string
	Exporter       sdktrace.SpanExporter
}

// NewTracerProvider builds and installs a resource-tagged TracerProvider as
// the process-global provider, returning a shutdown func the caller must
// invoke to flush any configured exporter on exit.
func NewTracerProvider(ctx context.Context, cfg TraceConfig) (shutdown func(context.Context) error, err error) {
	res, err := sdkresource.New(ctx,
		sdkresource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.Exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(cfg.Exporter))
	}
	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
