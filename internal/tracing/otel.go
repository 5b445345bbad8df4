package tracing

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/tombee/trackerbridge"

// InitTracerProvider builds and installs the global OpenTelemetry tracer
// provider. When OTEL_EXPORTER_OTLP_ENDPOINT is set, spans are exported over
// OTLP/HTTP; otherwise they're written to stdout, which is good enough for a
// single-operator deployment that just wants to eyeball pipeline timing.
//
// The returned shutdown func must be called on process exit to flush
// buffered spans.
func InitTracerProvider(ctx context.Context, serviceVersion string) (shutdown func(context.Context) error, err error) {
	var exporter sdktrace.SpanExporter
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		exporter, err = otlptracehttp.New(ctx)
	} else {
		exporter, err = stdouttrace.New(stdouttrace.WithoutTimestamps())
	}
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", "trackerbridge"),
		attribute.String("service.version", serviceVersion),
	))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// Tracer returns the package-level tracer. Nothing in this module calls it.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
