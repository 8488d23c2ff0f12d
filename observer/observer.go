// Package observer provides OTEL-based tracing for index and retrieve
// operations.
//
// Init sets up a trace provider with an OTLP HTTP exporter; NewTracer returns
// a groundrag.Tracer backed by it. Export targets come from standard OTEL env
// vars (OTEL_EXPORTER_OTLP_ENDPOINT, etc.).
package observer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const scopeName = "github.com/prasetya/groundrag/observer"

// Init sets up the global OTEL trace provider with an OTLP HTTP exporter.
// Returns a shutdown function that must be called on application exit.
func Init(ctx context.Context) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName("groundrag")),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, err
	}

	traceExp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
