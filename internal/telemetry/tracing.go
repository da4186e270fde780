package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const initTimeout = 5 * time.Second

// ShutdownFunc flushes and stops a tracer provider.
type ShutdownFunc func(context.Context) error

// InitTracing installs an OTLP/gRPC tracer provider as the global provider.
// An empty endpoint disables tracing and returns a no-op provider.
func InitTracing(endpoint, serviceName, serviceVersion string, log logrus.FieldLogger) (trace.TracerProvider, ShutdownFunc, error) {
	if endpoint == "" {
		log.Debug("tracing disabled: no OTLP endpoint configured")
		return noop.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(endpoint),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("creating trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	log.WithFields(logrus.Fields{"service": serviceName, "endpoint": endpoint}).Info("tracing initialized")

	return tp, tp.Shutdown, nil
}
