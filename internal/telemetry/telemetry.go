// Package telemetry wires the optional OpenTelemetry trace pipeline. With
// no exporter configured it installs nothing and span creation stays a
// no-op through the otel global.
package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/zjrosen/switchyard/internal/config"
	"github.com/zjrosen/switchyard/internal/log"
)

const serviceName = "switchyard"

// Shutdown flushes and stops the installed trace pipeline.
type Shutdown func(ctx context.Context) error

// Setup installs a tracer provider according to the config: an OTLP/gRPC
// exporter when an endpoint is set, a JSON-lines file exporter when a trace
// file is set, otherwise nothing. The returned Shutdown is always safe to
// call.
func Setup(ctx context.Context, cfg config.TelemetryConfig, version string) (Shutdown, error) {
	exporter, closer, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if exporter == nil {
		return func(context.Context) error { return nil }, nil
	}

	res, err := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	log.Info(log.CatConfig, "Telemetry enabled", "endpoint", cfg.Endpoint, "file", cfg.TraceFile)

	return func(ctx context.Context) error {
		err := provider.Shutdown(ctx)
		if closer != nil {
			if errClose := closer(); err == nil {
				err = errClose
			}
		}
		return err
	}, nil
}

func newExporter(ctx context.Context, cfg config.TelemetryConfig) (sdktrace.SpanExporter, func() error, error) {
	switch {
	case cfg.Endpoint != "":
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("creating OTLP exporter: %w", err)
		}
		return exporter, nil, nil

	case cfg.TraceFile != "":
		f, err := os.OpenFile(cfg.TraceFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600) //nolint:gosec // G304: path comes from the user's own config
		if err != nil {
			return nil, nil, fmt.Errorf("opening trace file: %w", err)
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(f))
		if err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("creating trace file exporter: %w", err)
		}
		return exporter, f.Close, nil

	default:
		return nil, nil, nil
	}
}
