// Package telemetry sets up OpenTelemetry tracing for ingestion runs.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

// Config selects the OTLP collector spans are exported to. With neither
// endpoint set tracing stays disabled.
type Config struct {
	ServiceName  string
	GRPCEndpoint string
	HTTPEndpoint string
	Headers      map[string]string
}

// Enabled reports whether an exporter endpoint is configured.
func (c Config) Enabled() bool {
	return c.GRPCEndpoint != "" || c.HTTPEndpoint != ""
}

// InitTracing installs a global tracer provider that batches spans to the
// configured collector and returns its shutdown func. When tracing is
// disabled the global no-op provider is kept and shutdown does nothing.
func InitTracing(ctx context.Context, cfg Config, logger *zap.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled() {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "menusync"
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace resource: %w", err)
	}
	exporter, err := newExporter(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, cfg Config, logger *zap.Logger) (sdktrace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if cfg.GRPCEndpoint != "" {
		logger.Info("trace export initialized", zap.String("type", "grpc"), zap.String("endpoint", cfg.GRPCEndpoint))
		exp, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpointURL(cfg.GRPCEndpoint),
			otlptracegrpc.WithHeaders(cfg.Headers),
		)
		if err != nil {
			return nil, fmt.Errorf("create grpc trace exporter: %w", err)
		}
		return exp, nil
	}
	logger.Info("trace export initialized", zap.String("type", "http"), zap.String("endpoint", cfg.HTTPEndpoint))
	exp, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(cfg.HTTPEndpoint),
		otlptracehttp.WithHeaders(cfg.Headers),
	)
	if err != nil {
		return nil, fmt.Errorf("create http trace exporter: %w", err)
	}
	return exp, nil
}
