package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const (
	tracerName = "github.com/Sumatoshi-tech/redblack"
	meterName  = "github.com/Sumatoshi-tech/redblack"
)

// Providers holds the initialized observability providers.
type Providers struct {
	// Tracer is the named tracer for creating spans.
	Tracer trace.Tracer

	// Meter is the named meter for creating instruments.
	Meter metric.Meter

	// Logger is the context-aware structured logger.
	Logger *slog.Logger

	// Registry receives every metric of Meter in Prometheus form.
	Registry *prometheus.Registry

	// Shutdown flushes all pending telemetry and releases resources.
	Shutdown func(ctx context.Context) error
}

type shutdownFunc func(ctx context.Context) error

func noopShutdown(_ context.Context) error { return nil }

// Init wires logging, metrics and tracing. Metrics always feed a private
// Prometheus registry; OTLP export of spans and metrics is enabled only when
// cfg.OTLPEndpoint is set.
func Init(cfg Config) (Providers, error) {
	ctx := context.Background()

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return Providers{}, fmt.Errorf("build otel resource: %w", err)
	}

	tp, tpShutdown, err := buildTracerProvider(ctx, cfg, res)
	if err != nil {
		return Providers{}, fmt.Errorf("build tracer provider: %w", err)
	}

	registry := prometheus.NewRegistry()

	mp, err := buildMeterProvider(ctx, cfg, res, registry)
	if err != nil {
		return Providers{}, errors.Join(fmt.Errorf("build meter provider: %w", err), tpShutdown(ctx))
	}

	shutdown := func(shutdownCtx context.Context) error {
		timeoutDur := time.Duration(cfg.ShutdownTimeoutSec) * time.Second
		if timeoutDur <= 0 {
			timeoutDur = time.Duration(defaultShutdownTimeoutSec) * time.Second
		}

		deadlineCtx, cancel := context.WithTimeout(shutdownCtx, timeoutDur)
		defer cancel()

		return errors.Join(tpShutdown(deadlineCtx), mp.Shutdown(deadlineCtx))
	}

	return Providers{
		Tracer:   tp.Tracer(tracerName),
		Meter:    mp.Meter(meterName),
		Logger:   NewLogger(os.Stderr, cfg),
		Registry: registry,
		Shutdown: shutdown,
	}, nil
}

func buildTracerProvider(
	ctx context.Context, cfg Config, res *resource.Resource,
) (trace.TracerProvider, shutdownFunc, error) {
	if cfg.OTLPEndpoint == "" {
		return nooptrace.NewTracerProvider(), noopShutdown, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	return tp, tp.Shutdown, nil
}

func buildMeterProvider(
	ctx context.Context, cfg Config, res *resource.Resource, registry *prometheus.Registry,
) (*sdkmetric.MeterProvider, error) {
	promReader, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	opts := []sdkmetric.Option{
		sdkmetric.WithReader(promReader),
		sdkmetric.WithResource(res),
	}

	if cfg.OTLPEndpoint != "" {
		otlpOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			otlpOpts = append(otlpOpts, otlpmetricgrpc.WithInsecure())
		}

		exporter, exportErr := otlpmetricgrpc.New(ctx, otlpOpts...)
		if exportErr != nil {
			return nil, fmt.Errorf("create metric exporter: %w", exportErr)
		}

		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	}

	return sdkmetric.NewMeterProvider(opts...), nil
}
