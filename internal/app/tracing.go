package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/registrations/internal/config"
)

const serviceName = "registrations"

// newTracerProvider exports spans to Jaeger. It returns nil when no
// collector endpoint is configured, which leaves the global no-op provider
// in place.
func newTracerProvider(cfg *config.Config) (*sdktrace.TracerProvider, error) {
	if cfg.Tracing.JaegerEndpoint == "" {
		return nil, nil
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Tracing.JaegerEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("jaeger exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Tracing.SampleRatio))),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("deployment.environment", cfg.Env),
		)),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

func (app *App) shutdownTracing(ctx context.Context) {
	if app.tracer == nil {
		return
	}
	if err := app.tracer.Shutdown(ctx); err != nil {
		app.logger.Warn("failed to flush traces", "err", err)
	}
}
