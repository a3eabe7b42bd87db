// Package observability wires OpenTelemetry tracing and metrics for the loan API.
// Traces go to stdout or an OTLP collector; metrics are exposed for Prometheus
// on a separate listener.
package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"loanapi/internal/models"
	"loanapi/internal/version"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Provider owns the loan service's telemetry: the tracer and meter providers,
// the Prometheus registry they export to, and the service's instruments.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	registry       *prometheus.Registry
	instruments    *Instruments
}

// Instruments returns the service instruments. With metrics disabled they are
// no-ops, so callers never need a nil check.
func (p *Provider) Instruments() *Instruments {
	return p.instruments
}

// MetricsHandler serves the Prometheus exposition of the loan service's metrics,
// or returns nil when metrics are disabled.
func (p *Provider) MetricsHandler() http.Handler {
	if p.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Shutdown flushes pending spans and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Setup builds tracing and metrics from cfg. The returned Provider must be shut
// down on exit.
func Setup(cfg *models.Config, ver version.Info) (*Provider, error) {
	res, err := newResource(cfg, ver)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	p := &Provider{}

	if tracing := cfg.Observability.Tracing; tracing.Enabled {
		exporter, err := newTraceExporter(tracing)
		if err != nil {
			return nil, fmt.Errorf("failed to setup tracing: %w", err)
		}
		p.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(exporter),
			sdktrace.WithSampler(newSampler(tracing.SampleRate)),
		)
		otel.SetTracerProvider(p.tracerProvider)
	}

	if !cfg.Metrics.Enabled {
		p.instruments, err = NewInstruments(noop.NewMeterProvider())
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	p.registry = prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(p.registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	// otelmux records its HTTP metrics on the global provider
	otel.SetMeterProvider(p.meterProvider)

	p.instruments, err = NewInstruments(p.meterProvider)
	if err != nil {
		_ = p.meterProvider.Shutdown(context.Background())
		return nil, err
	}
	return p, nil
}

func newResource(cfg *models.Config, ver version.Info) (*resource.Resource, error) {
	return resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.Observability.ServiceName),
			semconv.ServiceVersion(ver.Version),
			attribute.String("service.instance.id", ver.InstanceID),
			attribute.String("host.name", ver.Hostname),
			attribute.String("git.commit", ver.GitCommit),
			attribute.String("deployment.environment", deploymentEnvironment(cfg.Environment)),
			attribute.String("storage.type", cfg.Storage.Type),
			attribute.Int("ratelimit.max_requests", cfg.RateLimit.MaxRequests),
		),
	)
}

func newTraceExporter(cfg models.TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		return otlptracegrpc.New(context.Background(),
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
}

func newSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// deploymentEnvironment falls back to development when no environment is configured.
func deploymentEnvironment(env string) string {
	if env == "" {
		return models.EnvironmentDevelopment
	}
	return env
}
