package metrics

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	config "github.com/tigerroll/hrsync/pkg/exchange/core/config"
	logger "github.com/tigerroll/hrsync/pkg/exchange/support/util/logger"
)

// NewSpanExporter builds the OTLP trace exporter for cfg. It returns nil when no endpoint
// is configured.
func NewSpanExporter(ctx context.Context, cfg config.TelemetryConfig) (sdktrace.SpanExporter, error) {
	if cfg.OTLPEndpoint == "" {
		return nil, nil
	}
	switch strings.ToLower(cfg.OTLPProtocol) {
	case "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http", "":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol: %s", cfg.OTLPProtocol)
	}
}

// NewTracerProvider creates the SDK TracerProvider, installs it globally and shuts it down
// when the application stops. Without an endpoint spans are recorded but not exported.
func NewTracerProvider(lc fx.Lifecycle, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	tcfg := cfg.HRSync.Telemetry
	exporter, err := NewSpanExporter(context.Background(), tcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(serviceResource(tcfg)),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
		logger.Infof("Exporting traces to '%s' over %s.", tcfg.OTLPEndpoint, tcfg.OTLPProtocol)
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Debugf("Shutting down tracer provider.")
			return tp.Shutdown(ctx)
		},
	})
	return tp, nil
}

func serviceResource(cfg config.TelemetryConfig) *resource.Resource {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = config.DefaultServiceName
	}
	return resource.NewSchemaless(attribute.String("service.name", serviceName))
}

// NewMetricExporter builds the OTLP metric exporter for cfg. It returns nil when no endpoint
// is configured.
func NewMetricExporter(ctx context.Context, cfg config.TelemetryConfig) (sdkmetric.Exporter, error) {
	if cfg.OTLPEndpoint == "" {
		return nil, nil
	}
	switch strings.ToLower(cfg.OTLPProtocol) {
	case "grpc":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "http", "":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol: %s", cfg.OTLPProtocol)
	}
}

// NewMeterProvider creates the SDK MeterProvider. With an endpoint, metrics are pushed
// periodically over OTLP; without one the instruments are recorded and never exported.
func NewMeterProvider(lc fx.Lifecycle, cfg *config.Config) (*sdkmetric.MeterProvider, error) {
	tcfg := cfg.HRSync.Telemetry
	exporter, err := NewMetricExporter(context.Background(), tcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(serviceResource(tcfg))}
	if exporter != nil {
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
		logger.Infof("Exporting metrics to '%s' over %s.", tcfg.OTLPEndpoint, tcfg.OTLPProtocol)
	}
	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Debugf("Shutting down meter provider.")
			return mp.Shutdown(ctx)
		},
	})
	return mp, nil
}
