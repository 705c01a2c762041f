package metrics

import (
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	metrics "github.com/tigerroll/hrsync/pkg/exchange/core/metrics"
)

// newMetricRecorder records to Prometheus and to the OpenTelemetry meter at once.
func newMetricRecorder(prom *PrometheusRecorder, otelRecorder *OpenTelemetryRecorder) metrics.MetricRecorder {
	return metrics.NewCompositeRecorder(prom, otelRecorder)
}

// Module is an Fx module that provides the MetricRecorder (Prometheus plus OpenTelemetry)
// and the OpenTelemetryTracer.
var Module = fx.Options(
	fx.Provide(NewPrometheusRecorder),
	fx.Provide(NewMeterProvider),
	fx.Provide(func(mp *sdkmetric.MeterProvider) otelmetric.MeterProvider { return mp }),
	fx.Provide(NewOpenTelemetryRecorder),
	fx.Provide(newMetricRecorder),
	fx.Provide(NewTracerProvider),
	fx.Provide(func(tp *sdktrace.TracerProvider) trace.TracerProvider { return tp }),
	// Provide OpenTelemetryTracer as a core Tracer interface.
	fx.Provide(fx.Annotate(
		NewOpenTelemetryTracer,
		fx.As(new(metrics.Tracer)),
	)),
)
