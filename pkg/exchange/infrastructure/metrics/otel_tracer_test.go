package metrics_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tigerroll/hrsync/pkg/exchange/core/config"
	"github.com/tigerroll/hrsync/pkg/exchange/infrastructure/metrics"
)

func stringsReader(s string) *strings.Reader {
	return strings.NewReader(s)
}

func TestOpenTelemetryTracer_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := metrics.NewOpenTelemetryTracer(tp)

	ctx, end := tracer.StartSpan(context.Background(), "ingest.batch", map[string]interface{}{
		"entity":  "jobs",
		"records": 3,
		"dry":     false,
	})
	tracer.RecordEvent(ctx, "chunk", map[string]interface{}{"index": int64(1)})
	tracer.RecordError(ctx, "ingest", errors.New("boom"))
	end()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "ingest.batch", span.Name())
	assert.Contains(t, span.Attributes(), attribute.String("entity", "jobs"))
	assert.Contains(t, span.Attributes(), attribute.Int("records", 3))
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "boom", span.Status().Description)

	var names []string
	for _, ev := range span.Events() {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{"chunk", "exception"}, names)
}

func TestNewSpanExporter(t *testing.T) {
	exp, err := metrics.NewSpanExporter(context.Background(), config.TelemetryConfig{})
	require.NoError(t, err)
	assert.Nil(t, exp)

	exp, err = metrics.NewSpanExporter(context.Background(), config.TelemetryConfig{
		OTLPEndpoint: "localhost:4318", OTLPProtocol: "http", Insecure: true,
	})
	require.NoError(t, err)
	require.NotNil(t, exp)
	assert.NoError(t, exp.Shutdown(context.Background()))

	_, err = metrics.NewSpanExporter(context.Background(), config.TelemetryConfig{
		OTLPEndpoint: "localhost:4318", OTLPProtocol: "carrier-pigeon",
	})
	assert.EqualError(t, err, "unsupported OTLP protocol: carrier-pigeon")
}
