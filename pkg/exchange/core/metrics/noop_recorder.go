package metrics

import (
	"context"
	"time"
)

// NoOpMetricRecorder discards every measurement. Used when metrics are disabled and in tests.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordBatch(ctx context.Context, entity string, accepted, rejected int) {}

func (r *NoOpMetricRecorder) RecordRejection(ctx context.Context, entity string, reason string) {}

func (r *NoOpMetricRecorder) RecordExport(ctx context.Context, table string, rows int, duration time.Duration) {}

func (r *NoOpMetricRecorder) RecordRestore(ctx context.Context, table string, restored, rejected int, duration time.Duration) {}

func (r *NoOpMetricRecorder) RecordFailure(ctx context.Context, operation string, kind string) {}

func (r *NoOpMetricRecorder) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {}

func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// NoOpTracer creates no spans.
type NoOpTracer struct{}

// NewNoOpTracer creates a NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

// StartSpan returns ctx unchanged.
func (t *NoOpTracer) StartSpan(ctx context.Context, name string, attributes map[string]interface{}) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error)                      {}
func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {}

var _ Tracer = (*NoOpTracer)(nil)
