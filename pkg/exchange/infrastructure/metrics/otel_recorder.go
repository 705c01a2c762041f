package metrics

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	metrics "github.com/tigerroll/hrsync/pkg/exchange/core/metrics"
)

const meterName = "github.com/tigerroll/hrsync"

// OpenTelemetryRecorder records the exchange metrics as OpenTelemetry instruments, so they
// can be pushed over OTLP next to the Prometheus pull endpoint.
type OpenTelemetryRecorder struct {
	records         metric.Int64Counter
	rejections      metric.Int64Counter
	exportRows      metric.Int64Counter
	exportDuration  metric.Float64Histogram
	restoreRows     metric.Int64Counter
	restoreDuration metric.Float64Histogram
	failures        metric.Int64Counter
	httpRequests    metric.Int64Counter
	httpDuration    metric.Float64Histogram
	opDuration      metric.Float64Histogram
}

// NewOpenTelemetryRecorder creates the instruments on mp.
func NewOpenTelemetryRecorder(mp metric.MeterProvider) (*OpenTelemetryRecorder, error) {
	m := mp.Meter(meterName)
	r := &OpenTelemetryRecorder{}
	var err error

	if r.records, err = m.Int64Counter("hrsync.ingest.records",
		metric.WithDescription("Records processed by entity and outcome."), metric.WithUnit("{record}")); err != nil {
		return nil, err
	}
	if r.rejections, err = m.Int64Counter("hrsync.ingest.rejections",
		metric.WithDescription("Rejected records by entity and reason."), metric.WithUnit("{record}")); err != nil {
		return nil, err
	}
	if r.exportRows, err = m.Int64Counter("hrsync.export.rows",
		metric.WithDescription("Rows exported by table."), metric.WithUnit("{row}")); err != nil {
		return nil, err
	}
	if r.exportDuration, err = m.Float64Histogram("hrsync.export.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.restoreRows, err = m.Int64Counter("hrsync.restore.rows",
		metric.WithDescription("Rows restored by table and outcome."), metric.WithUnit("{row}")); err != nil {
		return nil, err
	}
	if r.restoreDuration, err = m.Float64Histogram("hrsync.restore.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.failures, err = m.Int64Counter("hrsync.operation.failures",
		metric.WithDescription("Whole-operation failures by operation and kind.")); err != nil {
		return nil, err
	}
	if r.httpRequests, err = m.Int64Counter("hrsync.http.requests", metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if r.httpDuration, err = m.Float64Histogram("hrsync.http.request.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.opDuration, err = m.Float64Histogram("hrsync.operation.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return r, nil
}

func attrs(kv ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributes(kv...)
}

// RecordBatch implements metrics.MetricRecorder.
func (r *OpenTelemetryRecorder) RecordBatch(ctx context.Context, entity string, accepted, rejected int) {
	r.records.Add(ctx, int64(accepted), attrs(attribute.String("entity", entity), attribute.String("outcome", "accepted")))
	r.records.Add(ctx, int64(rejected), attrs(attribute.String("entity", entity), attribute.String("outcome", "rejected")))
}

// RecordRejection implements metrics.MetricRecorder.
func (r *OpenTelemetryRecorder) RecordRejection(ctx context.Context, entity string, reason string) {
	r.rejections.Add(ctx, 1, attrs(attribute.String("entity", entity), attribute.String("reason", reason)))
}

// RecordExport implements metrics.MetricRecorder.
func (r *OpenTelemetryRecorder) RecordExport(ctx context.Context, table string, rows int, duration time.Duration) {
	tableAttr := attribute.String("table", table)
	r.exportRows.Add(ctx, int64(rows), attrs(tableAttr))
	r.exportDuration.Record(ctx, duration.Seconds(), attrs(tableAttr))
}

// RecordRestore implements metrics.MetricRecorder.
func (r *OpenTelemetryRecorder) RecordRestore(ctx context.Context, table string, restored, rejected int, duration time.Duration) {
	r.restoreRows.Add(ctx, int64(restored), attrs(attribute.String("table", table), attribute.String("outcome", "restored")))
	r.restoreRows.Add(ctx, int64(rejected), attrs(attribute.String("table", table), attribute.String("outcome", "rejected")))
	r.restoreDuration.Record(ctx, duration.Seconds(), attrs(attribute.String("table", table)))
}

// RecordFailure implements metrics.MetricRecorder.
func (r *OpenTelemetryRecorder) RecordFailure(ctx context.Context, operation string, kind string) {
	if kind == "" {
		kind = "Internal"
	}
	r.failures.Add(ctx, 1, attrs(attribute.String("operation", operation), attribute.String("kind", kind)))
}

// RecordHTTPRequest implements metrics.MetricRecorder.
func (r *OpenTelemetryRecorder) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	r.httpRequests.Add(ctx, 1, attrs(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	))
	r.httpDuration.Record(ctx, duration.Seconds(), attrs(attribute.String("method", method), attribute.String("route", route)))
}

// RecordDuration implements metrics.MetricRecorder.
func (r *OpenTelemetryRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	kv := make([]attribute.KeyValue, 0, len(tags)+1)
	kv = append(kv, attribute.String("name", name))
	for k, v := range tags {
		kv = append(kv, attribute.String(k, v))
	}
	r.opDuration.Record(ctx, duration.Seconds(), attrs(kv...))
}

var _ metrics.MetricRecorder = (*OpenTelemetryRecorder)(nil)
