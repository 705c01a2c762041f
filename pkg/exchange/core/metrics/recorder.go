// Package metrics declares the observability ports of the exchange engine.
// Engines depend only on these interfaces; concrete Prometheus/OpenTelemetry implementations
// live in infrastructure/metrics and no-op fallbacks are provided here.
package metrics

import (
	"context"
	"time"
)

// MetricRecorder records counters and durations for exchange operations.
type MetricRecorder interface {
	// RecordBatch records the outcome partition of one ingested batch.
	//
	// entity: The entity selector (e.g. "employees").
	// accepted, rejected: The partition sizes.
	RecordBatch(ctx context.Context, entity string, accepted, rejected int)

	// RecordRejection records one rejected record and the reason class ("validation" or "persistence").
	RecordRejection(ctx context.Context, entity string, reason string)

	// RecordExport records one exported table.
	RecordExport(ctx context.Context, table string, rows int, duration time.Duration)

	// RecordRestore records one restored table.
	RecordRestore(ctx context.Context, table string, restored, rejected int, duration time.Duration)

	// RecordFailure records a whole-operation failure.
	//
	// operation: "ingest", "export" or "restore".
	// kind: The registered error kind name (e.g. "SchemaMismatch").
	RecordFailure(ctx context.Context, operation string, kind string)

	// RecordHTTPRequest records one served request.
	RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration)

	// RecordDuration records the execution time of an arbitrary named operation.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
