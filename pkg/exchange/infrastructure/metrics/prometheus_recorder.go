package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	metrics "github.com/tigerroll/hrsync/pkg/exchange/core/metrics"
	logger "github.com/tigerroll/hrsync/pkg/exchange/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Ingest Metrics
	recordsCounter   *prometheus.CounterVec
	rejectionCounter *prometheus.CounterVec

	// Backup Metrics
	exportRowsCounter     *prometheus.CounterVec
	exportDurationSeconds *prometheus.HistogramVec
	restoreRowsCounter    *prometheus.CounterVec
	restoreDurationSecs   *prometheus.HistogramVec

	failureCounter *prometheus.CounterVec

	// HTTP Metrics
	httpRequestsCounter   *prometheus.CounterVec
	httpDurationSeconds   *prometheus.HistogramVec
	operationDurationSecs *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		recordsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hrsync_ingest_records_total",
			Help: "Total records processed by entity and outcome.",
		}, []string{"entity", "outcome"}), // outcome: accepted, rejected
		rejectionCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hrsync_ingest_rejections_total",
			Help: "Total rejected records by entity and reason.",
		}, []string{"entity", "reason"}), // reason: validation, persistence
		exportRowsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hrsync_export_rows_total",
			Help: "Total rows exported by table.",
		}, []string{"table"}),
		exportDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hrsync_export_duration_seconds",
			Help:    "Duration of table exports.",
			Buckets: prometheus.DefBuckets,
		}, []string{"table"}),
		restoreRowsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hrsync_restore_rows_total",
			Help: "Total rows reinserted by table and outcome.",
		}, []string{"table", "outcome"}),
		restoreDurationSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hrsync_restore_duration_seconds",
			Help:    "Duration of table restores.",
			Buckets: prometheus.DefBuckets,
		}, []string{"table"}),
		failureCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hrsync_operation_failures_total",
			Help: "Total whole-operation failures by operation and error kind.",
		}, []string{"operation", "kind"}),
		httpRequestsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hrsync_http_requests_total",
			Help: "Total HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hrsync_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		operationDurationSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hrsync_operation_duration_seconds",
			Help:    "Duration of named operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"name"}),
	}

	// Register all metrics with the registry.
	registry.MustRegister(r.recordsCounter)
	registry.MustRegister(r.rejectionCounter)
	registry.MustRegister(r.exportRowsCounter)
	registry.MustRegister(r.exportDurationSeconds)
	registry.MustRegister(r.restoreRowsCounter)
	registry.MustRegister(r.restoreDurationSecs)
	registry.MustRegister(r.failureCounter)
	registry.MustRegister(r.httpRequestsCounter)
	registry.MustRegister(r.httpDurationSeconds)
	registry.MustRegister(r.operationDurationSecs)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RecordBatch records the accepted/rejected partition of a batch.
func (r *PrometheusRecorder) RecordBatch(ctx context.Context, entity string, accepted, rejected int) {
	r.recordsCounter.WithLabelValues(entity, "accepted").Add(float64(accepted))
	r.recordsCounter.WithLabelValues(entity, "rejected").Add(float64(rejected))
	logger.Debugf("Metrics: Batch for '%s' recorded (%d accepted, %d rejected).", entity, accepted, rejected)
}

// RecordRejection records one rejected record.
func (r *PrometheusRecorder) RecordRejection(ctx context.Context, entity string, reason string) {
	r.rejectionCounter.WithLabelValues(entity, reason).Inc()
}

// RecordExport records one exported table.
func (r *PrometheusRecorder) RecordExport(ctx context.Context, table string, rows int, duration time.Duration) {
	r.exportRowsCounter.WithLabelValues(table).Add(float64(rows))
	r.exportDurationSeconds.WithLabelValues(table).Observe(duration.Seconds())
	logger.Debugf("Metrics: Export of '%s' recorded (%d rows, %.3fs).", table, rows, duration.Seconds())
}

// RecordRestore records one restored table.
func (r *PrometheusRecorder) RecordRestore(ctx context.Context, table string, restored, rejected int, duration time.Duration) {
	r.restoreRowsCounter.WithLabelValues(table, "restored").Add(float64(restored))
	r.restoreRowsCounter.WithLabelValues(table, "rejected").Add(float64(rejected))
	r.restoreDurationSecs.WithLabelValues(table).Observe(duration.Seconds())
	logger.Debugf("Metrics: Restore of '%s' recorded (%d restored, %d rejected).", table, restored, rejected)
}

// RecordFailure records a whole-operation failure. An empty kind is recorded as "Internal".
func (r *PrometheusRecorder) RecordFailure(ctx context.Context, operation string, kind string) {
	if kind == "" {
		kind = "Internal"
	}
	r.failureCounter.WithLabelValues(operation, kind).Inc()
}

// RecordHTTPRequest records one served request.
func (r *PrometheusRecorder) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	r.httpRequestsCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordDuration records the execution time of a named operation. Tags are only logged.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDurationSecs.WithLabelValues(name).Observe(duration.Seconds())
	logger.Debugf("Metrics: Duration '%s' recorded: %.3fs, tags: %v", name, duration.Seconds(), tags)
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
