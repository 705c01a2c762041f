// Package ingest drives record reconciliation and per-record persistence for a batch.
//
// Every record is written in its own transaction: begin, insert one row, commit. A failing record
// is rolled back alone and lands in the rejected side of the outcome; the rest of the batch
// proceeds. Records are processed strictly in input order.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/tigerroll/hrsync/pkg/exchange/core/domain/schema"
	"github.com/tigerroll/hrsync/pkg/exchange/core/metrics"
	"github.com/tigerroll/hrsync/pkg/exchange/core/tx"
	"github.com/tigerroll/hrsync/pkg/exchange/engine/reconcile"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/exception"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/logger"
)

const moduleName = "ingest"

// DefaultMaxRecords is the largest batch IngestBatch accepts unless configured otherwise.
const DefaultMaxRecords = 1000

// Rejection pairs a record with the reason it was not persisted.
type Rejection struct {
	Record map[string]interface{} `json:"record"`
	Error  string                 `json:"error"`
}

// Outcome is the partition of a processed batch. Both sides keep input order and
// len(Accepted)+len(Rejected) equals the number of input records.
type Outcome struct {
	Accepted []map[string]interface{}
	Rejected []Rejection
}

// Total returns the number of records the outcome accounts for.
func (o *Outcome) Total() int {
	return len(o.Accepted) + len(o.Rejected)
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithMaxRecords sets the batch size limit. Non-positive values are ignored.
func WithMaxRecords(n int) Option {
	return func(i *Ingestor) {
		if n > 0 {
			i.maxRecords = n
		}
	}
}

// WithReconciler replaces the default UTC reconciler.
func WithReconciler(r *reconcile.Reconciler) Option {
	return func(i *Ingestor) {
		if r != nil {
			i.reconciler = r
		}
	}
}

// WithMetricRecorder sets the metric recorder.
func WithMetricRecorder(r metrics.MetricRecorder) Option {
	return func(i *Ingestor) {
		if r != nil {
			i.recorder = r
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t metrics.Tracer) Option {
	return func(i *Ingestor) {
		if t != nil {
			i.tracer = t
		}
	}
}

// Ingestor writes batches of records through a TransactionManager.
type Ingestor struct {
	txManager  tx.TransactionManager
	reconciler *reconcile.Reconciler
	maxRecords int
	recorder   metrics.MetricRecorder
	tracer     metrics.Tracer
}

// NewIngestor creates an Ingestor.
func NewIngestor(txManager tx.TransactionManager, opts ...Option) *Ingestor {
	i := &Ingestor{
		txManager:  txManager,
		reconciler: reconcile.New(time.UTC),
		maxRecords: DefaultMaxRecords,
		recorder:   metrics.NewNoOpMetricRecorder(),
		tracer:     metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// MaxRecords returns the configured batch limit.
func (i *Ingestor) MaxRecords() int {
	return i.maxRecords
}

// IngestBatch reconciles and persists records one by one.
//
// A batch larger than the limit fails as a whole with exception.ErrBatchTooLarge before any
// record is touched. If ctx is cancelled between records the partial outcome is returned
// together with the context error.
func (i *Ingestor) IngestBatch(ctx context.Context, d *schema.Descriptor, records []map[string]interface{}) (*Outcome, error) {
	if len(records) > i.maxRecords {
		i.recorder.RecordFailure(ctx, moduleName, exception.KindName(exception.ErrBatchTooLarge))
		return nil, exception.NewExchangeErrorf(moduleName, exception.ErrBatchTooLarge,
			"Batch size exceeds maximum limit of %d records", i.maxRecords).
			WithDetail("total_records", len(records)).
			WithDetail("limit", i.maxRecords)
	}

	ctx, end := i.tracer.StartSpan(ctx, "ingest.batch", map[string]interface{}{
		"entity":  d.Entity,
		"records": len(records),
	})
	defer end()

	outcome := &Outcome{
		Accepted: make([]map[string]interface{}, 0, len(records)),
	}
	for idx, rec := range records {
		if err := ctx.Err(); err != nil {
			logger.Warnf("Batch for '%s' abandoned after %d of %d records: %v", d.Entity, idx, len(records), err)
			return outcome, err
		}

		validated, err := i.reconciler.Reconcile(d, rec)
		if err != nil {
			i.reject(ctx, d, outcome, rec, err, "validation")
			continue
		}
		if err := i.persist(ctx, d.Table, validated); err != nil {
			i.reject(ctx, d, outcome, rec, err, "persistence")
			continue
		}
		outcome.Accepted = append(outcome.Accepted, rec)
	}

	i.recorder.RecordBatch(ctx, d.Entity, len(outcome.Accepted), len(outcome.Rejected))
	logger.Infof("Ingested batch for '%s': %d accepted, %d rejected.", d.Entity, len(outcome.Accepted), len(outcome.Rejected))
	return outcome, nil
}

// Reinsert persists already-shaped records without reconciliation or a batch limit.
// It is the restore path: values are expected to carry store-ready types already.
func (i *Ingestor) Reinsert(ctx context.Context, d *schema.Descriptor, records []schema.Record) (*Outcome, error) {
	ctx, end := i.tracer.StartSpan(ctx, "ingest.reinsert", map[string]interface{}{
		"table":   d.Table,
		"records": len(records),
	})
	defer end()

	outcome := &Outcome{
		Accepted: make([]map[string]interface{}, 0, len(records)),
	}
	for idx, rec := range records {
		if err := ctx.Err(); err != nil {
			logger.Warnf("Reinsert into '%s' abandoned after %d of %d records: %v", d.Table, idx, len(records), err)
			return outcome, err
		}
		if err := i.persist(ctx, d.Table, rec); err != nil {
			i.reject(ctx, d, outcome, rec, err, "persistence")
			continue
		}
		outcome.Accepted = append(outcome.Accepted, rec)
	}
	return outcome, nil
}

func (i *Ingestor) reject(ctx context.Context, d *schema.Descriptor, outcome *Outcome, rec map[string]interface{}, err error, reason string) {
	logger.Debugf("Rejected %s record %v: %v", d.Entity, rec, err)
	i.recorder.RecordRejection(ctx, d.Entity, reason)
	outcome.Rejected = append(outcome.Rejected, Rejection{Record: rec, Error: err.Error()})
}

// persist writes one row in its own transaction. The transaction is rolled back on any failure.
func (i *Ingestor) persist(ctx context.Context, table string, values map[string]interface{}) (err error) {
	t, err := i.txManager.Begin(ctx)
	if err != nil {
		return asPersistenceError(table, err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := i.txManager.Rollback(t); rbErr != nil {
			logger.Debugf("Rollback after failed insert into '%s' returned: %v", table, rbErr)
		}
	}()

	if err = t.Insert(ctx, table, values); err != nil {
		return asPersistenceError(table, err)
	}
	if err = i.txManager.Commit(t); err != nil {
		return asPersistenceError(table, err)
	}
	return nil
}

func asPersistenceError(table string, err error) error {
	var pe *exception.PersistenceError
	if errors.As(err, &pe) {
		return pe
	}
	return exception.NewPersistenceError(table, exception.ConstraintUnknown, err)
}
