package backup

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tigerroll/hrsync/pkg/exchange/core/domain/schema"
	"github.com/tigerroll/hrsync/pkg/exchange/core/metrics"
	"github.com/tigerroll/hrsync/pkg/exchange/core/tx"
	"github.com/tigerroll/hrsync/pkg/exchange/engine/ingest"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/exception"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/logger"
)

const importerModule = "importer"

// DataLossWarning accompanies a restore that rejected rows after the table was emptied.
const DataLossWarning = "The table was emptied before reinsertion; rejected rows are no longer in the table."

// RestoreResult is the outcome of RestoreTable.
type RestoreResult struct {
	Table string
	// Deleted is the number of rows removed before reinsertion.
	Deleted int64
	Outcome *ingest.Outcome
}

// Message returns "Restored N records to <table>".
func (r *RestoreResult) Message() string {
	return fmt.Sprintf("Restored %d records to %s", len(r.Outcome.Accepted), r.Table)
}

// Warning returns DataLossWarning when rows were rejected, otherwise "".
func (r *RestoreResult) Warning() string {
	if len(r.Outcome.Rejected) > 0 {
		return DataLossWarning
	}
	return ""
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithLocation sets the location naive timestamps are read in. The default is UTC.
func WithLocation(loc *time.Location) ImporterOption {
	return func(im *Importer) {
		if loc != nil {
			im.loc = loc
		}
	}
}

// WithImporterMetrics sets the metric recorder and tracer.
func WithImporterMetrics(recorder metrics.MetricRecorder, tracer metrics.Tracer) ImporterOption {
	return func(im *Importer) {
		if recorder != nil {
			im.recorder = recorder
		}
		if tracer != nil {
			im.tracer = tracer
		}
	}
}

// Importer replaces the contents of a table with the rows of a backup file.
type Importer struct {
	codecs    *CodecSet
	txManager tx.TransactionManager
	ingestor  *ingest.Ingestor
	loc       *time.Location
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer
}

// NewImporter creates an Importer. Rows are reinserted through ingestor's per-record path.
func NewImporter(codecs *CodecSet, txManager tx.TransactionManager, ingestor *ingest.Ingestor, opts ...ImporterOption) *Importer {
	im := &Importer{
		codecs:    codecs,
		txManager: txManager,
		ingestor:  ingestor,
		loc:       time.UTC,
		recorder:  metrics.NewNoOpMetricRecorder(),
		tracer:    metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// RestoreTable decodes r, checks it against d, deletes every row of d's table in one
// transaction and reinserts the decoded rows one by one.
//
// Nothing is deleted unless the file decodes, has rows and carries every column of d.
// Rows rejected during reinsertion are reported in the outcome; the deletion is not undone.
func (im *Importer) RestoreTable(ctx context.Context, r io.Reader, d *schema.Descriptor) (*RestoreResult, error) {
	ctx, end := im.tracer.StartSpan(ctx, "backup.restore_table", map[string]interface{}{"table": d.Table})
	defer end()
	start := time.Now()

	res, err := im.restore(ctx, r, d)
	if err != nil {
		logger.Errorf("Restore of '%s' failed: %s", d.Table, exception.ExtractErrorMessage(err))
		im.recorder.RecordFailure(ctx, "restore", exception.KindName(err))
		im.tracer.RecordError(ctx, importerModule, err)
		return res, err
	}

	im.recorder.RecordRestore(ctx, d.Table, len(res.Outcome.Accepted), len(res.Outcome.Rejected), time.Since(start))
	if w := res.Warning(); w != "" {
		logger.Warnf("Restore of '%s' rejected %d of %d rows after deleting %d rows.",
			d.Table, len(res.Outcome.Rejected), res.Outcome.Total(), res.Deleted)
	} else {
		logger.Infof("%s (deleted %d).", res.Message(), res.Deleted)
	}
	return res, nil
}

func (im *Importer) restore(ctx context.Context, r io.Reader, d *schema.Descriptor) (*RestoreResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, exception.NewExchangeErrorf(importerModule, exception.ErrMalformedBackup, "Failed to read backup file", err)
	}
	if len(data) == 0 {
		return nil, exception.NewExchangeErrorf(importerModule, exception.ErrEmptyBackup, "No records found in backup file")
	}

	f, err := im.codecs.Decode(data)
	if err != nil {
		return nil, exception.NewExchangeErrorf(importerModule, exception.ErrMalformedBackup, "Invalid backup file: %v", err, err)
	}
	if len(f.Rows) == 0 {
		return nil, exception.NewExchangeErrorf(importerModule, exception.ErrEmptyBackup, "No records found in backup file")
	}

	if missing := missingColumns(d, f.Rows[0]); len(missing) > 0 {
		return nil, exception.NewExchangeErrorf(importerModule, exception.ErrSchemaMismatch,
			"Schema mismatch. Missing columns: %s", strings.Join(missing, ", ")).
			WithDetail("missing_columns", missing).
			WithDetail("table", d.Table)
	}

	deleted, err := im.deleteAll(ctx, d.Table)
	if err != nil {
		return nil, exception.NewExchangeErrorf(importerModule, exception.ErrRestoreDeleteFailed,
			"Failed to clear table %s: %v", d.Table, err, err)
	}

	records := make([]schema.Record, 0, len(f.Rows))
	for _, row := range f.Rows {
		records = append(records, im.unflatten(d, row))
	}

	outcome, err := im.ingestor.Reinsert(ctx, d, records)
	res := &RestoreResult{Table: d.Table, Deleted: deleted, Outcome: outcome}
	if err != nil {
		return res, err
	}
	return res, nil
}

func missingColumns(d *schema.Descriptor, first map[string]interface{}) []string {
	var missing []string
	for _, col := range d.ColumnNames() {
		if _, ok := first[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// deleteAll empties table in its own transaction, with foreign key enforcement suspended when
// the transaction manager supports it.
func (im *Importer) deleteAll(ctx context.Context, table string) (deleted int64, err error) {
	var t tx.Tx
	if b, ok := im.txManager.(tx.UncheckedBeginner); ok {
		t, err = b.BeginUnchecked(ctx)
	} else {
		t, err = im.txManager.Begin(ctx)
	}
	if err != nil {
		return 0, err
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := im.txManager.Rollback(t); rbErr != nil {
			logger.Debugf("Rollback after failed delete of '%s' returned: %v", table, rbErr)
		}
	}()

	if deleted, err = t.DeleteAll(ctx, table); err != nil {
		return 0, err
	}
	if err = im.txManager.Commit(t); err != nil {
		return 0, err
	}
	return deleted, nil
}

// unflatten projects row onto d's columns and restores the declared Go types where the
// file flattened them. Values that do not parse are passed through for the store to judge.
// A null primary key is dropped so the store assigns one.
func (im *Importer) unflatten(d *schema.Descriptor, row map[string]interface{}) schema.Record {
	out := make(schema.Record, len(d.Columns()))
	for _, col := range d.Columns() {
		v, ok := row[col.Name]
		if !ok {
			continue
		}
		if v == nil {
			if !col.PrimaryKey {
				out[col.Name] = nil
			}
			continue
		}
		out[col.Name] = im.restoreValue(col, v)
	}
	return out
}

func (im *Importer) restoreValue(col schema.Column, v interface{}) interface{} {
	switch col.Type {
	case schema.Integer:
		switch x := v.(type) {
		case int32:
			return int64(x)
		case int:
			return int64(x)
		case string:
			if i, err := strconv.ParseInt(x, 10, 64); err == nil {
				return i
			}
		}
	case schema.Float:
		switch x := v.(type) {
		case int64:
			return float64(x)
		case string:
			if f, err := strconv.ParseFloat(x, 64); err == nil {
				return f
			}
		}
	case schema.Timestamp:
		if s, ok := v.(string); ok {
			if t, err := time.ParseInLocation(schema.TimestampLayout, s, im.loc); err == nil {
				return t
			}
		}
	}
	return v
}
