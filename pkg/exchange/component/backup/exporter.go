package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/hrsync/pkg/exchange/adapter/database"
	"github.com/tigerroll/hrsync/pkg/exchange/adapter/storage"
	"github.com/tigerroll/hrsync/pkg/exchange/core/domain/schema"
	"github.com/tigerroll/hrsync/pkg/exchange/core/metrics"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/exception"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/logger"
)

const exporterModule = "exporter"

// FileTimestampLayout stamps backup file and archive names.
const FileTimestampLayout = "20060102150405"

// ArchivePrefix starts every full-backup archive name.
const ArchivePrefix = "backup_"

// Archive describes a published full backup.
type Archive struct {
	// Name is the archive file name, "backup_all_<ts>.zip".
	Name string
	// Bucket and ObjectName locate the archive in artifact storage.
	Bucket     string
	ObjectName string
	// Members are the file names inside the archive, in entity order.
	Members []string
	Size    int64
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithArtifactStorage sets where ExportAll publishes archives.
func WithArtifactStorage(store storage.StorageExecutor, bucket, prefix string) ExporterOption {
	return func(e *Exporter) {
		e.store = store
		e.bucket = bucket
		e.prefix = prefix
	}
}

// WithStagingDir sets the parent of ExportAll scratch directories.
func WithStagingDir(dir string) ExporterOption {
	return func(e *Exporter) {
		if dir != "" {
			e.stagingDir = dir
		}
	}
}

// WithClock replaces time.Now for file name stamps.
func WithClock(now func() time.Time) ExporterOption {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// WithExporterMetrics sets the metric recorder and tracer.
func WithExporterMetrics(recorder metrics.MetricRecorder, tracer metrics.Tracer) ExporterOption {
	return func(e *Exporter) {
		if recorder != nil {
			e.recorder = recorder
		}
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// Exporter serializes whole tables into backup files.
type Exporter struct {
	reader     database.TableReader
	codec      Codec
	store      storage.StorageExecutor
	bucket     string
	prefix     string
	stagingDir string
	now        func() time.Time
	recorder   metrics.MetricRecorder
	tracer     metrics.Tracer
}

// NewExporter creates an Exporter that reads through reader and encodes with codec.
func NewExporter(reader database.TableReader, codec Codec, opts ...ExporterOption) *Exporter {
	e := &Exporter{
		reader:     reader,
		codec:      codec,
		stagingDir: os.TempDir(),
		now:        time.Now,
		recorder:   metrics.NewNoOpMetricRecorder(),
		tracer:     metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Codec returns the encoding codec.
func (e *Exporter) Codec() Codec {
	return e.codec
}

// FileName returns "<table>_<YYYYMMDDHHMMSS><ext>".
func (e *Exporter) FileName(table string, ts time.Time) string {
	return fmt.Sprintf("%s_%s%s", table, ts.Format(FileTimestampLayout), e.codec.Extension())
}

// ExportTable reads every row of d in primary-key order and shapes it into a File.
func (e *Exporter) ExportTable(ctx context.Context, d *schema.Descriptor) (*File, error) {
	ctx, end := e.tracer.StartSpan(ctx, "backup.export_table", map[string]interface{}{"table": d.Table})
	defer end()
	start := time.Now()

	f, err := e.exportTable(ctx, d)
	if err != nil {
		e.fail(ctx, err)
		return nil, err
	}
	e.recorder.RecordExport(ctx, d.Table, len(f.Rows), time.Since(start))
	return f, nil
}

func (e *Exporter) exportTable(ctx context.Context, d *schema.Descriptor) (*File, error) {
	var orderBy string
	if pk, ok := d.PrimaryKey(); ok {
		orderBy = pk.Name
	}
	columns := d.ColumnNames()
	rows, err := e.reader.QueryAll(ctx, d.Table, columns, orderBy)
	if err != nil {
		return nil, exception.NewExchangeErrorf(exporterModule, nil, "Failed to read table %s", d.Table, err)
	}
	if len(rows) == 0 {
		return nil, exception.NewExchangeErrorf(exporterModule, exception.ErrEmptyTable, "No records found in %s", d.Table).
			WithDetail("table", d.Table)
	}

	f := &File{
		Table:  d.Table,
		Fields: InferFields(columns, rows[0]),
		Rows:   make([]map[string]interface{}, 0, len(rows)),
	}
	for idx, row := range rows {
		shaped, err := shapeRow(f.Fields, row)
		if err != nil {
			return nil, exception.NewExchangeErrorf(exporterModule, nil, "Failed to export row %d of %s", idx, d.Table, err)
		}
		f.Rows = append(f.Rows, shaped)
	}
	logger.Debugf("Exported %d rows from '%s' (%d fields).", len(f.Rows), d.Table, len(f.Fields))
	return f, nil
}

// EncodeTable exports d and encodes it to w.
func (e *Exporter) EncodeTable(ctx context.Context, d *schema.Descriptor, w io.Writer) (*File, error) {
	f, err := e.ExportTable(ctx, d)
	if err != nil {
		return nil, err
	}
	if err := e.codec.Encode(w, f); err != nil {
		wrapped := exception.NewExchangeErrorf(exporterModule, nil, "Failed to encode %s", d.Table, err)
		e.fail(ctx, wrapped)
		return nil, wrapped
	}
	return f, nil
}

// WriteTable exports d into dir as "<table>_<ts><ext>" and returns the file path.
func (e *Exporter) WriteTable(ctx context.Context, d *schema.Descriptor, dir string) (string, error) {
	return e.writeTable(ctx, d, dir, e.now())
}

func (e *Exporter) writeTable(ctx context.Context, d *schema.Descriptor, dir string, ts time.Time) (string, error) {
	var buf bytes.Buffer
	if _, err := e.EncodeTable(ctx, d, &buf); err != nil {
		return "", err
	}
	p := filepath.Join(dir, e.FileName(d.Table, ts))
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		return "", exception.NewExchangeErrorf(exporterModule, nil, "Failed to write backup file %s", p, err)
	}
	logger.Infof("Wrote backup of '%s' to '%s' (%d bytes).", d.Table, p, buf.Len())
	return p, nil
}

// ExportAll writes one file per descriptor into a scratch directory, zips them into
// "backup_all_<ts>.zip" and publishes the archive to artifact storage. Any table failure
// fails the whole archive. The scratch directory is removed on every path.
func (e *Exporter) ExportAll(ctx context.Context, ds []*schema.Descriptor) (archive *Archive, err error) {
	if e.store == nil {
		return nil, exception.NewExchangeErrorf(exporterModule, nil, "No artifact storage configured for full backups")
	}
	ctx, end := e.tracer.StartSpan(ctx, "backup.export_all", map[string]interface{}{"tables": len(ds)})
	defer end()

	ts := e.now()
	scratch, err := e.newScratchDir()
	if err != nil {
		e.fail(ctx, err)
		return nil, err
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			logger.Errorf("Failed to remove scratch directory '%s': %v", scratch, rmErr)
		}
	}()

	paths := make([]string, 0, len(ds))
	for _, d := range ds {
		p, err := e.writeTable(ctx, d, scratch, ts)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}

	archive = &Archive{
		Name:   fmt.Sprintf("%sall_%s.zip", ArchivePrefix, ts.Format(FileTimestampLayout)),
		Bucket: e.bucket,
	}
	archive.ObjectName = path.Join(e.prefix, archive.Name)
	for _, p := range paths {
		archive.Members = append(archive.Members, filepath.Base(p))
	}

	zipPath := filepath.Join(scratch, archive.Name)
	if archive.Size, err = writeZip(zipPath, paths); err != nil {
		wrapped := exception.NewExchangeErrorf(exporterModule, nil, "Failed to build archive %s", archive.Name, err)
		e.fail(ctx, wrapped)
		return nil, wrapped
	}
	if err := e.publish(ctx, zipPath, archive); err != nil {
		wrapped := exception.NewExchangeErrorf(exporterModule, nil, "Failed to publish archive %s", archive.Name, err)
		e.fail(ctx, wrapped)
		return nil, wrapped
	}

	logger.Infof("Published full backup '%s' (%d tables, %d bytes) to '%s/%s'.",
		archive.Name, len(archive.Members), archive.Size, archive.Bucket, archive.ObjectName)
	return archive, nil
}

func (e *Exporter) newScratchDir() (string, error) {
	if err := os.MkdirAll(e.stagingDir, 0o755); err != nil {
		return "", exception.NewExchangeErrorf(exporterModule, nil, "Failed to create staging directory %s", e.stagingDir, err)
	}
	dir, err := os.MkdirTemp(e.stagingDir, "export-"+uuid.NewString()+"-")
	if err != nil {
		return "", exception.NewExchangeErrorf(exporterModule, nil, "Failed to create scratch directory under %s", e.stagingDir, err)
	}
	return dir, nil
}

func (e *Exporter) publish(ctx context.Context, zipPath string, archive *Archive) error {
	f, err := os.Open(zipPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return e.store.Upload(ctx, archive.Bucket, archive.ObjectName, f, "application/zip")
}

// writeZip stores each file under its base name and returns the archive size.
func writeZip(zipPath string, members []string) (size int64, err error) {
	out, err := os.Create(zipPath)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cErr := out.Close(); cErr != nil {
			err = multierror.Append(err, cErr).ErrorOrNil()
		}
		if err == nil {
			if info, sErr := os.Stat(zipPath); sErr == nil {
				size = info.Size()
			}
		}
	}()

	zw := zip.NewWriter(out)
	for _, p := range members {
		if err = addZipMember(zw, p); err != nil {
			_ = zw.Close()
			return 0, err
		}
	}
	return 0, zw.Close()
}

func addZipMember(zw *zip.Writer, p string) error {
	src, err := os.Open(p)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = filepath.Base(p)
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

func (e *Exporter) fail(ctx context.Context, err error) {
	logger.Errorf("Export failed: %s", exception.ExtractErrorMessage(err))
	e.recorder.RecordFailure(ctx, "export", exception.KindName(err))
	e.tracer.RecordError(ctx, exporterModule, err)
}
