package backup_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/hrsync/pkg/exchange/adapter/database"
	"github.com/tigerroll/hrsync/pkg/exchange/adapter/storage"
	storageConfig "github.com/tigerroll/hrsync/pkg/exchange/adapter/storage/config"
	"github.com/tigerroll/hrsync/pkg/exchange/adapter/storage/local"
	"github.com/tigerroll/hrsync/pkg/exchange/component/backup"
	"github.com/tigerroll/hrsync/pkg/exchange/core/domain/schema"
	"github.com/tigerroll/hrsync/pkg/exchange/engine/ingest"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/exception"
	"github.com/tigerroll/hrsync/pkg/exchange/test"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// seed inserts one batch per entity and fails the test on any rejection.
func seed(t *testing.T, conn database.DBConnection, batches map[*schema.Descriptor][]map[string]interface{}) {
	t.Helper()
	ing := ingest.NewIngestor(test.NewSQLiteTxManager(conn))
	for d, recs := range batches {
		out, err := ing.IngestBatch(context.Background(), d, recs)
		require.NoError(t, err)
		require.Empty(t, out.Rejected)
	}
}

func seedHR(t *testing.T, conn database.DBConnection) {
	seed(t, conn, map[*schema.Descriptor][]map[string]interface{}{
		schema.Departments: {
			{"id": 2, "department": "Sales"},
			{"id": 1, "department": "Product Management"},
		},
		schema.Jobs: {
			{"id": 7, "job": "Engineer"},
		},
		schema.HiredEmployees: {
			{"id": 1, "name": "Harold Vogt", "datetime": "2021-11-07 02:48:42", "department_id": 2, "job_id": 7},
			{"id": 2, "name": "Ty Hofer", "datetime": "2021-05-30 05:43:46", "department_id": 1, "job_id": 7},
		},
	})
}

func newLocalStore(t *testing.T) storage.StorageConnection {
	store, err := local.NewLocalAdapter(storageConfig.StorageConfig{Type: "local", BaseDir: t.TempDir()}, "artifacts")
	require.NoError(t, err)
	return store
}

func avroCodec(t *testing.T) backup.Codec {
	c, err := backup.NewCodec(backup.FormatAvro, "SNAPPY")
	require.NoError(t, err)
	return c
}

func TestExportTable_OrdersByPrimaryKeyAndFlattens(t *testing.T) {
	conn := test.NewSQLiteConnection(t)
	seedHR(t, conn)
	exp := backup.NewExporter(conn, avroCodec(t))

	f, err := exp.ExportTable(context.Background(), schema.HiredEmployees)
	require.NoError(t, err)

	assert.Equal(t, "hired_employees", f.Table)
	assert.Equal(t, []backup.Field{
		{Name: "id", Type: backup.FieldInt},
		{Name: "name", Type: backup.FieldString},
		{Name: "datetime", Type: backup.FieldString},
		{Name: "department_id", Type: backup.FieldInt},
		{Name: "job_id", Type: backup.FieldInt},
	}, f.Fields)
	require.Len(t, f.Rows, 2)
	assert.Equal(t, map[string]interface{}{
		"id": int64(1), "name": "Harold Vogt", "datetime": "2021-11-07 02:48:42",
		"department_id": int64(2), "job_id": int64(7),
	}, f.Rows[0])

	deps, err := exp.ExportTable(context.Background(), schema.Departments)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deps.Rows[0]["id"])
	assert.Equal(t, int64(2), deps.Rows[1]["id"])
}

func TestExportTable_Empty(t *testing.T) {
	conn := test.NewSQLiteConnection(t)
	exp := backup.NewExporter(conn, avroCodec(t))

	_, err := exp.ExportTable(context.Background(), schema.Jobs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrEmptyTable))
	assert.Equal(t, "No records found in jobs", exception.ExtractErrorMessage(err))
}

func TestWriteTable_FileName(t *testing.T) {
	conn := test.NewSQLiteConnection(t)
	seedHR(t, conn)
	dir := t.TempDir()

	for _, format := range []string{backup.FormatAvro, backup.FormatParquet} {
		codec, err := backup.NewCodec(format, "SNAPPY")
		require.NoError(t, err)
		exp := backup.NewExporter(conn, codec, backup.WithClock(fixedClock))

		p, err := exp.WriteTable(context.Background(), schema.Jobs, dir)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "jobs_20240309140507"+codec.Extension()), p)

		data, err := os.ReadFile(p)
		require.NoError(t, err)
		f, err := codec.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, []map[string]interface{}{{"id": int64(7), "job": "Engineer"}}, f.Rows)
	}
}

func TestExportAll_PublishesArchiveAndCleansUp(t *testing.T) {
	conn := test.NewSQLiteConnection(t)
	seedHR(t, conn)
	store := newLocalStore(t)
	staging := t.TempDir()

	exp := backup.NewExporter(conn, avroCodec(t),
		backup.WithArtifactStorage(store, "backups", "full"),
		backup.WithStagingDir(staging),
		backup.WithClock(fixedClock))

	archive, err := exp.ExportAll(context.Background(), schema.DefaultRegistry().All())
	require.NoError(t, err)
	assert.Equal(t, "backup_all_20240309140507.zip", archive.Name)
	assert.Equal(t, "full/backup_all_20240309140507.zip", archive.ObjectName)
	assert.Equal(t, []string{
		"departments_20240309140507.avro",
		"jobs_20240309140507.avro",
		"hired_employees_20240309140507.avro",
	}, archive.Members)
	assert.Positive(t, archive.Size)

	rc, err := store.Download(context.Background(), "backups", archive.ObjectName)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.EqualValues(t, archive.Size, len(data))

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	for _, zf := range zr.File {
		names = append(names, zf.Name)
	}
	assert.Equal(t, archive.Members, names)

	member, err := zr.File[2].Open()
	require.NoError(t, err)
	f, err := avroCodec(t).Decode(member)
	require.NoError(t, err)
	assert.Len(t, f.Rows, 2)

	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directory must be removed")
}

func TestExportAll_EmptyTableFailsWholeArchive(t *testing.T) {
	conn := test.NewSQLiteConnection(t)
	seed(t, conn, map[*schema.Descriptor][]map[string]interface{}{
		schema.Departments: {{"id": 1, "department": "Sales"}},
	})
	store := newLocalStore(t)
	staging := t.TempDir()

	exp := backup.NewExporter(conn, avroCodec(t),
		backup.WithArtifactStorage(store, "backups", ""),
		backup.WithStagingDir(staging))

	_, err := exp.ExportAll(context.Background(), schema.DefaultRegistry().All())
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrEmptyTable))

	var published []string
	require.NoError(t, store.ListObjects(context.Background(), "backups", "", func(name string) error {
		published = append(published, name)
		return nil
	}))
	assert.Empty(t, published)

	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExportAll_RequiresStorage(t *testing.T) {
	conn := test.NewSQLiteConnection(t)
	exp := backup.NewExporter(conn, avroCodec(t))

	_, err := exp.ExportAll(context.Background(), schema.DefaultRegistry().All())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No artifact storage configured")
}
