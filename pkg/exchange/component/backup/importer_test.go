package backup_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	gormadapter "github.com/tigerroll/hrsync/pkg/exchange/adapter/database/gorm"
	"github.com/tigerroll/hrsync/pkg/exchange/component/backup"
	"github.com/tigerroll/hrsync/pkg/exchange/core/domain/schema"
	"github.com/tigerroll/hrsync/pkg/exchange/engine/ingest"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/exception"
	"github.com/tigerroll/hrsync/pkg/exchange/test"
)

func newImporter(t *testing.T, conn *gormadapter.GormDBAdapter) *backup.Importer {
	txm := test.NewSQLiteTxManager(conn)
	parquet, err := backup.NewCodec(backup.FormatParquet, "SNAPPY")
	require.NoError(t, err)
	return backup.NewImporter(backup.NewCodecSet(avroCodec(t), parquet), txm, ingest.NewIngestor(txm))
}

func encode(t *testing.T, codec backup.Codec, f *backup.File) []byte {
	var buf bytes.Buffer
	require.NoError(t, codec.Encode(&buf, f))
	return buf.Bytes()
}

func TestRestoreTable_RoundTrip(t *testing.T) {
	for _, format := range []string{backup.FormatAvro, backup.FormatParquet} {
		t.Run(format, func(t *testing.T) {
			conn := test.NewSQLiteConnection(t)
			seedHR(t, conn)
			ctx := context.Background()

			codec, err := backup.NewCodec(format, "SNAPPY")
			require.NoError(t, err)
			var buf bytes.Buffer
			_, err = backup.NewExporter(conn, codec).EncodeTable(ctx, schema.HiredEmployees, &buf)
			require.NoError(t, err)
			before, err := conn.QueryAll(ctx, "hired_employees", schema.HiredEmployees.ColumnNames(), "id")
			require.NoError(t, err)

			// Rows added after the backup disappear on restore.
			seed(t, conn, map[*schema.Descriptor][]map[string]interface{}{
				schema.HiredEmployees: {{"id": 3, "name": "Late", "datetime": "2022-01-01 00:00:00", "department_id": 1, "job_id": 7}},
			})

			res, err := newImporter(t, conn).RestoreTable(ctx, &buf, schema.HiredEmployees)
			require.NoError(t, err)
			assert.Equal(t, "Restored 2 records to hired_employees", res.Message())
			assert.EqualValues(t, 3, res.Deleted)
			assert.Empty(t, res.Outcome.Rejected)
			assert.Empty(t, res.Warning())

			after, err := conn.QueryAll(ctx, "hired_employees", schema.HiredEmployees.ColumnNames(), "id")
			require.NoError(t, err)
			require.Len(t, after, len(before))
			for i := range before {
				assert.Equal(t, before[i]["id"], after[i]["id"])
				assert.Equal(t, before[i]["name"], after[i]["name"])
				assert.Equal(t, before[i]["department_id"], after[i]["department_id"])
				assert.True(t, before[i]["datetime"].(time.Time).Equal(after[i]["datetime"].(time.Time)))
			}
		})
	}
}

func TestRestoreTable_SchemaMismatchLeavesTableUntouched(t *testing.T) {
	conn := test.NewSQLiteConnection(t)
	seedHR(t, conn)
	ctx := context.Background()

	data := encode(t, avroCodec(t), &backup.File{
		Table:  "hired_employees",
		Fields: []backup.Field{{Name: "id", Type: backup.FieldInt}, {Name: "name", Type: backup.FieldString}},
		Rows:   []map[string]interface{}{{"id": int64(9), "name": "Only Name"}},
	})

	_, err := newImporter(t, conn).RestoreTable(ctx, bytes.NewReader(data), schema.HiredEmployees)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrSchemaMismatch))

	var ee *exception.ExchangeError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, []string{"datetime", "department_id", "job_id"}, ee.Details["missing_columns"])
	assert.Equal(t, "Schema mismatch. Missing columns: datetime, department_id, job_id", ee.Message)

	rows, err := conn.QueryAll(ctx, "hired_employees", nil, "id")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRestoreTable_EmptyAndMalformed(t *testing.T) {
	conn := test.NewSQLiteConnection(t)
	seedHR(t, conn)
	ctx := context.Background()
	im := newImporter(t, conn)

	noRows := encode(t, avroCodec(t), &backup.File{Table: "jobs", Fields: []backup.Field{
		{Name: "id", Type: backup.FieldInt}, {Name: "job", Type: backup.FieldString},
	}})

	cases := []struct {
		name string
		data []byte
		kind error
	}{
		{"zero bytes", nil, exception.ErrEmptyBackup},
		{"no rows", noRows, exception.ErrEmptyBackup},
		{"garbage", []byte("definitely not avro"), exception.ErrMalformedBackup},
		{"truncated", noRows[:len(noRows)/2], exception.ErrMalformedBackup},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := im.RestoreTable(ctx, bytes.NewReader(tc.data), schema.Jobs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind), "got %v", err)
		})
	}

	rows, err := conn.QueryAll(ctx, "jobs", nil, "id")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "failed restores must not delete")
}

func TestRestoreTable_RejectedRowsWarn(t *testing.T) {
	conn := test.NewSQLiteConnection(t)
	seedHR(t, conn)
	ctx := context.Background()

	data := encode(t, avroCodec(t), &backup.File{
		Table:  "jobs",
		Fields: []backup.Field{{Name: "id", Type: backup.FieldInt}, {Name: "job", Type: backup.FieldString}},
		Rows: []map[string]interface{}{
			{"id": int64(1), "job": "Engineer"},
			{"id": int64(1), "job": "Duplicate"},
			{"id": nil, "job": "Store assigns"},
			{"id": int64(5), "job": nil},
		},
	})

	res, err := newImporter(t, conn).RestoreTable(ctx, bytes.NewReader(data), schema.Jobs)
	require.NoError(t, err)
	assert.Equal(t, "Restored 2 records to jobs", res.Message())
	assert.Equal(t, backup.DataLossWarning, res.Warning())
	require.Len(t, res.Outcome.Rejected, 2)
	assert.Equal(t, map[string]interface{}{"id": int64(1), "job": "Duplicate"}, res.Outcome.Rejected[0].Record)
	assert.Contains(t, res.Outcome.Rejected[0].Error, "UNIQUE constraint failed")
	assert.Contains(t, res.Outcome.Rejected[1].Error, "NOT NULL constraint failed")

	rows, err := conn.QueryAll(ctx, "jobs", nil, "id")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Engineer", rows[0]["job"])
	assert.Equal(t, int64(2), rows[1]["id"])
}

func TestRestoreTable_DeleteFailureRollsBack(t *testing.T) {
	mockTx := new(test.MockTx)
	mockTxManager := new(test.MockTxManager)
	mockTxManager.On("Begin", mock.Anything, mock.Anything).Return(mockTx, nil)
	mockTx.On("DeleteAll", mock.Anything, "jobs").Return(int64(0), errors.New("foreign key constraint fails"))
	mockTxManager.On("Rollback", mockTx).Return(nil)

	im := backup.NewImporter(backup.NewCodecSet(avroCodec(t)), mockTxManager, ingest.NewIngestor(mockTxManager))
	data := encode(t, avroCodec(t), &backup.File{
		Table:  "jobs",
		Fields: []backup.Field{{Name: "id", Type: backup.FieldInt}, {Name: "job", Type: backup.FieldString}},
		Rows:   []map[string]interface{}{{"id": int64(1), "job": "Engineer"}},
	})

	_, err := im.RestoreTable(context.Background(), bytes.NewReader(data), schema.Jobs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrRestoreDeleteFailed))
	assert.True(t, strings.Contains(err.Error(), "foreign key constraint fails"))

	mockTxManager.AssertExpectations(t)
	mockTx.AssertExpectations(t)
	mockTx.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
	mockTxManager.AssertNotCalled(t, "Commit", mock.Anything)
}

func TestRestoreTable_RestoresTimestampsInLocation(t *testing.T) {
	mockTx := new(test.MockTx)
	mockTxManager := new(test.MockTxManager)
	mockTxManager.On("Begin", mock.Anything, mock.Anything).Return(mockTx, nil)
	mockTx.On("DeleteAll", mock.Anything, "hired_employees").Return(int64(4), nil)
	mockTxManager.On("Commit", mockTx).Return(nil)

	loc := time.FixedZone("UTC+9", 9*60*60)
	var inserted map[string]interface{}
	mockTx.On("Insert", mock.Anything, "hired_employees", mock.Anything).
		Run(func(args mock.Arguments) { inserted = args.Get(2).(map[string]interface{}) }).
		Return(nil)

	im := backup.NewImporter(backup.NewCodecSet(avroCodec(t)), mockTxManager, ingest.NewIngestor(mockTxManager),
		backup.WithLocation(loc))
	data := encode(t, avroCodec(t), &backup.File{
		Table: "hired_employees",
		Fields: []backup.Field{
			{Name: "id", Type: backup.FieldString},
			{Name: "name", Type: backup.FieldString},
			{Name: "datetime", Type: backup.FieldString},
			{Name: "department_id", Type: backup.FieldInt},
			{Name: "job_id", Type: backup.FieldInt},
			{Name: "ignored", Type: backup.FieldString},
		},
		Rows: []map[string]interface{}{{
			"id": "12", "name": "Ann", "datetime": "2021-01-02 03:04:05",
			"department_id": int64(1), "job_id": int64(2), "ignored": "x",
		}},
	})

	res, err := im.RestoreTable(context.Background(), bytes.NewReader(data), schema.HiredEmployees)
	require.NoError(t, err)
	assert.EqualValues(t, 4, res.Deleted)
	assert.Equal(t, map[string]interface{}{
		"id":            int64(12),
		"name":          "Ann",
		"datetime":      time.Date(2021, 1, 2, 3, 4, 5, 0, loc),
		"department_id": int64(1),
		"job_id":        int64(2),
	}, inserted)
}

// seedOrdered ingests departments, jobs and employees in that order so foreign keys resolve.
func seedOrdered(t *testing.T, conn *gormadapter.GormDBAdapter, employees []map[string]interface{}) {
	t.Helper()
	seed(t, conn, map[*schema.Descriptor][]map[string]interface{}{
		schema.Departments: {{"id": 1, "department": "Product Management"}, {"id": 2, "department": "Sales"}},
	})
	seed(t, conn, map[*schema.Descriptor][]map[string]interface{}{schema.Jobs: {{"id": 7, "job": "Engineer"}}})
	seed(t, conn, map[*schema.Descriptor][]map[string]interface{}{schema.HiredEmployees: employees})
}

func employeeFields() []backup.Field {
	return []backup.Field{
		{Name: "id", Type: backup.FieldInt},
		{Name: "name", Type: backup.FieldString},
		{Name: "datetime", Type: backup.FieldString},
		{Name: "department_id", Type: backup.FieldInt},
		{Name: "job_id", Type: backup.FieldInt},
	}
}

func employeeRow(id, departmentID int64) map[string]interface{} {
	return map[string]interface{}{
		"id": id, "name": "Employee", "datetime": "2021-07-27 16:02:08",
		"department_id": departmentID, "job_id": int64(7),
	}
}

func TestRestoreTable_ForeignKeyViolationRejectsRow(t *testing.T) {
	conn := test.NewSQLiteConnectionWithForeignKeys(t)
	ctx := context.Background()
	seedOrdered(t, conn, []map[string]interface{}{
		{"id": 1, "name": "Before One", "datetime": "2020-01-01 00:00:00", "department_id": 1, "job_id": 7},
		{"id": 2, "name": "Before Two", "datetime": "2020-01-02 00:00:00", "department_id": 2, "job_id": 7},
	})

	data := encode(t, avroCodec(t), &backup.File{
		Table:  "hired_employees",
		Fields: employeeFields(),
		Rows: []map[string]interface{}{
			employeeRow(10, 1),
			employeeRow(11, 2),
			employeeRow(12, 999),
			employeeRow(13, 1),
			employeeRow(14, 2),
		},
	})

	res, err := newImporter(t, conn).RestoreTable(ctx, bytes.NewReader(data), schema.HiredEmployees)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Deleted)
	assert.Equal(t, "Restored 4 records to hired_employees", res.Message())
	assert.Equal(t, backup.DataLossWarning, res.Warning())
	require.Len(t, res.Outcome.Rejected, 1)
	assert.Equal(t, int64(12), res.Outcome.Rejected[0].Record["id"])
	assert.Contains(t, res.Outcome.Rejected[0].Error, "FOREIGN KEY constraint failed")

	rows, err := conn.QueryAll(ctx, "hired_employees", []string{"id"}, "id")
	require.NoError(t, err)
	var ids []int64
	for _, r := range rows {
		ids = append(ids, r["id"].(int64))
	}
	assert.Equal(t, []int64{10, 11, 13, 14}, ids, "pre-restore rows are gone")
}

func TestRestoreTable_ClearsReferencedParentTable(t *testing.T) {
	conn := test.NewSQLiteConnectionWithForeignKeys(t)
	ctx := context.Background()
	seedOrdered(t, conn, []map[string]interface{}{
		{"id": 1, "name": "Harold Vogt", "datetime": "2021-11-07 02:48:42", "department_id": 2, "job_id": 7},
	})

	data := encode(t, avroCodec(t), &backup.File{
		Table:  "departments",
		Fields: []backup.Field{{Name: "id", Type: backup.FieldInt}, {Name: "department", Type: backup.FieldString}},
		Rows: []map[string]interface{}{
			{"id": int64(2), "department": "Sales"},
			{"id": int64(3), "department": "Legal"},
		},
	})

	res, err := newImporter(t, conn).RestoreTable(ctx, bytes.NewReader(data), schema.Departments)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Deleted)
	assert.Empty(t, res.Outcome.Rejected)

	var enabled int
	require.NoError(t, conn.GetGormDB().Raw("PRAGMA foreign_keys").Scan(&enabled).Error)
	assert.Equal(t, 1, enabled, "enforcement is restored after the delete")

	out, err := ingest.NewIngestor(test.NewSQLiteTxManager(conn)).IngestBatch(ctx, schema.HiredEmployees,
		[]map[string]interface{}{{"name": "Dangling", "datetime": "2021-01-01 00:00:00", "department_id": 1, "job_id": 7}})
	require.NoError(t, err)
	require.Len(t, out.Rejected, 1)
	assert.Contains(t, out.Rejected[0].Error, "FOREIGN KEY constraint failed")
}
