package ingest_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/hrsync/pkg/exchange/core/domain/schema"
	"github.com/tigerroll/hrsync/pkg/exchange/engine/ingest"
	"github.com/tigerroll/hrsync/pkg/exchange/test"
)

func decodeRecords(t *testing.T, body string) []map[string]interface{} {
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var recs []map[string]interface{}
	require.NoError(t, dec.Decode(&recs))
	return recs
}

func TestIngestBatch_SQLite_PartialFailure(t *testing.T) {
	conn := test.NewSQLiteConnection(t)
	ing := ingest.NewIngestor(test.NewSQLiteTxManager(conn))
	ctx := context.Background()

	recs := decodeRecords(t, `[
		{"id": 1, "name": "Harold Vogt", "datetime": "2021-11-07 02:48:42", "department_id": 2, "job_id": 96},
		{"id": 2, "name": "Ty Hofer", "datetime": "2021-05-30 05:43:46", "department_id": "8", "job_id": 1},
		{"id": 1, "name": "Duplicate", "datetime": "2021-01-01 00:00:00", "department_id": 1, "job_id": 1},
		{"id": 3, "name": "Lyman Hadye", "datetime": "2021-09-01T23:27:38Z", "department_id": 5, "job_id": 52},
		{"name": "No Id", "datetime": "2021-02-03 04:05:06", "department_id": 3, "job_id": 7, "unknown": true}
	]`)

	out, err := ing.IngestBatch(ctx, schema.HiredEmployees, recs)
	require.NoError(t, err)

	assert.Equal(t, len(recs), out.Total())
	assert.Equal(t, []map[string]interface{}{recs[0], recs[1], recs[4]}, out.Accepted)
	require.Len(t, out.Rejected, 2)
	assert.Equal(t, recs[2], out.Rejected[0].Record)
	assert.Contains(t, out.Rejected[0].Error, "UNIQUE constraint failed")
	assert.Equal(t, recs[3], out.Rejected[1].Record)
	assert.Equal(t, "datetime: Value '2021-09-01T23:27:38Z' is not of type timestamp", out.Rejected[1].Error)

	rows, err := conn.QueryAll(ctx, "hired_employees", schema.HiredEmployees.ColumnNames(), "id")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, "Harold Vogt", rows[0]["name"])
	assert.Equal(t, int64(8), rows[1]["department_id"])
	assert.Equal(t, int64(3), rows[2]["id"], "store assigns the next key")

	ts, ok := rows[0]["datetime"].(time.Time)
	require.True(t, ok)
	assert.True(t, ts.Equal(time.Date(2021, 11, 7, 2, 48, 42, 0, time.UTC)))
}

func TestIngestBatch_SQLite_SingleObjectAndBatchCap(t *testing.T) {
	conn := test.NewSQLiteConnection(t)
	ing := ingest.NewIngestor(test.NewSQLiteTxManager(conn), ingest.WithMaxRecords(2))
	ctx := context.Background()

	out, err := ing.IngestBatch(ctx, schema.Departments, []map[string]interface{}{{"department": "Marketing"}})
	require.NoError(t, err)
	assert.Len(t, out.Accepted, 1)

	_, err = ing.IngestBatch(ctx, schema.Departments, make([]map[string]interface{}, 3))
	require.Error(t, err)

	rows, err := conn.QueryAll(ctx, "departments", nil, "id")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "an oversized batch touches nothing")
}

func TestIngestBatch_SQLite_ForeignKeyRejected(t *testing.T) {
	conn := test.NewSQLiteConnectionWithForeignKeys(t)
	ing := ingest.NewIngestor(test.NewSQLiteTxManager(conn))
	ctx := context.Background()

	_, err := ing.IngestBatch(ctx, schema.Departments, []map[string]interface{}{{"id": 1, "department": "Supply Chain"}})
	require.NoError(t, err)
	_, err = ing.IngestBatch(ctx, schema.Jobs, []map[string]interface{}{{"id": 1, "job": "Recruiter"}})
	require.NoError(t, err)

	recs := decodeRecords(t, `[
		{"id": 1, "name": "Harold Vogt", "datetime": "2021-11-07 02:48:42", "department_id": 1, "job_id": 1},
		{"id": 2, "name": "Ty Hofer", "datetime": "2021-05-30 05:43:46", "department_id": "999", "job_id": "999"},
		{"id": 3, "name": "Lyman Hadye", "datetime": "2021-09-01 23:27:38", "department_id": 1, "job_id": 1}
	]`)

	out, err := ing.IngestBatch(ctx, schema.HiredEmployees, recs)
	require.NoError(t, err)

	assert.Equal(t, []map[string]interface{}{recs[0], recs[2]}, out.Accepted)
	require.Len(t, out.Rejected, 1)
	assert.Equal(t, recs[1], out.Rejected[0].Record)
	assert.Contains(t, out.Rejected[0].Error, "FOREIGN KEY constraint failed")

	rows, err := conn.QueryAll(ctx, "hired_employees", []string{"id"}, "id")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, int64(3), rows[1]["id"])
}
