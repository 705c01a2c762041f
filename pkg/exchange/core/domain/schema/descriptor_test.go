package schema_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/hrsync/pkg/exchange/core/domain/schema"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/exception"
)

func TestHiredEmployeesDescriptor(t *testing.T) {
	d := schema.HiredEmployees

	assert.Equal(t, "employees", d.Entity)
	assert.Equal(t, "hired_employees", d.Table)
	assert.Equal(t, []string{"id", "name", "datetime", "department_id", "job_id"}, d.ColumnNames())
	assert.Equal(t, []string{"name", "datetime", "department_id", "job_id"}, d.RequiredColumns())

	pk, ok := d.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, "id", pk.Name)
	assert.False(t, pk.Required())

	c, ok := d.Column("datetime")
	require.True(t, ok)
	assert.Equal(t, schema.Timestamp, c.Type)
	assert.False(t, d.Has("salary"))
}

func TestColumnsReturnsCopy(t *testing.T) {
	cols := schema.Jobs.Columns()
	cols[1].Name = "mutated"
	assert.Equal(t, "job", schema.Jobs.Columns()[1].Name)
}

func TestColumnTypeString(t *testing.T) {
	assert.Equal(t, "integer", schema.Integer.String())
	assert.Equal(t, "float", schema.Float.String())
	assert.Equal(t, "text", schema.Text.String())
	assert.Equal(t, "timestamp", schema.Timestamp.String())
}

func TestNewDescriptor_RejectsDuplicates(t *testing.T) {
	assert.Panics(t, func() {
		schema.NewDescriptor("x", "x",
			schema.Column{Name: "a", Type: schema.Text},
			schema.Column{Name: "a", Type: schema.Integer},
		)
	})
	assert.Panics(t, func() {
		schema.NewDescriptor("x", "x",
			schema.Column{Name: "a", Type: schema.Integer, PrimaryKey: true},
			schema.Column{Name: "b", Type: schema.Integer, PrimaryKey: true},
		)
	})
}

func TestRegistryLookup(t *testing.T) {
	r := schema.DefaultRegistry()

	d, err := r.Lookup("employees")
	require.NoError(t, err)
	assert.Same(t, schema.HiredEmployees, d)

	d, err = r.Lookup(" Hired_Employees ")
	require.NoError(t, err)
	assert.Same(t, schema.HiredEmployees, d)

	_, err = r.Lookup("salaries")
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrUnknownEntity))

	assert.Equal(t, []string{"departments", "employees", "jobs"}, r.Entities())
	all := r.All()
	require.Len(t, all, 3)
	assert.Same(t, schema.Departments, all[0])
}

func TestRecordClone(t *testing.T) {
	r := schema.Record{"id": int64(1)}
	c := r.Clone()
	c["id"] = int64(2)
	assert.Equal(t, int64(1), r["id"])
}
