package exception_test

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/hrsync/pkg/exchange/support/util/exception"
)

func TestExchangeError_KindAndUnwrap(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := exception.NewExchangeError("importer", exception.ErrMalformedBackup, "cannot decode backup", cause)

	assert.True(t, errors.Is(err, exception.ErrMalformedBackup))
	assert.False(t, errors.Is(err, exception.ErrEmptyBackup))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Equal(t, "[importer] cannot decode backup: unexpected EOF", err.Error())
	assert.NotEmpty(t, err.StackTrace)

	wrapped := fmt.Errorf("restore jobs: %w", err)
	assert.True(t, errors.Is(wrapped, exception.ErrMalformedBackup))
	assert.True(t, exception.IsExchangeError(wrapped))
	assert.Equal(t, "cannot decode backup", exception.ExtractErrorMessage(wrapped))
}

func TestNewExchangeErrorf_TrailingErrorIsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := exception.NewExchangeErrorf("exporter", exception.ErrEmptyTable, "table %s has %d rows", "jobs", 0, cause)

	assert.Equal(t, "table jobs has 0 rows", err.Message)
	assert.Same(t, cause, err.OriginalErr)
}

func TestWithDetail(t *testing.T) {
	err := exception.NewExchangeError("ingest", exception.ErrBatchTooLarge, "too many", nil).
		WithDetail("total_records", 1001).
		WithDetail("limit", 1000)

	assert.Equal(t, 1001, err.Details["total_records"])
	assert.Equal(t, 1000, err.Details["limit"])
	assert.Equal(t, "[ingest] too many", err.Error())
}

func TestKindName(t *testing.T) {
	err := exception.NewExchangeError("importer", exception.ErrSchemaMismatch, "x", nil)
	assert.Equal(t, "SchemaMismatch", exception.KindName(err))

	pe := exception.NewPersistenceError("jobs", exception.ConstraintDuplicateKey, errors.New("UNIQUE constraint failed: jobs.id"))
	assert.Equal(t, "PersistenceError", exception.KindName(pe))

	assert.Equal(t, "", exception.KindName(errors.New("plain")))
	assert.Equal(t, "", exception.KindName(nil))

	kind, ok := exception.LookupErrorKind("RestoreDeleteFailed")
	assert.True(t, ok)
	assert.Same(t, exception.ErrRestoreDeleteFailed, kind)
}

func TestPersistenceError(t *testing.T) {
	driverErr := errors.New("  UNIQUE constraint failed: jobs.id ")
	pe := exception.NewPersistenceError("jobs", "", driverErr)

	assert.Equal(t, exception.ConstraintUnknown, pe.Constraint)
	assert.Equal(t, "UNIQUE constraint failed: jobs.id", pe.Error())
	assert.True(t, errors.Is(pe, exception.ErrPersistence))
	assert.True(t, errors.Is(pe, driverErr))
}

func TestRegisterErrorKind_Panics(t *testing.T) {
	assert.Panics(t, func() { exception.RegisterErrorKind("", errors.New("x")) })
	assert.Panics(t, func() { exception.RegisterErrorKind("Nil", nil) })
}
