package gorm_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/hrsync/pkg/exchange/adapter/database/config"
	gormadapter "github.com/tigerroll/hrsync/pkg/exchange/adapter/database/gorm"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/exception"
	"github.com/tigerroll/hrsync/pkg/exchange/test"
)

// setupMySQLMock opens GORM on the mysql dialector over a sqlmock connection.
func setupMySQLMock(t *testing.T) (sqlmock.Sqlmock, *gormadapter.GormTransactionManager) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: gormadapter.NewGormLogger("SILENT")})
	require.NoError(t, err)

	conn, err := gormadapter.NewGormDBAdapter(gormDB, dbconfig.DatabaseConfig{Type: "mysql"}, "hr")
	require.NoError(t, err)
	t.Cleanup(func() {
		mock.ExpectClose()
		_ = conn.Close()
	})

	return mock, gormadapter.NewGormTransactionManager(test.NewTestSingleConnectionResolver(conn), "hr")
}

func TestGormTx_InsertCommit_MySQL(t *testing.T) {
	mock, txManager := setupMySQLMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `jobs` (`id`,`job`) VALUES (?,?)")).
		WithArgs(int64(7), "Engineer").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	tx, err := txManager.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Insert(ctx, "jobs", map[string]interface{}{"id": int64(7), "job": "Engineer"}))
	require.NoError(t, txManager.Commit(tx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTx_InsertDuplicateIsClassified_MySQL(t *testing.T) {
	mock, txManager := setupMySQLMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `jobs`")).
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry '7' for key 'PRIMARY'"})
	mock.ExpectRollback()

	tx, err := txManager.Begin(ctx)
	require.NoError(t, err)
	err = tx.Insert(ctx, "jobs", map[string]interface{}{"id": int64(7), "job": "Engineer"})
	require.Error(t, err)
	require.NoError(t, txManager.Rollback(tx))

	var pe *exception.PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "jobs", pe.Table)
	assert.Equal(t, exception.ConstraintDuplicateKey, pe.Constraint)
	assert.Contains(t, err.Error(), "Duplicate entry '7'")
	assert.True(t, errors.Is(err, exception.ErrPersistence))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTx_DeleteAllSuspendsForeignKeyChecks_MySQL(t *testing.T) {
	mock, txManager := setupMySQLMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET FOREIGN_KEY_CHECKS=0")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `departments`")).WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectExec(regexp.QuoteMeta("SET FOREIGN_KEY_CHECKS=1")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := txManager.Begin(ctx)
	require.NoError(t, err)
	n, err := tx.DeleteAll(ctx, "departments")
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	require.NoError(t, txManager.Commit(tx))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTransactionManager_RejectsForeignTx(t *testing.T) {
	_, txManager := setupMySQLMock(t)

	assert.Error(t, txManager.Commit(new(test.MockTx)))
	assert.Error(t, txManager.Rollback(new(test.MockTx)))
}

func TestGormTx_SQLite(t *testing.T) {
	conn := test.NewSQLiteConnection(t)
	txManager := test.NewSQLiteTxManager(conn)
	ctx := context.Background()

	insert := func(values map[string]interface{}) error {
		tx, err := txManager.Begin(ctx)
		require.NoError(t, err)
		if err := tx.Insert(ctx, "jobs", values); err != nil {
			require.NoError(t, txManager.Rollback(tx))
			return err
		}
		return txManager.Commit(tx)
	}

	require.NoError(t, insert(map[string]interface{}{"id": int64(1), "job": "Engineer"}))
	require.NoError(t, insert(map[string]interface{}{"job": "Analyst"}))

	err := insert(map[string]interface{}{"id": int64(1), "job": "Duplicate"})
	var pe *exception.PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, exception.ConstraintDuplicateKey, pe.Constraint)
	assert.Contains(t, err.Error(), "UNIQUE constraint failed")

	rows, err := conn.QueryAll(ctx, "jobs", []string{"id", "job"}, "id")
	require.NoError(t, err)
	assert.Equal(t, []map[string]interface{}{
		{"id": int64(1), "job": "Engineer"},
		{"id": int64(2), "job": "Analyst"},
	}, rows)

	tx, err := txManager.Begin(ctx)
	require.NoError(t, err)
	n, err := tx.DeleteAll(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, txManager.Rollback(tx))

	rows, err = conn.QueryAll(ctx, "jobs", nil, "id")
	require.NoError(t, err)
	assert.Len(t, rows, 2, "rolled back delete leaves the rows in place")
}
