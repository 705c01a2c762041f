package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tigerroll/hrsync/pkg/exchange/adapter/database"
	dbconfig "github.com/tigerroll/hrsync/pkg/exchange/adapter/database/config"
	gormadapter "github.com/tigerroll/hrsync/pkg/exchange/adapter/database/gorm"
	"github.com/tigerroll/hrsync/pkg/exchange/core/domain/entity"
)

// SingleConnectionResolver resolves every name to the same connection.
type SingleConnectionResolver struct {
	conn database.DBConnection
}

// NewTestSingleConnectionResolver creates a resolver that always returns conn.
func NewTestSingleConnectionResolver(conn database.DBConnection) *SingleConnectionResolver {
	return &SingleConnectionResolver{conn: conn}
}

// ResolveDBConnection returns the wrapped connection.
func (r *SingleConnectionResolver) ResolveDBConnection(ctx context.Context, name string) (database.DBConnection, error) {
	return r.conn, nil
}

// NewSQLiteConnection opens a private in-memory SQLite database with the HR tables created.
// Foreign keys are not enforced. The connection is closed when the test ends.
func NewSQLiteConnection(t *testing.T) *gormadapter.GormDBAdapter {
	t.Helper()
	return openSQLite(t, ":memory:")
}

// NewSQLiteConnectionWithForeignKeys is NewSQLiteConnection with foreign key enforcement on.
func NewSQLiteConnectionWithForeignKeys(t *testing.T) *gormadapter.GormDBAdapter {
	t.Helper()
	return openSQLite(t, ":memory:?_foreign_keys=1")
}

func openSQLite(t *testing.T, dsn string) *gormadapter.GormDBAdapter {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gormDB.AutoMigrate(entity.Models()...))

	conn, err := gormadapter.NewGormDBAdapter(gormDB, dbconfig.DatabaseConfig{Type: "sqlite", Database: ":memory:"}, "hr")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// NewSQLiteTxManager returns a transaction manager bound to conn.
func NewSQLiteTxManager(conn database.DBConnection) *gormadapter.GormTransactionManager {
	return gormadapter.NewGormTransactionManager(NewTestSingleConnectionResolver(conn), conn.Name())
}
