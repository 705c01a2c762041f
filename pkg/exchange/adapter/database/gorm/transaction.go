package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tigerroll/hrsync/pkg/exchange/adapter/database"
	"github.com/tigerroll/hrsync/pkg/exchange/core/tx"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/exception"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/logger"
)

// GormTx is an open GORM transaction.
type GormTx struct {
	db     *gorm.DB
	dbType string
	// release runs once the transaction has ended; set for transactions on a pinned connection.
	release func()
}

func (t *GormTx) end() {
	if t.release != nil {
		t.release()
		t.release = nil
	}
}

// Insert writes one row from a column map. Driver errors are returned as *exception.PersistenceError.
func (t *GormTx) Insert(ctx context.Context, table string, values map[string]interface{}) error {
	if err := t.db.WithContext(ctx).Table(table).Create(values).Error; err != nil {
		return exception.NewPersistenceError(table, ClassifyError(err), err)
	}
	return nil
}

// DeleteAll removes every row of table. On MySQL foreign key checks are suspended for the
// duration of the statement so parent tables can be cleared. SQLite ignores the foreign_keys
// pragma inside a transaction, so there the caller opens the transaction with BeginUnchecked.
func (t *GormTx) DeleteAll(ctx context.Context, table string) (int64, error) {
	db := t.db.WithContext(ctx)

	if t.dbType == "mysql" {
		if err := db.Exec("SET FOREIGN_KEY_CHECKS=0").Error; err != nil {
			return 0, fmt.Errorf("failed to disable foreign key checks: %w", err)
		}
		defer func() {
			if err := db.Exec("SET FOREIGN_KEY_CHECKS=1").Error; err != nil {
				logger.Warnf("Failed to re-enable foreign key checks after clearing '%s': %v", table, err)
			}
		}()
	}

	result := db.Exec("DELETE FROM ?", clause.Table{Name: table})
	if result.Error != nil {
		return 0, exception.NewPersistenceError(table, ClassifyError(result.Error), result.Error)
	}
	return result.RowsAffected, nil
}

var _ tx.Tx = (*GormTx)(nil)

// GormTransactionManager opens transactions on a named connection, resolved on every Begin
// so that a reconnected pool is picked up.
type GormTransactionManager struct {
	dbResolver database.DBConnectionResolver
	dbName     string
}

// NewGormTransactionManager creates a transaction manager for the connection named dbName.
func NewGormTransactionManager(dbResolver database.DBConnectionResolver, dbName string) *GormTransactionManager {
	return &GormTransactionManager{dbResolver: dbResolver, dbName: dbName}
}

// Begin starts a transaction. Only the first opts entry is used.
func (m *GormTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	conn, err := m.dbResolver.ResolveDBConnection(ctx, m.dbName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DB connection '%s' for transaction: %w", m.dbName, err)
	}
	adapter, ok := conn.(*GormDBAdapter)
	if !ok {
		return nil, fmt.Errorf("connection '%s' is %T, not *GormDBAdapter", m.dbName, conn)
	}

	var txOpts *sql.TxOptions
	if len(opts) > 0 && opts[0] != nil {
		txOpts = opts[0]
	}
	gormTx := adapter.GetGormDB().WithContext(ctx).Begin(txOpts)
	if gormTx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", gormTx.Error)
	}
	return &GormTx{db: gormTx, dbType: adapter.Type()}, nil
}

// BeginUnchecked starts a transaction in which foreign key violations are not enforced.
// On SQLite a connection is taken out of the pool, its foreign_keys pragma is switched off
// before the transaction begins, and the previous setting is restored when the transaction
// ends. Other dialects suspend checks inside DeleteAll, so this is a plain Begin there.
func (m *GormTransactionManager) BeginUnchecked(ctx context.Context) (tx.Tx, error) {
	conn, err := m.dbResolver.ResolveDBConnection(ctx, m.dbName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DB connection '%s' for transaction: %w", m.dbName, err)
	}
	adapter, ok := conn.(*GormDBAdapter)
	if !ok {
		return nil, fmt.Errorf("connection '%s' is %T, not *GormDBAdapter", m.dbName, conn)
	}
	if adapter.Type() != "sqlite" {
		return m.Begin(ctx)
	}

	sqlDB, err := adapter.GetGormDB().DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB for '%s': %w", m.dbName, err)
	}
	pinned, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection '%s': %w", m.dbName, err)
	}

	var enabled int
	if err := pinned.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled); err != nil {
		_ = pinned.Close()
		return nil, fmt.Errorf("failed to read foreign_keys pragma: %w", err)
	}
	if _, err := pinned.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		_ = pinned.Close()
		return nil, fmt.Errorf("failed to disable foreign keys: %w", err)
	}
	release := func() {
		if enabled != 0 {
			if _, err := pinned.ExecContext(context.Background(), "PRAGMA foreign_keys = ON"); err != nil {
				logger.Warnf("Failed to re-enable foreign keys on '%s': %v", m.dbName, err)
			}
		}
		_ = pinned.Close()
	}

	db := adapter.GetGormDB().WithContext(ctx)
	db.Statement.ConnPool = pinned
	gormTx := db.Begin()
	if gormTx.Error != nil {
		release()
		return nil, fmt.Errorf("failed to begin transaction: %w", gormTx.Error)
	}
	return &GormTx{db: gormTx, dbType: adapter.Type(), release: release}, nil
}

// Commit commits t.
func (m *GormTransactionManager) Commit(t tx.Tx) error {
	gormTx, ok := t.(*GormTx)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTx, got %T", t)
	}
	defer gormTx.end()
	return gormTx.db.Commit().Error
}

// Rollback rolls t back.
func (m *GormTransactionManager) Rollback(t tx.Tx) error {
	gormTx, ok := t.(*GormTx)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTx, got %T", t)
	}
	defer gormTx.end()
	return gormTx.db.Rollback().Error
}

var (
	_ tx.TransactionManager = (*GormTransactionManager)(nil)
	_ tx.UncheckedBeginner  = (*GormTransactionManager)(nil)
)
