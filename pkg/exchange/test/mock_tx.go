// Package test holds test doubles shared by the exchange packages.
package test

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	"github.com/tigerroll/hrsync/pkg/exchange/core/tx"
)

// MockTx is a mock implementation of tx.Tx.
type MockTx struct {
	mock.Mock
}

// Insert mocks tx.TxExecutor.Insert.
func (m *MockTx) Insert(ctx context.Context, table string, values map[string]interface{}) error {
	args := m.Called(ctx, table, values)
	return args.Error(0)
}

// DeleteAll mocks tx.TxExecutor.DeleteAll.
func (m *MockTx) DeleteAll(ctx context.Context, table string) (int64, error) {
	args := m.Called(ctx, table)
	return args.Get(0).(int64), args.Error(1)
}

// MockTxManager is a mock implementation of tx.TransactionManager.
type MockTxManager struct {
	mock.Mock
}

// Begin mocks tx.TransactionManager.Begin. A nil first return value yields a nil Tx.
func (m *MockTxManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(tx.Tx), args.Error(1)
}

// Commit mocks tx.TransactionManager.Commit.
func (m *MockTxManager) Commit(t tx.Tx) error {
	args := m.Called(t)
	return args.Error(0)
}

// Rollback mocks tx.TransactionManager.Rollback.
func (m *MockTxManager) Rollback(t tx.Tx) error {
	args := m.Called(t)
	return args.Error(0)
}

var (
	_ tx.Tx                 = (*MockTx)(nil)
	_ tx.TransactionManager = (*MockTxManager)(nil)
)
