// Package tx abstracts the per-record transaction scope the exchange engine relies on.
// Every record is written in its own transaction, so a failure is confined to that record.
package tx

import (
	"context"
	"database/sql"
)

// TxExecutor is the set of write operations available inside a transaction.
type TxExecutor interface {
	// Insert writes one row. values is keyed by column name; the table's remaining columns
	// take their defaults (an absent primary key is assigned by the store).
	Insert(ctx context.Context, table string, values map[string]interface{}) error
	// DeleteAll removes every row of table and returns the number removed.
	DeleteAll(ctx context.Context, table string) (int64, error)
}

// Tx is an open transaction.
type Tx interface {
	TxExecutor
}

// TransactionManager controls the transaction lifecycle.
type TransactionManager interface {
	// Begin opens a transaction.
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	// Commit makes the transaction's writes durable.
	Commit(tx Tx) error
	// Rollback discards the transaction's writes.
	Rollback(tx Tx) error
}

// UncheckedBeginner is implemented by transaction managers that can open a transaction with
// foreign key enforcement suspended, so a parent table can be cleared while children still
// reference it.
type UncheckedBeginner interface {
	BeginUnchecked(ctx context.Context) (Tx, error)
}
