package gorm

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/tigerroll/hrsync/pkg/exchange/support/util/exception"
)

// MySQL server error numbers.
const (
	mysqlDuplicateEntry     = 1062
	mysqlRowIsReferenced    = 1451
	mysqlNoReferencedRow    = 1452
	mysqlColumnCannotBeNull = 1048
	mysqlNoDefaultForField  = 1364
)

// PostgreSQL SQLSTATE codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
)

// ClassifyError maps a driver error onto the constraint it violated.
func ClassifyError(err error) exception.ConstraintKind {
	if err == nil {
		return exception.ConstraintUnknown
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return exception.ConstraintDuplicateKey
		case mysqlRowIsReferenced, mysqlNoReferencedRow:
			return exception.ConstraintForeignKey
		case mysqlColumnCannotBeNull, mysqlNoDefaultForField:
			return exception.ConstraintNotNull
		}
		return exception.ConstraintUnknown
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintRowID:
			return exception.ConstraintDuplicateKey
		case sqlite3.ErrConstraintForeignKey:
			return exception.ConstraintForeignKey
		case sqlite3.ErrConstraintNotNull:
			return exception.ConstraintNotNull
		}
		return exception.ConstraintUnknown
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return exception.ConstraintDuplicateKey
		case pgForeignKeyViolation:
			return exception.ConstraintForeignKey
		case pgNotNullViolation:
			return exception.ConstraintNotNull
		}
	}
	return exception.ConstraintUnknown
}
