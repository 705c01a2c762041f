// Package database declares the relational store ports used by the exchange engine.
package database

import (
	"context"
	"database/sql"

	dbconfig "github.com/tigerroll/hrsync/pkg/exchange/adapter/database/config"
)

// DBProviderGroup is the Fx value group all DBProviders are collected in.
const DBProviderGroup = "db_providers"

// TableReader reads whole tables as untyped rows.
type TableReader interface {
	// QueryAll returns every row of table restricted to columns, sorted by orderBy (a column name).
	// Values are normalized: integers as int64, text as string, timestamps as time.Time.
	QueryAll(ctx context.Context, table string, columns []string, orderBy string) ([]map[string]interface{}, error)
}

// DBConnection is an open, named database connection.
type DBConnection interface {
	TableReader

	// Type returns the database type ("sqlite", "mysql", "postgres").
	Type() string
	// Name returns the configured connection name.
	Name() string
	// Config returns the settings the connection was opened with.
	Config() dbconfig.DatabaseConfig
	// GetSQLDB returns the underlying *sql.DB.
	GetSQLDB() (*sql.DB, error)
	// RefreshConnection pings the database.
	RefreshConnection(ctx context.Context) error
	// Close closes the connection.
	Close() error
}

// DBProvider opens and caches connections of one database type.
type DBProvider interface {
	// GetConnection returns the cached connection named name, opening it on first use.
	GetConnection(name string) (DBConnection, error)
	// ForceReconnect closes and reopens the connection named name.
	ForceReconnect(name string) (DBConnection, error)
	// CloseAll closes every connection opened by the provider.
	CloseAll() error
	// Type returns the database type the provider serves.
	Type() string
}

// DBConnectionResolver resolves a connection by name across all providers.
type DBConnectionResolver interface {
	ResolveDBConnection(ctx context.Context, name string) (DBConnection, error)
}
