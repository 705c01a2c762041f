// Package provision creates the HR tables, either from the GORM models or from embedded
// per-dialect SQL migrations.
package provision

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	"github.com/tigerroll/hrsync/pkg/exchange/adapter/database"
	"github.com/tigerroll/hrsync/pkg/exchange/core/domain/entity"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/logger"
)

// Provisioning modes.
const (
	ModeAuto    = "auto"
	ModeMigrate = "migrate"
	ModeNone    = "none"
)

// MigrationsTable records applied migration versions.
const MigrationsTable = "hrsync_schema_migrations"

//go:embed migrations
var migrationFS embed.FS

type gormConnection interface {
	GetGormDB() *gorm.DB
}

// Provisioner creates the HR tables on one connection.
type Provisioner struct {
	conn database.DBConnection
	mode string
}

// NewProvisioner creates a Provisioner for conn in the given mode.
func NewProvisioner(conn database.DBConnection, mode string) *Provisioner {
	return &Provisioner{conn: conn, mode: strings.ToLower(mode)}
}

// Provision creates any missing HR table.
func (p *Provisioner) Provision(ctx context.Context) error {
	switch p.mode {
	case ModeNone:
		logger.Infof("Table provisioning disabled for '%s'.", p.conn.Name())
		return nil
	case ModeAuto, "":
		return p.autoMigrate(ctx)
	case ModeMigrate:
		return p.migrateUp()
	default:
		return fmt.Errorf("unsupported provisioning mode: %s", p.mode)
	}
}

func (p *Provisioner) autoMigrate(ctx context.Context) error {
	gc, ok := p.conn.(gormConnection)
	if !ok {
		return fmt.Errorf("connection '%s' does not expose a GORM handle", p.conn.Name())
	}
	if err := gc.GetGormDB().WithContext(ctx).AutoMigrate(entity.Models()...); err != nil {
		return fmt.Errorf("failed to auto-migrate HR tables on '%s': %w", p.conn.Name(), err)
	}
	logger.Infof("HR tables auto-migrated on '%s' (%s).", p.conn.Name(), p.conn.Type())
	return nil
}

// getDatabaseDriver retrieves a migrate/v4 Driver based on the database type.
func getDatabaseDriver(dbType string, sqlDB *sql.DB) (migratedb.Driver, error) {
	switch dbType {
	case "postgres":
		return postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: MigrationsTable})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: MigrationsTable})
	case "sqlite":
		return sqlite3.WithInstance(sqlDB, &sqlite3.Config{MigrationsTable: MigrationsTable})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", dbType)
	}
}

func (p *Provisioner) migrateUp() error {
	dbType := p.conn.Type()
	path := "migrations/" + dbType
	logger.Infof("Executing migration 'up' (Path: %s, Table: %s)", path, MigrationsTable)

	sqlDB, err := p.conn.GetSQLDB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sourceDriver, err := iofs.New(migrationFS, path)
	if err != nil {
		return fmt.Errorf("failed to create iofs source driver for path %s: %w", path, err)
	}
	dbDriver, err := getDatabaseDriver(dbType, sqlDB)
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	// m is never closed: closing it closes the shared *sql.DB.
	m, err := migrate.NewWithInstance("iofs", sourceDriver, dbType, dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed (DB: %s, Path: %s): %w", dbType, path, err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	logger.Infof("Migration 'up' completed on '%s' (version %d, dirty %t).", p.conn.Name(), version, dirty)
	return nil
}
