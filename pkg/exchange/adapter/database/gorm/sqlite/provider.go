// Package sqlite registers the SQLite dialect.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tigerroll/hrsync/pkg/exchange/adapter/database"
	dbconfig "github.com/tigerroll/hrsync/pkg/exchange/adapter/database/config"
	gormadapter "github.com/tigerroll/hrsync/pkg/exchange/adapter/database/gorm"
	"github.com/tigerroll/hrsync/pkg/exchange/core/config"
)

func init() {
	gormadapter.RegisterDialector("sqlite", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		return sqlite.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString returns the SQLite DSN: the database path plus any params.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	return c.Database + gormadapter.EncodeParams(c.Params, "?")
}

// NewProvider creates the SQLite DBProvider.
func NewProvider(cfg *config.Config) database.DBProvider {
	return gormadapter.NewBaseProvider(cfg, "sqlite")
}
