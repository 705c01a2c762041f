package sqlite_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dbconfig "github.com/tigerroll/hrsync/pkg/exchange/adapter/database/config"
	gormadapter "github.com/tigerroll/hrsync/pkg/exchange/adapter/database/gorm"
	"github.com/tigerroll/hrsync/pkg/exchange/adapter/database/gorm/sqlite"
)

func TestConnectionString(t *testing.T) {
	assert.Equal(t, "./.data/hr.db", sqlite.ConnectionString(dbconfig.DatabaseConfig{Database: "./.data/hr.db"}))
	assert.Equal(t, "hr.db?_foreign_keys=on", sqlite.ConnectionString(dbconfig.DatabaseConfig{
		Database: "hr.db",
		Params:   map[string]string{"_foreign_keys": "on"},
	}))
}

func TestDialector_RequiresPath(t *testing.T) {
	factory, err := gormadapter.GetDialectorFactory("sqlite")
	assert.NoError(t, err)
	_, err = factory(dbconfig.DatabaseConfig{Type: "sqlite"})
	assert.Error(t, err)
}
