package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dbconfig "github.com/tigerroll/hrsync/pkg/exchange/adapter/database/config"
	"github.com/tigerroll/hrsync/pkg/exchange/adapter/database/gorm/postgres"
)

func TestConnectionString(t *testing.T) {
	dsn := postgres.ConnectionString(dbconfig.DatabaseConfig{
		Host:     "db",
		User:     "hr",
		Password: "secret",
		Database: "hr",
		Schema:   "staff",
		Params:   map[string]string{"application_name": "hrsync", "TimeZone": "UTC"},
	})
	assert.Equal(t,
		"host=db port=5432 user=hr password=secret dbname=hr sslmode=disable search_path=staff TimeZone=UTC application_name=hrsync",
		dsn)
}
