// Package mysql registers the MySQL dialect.
package mysql

import (
	"net"
	"strconv"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tigerroll/hrsync/pkg/exchange/adapter/database"
	dbconfig "github.com/tigerroll/hrsync/pkg/exchange/adapter/database/config"
	gormadapter "github.com/tigerroll/hrsync/pkg/exchange/adapter/database/gorm"
	"github.com/tigerroll/hrsync/pkg/exchange/core/config"
)

const (
	defaultHost = "127.0.0.1"
	defaultPort = 3306
)

func init() {
	gormadapter.RegisterDialector("mysql", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString builds the DSN with the driver's own formatter.
// DATETIME columns are scanned into time.Time in UTC.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	host := c.Host
	if host == "" {
		host = defaultHost
	}
	port := c.Port
	if port == 0 {
		port = defaultPort
	}

	mc := mysqldriver.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	if len(c.Params) > 0 {
		mc.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			mc.Params[k] = v
		}
	}
	return mc.FormatDSN()
}

// NewProvider creates the MySQL DBProvider.
func NewProvider(cfg *config.Config) database.DBProvider {
	return gormadapter.NewBaseProvider(cfg, "mysql")
}
