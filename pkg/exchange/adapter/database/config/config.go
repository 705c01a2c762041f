// Package config holds the settings of a named database connection.
package config

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxOpenConns           int `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns           int `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes" mapstructure:"conn_max_lifetime_minutes"`
}

// DatabaseConfig is one entry under hrsync.database.<name>.
type DatabaseConfig struct {
	Type     string `yaml:"type" mapstructure:"type"` // "sqlite", "mysql" or "postgres".
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Database string `yaml:"database" mapstructure:"database"` // Database name, or the file path for SQLite.
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Schema   string `yaml:"schema,omitempty" mapstructure:"schema"` // PostgreSQL search_path.
	Sslmode  string `yaml:"sslmode" mapstructure:"sslmode"`
	// Params are extra DSN parameters passed through to the driver.
	Params map[string]string `yaml:"params,omitempty" mapstructure:"params"`
	Pool   PoolConfig        `yaml:"pool" mapstructure:"pool"`
}
