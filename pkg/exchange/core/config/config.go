// Package config provides the configuration structures of hrsync and their loader.
package config

// EmbeddedConfig holds the raw YAML configuration, typically embedded into the binary by main.
type EmbeddedConfig []byte

// LogLevel is a logging level name as written in configuration.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelSilent LogLevel = "SILENT"
)

// Default values applied by NewConfig.
const (
	DefaultMaxRecords   = 1000
	DefaultBackupFormat = "avro"
	DefaultCompression  = "SNAPPY"
	DefaultStagingDir   = "./.data/staging"
	DefaultStorageRef   = "artifacts"
	DefaultDBRef        = "hr"
	DefaultProvision    = "auto"
	DefaultAddress      = ":8000"
	DefaultOTLPProtocol = "http"
	DefaultServiceName  = "hrsync"
	DefaultMaxUploadMB  = 64
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the application log level (DEBUG, INFO, WARN, ERROR).
	Level string `yaml:"level"`
	// SQLLevel is the GORM log level (SILENT, ERROR, WARN, INFO).
	SQLLevel string `yaml:"sql_level"`
}

// SystemConfig holds process-wide settings.
type SystemConfig struct {
	// Timezone is the zone naive timestamps are interpreted in (e.g. "UTC").
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// BatchConfig holds ingestion settings.
type BatchConfig struct {
	// MaxRecords is the largest batch accepted in one call.
	MaxRecords int `yaml:"max_records"`
}

// BackupConfig holds export and restore settings.
type BackupConfig struct {
	// Format selects the backup codec ("avro" or "parquet").
	Format string `yaml:"format"`
	// Compression is the codec compression ("SNAPPY", "GZIP"/"DEFLATE", "NONE").
	Compression string `yaml:"compression"`
	// StagingDir is where scratch directories for full backups are created.
	StagingDir string `yaml:"staging_dir"`
	// StorageRef names the storage connection archives are published to.
	StorageRef string `yaml:"storage_ref"`
	// Bucket is the bucket (or sub-directory for local storage) archives are published under.
	Bucket string `yaml:"bucket"`
	// Prefix is prepended to published object names.
	Prefix string `yaml:"prefix"`
	// SweepOnStart deletes leftover published archives when the server starts.
	SweepOnStart bool `yaml:"sweep_on_start"`
}

// ServerConfig holds HTTP transport settings.
type ServerConfig struct {
	Address             string `yaml:"address"`
	User                string `yaml:"user"`
	Password            string `yaml:"password"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	// MaxUploadMB caps the size of a restore upload.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

// InfrastructureConfig holds logical references to infrastructure components.
type InfrastructureConfig struct {
	// DBRef names the database connection holding the HR tables.
	DBRef string `yaml:"db_ref"`
	// Provision selects how tables are created: "auto" (GORM AutoMigrate), "migrate"
	// (embedded SQL migrations) or "none".
	Provision string `yaml:"provision"`
}

// TelemetryConfig holds tracing export settings.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`
	// OTLPEndpoint enables trace export when set (e.g. "localhost:4318").
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	// OTLPProtocol is "http" or "grpc".
	OTLPProtocol string `yaml:"otlp_protocol"`
	Insecure     bool   `yaml:"insecure"`
}

// HRSyncConfig holds everything under the "hrsync" top-level key.
type HRSyncConfig struct {
	System         SystemConfig         `yaml:"system"`
	Batch          BatchConfig          `yaml:"batch"`
	Backup         BackupConfig         `yaml:"backup"`
	Server         ServerConfig         `yaml:"server"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	// DatabaseConfigs maps connection names to free-form database settings.
	DatabaseConfigs map[string]interface{} `yaml:"database"`
	// StorageConfigs maps connection names to free-form storage settings.
	StorageConfigs map[string]interface{} `yaml:"storage"`
}

// Config is the root configuration.
type Config struct {
	HRSync         HRSyncConfig   `yaml:"hrsync"`
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		HRSync: HRSyncConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO", SQLLevel: string(LogLevelSilent)},
			},
			Batch: BatchConfig{MaxRecords: DefaultMaxRecords},
			Backup: BackupConfig{
				Format:      DefaultBackupFormat,
				Compression: DefaultCompression,
				StagingDir:  DefaultStagingDir,
				StorageRef:  DefaultStorageRef,
			},
			Server: ServerConfig{
				Address:             DefaultAddress,
				ReadTimeoutSeconds:  30,
				WriteTimeoutSeconds: 120,
				MaxUploadMB:         DefaultMaxUploadMB,
			},
			Infrastructure: InfrastructureConfig{
				DBRef:     DefaultDBRef,
				Provision: DefaultProvision,
			},
			Telemetry: TelemetryConfig{
				ServiceName:  DefaultServiceName,
				OTLPProtocol: DefaultOTLPProtocol,
			},
			DatabaseConfigs: map[string]interface{}{},
			StorageConfigs:  map[string]interface{}{},
		},
	}
}
