package config

import "go.uber.org/fx"

// NewBatchConfigProvider extracts the batch section.
func NewBatchConfigProvider(cfg *Config) *BatchConfig {
	return &cfg.HRSync.Batch
}

// NewBackupConfigProvider extracts the backup section.
func NewBackupConfigProvider(cfg *Config) *BackupConfig {
	return &cfg.HRSync.Backup
}

// NewServerConfigProvider extracts the server section.
func NewServerConfigProvider(cfg *Config) *ServerConfig {
	return &cfg.HRSync.Server
}

// NewTelemetryConfigProvider extracts the telemetry section.
func NewTelemetryConfigProvider(cfg *Config) *TelemetryConfig {
	return &cfg.HRSync.Telemetry
}

// Module provides the configuration sections to Fx. *Config itself is supplied by the application.
var Module = fx.Options(
	fx.Provide(
		NewBatchConfigProvider,
		NewBackupConfigProvider,
		NewServerConfigProvider,
		NewTelemetryConfigProvider,
	),
)
