package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/hrsync/pkg/exchange/core/config"
)

const sampleYAML = `
hrsync:
  system:
    logging:
      level: DEBUG
  batch:
    max_records: 500
  backup:
    format: parquet
    staging_dir: /tmp/hrsync-staging
  server:
    user: ${TEST_HRSYNC_USER}
    password: ${TEST_HRSYNC_PASS}
  database:
    hr:
      type: sqlite
      database: ":memory:"
  storage:
    artifacts:
      type: local
      base_dir: /tmp/hrsync-artifacts
`

func TestNewConfig_Defaults(t *testing.T) {
	cfg := config.NewConfig()
	h := cfg.HRSync

	assert.Equal(t, 1000, h.Batch.MaxRecords)
	assert.Equal(t, "avro", h.Backup.Format)
	assert.Equal(t, "SNAPPY", h.Backup.Compression)
	assert.Equal(t, "artifacts", h.Backup.StorageRef)
	assert.Equal(t, "hr", h.Infrastructure.DBRef)
	assert.Equal(t, "auto", h.Infrastructure.Provision)
	assert.Equal(t, ":8000", h.Server.Address)
	assert.Equal(t, "http", h.Telemetry.OTLPProtocol)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_MergesYAMLAndExpandsEnv(t *testing.T) {
	t.Setenv("TEST_HRSYNC_USER", "admin")
	t.Setenv("TEST_HRSYNC_PASS", "s3cret")

	cfg, err := config.LoadConfig("", config.EmbeddedConfig(sampleYAML))
	require.NoError(t, err)
	h := cfg.HRSync

	assert.Equal(t, "DEBUG", h.System.Logging.Level)
	assert.Equal(t, 500, h.Batch.MaxRecords)
	assert.Equal(t, "parquet", h.Backup.Format)
	assert.Equal(t, "SNAPPY", h.Backup.Compression, "unset keys keep their defaults")
	assert.Equal(t, "admin", h.Server.User)
	assert.Equal(t, "s3cret", h.Server.Password)

	hr, ok := h.DatabaseConfigs["hr"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "sqlite", hr["type"])
	assert.Contains(t, h.StorageConfigs, "artifacts")
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HRSYNC_BATCH_MAX_RECORDS", "25")
	t.Setenv("HRSYNC_BACKUP_SWEEP_ON_START", "true")
	t.Setenv("HRSYNC_SERVER_ADDRESS", "127.0.0.1:9000")

	cfg, err := config.LoadConfig("", config.EmbeddedConfig(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.HRSync.Batch.MaxRecords)
	assert.True(t, cfg.HRSync.Backup.SweepOnStart)
	assert.Equal(t, "127.0.0.1:9000", cfg.HRSync.Server.Address)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("TEST_HRSYNC_DOTENV_USER=fromdotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TEST_HRSYNC_DOTENV_USER") })

	yml := "hrsync:\n  server:\n    user: ${TEST_HRSYNC_DOTENV_USER}\n"
	cfg, err := config.LoadConfig(envFile, config.EmbeddedConfig(yml))
	require.NoError(t, err)
	assert.Equal(t, "fromdotenv", cfg.HRSync.Server.User)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := config.LoadConfig("", config.EmbeddedConfig("hrsync:\n  backup:\n    format: csv\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backup.format")

	t.Setenv("HRSYNC_BATCH_MAX_RECORDS", "many")
	_, err = config.LoadConfig("", config.EmbeddedConfig(sampleYAML))
	assert.Error(t, err)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	_, err := config.LoadConfig("", config.EmbeddedConfig("hrsync: [unclosed"))
	assert.Error(t, err)
}
