package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/hrsync/pkg/exchange/support/util/exception"
	"github.com/tigerroll/hrsync/pkg/exchange/support/util/logger"
)

const moduleName = "config"

// LoadConfig builds the configuration in four layers:
//  1. defaults from NewConfig,
//  2. the embedded YAML after ${VAR} expansion,
//  3. variables from the optional .env file (existing environment wins),
//  4. environment overrides named after the yaml path (HRSYNC_BATCH_MAX_RECORDS, ...).
//
// The .env file is loaded first so that step 2 can expand its variables too.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig, NewOsEnvironmentExpander())
}

func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Debugf(".env file (%s) not loaded: %v", envFilePath, err)
		}
	}

	cfg := NewConfig()
	cfg.EmbeddedConfig = embeddedConfig

	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewExchangeError(moduleName, nil, "failed to expand environment variables in config", err)
	}

	var yamlConfig Config
	if err := yaml.Unmarshal(expanded, &yamlConfig); err != nil {
		return nil, exception.NewExchangeError(moduleName, nil, "failed to unmarshal embedded config", err)
	}
	mergeConfig(cfg, &yamlConfig)

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewExchangeError(moduleName, nil, "failed to load config from environment variables", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, exception.NewExchangeError(moduleName, nil, "invalid configuration", err)
	}
	return cfg, nil
}

// Validate checks enumerated and bounded settings.
func (c *Config) Validate() error {
	h := c.HRSync
	if h.Batch.MaxRecords <= 0 {
		return fmt.Errorf("batch.max_records must be positive, got %d", h.Batch.MaxRecords)
	}
	switch strings.ToLower(h.Backup.Format) {
	case "avro", "parquet":
	default:
		return fmt.Errorf("backup.format must be 'avro' or 'parquet', got %q", h.Backup.Format)
	}
	switch h.Infrastructure.Provision {
	case "auto", "migrate", "none":
	default:
		return fmt.Errorf("infrastructure.provision must be 'auto', 'migrate' or 'none', got %q", h.Infrastructure.Provision)
	}
	switch strings.ToLower(h.Telemetry.OTLPProtocol) {
	case "http", "grpc":
	default:
		return fmt.Errorf("telemetry.otlp_protocol must be 'http' or 'grpc', got %q", h.Telemetry.OTLPProtocol)
	}
	if h.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive, got %d", h.Server.MaxUploadMB)
	}
	return nil
}

// mergeConfig copies every non-zero value of source into dest.
func mergeConfig(dest, source *Config) {
	d, s := &dest.HRSync, &source.HRSync

	if s.System.Timezone != "" {
		d.System.Timezone = s.System.Timezone
	}
	if s.System.Logging.Level != "" {
		d.System.Logging.Level = s.System.Logging.Level
	}
	if s.System.Logging.SQLLevel != "" {
		d.System.Logging.SQLLevel = s.System.Logging.SQLLevel
	}

	if s.Batch.MaxRecords != 0 {
		d.Batch.MaxRecords = s.Batch.MaxRecords
	}

	mergeBackupConfig(&d.Backup, &s.Backup)
	mergeServerConfig(&d.Server, &s.Server)

	if s.Infrastructure.DBRef != "" {
		d.Infrastructure.DBRef = s.Infrastructure.DBRef
	}
	if s.Infrastructure.Provision != "" {
		d.Infrastructure.Provision = s.Infrastructure.Provision
	}

	if s.Telemetry.ServiceName != "" {
		d.Telemetry.ServiceName = s.Telemetry.ServiceName
	}
	if s.Telemetry.OTLPEndpoint != "" {
		d.Telemetry.OTLPEndpoint = s.Telemetry.OTLPEndpoint
	}
	if s.Telemetry.OTLPProtocol != "" {
		d.Telemetry.OTLPProtocol = s.Telemetry.OTLPProtocol
	}
	if s.Telemetry.Insecure {
		d.Telemetry.Insecure = true
	}

	for k, v := range s.DatabaseConfigs {
		d.DatabaseConfigs[k] = v
	}
	for k, v := range s.StorageConfigs {
		d.StorageConfigs[k] = v
	}
}

func mergeBackupConfig(dest, source *BackupConfig) {
	if source.Format != "" {
		dest.Format = source.Format
	}
	if source.Compression != "" {
		dest.Compression = source.Compression
	}
	if source.StagingDir != "" {
		dest.StagingDir = source.StagingDir
	}
	if source.StorageRef != "" {
		dest.StorageRef = source.StorageRef
	}
	if source.Bucket != "" {
		dest.Bucket = source.Bucket
	}
	if source.Prefix != "" {
		dest.Prefix = source.Prefix
	}
	if source.SweepOnStart {
		dest.SweepOnStart = true
	}
}

func mergeServerConfig(dest, source *ServerConfig) {
	if source.Address != "" {
		dest.Address = source.Address
	}
	if source.User != "" {
		dest.User = source.User
	}
	if source.Password != "" {
		dest.Password = source.Password
	}
	if source.ReadTimeoutSeconds != 0 {
		dest.ReadTimeoutSeconds = source.ReadTimeoutSeconds
	}
	if source.WriteTimeoutSeconds != 0 {
		dest.WriteTimeoutSeconds = source.WriteTimeoutSeconds
	}
	if source.MaxUploadMB != 0 {
		dest.MaxUploadMB = source.MaxUploadMB
	}
}

// loadStructFromEnv walks a struct by its yaml tags and overrides scalar fields from
// environment variables named PREFIX_TAG (upper-cased). Maps are left to YAML.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		switch field.Kind() {
		case reflect.Struct:
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		case reflect.Map, reflect.Slice, reflect.Interface:
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField parses value into a string, integer, float or bool field.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(v)
	case reflect.Bool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(v)
	}
	return nil
}
