// Package config holds the settings of a named storage connection.
package config

// StorageConfig is one entry under hrsync.storage.<name>.
type StorageConfig struct {
	Type string `yaml:"type" mapstructure:"type"` // "local" or "gcs".
	// BucketName is used when an operation passes an empty bucket.
	BucketName string `yaml:"bucket_name" mapstructure:"bucket_name"`
	// CredentialsFile is a service account key for GCS. Empty means application default credentials.
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
	// Endpoint overrides the GCS endpoint, e.g. for an emulator. Authentication is skipped when set.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// BaseDir is the root directory of local storage.
	BaseDir string `yaml:"base_dir" mapstructure:"base_dir"`
}
