package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// envSpec mirrors Config for envconfig. Variables are prefixed with
// DOCVAULT_, e.g. DOCVAULT_DATA_DIR, DOCVAULT_SECRET_KEY,
// DOCVAULT_KDF_ITERATIONS, DOCVAULT_FLUSH_DEBOUNCE.
type envSpec struct {
	DataDir       string        `envconfig:"DATA_DIR"`
	SecretKey     string        `envconfig:"SECRET_KEY"`
	KDFIterations int           `envconfig:"KDF_ITERATIONS"`
	FlushDebounce time.Duration `envconfig:"FLUSH_DEBOUNCE"`

	BackupS3BaseEndpoint string `envconfig:"BACKUP_S3_BASE_ENDPOINT"`
	BackupS3Bucket       string `envconfig:"BACKUP_S3_BUCKET"`
	BackupS3Region       string `envconfig:"BACKUP_S3_REGION"`
	BackupS3User         string `envconfig:"BACKUP_S3_USER"`
	BackupS3Password     string `envconfig:"BACKUP_S3_PASSWORD"`
}

// parseEnv overlays values set in the environment onto config. Unset
// variables leave the existing value alone.
func parseEnv(config *Config) {
	var e envSpec
	if err := envconfig.Process("docvault", &e); err != nil {
		panic(err)
	}

	if e.DataDir != "" {
		config.DataDir = e.DataDir
	}
	if e.SecretKey != "" {
		config.SecretKey = e.SecretKey
	}
	if e.KDFIterations != 0 {
		config.KDFIterations = e.KDFIterations
	}
	if e.FlushDebounce != 0 {
		config.FlushDebounce = e.FlushDebounce
	}
	if e.BackupS3BaseEndpoint != "" {
		config.BackupS3BaseEndpoint = e.BackupS3BaseEndpoint
	}
	if e.BackupS3Bucket != "" {
		config.BackupS3Bucket = e.BackupS3Bucket
	}
	if e.BackupS3Region != "" {
		config.BackupS3Region = e.BackupS3Region
	}
	if e.BackupS3User != "" {
		config.BackupS3User = e.BackupS3User
	}
	if e.BackupS3Password != "" {
		config.BackupS3Password = e.BackupS3Password
	}
}
