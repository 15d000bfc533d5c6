package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/olibuijr/docvault/internal/flagx"
	"github.com/olibuijr/docvault/internal/timex"
)

// JsonConfig is the DTO for the optional JSON config file. Duration
// fields accept either strings like "250ms" or integer nanoseconds.
type JsonConfig struct {
	DataDir       string         `json:"data_dir"`
	SecretKey     string         `json:"secret_key"`
	KDFIterations int            `json:"kdf_iterations"`
	FlushDebounce timex.Duration `json:"flush_debounce"`

	BackupS3BaseEndpoint string `json:"backup_s3_base_endpoint"`
	BackupS3Bucket       string `json:"backup_s3_bucket"`
	BackupS3Region       string `json:"backup_s3_region"`
	BackupS3User         string `json:"backup_s3_user"`
	BackupS3Password     string `json:"backup_s3_password"`
}

// parseJson loads configuration from the file named by -c/-config. When
// neither flag is present nothing is loaded; an unreadable or invalid
// file panics, since running with half-applied configuration is worse
// than not starting.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.DataDir != "" {
		config.DataDir = c.DataDir
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.KDFIterations != 0 {
		config.KDFIterations = c.KDFIterations
	}
	if c.FlushDebounce.Duration != 0 {
		config.FlushDebounce = time.Duration(c.FlushDebounce.Duration)
	}
	if c.BackupS3BaseEndpoint != "" {
		config.BackupS3BaseEndpoint = c.BackupS3BaseEndpoint
	}
	if c.BackupS3Bucket != "" {
		config.BackupS3Bucket = c.BackupS3Bucket
	}
	if c.BackupS3Region != "" {
		config.BackupS3Region = c.BackupS3Region
	}
	if c.BackupS3User != "" {
		config.BackupS3User = c.BackupS3User
	}
	if c.BackupS3Password != "" {
		config.BackupS3Password = c.BackupS3Password
	}
}
