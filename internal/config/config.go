// Package config loads runtime configuration for the docvault server.
//
// Sources and precedence (later wins): built-in defaults, environment
// variables (DOCVAULT_*), an optional JSON file given via -c/-config,
// command-line flags.
package config

import "time"

// Config holds runtime settings for the document store server.
//
// Fields:
//   - DataDir: directory holding the live database file and backups.
//   - SecretKey: passphrase for key derivation. When empty, the server
//     prompts on the terminal at startup. Do not use test defaults in prod.
//   - KDFIterations: PBKDF2 iteration count (security parameter).
//   - FlushDebounce: how long the sync controller coalesces mutations
//     before sealing and writing a snapshot.
//   - BackupS3BaseEndpoint et al.: optional S3-compatible off-site target
//     for backups; an empty endpoint disables uploading.
type Config struct {
	DataDir       string
	SecretKey     string
	KDFIterations int
	FlushDebounce time.Duration

	BackupS3BaseEndpoint string
	BackupS3Bucket       string
	BackupS3Region       string
	BackupS3User         string
	BackupS3Password     string
}

// LoadDefaults populates Config with sensible development defaults.
func (c *Config) LoadDefaults() {
	c.DataDir = "data"
	c.SecretKey = ""
	c.KDFIterations = 100_000
	c.FlushDebounce = 250 * time.Millisecond
	c.BackupS3BaseEndpoint = ""
	c.BackupS3Bucket = "docvault-backups"
	c.BackupS3Region = "us-east-1"
	c.BackupS3User = ""
	c.BackupS3Password = ""
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from the environment, an optional JSON file, and command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
