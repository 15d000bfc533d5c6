package config

import (
	"flag"
	"os"
	"time"

	"github.com/olibuijr/docvault/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   data directory
//	-s string   key-derivation passphrase (prefer the env var or a prompt)
//	-i int      PBKDF2 iteration count
//	-f int      flush debounce, milliseconds
//	-e string   S3 base endpoint for backup upload (empty disables)
//	-b string   S3 bucket
//	-g string   S3 region
//	-u string   S3 user
//	-p string   S3 password
//
// Arguments are first filtered with flagx.FilterArgs so flags owned by
// other components (or the test runner) are ignored.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-s", "-i", "-f", "-e", "-b", "-g", "-u", "-p"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DataDir, "d", config.DataDir, "data directory")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "key derivation passphrase")
	fs.IntVar(&config.KDFIterations, "i", config.KDFIterations, "PBKDF2 iteration count")

	flushDebounce := fs.Int("f", int(config.FlushDebounce.Milliseconds()), "flush debounce (in milliseconds)")

	fs.StringVar(&config.BackupS3BaseEndpoint, "e", config.BackupS3BaseEndpoint, "S3 base endpoint for backups")
	fs.StringVar(&config.BackupS3Bucket, "b", config.BackupS3Bucket, "S3 bucket")
	fs.StringVar(&config.BackupS3Region, "g", config.BackupS3Region, "S3 region")
	fs.StringVar(&config.BackupS3User, "u", config.BackupS3User, "S3 user")
	fs.StringVar(&config.BackupS3Password, "p", config.BackupS3Password, "S3 password")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.FlushDebounce = time.Duration(*flushDebounce) * time.Millisecond
}
