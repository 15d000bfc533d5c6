package syncx

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/olibuijr/docvault/internal/filex"
)

// writeBackup is a test seam around the atomic write.
var writeBackup = func(path string, data []byte) error {
	return filex.AtomicWrite(path, data, 0o600)
}

// backupTimestamp formats the instant a backup was taken for its file
// name. Sortable and filesystem-safe; nanosecond precision keeps two
// backups in the same second from renaming over each other.
const backupTimestamp = "20060102T150405.000000000"

// Backup seals a point-in-time snapshot and writes it to a timestamped
// file next to the live database, which is never touched. Safe to run
// concurrently with ongoing mutations: the snapshot is taken under the
// store's read lock and cannot be torn.
//
// When an uploader is configured the sealed backup is also pushed
// off-site; upload failures are logged, not returned, since the local
// backup already exists.
func (c *Controller) Backup(ctx context.Context) (string, error) {
	sealed, err := c.seal()
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("backup_%s.bin", time.Now().UTC().Format(backupTimestamp))
	path := filepath.Join(c.dataDir, name)

	if err := writeBackup(path, sealed); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	c.logger.Info(ctx, "backup written", "path", path, "bytes", len(sealed))

	if c.uploader != nil {
		if err := c.uploader.Upload(ctx, name, sealed); err != nil {
			c.logger.Warn(ctx, "backup upload failed", "key", name, "error", err)
		} else {
			c.logger.Info(ctx, "backup uploaded", "key", name)
		}
	}

	return path, nil
}
