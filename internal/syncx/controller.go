// Package syncx bridges the in-memory store to the encrypted codec: it
// loads the database at startup, debounces flushes after mutations,
// writes the live file atomically, and produces backups.
package syncx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/olibuijr/docvault/internal/codec"
	"github.com/olibuijr/docvault/internal/config"
	"github.com/olibuijr/docvault/internal/filex"
	"github.com/olibuijr/docvault/internal/logging"
	"github.com/olibuijr/docvault/internal/store"
)

// DBFileName is the live database file inside the data directory.
const DBFileName = "db.bin"

// Controller owns the single write path to the live database file. All
// flushes run on one goroutine, so they are strictly ordered and each
// snapshot reflects at least the mutation that triggered it. The
// in-memory store stays the authority: a failed flush is retried and
// logged but never rolls back applied mutations.
type Controller struct {
	st       *store.Store
	vault    *codec.Vault
	dataDir  string
	path     string
	debounce time.Duration
	logger   logging.Logger
	uploader BackupUploader

	trigger chan struct{}
}

// Open loads (or initializes) the database and returns a ready
// controller.
//
// Startup sequence: derive the key (from the stored salt when the file
// exists, a fresh one otherwise), unseal and decode the file, restore
// the store, and make sure the reserved collections exist. A tampered or
// structurally corrupt file is fatal; the caller must refuse to start
// rather than discard data.
func Open(cfg *config.Config, secret []byte, st *store.Store, logger logging.Logger) (*Controller, error) {
	dir, err := filex.EnsureDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, DBFileName)

	var vault *codec.Vault

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		vault, err = codec.NewVault(secret, cfg.KDFIterations)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	default:
		salt, err := codec.FileSalt(data)
		if err != nil {
			return nil, err
		}
		vault, err = codec.OpenVault(secret, salt, cfg.KDFIterations)
		if err != nil {
			return nil, err
		}
		plaintext, err := vault.Unseal(data)
		if err != nil {
			return nil, fmt.Errorf("unseal %s: %w", path, err)
		}
		snap, err := codec.Decode(plaintext)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		st.Restore(snap)
	}

	st.EnsureReserved()

	return &Controller{
		st:       st,
		vault:    vault,
		dataDir:  dir,
		path:     path,
		debounce: cfg.FlushDebounce,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
	}, nil
}

// SetUploader wires an optional off-site target for backups.
func (c *Controller) SetUploader(u BackupUploader) { c.uploader = u }

// Schedule requests a flush. Non-blocking; multiple calls before the
// debounce window closes coalesce into a single flush. Intended as the
// store's commit hook.
func (c *Controller) Schedule() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Run processes scheduled flushes until ctx is cancelled, then performs
// one final flush so nothing committed in memory is lost at shutdown.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.flush(context.Background())
			return
		case <-c.trigger:
			// Let a burst of mutations settle into one snapshot.
			select {
			case <-time.After(c.debounce):
				c.flush(ctx)
			case <-ctx.Done():
				c.flush(context.Background())
				return
			}
		}
	}
}

// Flush seals the current snapshot and writes it to the live file,
// atomically (temp file + rename) and with exponential backoff on I/O
// failure.
func (c *Controller) Flush(ctx context.Context) error {
	sealed, err := c.seal()
	if err != nil {
		return err
	}

	backoff := retry.WithMaxRetries(5, retry.NewExponential(50*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := filex.AtomicWrite(c.path, sealed, 0o600); err != nil {
			c.logger.Warn(ctx, "flush write failed, will retry", "path", c.path, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

// seal takes an atomic snapshot and encrypts it. The snapshot copy is
// the only work done anywhere near the store lock; sealing and I/O
// happen on this goroutine's own time.
func (c *Controller) seal() ([]byte, error) {
	plaintext := codec.Encode(c.st.Snapshot())
	sealed, err := c.vault.Seal(plaintext)
	if err != nil {
		return nil, fmt.Errorf("seal snapshot: %w", err)
	}
	return sealed, nil
}

func (c *Controller) flush(ctx context.Context) {
	if err := c.Flush(ctx); err != nil {
		// In-memory state remains the source of truth; disk is a
		// lagging mirror that will catch up on the next flush.
		c.logger.Error(ctx, "flush failed", "path", c.path, "error", err)
		return
	}
	c.logger.Debug(ctx, "flushed database", "path", c.path)
}
