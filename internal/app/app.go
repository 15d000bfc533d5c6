// Package app wires the document store, change notifier and sync
// controller together and runs them until shutdown. Request-facing
// layers (HTTP, realtime) are external collaborators that work against
// the Store and Broadcaster handles exposed here.
package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/olibuijr/docvault/internal/config"
	"github.com/olibuijr/docvault/internal/cryptox"
	"github.com/olibuijr/docvault/internal/logging"
	"github.com/olibuijr/docvault/internal/notify"
	"github.com/olibuijr/docvault/internal/store"
	"github.com/olibuijr/docvault/internal/syncx"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	store       *store.Store
	broadcaster *notify.Broadcaster
	controller  *syncx.Controller
}

// NewApp builds the full object graph. The secret is consumed here: the
// key is derived once inside the vault and the passphrase bytes are
// wiped before NewApp returns.
func NewApp(cfg *config.Config, secret []byte) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout)

	broadcaster := notify.NewBroadcaster(logger)

	// The commit hook needs the controller, which needs the store; the
	// closure breaks the cycle.
	var (
		controller *syncx.Controller
		err        error
	)
	st := store.New(logger,
		store.WithEventSink(broadcaster),
		store.WithCommitHook(func() {
			if controller != nil {
				controller.Schedule()
			}
		}),
	)

	controller, err = syncx.Open(cfg, secret, st, logger)
	cryptox.WipeBytes(secret)
	if err != nil {
		return nil, err
	}

	if cfg.BackupS3BaseEndpoint != "" {
		uploader, err := syncx.NewS3Uploader(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		controller.SetUploader(uploader)
	}

	return &App{
		config:      cfg,
		logger:      logger,
		store:       st,
		broadcaster: broadcaster,
		controller:  controller,
	}, nil
}

// Store returns the document store handle for collaborator layers.
func (a *App) Store() *store.Store { return a.store }

// Broadcaster returns the event broadcaster so collaborators can
// subscribe to lifecycle events.
func (a *App) Broadcaster() *notify.Broadcaster { return a.broadcaster }

// Backup produces a sealed point-in-time backup; see Controller.Backup.
func (a *App) Backup(ctx context.Context) (string, error) {
	return a.controller.Backup(ctx)
}

func (a *App) initSignalHandler(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancel()
	}()
}

// Run drives the sync controller until a signal or ctx cancellation,
// then waits for the final flush to complete.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.logger.Info(ctx, "starting docvault", "data_dir", a.config.DataDir)

	a.initSignalHandler(cancel)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.controller.Run(ctx)
	}()

	wg.Wait()
	a.logger.Info(context.Background(), "shutdown complete")
}
