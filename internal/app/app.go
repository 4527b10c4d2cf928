// Package app wires SmartM together from a Config.
//
// The storage strategy is chosen once, here. Everything built on top of it
// (repositories, sync manager, preferences, services) receives the concrete
// store and never inspects the driver again.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/smartm-app/smartm/internal/config"
	"github.com/smartm-app/smartm/internal/daemon"
	"github.com/smartm-app/smartm/internal/db"
	"github.com/smartm-app/smartm/internal/logging"
	"github.com/smartm-app/smartm/internal/migrate"
	"github.com/smartm-app/smartm/internal/notify"
	"github.com/smartm-app/smartm/internal/prefs"
	"github.com/smartm-app/smartm/internal/repo"
	"github.com/smartm-app/smartm/internal/service"
	"github.com/smartm-app/smartm/internal/storage"
	smsync "github.com/smartm-app/smartm/internal/sync"
)

// ErrNoDatabase is returned by operations that need the sqlite driver.
var ErrNoDatabase = errors.New("storage driver is not sqlite")

// App holds every long-lived component.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Kind   storage.Kind
	Mode   smsync.Mode

	// DB is nil with the file driver.
	DB      *db.DB
	Store   *storage.Store
	Repos   *repo.Set
	Sync    *smsync.Manager
	Prefs   *prefs.Prefs
	Service *service.Service
	Notify  *notify.Checker
}

// Open builds the application. With the sqlite driver the database is
// opened and migrated, and the legacy file store is copied in on first use.
// The caller must Close the returned App.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)

	kind, err := storage.ParseKind(cfg.Storage.Driver)
	if err != nil {
		return nil, err
	}
	mode, err := smsync.ParseMode(cfg.Sync.Mode)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, Kind: kind, Mode: mode}

	switch kind {
	case storage.KindSQLite:
		database, err := db.Open(ctx, cfg.Storage.DBPath)
		if err != nil {
			return nil, err
		}
		a.DB = database
		a.Store = storage.NewStore(storage.NewSQLDriver(database.RawDB()), cfg.Storage.KeyPrefix, logger)
		a.Repos = &repo.NewSQLSet(database.RawDB(), logger).Set

	default:
		driver, err := storage.NewFileDriver(cfg.Storage.FileDir)
		if err != nil {
			return nil, err
		}
		a.Store = storage.NewStore(driver, cfg.Storage.KeyPrefix, logger)
		a.Repos = repo.NewBlobSet(a.Store, logger)
	}

	a.Sync = smsync.NewManager(a.Store,
		smsync.NewSimulatedRemote(cfg.Sync.Latency, cfg.Sync.SuccessRate),
		smsync.WithLogger(logger.Named("sync")),
	)
	a.Prefs = prefs.New(a.Store)
	a.Service = service.New(a.Repos, a.Sync, a.Prefs, logger)
	a.Notify = notify.NewChecker(a.Repos, a.Store, cfg.Notify.LowOperabilityThreshold, logger)

	if a.DB != nil {
		res, err := a.Migrate(ctx, migrate.Options{})
		switch {
		case errors.Is(err, migrate.ErrIncomplete):
			logger.Warn("legacy store partially migrated, will retry on next start",
				zap.Strings("errors", res.Errors))
		case err != nil:
			_ = a.Close()
			return nil, err
		case !res.AlreadyDone:
			logger.Info("legacy store migrated",
				zap.Int("records", res.Copied()),
				zap.Int("keys", res.KeysCopied),
				zap.Int("errors", len(res.Errors)))
		}
	}

	logger.Debug("application ready", zap.String("driver", string(kind)), zap.String("mode", string(mode)))
	return a, nil
}

// Migrate copies the legacy file store into the database.
func (a *App) Migrate(ctx context.Context, opts migrate.Options) (*migrate.Result, error) {
	if a.DB == nil {
		return nil, ErrNoDatabase
	}
	driver, err := storage.NewFileDriver(a.Config.Storage.LegacyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy store: %w", err)
	}
	legacy := storage.NewStore(driver, a.Config.Storage.KeyPrefix, a.Logger)
	return migrate.New(a.DB, legacy, a.Store, a.Logger).Run(ctx, opts)
}

// Daemon returns the background runner for this application.
func (a *App) Daemon() (*daemon.Daemon, error) {
	return daemon.New(a.Store, a.Sync, a.Notify, &daemon.Config{
		Mode:             a.Mode,
		FrequencyUnit:    a.Config.Sync.FrequencyUnit,
		DebounceInterval: daemon.DefaultConfig().DebounceInterval,
		NotifyInterval:   a.Config.Notify.Interval,
		Logger:           a.Logger,
	})
}

// Close releases the database, if any.
func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
