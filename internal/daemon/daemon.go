// Package daemon runs the SmartM background loops.
//
// The daemon:
//  1. Fires auto-sync passes on the period set in the sync state
//  2. Watches the storage directory for changes made by other processes
//     and reloads the sync state when it changes
//  3. Periodically runs the notification checks
//  4. Shuts everything down when its context is cancelled
package daemon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/smartm-app/smartm/internal/logging"
	"github.com/smartm-app/smartm/internal/repo"
	"github.com/smartm-app/smartm/internal/storage"
	smsync "github.com/smartm-app/smartm/internal/sync"
)

// Config holds configuration for the daemon.
type Config struct {
	// Mode is the sync mode used by auto-sync passes.
	Mode smsync.Mode

	// FrequencyUnit is the length of one sync frequency step.
	FrequencyUnit time.Duration

	// DebounceInterval is how long a changed key must stay quiet before
	// it is processed. Batches the bursts produced by atomic rewrites.
	DebounceInterval time.Duration

	// NotifyInterval is how often the notification checks run. Zero
	// disables them.
	NotifyInterval time.Duration

	Logger *zap.Logger
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Mode:             smsync.ModeOnline,
		FrequencyUnit:    time.Minute,
		DebounceInterval: 100 * time.Millisecond,
		NotifyInterval:   time.Hour,
	}
}

// Checker runs the notification checks and reports how many
// notifications were created.
type Checker interface {
	CheckAll(ctx context.Context) (int, error)
}

// Watchable is a storage driver that can report changes.
type Watchable interface {
	Watch(ctx context.Context) (<-chan storage.Change, error)
}

// Daemon orchestrates auto-sync, storage watching and notification checks.
type Daemon struct {
	store   *storage.Store
	mgr     *smsync.Manager
	checker Checker
	config  *Config
	logger  *zap.Logger

	changeQueue   map[string]time.Time
	changeQueueMu sync.Mutex

	// checkMu keeps periodic and change-triggered checks from overlapping.
	checkMu sync.Mutex

	wg sync.WaitGroup
}

// New creates a Daemon. checker may be nil.
func New(store *storage.Store, mgr *smsync.Manager, checker Checker, config *Config) (*Daemon, error) {
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if mgr == nil {
		return nil, errors.New("sync manager cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.FrequencyUnit <= 0 {
		return nil, fmt.Errorf("invalid frequency unit %s", config.FrequencyUnit)
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}

	return &Daemon{
		store:       store,
		mgr:         mgr,
		checker:     checker,
		config:      config,
		logger:      logging.OrNop(config.Logger).Named("daemon"),
		changeQueue: make(map[string]time.Time),
	}, nil
}

// Run starts every loop and blocks until ctx is cancelled. Watching is
// skipped when the storage driver cannot report changes.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("starting daemon", zap.String("driver", d.store.Driver().Name()), zap.String("mode", string(d.config.Mode)))

	auto := NewAutoSync(d.mgr, d.config.Mode, d.config.FrequencyUnit, d.logger)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		_ = auto.Run(ctx)
	}()

	if w, ok := d.store.Driver().(Watchable); ok {
		changes, err := w.Watch(ctx)
		if err != nil {
			d.logger.Warn("storage watching disabled", zap.Error(err))
		} else {
			d.wg.Add(2)
			go d.watchChanges(ctx, changes)
			go d.processChangeQueue(ctx)
		}
	}

	if d.checker != nil && d.config.NotifyInterval > 0 {
		d.wg.Add(1)
		go d.runChecks(ctx)
	}

	<-ctx.Done()
	d.logger.Info("shutdown signal received")
	d.wg.Wait()
	d.logger.Info("daemon stopped")
	return nil
}

// watchChanges queues every key changed under our prefix.
func (d *Daemon) watchChanges(ctx context.Context, changes <-chan storage.Change) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			key, ok := d.store.LogicalKey(change.Key)
			if !ok {
				continue
			}
			d.logger.Debug("storage event", zap.String("key", key), zap.Stringer("op", change.Op))
			d.queueChange(key)
		}
	}
}

func (d *Daemon) queueChange(key string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[key] = time.Now()
}

func (d *Daemon) processChangeQueue(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.processPendingChanges(ctx, time.Now())
		}
	}
}

// processPendingChanges handles keys that have been quiet for at least
// the debounce interval.
func (d *Daemon) processPendingChanges(ctx context.Context, now time.Time) {
	d.changeQueueMu.Lock()
	var ready []string
	for key, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		ready = append(ready, key)
		delete(d.changeQueue, key)
	}
	d.changeQueueMu.Unlock()

	refresh, recheck := false, false
	for _, key := range ready {
		switch {
		case key == smsync.StateKey, strings.HasPrefix(key, smsync.PendingKey("")):
			refresh = true
		case key == repo.KeyNotifications:
			// Written by the checks themselves.
		default:
			d.logger.Info("collection changed", zap.String("key", key))
			recheck = true
		}
	}

	if refresh {
		st := d.mgr.Refresh(ctx)
		d.logger.Debug("sync state reloaded", zap.Int("pending", st.PendingCount))
	}
	if recheck && d.checker != nil {
		d.check(ctx)
	}
}

func (d *Daemon) runChecks(ctx context.Context) {
	defer d.wg.Done()

	d.check(ctx)

	ticker := time.NewTicker(d.config.NotifyInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.check(ctx)
		}
	}
}

func (d *Daemon) check(ctx context.Context) {
	d.checkMu.Lock()
	defer d.checkMu.Unlock()

	n, err := d.checker.CheckAll(ctx)
	if err != nil {
		d.logger.Warn("notification checks failed", zap.Error(err))
		return
	}
	if n > 0 {
		d.logger.Info("notifications created", zap.Int("count", n))
	}
}
