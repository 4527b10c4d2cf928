package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/smartm-app/smartm/internal/logging"
	smsync "github.com/smartm-app/smartm/internal/sync"
)

// armKey is the part of the sync state the auto-sync timer depends on.
// Any change to it tears the timer down and re-arms it.
type armKey struct {
	autoSync  bool
	frequency int
	pending   int
}

func keyOf(st smsync.State) armKey {
	return armKey{autoSync: st.AutoSync, frequency: st.SyncFrequency, pending: st.PendingCount}
}

// Period returns the auto-sync period for st, or 0 when the timer must not
// be armed. unit is the length of one frequency step (a minute in
// production).
func Period(st smsync.State, unit time.Duration) time.Duration {
	if !st.AutoSync || st.SyncFrequency <= 0 || unit <= 0 {
		return 0
	}
	return time.Duration(st.SyncFrequency) * unit
}

// AutoSync fires sync passes on the period configured in the sync state.
type AutoSync struct {
	mgr    *smsync.Manager
	mode   smsync.Mode
	unit   time.Duration
	logger *zap.Logger
}

// NewAutoSync returns a scheduler driving mgr.
func NewAutoSync(mgr *smsync.Manager, mode smsync.Mode, unit time.Duration, logger *zap.Logger) *AutoSync {
	return &AutoSync{
		mgr:    mgr,
		mode:   mode,
		unit:   unit,
		logger: logging.OrNop(logger).Named("autosync"),
	}
}

// Run arms the timer and keeps it in step with the sync state until ctx is
// cancelled. The timer is always released on return.
func (a *AutoSync) Run(ctx context.Context) error {
	states, unsubscribe := a.mgr.Subscribe()
	defer unsubscribe()

	var ticker *time.Ticker
	var tick <-chan time.Time
	disarm := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer disarm()

	arm := func(st smsync.State) {
		disarm()
		period := Period(st, a.unit)
		if period == 0 {
			a.logger.Debug("auto-sync disarmed")
			return
		}
		ticker = time.NewTicker(period)
		tick = ticker.C
		a.logger.Debug("auto-sync armed", zap.Duration("period", period), zap.Int("pending", st.PendingCount))
	}

	current := a.mgr.State(ctx)
	key := keyOf(current)
	arm(current)

	for {
		select {
		case <-ctx.Done():
			return nil

		case st, ok := <-states:
			if !ok {
				return nil
			}
			if k := keyOf(st); k != key {
				key = k
				arm(st)
			}

		case <-tick:
			a.fire(ctx)
		}
	}
}

func (a *AutoSync) fire(ctx context.Context) {
	st := a.mgr.State(ctx)
	if st.PendingCount == 0 || a.mgr.IsSyncing() {
		a.logger.Info("auto-sync tick skipped", zap.Int("pending", st.PendingCount), zap.Bool("syncing", a.mgr.IsSyncing()))
		return
	}
	res := a.mgr.Run(ctx, nil, a.mode)
	if !res.OK && !res.Skipped {
		a.logger.Warn("auto-sync pass failed", zap.String("pass", res.PassID), zap.Error(res.Err))
	}
}
