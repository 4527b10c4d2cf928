package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartm-app/smartm/internal/logging"
	"github.com/smartm-app/smartm/internal/storage"
)

const (
	// StateKey is the storage key of the persisted State.
	StateKey = "sync_state"

	pendingPrefix = "pending_sync_"
)

// ErrInvalidFrequency is returned for a non-positive auto-sync period.
var ErrInvalidFrequency = errors.New("sync frequency must be a positive number of minutes")

// PendingKey returns the storage key holding the pending id list of t.
func PendingKey(t EntityType) string {
	return pendingPrefix + string(t)
}

// Result describes one sync pass.
type Result struct {
	// OK is what PerformSync returns.
	OK bool
	// Skipped is set when another pass was already in flight.
	Skipped bool
	// Synced lists the types that were cleared.
	Synced []EntityType
	// PassID correlates the log lines of one pass. Empty for no-op passes.
	PassID string
	Err    error
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the manager's logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = logging.OrNop(l) }
}

// Manager owns the sync state record. It is safe for concurrent use.
type Manager struct {
	store  *storage.Store
	remote Remote
	now    func() time.Time
	logger *zap.Logger

	// mu serializes read-modify-write of the persisted state.
	mu      sync.Mutex
	syncing atomic.Bool

	subMu   sync.Mutex
	subs    map[int]chan State
	nextSub int
}

// NewManager returns a manager persisting through store. A nil remote
// accepts every push.
func NewManager(store *storage.Store, remote Remote, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		remote: remote,
		now:    time.Now,
		logger: zap.NewNop(),
		subs:   map[int]chan State{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state, or DefaultState if none is stored or
// the stored record cannot be read.
func (m *Manager) State(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx)
}

// IsSyncing reports whether a pass is in flight.
func (m *Manager) IsSyncing() bool {
	return m.syncing.Load()
}

// MarkEntityForSync records that id of type t changed. The pending count
// grows on every call; the id list keeps each id once.
func (m *Manager) MarkEntityForSync(ctx context.Context, t EntityType, id int) {
	m.mu.Lock()
	st := m.load(ctx)
	e := st.Entities[t]
	e.PendingCount++
	st.Entities[t] = e
	st.recompute()
	m.save(ctx, st)

	ids := m.pendingIDs(ctx, t)
	if !slices.Contains(ids, id) {
		ids = append(ids, id)
		if err := m.store.PutJSON(ctx, PendingKey(t), ids); err != nil {
			m.logger.Warn("failed to save pending ids", zap.String("type", string(t)), zap.Error(err))
		}
	}
	m.mu.Unlock()

	m.logger.Debug("entity marked for sync", zap.String("type", string(t)), zap.Int("id", id), zap.Int("pending", st.PendingCount))
	m.publish(st)
}

// UpdateEntityPendingCount overwrites the pending count of t. Negative
// counts are stored as zero.
func (m *Manager) UpdateEntityPendingCount(ctx context.Context, t EntityType, count int) {
	m.mu.Lock()
	st := m.load(ctx)
	e := st.Entities[t]
	e.PendingCount = max(count, 0)
	st.Entities[t] = e
	st.recompute()
	m.save(ctx, st)
	m.mu.Unlock()

	m.publish(st)
}

// PendingIDs returns the distinct ids of t changed since its last
// successful sync, in marking order.
func (m *Manager) PendingIDs(ctx context.Context, t EntityType) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingIDs(ctx, t)
}

// SetAutoSyncSettings persists the auto-sync switch and period. It does
// not arm any timer.
func (m *Manager) SetAutoSyncSettings(ctx context.Context, autoSync bool, frequencyMinutes int) error {
	if frequencyMinutes <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidFrequency, frequencyMinutes)
	}

	m.mu.Lock()
	st := m.load(ctx)
	st.AutoSync = autoSync
	st.SyncFrequency = frequencyMinutes
	m.save(ctx, st)
	m.mu.Unlock()

	m.logger.Info("auto-sync settings updated", zap.Bool("auto_sync", autoSync), zap.Int("frequency_minutes", frequencyMinutes))
	m.publish(st)
	return nil
}

// PerformSync runs a pass and reports whether it succeeded. An empty types
// defaults to every type with pending changes. A pass already in flight
// makes this return false without touching the state.
func (m *Manager) PerformSync(ctx context.Context, types []EntityType, mode Mode) bool {
	return m.Run(ctx, types, mode).OK
}

// Run is PerformSync with the full outcome.
func (m *Manager) Run(ctx context.Context, types []EntityType, mode Mode) Result {
	if !m.syncing.CompareAndSwap(false, true) {
		m.logger.Info("sync already in progress, skipping")
		return Result{Skipped: true}
	}
	defer m.syncing.Store(false)

	if _, err := ParseMode(string(mode)); err != nil {
		return Result{Err: err}
	}

	if len(types) == 0 {
		types = m.State(ctx).Pending()
	}
	if len(types) == 0 {
		return Result{OK: true}
	}
	types = slices.Clone(types)

	passID := uuid.NewString()
	log := m.logger.With(zap.String("pass", passID), zap.String("mode", string(mode)))
	now := m.now()

	m.mu.Lock()
	st := m.load(ctx)
	st.LastSyncAttempt = &now
	m.save(ctx, st)
	m.mu.Unlock()
	m.publish(st)

	log.Info("sync started", zap.Any("types", types))

	if mode == ModeOnline && m.remote != nil {
		if err := m.remote.Push(ctx, types); err != nil {
			log.Warn("sync failed, pending changes kept", zap.Error(err))
			return Result{PassID: passID, Err: err}
		}
	}

	m.mu.Lock()
	st = m.load(ctx)
	for _, t := range types {
		e := st.Entities[t]
		e.PendingCount = 0
		e.LastSync = &now
		st.Entities[t] = e
		m.store.RemoveItem(ctx, PendingKey(t))
	}
	st.LastSuccessfulSync = &now
	st.recompute()
	m.save(ctx, st)
	m.mu.Unlock()

	log.Info("sync completed", zap.Int("pending", st.PendingCount))
	m.publish(st)
	return Result{OK: true, Synced: types, PassID: passID}
}

// Subscribe returns a channel receiving the state after every change. A
// slow reader only sees the latest state. cancel closes the channel.
func (m *Manager) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			close(ch)
			m.subMu.Unlock()
		})
	}
	return ch, cancel
}

// Refresh re-reads the persisted state and notifies subscribers. Used when
// another process changed the store.
func (m *Manager) Refresh(ctx context.Context) State {
	st := m.State(ctx)
	m.publish(st)
	return st
}

func (m *Manager) publish(st State) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		snapshot := st.Clone()
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

// load must be called with mu held.
func (m *Manager) load(ctx context.Context) State {
	st := DefaultState()
	if err := m.store.LookupJSON(ctx, StateKey, &st); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn("failed to read sync state, using defaults", zap.Error(err))
		}
		return DefaultState()
	}
	if st.Entities == nil {
		st.Entities = map[EntityType]EntityState{}
	}
	if st.SyncFrequency <= 0 {
		st.SyncFrequency = DefaultFrequency
	}
	for t, e := range st.Entities {
		if e.PendingCount < 0 {
			e.PendingCount = 0
			st.Entities[t] = e
		}
	}
	st.recompute()
	return st
}

// save must be called with mu held.
func (m *Manager) save(ctx context.Context, st State) {
	if err := m.store.PutJSON(ctx, StateKey, st); err != nil {
		m.logger.Error("failed to save sync state", zap.Error(err))
	}
}

func (m *Manager) pendingIDs(ctx context.Context, t EntityType) []int {
	var ids []int
	if err := m.store.LookupJSON(ctx, PendingKey(t), &ids); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn("failed to read pending ids", zap.String("type", string(t)), zap.Error(err))
		}
		return nil
	}
	return ids
}
