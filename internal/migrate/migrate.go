// Package migrate performs the one-shot copy of a file-backed SmartM store
// into the SQLite database.
//
// Each collection is copied only when its table is still empty, so running
// the migration twice never duplicates rows. Once a run finishes without
// errors the migration_completed setting is written and later runs return
// immediately unless forced.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/smartm-app/smartm/internal/db"
	"github.com/smartm-app/smartm/internal/logging"
	"github.com/smartm-app/smartm/internal/repo"
	"github.com/smartm-app/smartm/internal/storage"
)

// CompletedSetting is the settings key marking a finished migration.
const CompletedSetting = "migration_completed"

// ErrIncomplete is returned with a partial Result when some collections or
// keys failed to copy. The completed flag is left unset so a later run
// retries them.
var ErrIncomplete = errors.New("migration incomplete")

// Options configures a migration run.
type Options struct {
	// Force runs even when a previous migration completed. Tables that
	// already hold rows are still left alone.
	Force bool
}

// Result contains statistics about the migration.
type Result struct {
	// AlreadyDone is set when the completed flag short-circuited the run.
	AlreadyDone bool
	Steps       []repo.MigrationStep
	// KeysCopied counts scalar keys such as sync_state and preferences.
	KeysCopied int
	Errors     []string
}

// Copied returns the total number of records copied.
func (r *Result) Copied() int {
	n := 0
	for _, s := range r.Steps {
		n += s.Copied
	}
	return n
}

// Migrator copies a legacy store into the database.
type Migrator struct {
	database *db.DB
	legacy   *storage.Store
	target   *storage.Store
	logger   *zap.Logger
}

// New returns a migrator reading legacy and writing into database. target
// is the key/value store over the database that receives scalar keys.
func New(database *db.DB, legacy, target *storage.Store, logger *zap.Logger) *Migrator {
	return &Migrator{
		database: database,
		legacy:   legacy,
		target:   target,
		logger:   logging.OrNop(logger).Named("migrate"),
	}
}

// Run performs the migration.
func (m *Migrator) Run(ctx context.Context, opts Options) (*Result, error) {
	if !opts.Force {
		done, err := m.Completed(ctx)
		if err != nil {
			return nil, err
		}
		if done {
			m.logger.Debug("migration already completed")
			return &Result{AlreadyDone: true}, nil
		}
	}

	m.logger.Info("migrating legacy store", zap.String("driver", m.legacy.Driver().Name()))

	result := &Result{}
	legacySet := repo.NewBlobSet(m.legacy, m.logger)
	sqlSet := repo.NewSQLSet(m.database.RawDB(), m.logger)

	result.Steps = sqlSet.MigrateFrom(ctx, legacySet)
	for _, s := range result.Steps {
		if s.Err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", s.Collection, s.Err))
			m.logger.Warn("collection migration failed", zap.String("collection", s.Collection), zap.Error(s.Err))
			continue
		}
		if s.Copied > 0 {
			m.logger.Info("collection migrated", zap.String("collection", s.Collection), zap.Int("records", s.Copied))
		}
	}

	n, err := m.copyScalarKeys(ctx)
	result.KeysCopied = n
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	if len(result.Errors) > 0 {
		return result, fmt.Errorf("%w: %d error(s)", ErrIncomplete, len(result.Errors))
	}

	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := m.database.SetSetting(ctx, CompletedSetting, stamp); err != nil {
		return result, err
	}
	m.logger.Info("migration completed", zap.Int("records", result.Copied()), zap.Int("keys", result.KeysCopied))
	return result, nil
}

// Completed reports whether a previous run finished.
func (m *Migrator) Completed(ctx context.Context) (bool, error) {
	_, err := m.database.Setting(ctx, CompletedSetting)
	if errors.Is(err, db.ErrSettingNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// collectionKeys are owned by the repositories and copied row by row.
var collectionKeys = map[string]bool{
	repo.KeyEquipment:         true,
	repo.KeyEquipmentFailures: true,
	repo.KeyPersonnel:         true,
	repo.KeyPersonnelAbsences: true,
	repo.KeyInstances:         true,
	repo.KeyConsumptions:      true,
	repo.KeyNotifications:     true,
}

// copyScalarKeys copies every other prefixed key that the target does not
// have yet.
func (m *Migrator) copyScalarKeys(ctx context.Context) (int, error) {
	raw, err := m.legacy.Driver().Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list legacy keys: %w", err)
	}

	copied := 0
	var errs []error
	for _, rk := range raw {
		key, ok := m.legacy.LogicalKey(rk)
		if !ok || collectionKeys[key] {
			continue
		}
		if _, err := m.target.Lookup(ctx, key); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			errs = append(errs, err)
			continue
		}
		value, err := m.legacy.Lookup(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := m.target.Put(ctx, key, value); err != nil {
			errs = append(errs, err)
			continue
		}
		copied++
	}
	return copied, errors.Join(errs...)
}
