package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB opens a migrated database in a temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestOpen_CreatesSchema(t *testing.T) {
	database := setupTestDB(t)

	tables := []string{
		"equipment", "personnel", "personnel_absences", "instances",
		"consumptions", "notifications", "equipment_failures",
		"settings", "local_storage",
	}
	for _, table := range tables {
		var count int
		err := database.RawDB().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s missing", table)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	database := setupTestDB(t)
	require.NoError(t, database.Migrate(context.Background()))
	require.NoError(t, database.Migrate(context.Background()))
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	database, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, database.SetSetting(ctx, "migration_completed", "true"))
	require.NoError(t, database.Close())

	database, err = Open(ctx, path)
	require.NoError(t, err)
	defer database.Close()

	v, err := database.Setting(ctx, "migration_completed")
	require.NoError(t, err)
	assert.Equal(t, "true", v)
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)

	_, err := database.Setting(ctx, "absent")
	assert.ErrorIs(t, err, ErrSettingNotFound)

	require.NoError(t, database.SetSetting(ctx, "k", "one"))
	require.NoError(t, database.SetSetting(ctx, "k", "two"))
	v, err := database.Setting(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "two", v)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	boom := errors.New("boom")

	err := database.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO equipment (id, name) VALUES (1, 'Pump')`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := database.TableCount(ctx, "equipment")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWithTx_Commits(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)

	err := database.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO equipment (id, name) VALUES (1, 'Pump')`)
		return err
	})
	require.NoError(t, err)

	n, err := database.TableCount(ctx, "equipment")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)

	assert.Panics(t, func() {
		_ = database.WithTx(ctx, func(tx *sql.Tx) error {
			_, _ = tx.ExecContext(ctx, `INSERT INTO equipment (id, name) VALUES (1, 'Pump')`)
			panic("boom")
		})
	})

	n, err := database.TableCount(ctx, "equipment")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
