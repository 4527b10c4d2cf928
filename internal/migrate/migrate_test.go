package migrate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartm-app/smartm/internal/db"
	"github.com/smartm-app/smartm/internal/model"
	"github.com/smartm-app/smartm/internal/repo"
	"github.com/smartm-app/smartm/internal/storage"
)

func setupMigrator(t *testing.T) (*Migrator, *storage.Store, *storage.Store, *db.DB) {
	t.Helper()
	ctx := context.Background()

	database, err := db.Open(ctx, filepath.Join(t.TempDir(), "smartm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	legacyDriver, err := storage.NewFileDriver(filepath.Join(t.TempDir(), "legacy"))
	require.NoError(t, err)

	legacy := storage.NewStore(legacyDriver, "smartm_", nil)
	target := storage.NewStore(storage.NewSQLDriver(database.RawDB()), "smartm_", nil)
	return New(database, legacy, target, nil), legacy, target, database
}

func TestRun_CopiesCollectionsAndKeys(t *testing.T) {
	ctx := context.Background()
	m, legacy, target, database := setupMigrator(t)

	legacySet := repo.NewBlobSet(legacy, nil)
	_, err := legacySet.Equipment.Add(ctx, model.Equipment{Name: "Pump", Status: model.StatusOperational, Sensitivity: 3})
	require.NoError(t, err)
	_, err = legacySet.Equipment.Add(ctx, model.Equipment{Name: "Press", Status: model.StatusMaintenance, Sensitivity: 2})
	require.NoError(t, err)
	_, err = legacySet.Personnel.Add(ctx, model.Personnel{Name: "Lea"})
	require.NoError(t, err)
	legacy.SetItem(ctx, "sync_state", `{"pendingCount":1,"syncFrequency":30,"entities":{"equipment":{"pendingCount":1}}}`)
	legacy.SetItem(ctx, "language", `"fr"`)

	res, err := m.Run(ctx, Options{})
	require.NoError(t, err)
	assert.False(t, res.AlreadyDone)
	assert.Equal(t, 3, res.Copied())
	assert.Equal(t, 2, res.KeysCopied)
	assert.Empty(t, res.Errors)

	n, err := database.TableCount(ctx, "equipment")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	v, ok := target.GetItem(ctx, "language")
	require.True(t, ok)
	assert.Equal(t, `"fr"`, v)

	done, err := m.Completed(ctx)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestRun_SecondRunIsNoOp(t *testing.T) {
	ctx := context.Background()
	m, legacy, _, database := setupMigrator(t)

	_, err := repo.NewBlobSet(legacy, nil).Equipment.Add(ctx, model.Equipment{Name: "Pump", Status: model.StatusOperational, Sensitivity: 1})
	require.NoError(t, err)

	_, err = m.Run(ctx, Options{})
	require.NoError(t, err)

	res, err := m.Run(ctx, Options{})
	require.NoError(t, err)
	assert.True(t, res.AlreadyDone)

	// Forcing still leaves non-empty tables alone.
	res, err = m.Run(ctx, Options{Force: true})
	require.NoError(t, err)
	assert.Zero(t, res.Copied())

	n, err := database.TableCount(ctx, "equipment")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRun_DoesNotOverwriteTargetKeys(t *testing.T) {
	ctx := context.Background()
	m, legacy, target, _ := setupMigrator(t)

	legacy.SetItem(ctx, "language", `"fr"`)
	target.SetItem(ctx, "language", `"en"`)

	res, err := m.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Zero(t, res.KeysCopied)

	v, _ := target.GetItem(ctx, "language")
	assert.Equal(t, `"en"`, v)
}

func TestRun_MalformedLegacyCollectionIsSkipped(t *testing.T) {
	ctx := context.Background()
	m, legacy, _, _ := setupMigrator(t)

	legacy.SetItem(ctx, repo.KeyEquipment, `{"not":"an array"}`)

	res, err := m.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Zero(t, res.Copied())
}

func TestRun_PartialFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	m, legacy, _, database := setupMigrator(t)

	legacy.SetItem(ctx, repo.KeyEquipment,
		`[{"id":1,"name":"Pump","status":"operational","sensitivity":2},{"id":1,"name":"Press","status":"operational","sensitivity":2}]`)
	_, err := repo.NewBlobSet(legacy, nil).Personnel.Add(ctx, model.Personnel{Name: "Lea"})
	require.NoError(t, err)

	res, err := m.Run(ctx, Options{})
	require.ErrorIs(t, err, ErrIncomplete)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], repo.KeyEquipment)

	n, err := database.TableCount(ctx, "personnel")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	done, err := m.Completed(ctx)
	require.NoError(t, err)
	assert.False(t, done)

	legacy.SetItem(ctx, repo.KeyEquipment, `[{"id":1,"name":"Pump","status":"operational","sensitivity":2}]`)
	res, err = m.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Copied())

	done, err = m.Completed(ctx)
	require.NoError(t, err)
	assert.True(t, done)
}
