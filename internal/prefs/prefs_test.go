package prefs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartm-app/smartm/internal/storage"
)

func newTestPrefs(t *testing.T) (*Prefs, *storage.Store, *storage.MemoryDriver) {
	t.Helper()
	driver := storage.NewMemoryDriver()
	store := storage.NewStore(driver, "smartm_", nil)
	return New(store), store, driver
}

func TestTotalPersonnel(t *testing.T) {
	ctx := context.Background()
	p, store, _ := newTestPrefs(t)

	assert.Equal(t, DefaultTotalPersonnel, p.TotalPersonnel(ctx))

	require.NoError(t, p.SetTotalPersonnel(ctx, 12))
	assert.Equal(t, 12, p.TotalPersonnel(ctx))

	store.SetItem(ctx, KeyTotalPersonnel, "lots")
	assert.Equal(t, DefaultTotalPersonnel, p.TotalPersonnel(ctx))

	assert.Error(t, p.SetTotalPersonnel(ctx, -1))
}

func TestLanguage(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestPrefs(t)

	assert.Equal(t, "fr", p.Language(ctx))
	require.NoError(t, p.SetLanguage(ctx, "en"))
	assert.Equal(t, "en", p.Language(ctx))
	assert.Error(t, p.SetLanguage(ctx, "de"))
	assert.Equal(t, "en", p.Language(ctx))
}

func TestDarkMode(t *testing.T) {
	ctx := context.Background()
	p, store, _ := newTestPrefs(t)

	assert.False(t, p.DarkMode(ctx))
	require.NoError(t, p.SetDarkMode(ctx, true))
	assert.True(t, p.DarkMode(ctx))

	store.SetItem(ctx, KeyDarkMode, "yes")
	assert.False(t, p.DarkMode(ctx))
}

func TestUnavailableStoreUsesDefaults(t *testing.T) {
	ctx := context.Background()
	p, _, driver := newTestPrefs(t)
	driver.Fail = errors.New("locked")

	assert.Equal(t, DefaultTotalPersonnel, p.TotalPersonnel(ctx))
	assert.Equal(t, DefaultLanguage, p.Language(ctx))
	assert.False(t, p.DarkMode(ctx))
	assert.ErrorIs(t, p.SetDarkMode(ctx, true), storage.ErrUnavailable)
}
