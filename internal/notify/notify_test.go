package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartm-app/smartm/internal/model"
	"github.com/smartm-app/smartm/internal/repo"
	"github.com/smartm-app/smartm/internal/storage"
)

func setupChecker(t *testing.T, now time.Time) (*Checker, *repo.Set, *storage.Store) {
	t.Helper()
	store := storage.NewStore(storage.NewMemoryDriver(), "smartm_", nil)
	repos := repo.NewBlobSet(store, nil)
	c := NewChecker(repos, store, DefaultThreshold, nil)
	c.SetClock(func() time.Time { return now })
	return c, repos, store
}

func TestCheckPersonnelReturns(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.Local)
	c, repos, _ := setupChecker(t, now)

	add := func(a model.PersonnelAbsence) {
		_, err := repos.Absences.Add(ctx, a)
		require.NoError(t, err)
	}
	add(model.PersonnelAbsence{PersonnelID: 1, Label: "Lea", StartDate: "2024-06-01", EndDate: "2024-06-11"})
	add(model.PersonnelAbsence{PersonnelID: 2, Label: "Sam", StartDate: "2024-06-01", EndDate: "2024-06-20"})
	add(model.PersonnelAbsence{PersonnelID: 3, Label: "Ana", StartDate: "2024-06-01", EndDate: "2024-06-11", Rejoined: true})
	add(model.PersonnelAbsence{PersonnelID: 4, Label: "Tom", StartDate: "2024-06-01", EndDate: "2024-06-09"})

	n, err := c.CheckPersonnelReturns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	notes := repos.Notifications.GetAll(ctx)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotifyInfo, notes[0].Type)
	assert.Contains(t, notes[0].Message, "Lea")
	assert.False(t, notes[0].Read)

	abs, err := repos.Absences.Find(ctx, 1)
	require.NoError(t, err)
	assert.True(t, abs.Notified)

	// Already announced.
	n, err = c.CheckPersonnelReturns(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCheckTaskExpirations_OncePerDay(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.Local)
	c, repos, _ := setupChecker(t, now)

	_, err := repos.Instances.Add(ctx, model.Instance{Title: "Audit", DueDate: "2024-06-12", Status: model.InstancePending, Category: model.CategoryAudit})
	require.NoError(t, err)
	_, err = repos.Instances.Add(ctx, model.Instance{Title: "Done", DueDate: "2024-06-12", Status: model.InstanceCompleted})
	require.NoError(t, err)
	_, err = repos.Instances.Add(ctx, model.Instance{Title: "Later", DueDate: "2024-07-30"})
	require.NoError(t, err)

	n, err := c.CheckTaskExpirations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.CheckTaskExpirations(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "second check on the same day")

	c.SetClock(func() time.Time { return now.Add(24 * time.Hour) })
	n, err = c.CheckTaskExpirations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	notes := repos.Notifications.GetAll(ctx)
	require.Len(t, notes, 2)
	assert.Equal(t, model.NotifyWarning, notes[0].Type)
	assert.Equal(t, []int{1, 2}, []int{notes[0].ID, notes[1].ID})
}

func TestCheckLowOperability_Latches(t *testing.T) {
	ctx := context.Background()
	c, repos, store := setupChecker(t, time.Now())

	_, err := repos.Equipment.Add(ctx, model.Equipment{Name: "Pump", Status: model.StatusOutOfService, Sensitivity: 3})
	require.NoError(t, err)
	_, err = repos.Equipment.Add(ctx, model.Equipment{Name: "Press", Status: model.StatusMaintenance, Sensitivity: 3})
	require.NoError(t, err)

	n, err := c.CheckLowOperability(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, latched := store.GetItem(ctx, LowOperabilityKey)
	assert.True(t, latched)

	n, err = c.CheckLowOperability(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Recovery clears the latch.
	require.NoError(t, repos.Equipment.Update(ctx, 1, func(e *model.Equipment) { e.Status = model.StatusOperational }))
	require.NoError(t, repos.Equipment.Update(ctx, 2, func(e *model.Equipment) { e.Status = model.StatusOperational }))
	n, err = c.CheckLowOperability(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, latched = store.GetItem(ctx, LowOperabilityKey)
	assert.False(t, latched)
}

func TestCheckLowOperability_EmptyFleetIsHealthy(t *testing.T) {
	c, _, _ := setupChecker(t, time.Now())
	n, err := c.CheckLowOperability(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	c, _, _ := setupChecker(t, time.Now())

	a, err := c.Notify(ctx, "A", "first", model.NotifyInfo)
	require.NoError(t, err)
	_, err = c.Notify(ctx, "B", "second", model.NotifySuccess)
	require.NoError(t, err)
	assert.Len(t, c.Unread(ctx), 2)

	require.NoError(t, c.MarkRead(ctx, a.ID))
	assert.Len(t, c.Unread(ctx), 1)

	n, err := c.MarkAllRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, c.Unread(ctx))
}

func TestCheckAll(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.Local)
	c, repos, _ := setupChecker(t, now)

	_, err := repos.Equipment.Add(ctx, model.Equipment{Name: "Pump", Status: model.StatusOutOfService, Sensitivity: 3})
	require.NoError(t, err)
	_, err = repos.Instances.Add(ctx, model.Instance{Title: "Audit", DueDate: "2024-06-11"})
	require.NoError(t, err)

	n, err := c.CheckAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = c.CheckAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
