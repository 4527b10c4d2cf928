package repo

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartm-app/smartm/internal/db"
	"github.com/smartm-app/smartm/internal/model"
	"github.com/smartm-app/smartm/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	return storage.NewStore(storage.NewMemoryDriver(), "smartm_", nil)
}

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

// equipmentRepos returns one fresh repository per backend.
func equipmentRepos(t *testing.T) map[string]Repository[model.Equipment] {
	return map[string]Repository[model.Equipment]{
		"blob": NewBlob[model.Equipment](newTestStore(t), KeyEquipment, nil),
		"sql":  NewSQL(setupTestDB(t).RawDB(), EquipmentMapping, nil),
	}
}

func pump(name string, status model.EquipmentStatus) model.Equipment {
	return model.Equipment{Name: name, Service: "ICU", Status: status, Sensitivity: 3}
}

func TestRepository_Contract(t *testing.T) {
	ctx := context.Background()
	for name, r := range equipmentRepos(t) {
		t.Run(name, func(t *testing.T) {
			items, err := r.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, items)

			a, err := r.Add(ctx, pump("A", model.StatusOperational))
			require.NoError(t, err)
			assert.Equal(t, 1, a.ID)

			b, err := r.Add(ctx, pump("B", model.StatusMaintenance))
			require.NoError(t, err)
			assert.Equal(t, 2, b.ID)

			got, err := r.Find(ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, b, got)

			require.NoError(t, r.Update(ctx, 1, func(e *model.Equipment) {
				e.Status = model.StatusOutOfService
				e.ID = 99
			}))
			got, err = r.Find(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, model.StatusOutOfService, got.Status)

			err = r.Update(ctx, 42, func(e *model.Equipment) {})
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = r.Find(ctx, 42)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, r.Remove(ctx, 1))
			require.NoError(t, r.Remove(ctx, 1))
			n, err := r.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			assert.Len(t, r.GetAll(ctx), 1)
		})
	}
}

func TestRepository_IDsNeverReused(t *testing.T) {
	ctx := context.Background()
	for name, r := range equipmentRepos(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, r.SaveAll(ctx, []model.Equipment{
				pump("A", model.StatusOperational).WithID(3),
				pump("B", model.StatusOperational).WithID(7),
			}))

			c, err := r.Add(ctx, pump("C", model.StatusOperational))
			require.NoError(t, err)
			assert.Equal(t, 8, c.ID)

			require.NoError(t, r.Remove(ctx, 8))
			d, err := r.Add(ctx, pump("D", model.StatusOperational))
			require.NoError(t, err)
			assert.Equal(t, 9, d.ID)

			require.NoError(t, r.Remove(ctx, 9))
			require.NoError(t, r.Remove(ctx, 7))
			e, err := r.Add(ctx, pump("E", model.StatusOperational))
			require.NoError(t, err)
			assert.Equal(t, 10, e.ID)
		})
	}
}

func TestRepository_IDsNotReusedAfterDeletingPreexistingMax(t *testing.T) {
	ctx := context.Background()
	for name, r := range equipmentRepos(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, r.SaveAll(ctx, []model.Equipment{pump("A", model.StatusOperational).WithID(5)}))

			fresh := r
			switch typed := r.(type) {
			case *Blob[model.Equipment]:
				fresh = NewBlob[model.Equipment](typed.store, KeyEquipment, nil)
			case *SQL[model.Equipment]:
				fresh = NewSQL(typed.conn, EquipmentMapping, nil)
			}

			_ = fresh.GetAll(ctx)
			require.NoError(t, fresh.Remove(ctx, 5))
			got, err := fresh.Add(ctx, pump("B", model.StatusOperational))
			require.NoError(t, err)
			assert.Equal(t, 6, got.ID)
		})
	}
}

func TestRepository_SaveAllReplaces(t *testing.T) {
	ctx := context.Background()
	for name, r := range equipmentRepos(t) {
		t.Run(name, func(t *testing.T) {
			_, err := r.Add(ctx, pump("A", model.StatusOperational))
			require.NoError(t, err)

			batch := make([]model.Equipment, 0, 250)
			for i := 1; i <= 250; i++ {
				batch = append(batch, pump("bulk", model.StatusMaintenance).WithID(i+10))
			}
			require.NoError(t, r.SaveAll(ctx, batch))

			items, err := r.Load(ctx)
			require.NoError(t, err)
			require.Len(t, items, 250)
			assert.Equal(t, 11, items[0].ID)
		})
	}
}

func TestRepository_RejectsInvalidWrites(t *testing.T) {
	ctx := context.Background()
	for name, r := range equipmentRepos(t) {
		t.Run(name, func(t *testing.T) {
			_, err := r.Add(ctx, model.Equipment{Name: "X", Status: "exploded", Sensitivity: 2})
			var verr *model.ValidationError
			assert.ErrorAs(t, err, &verr)

			n, err := r.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestRepository_SaveAllRejectsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	for name, r := range equipmentRepos(t) {
		t.Run(name, func(t *testing.T) {
			_, err := r.Add(ctx, pump("A", model.StatusOperational))
			require.NoError(t, err)

			err = r.SaveAll(ctx, []model.Equipment{
				{ID: 1, Status: model.StatusOperational},
				{ID: 2, Status: model.StatusMaintenance},
				{ID: 3, Status: model.StatusOutOfService},
			})
			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)

			items, err := r.Load(ctx)
			require.NoError(t, err)
			require.Len(t, items, 1)
			assert.Equal(t, "A", items[0].Name)
		})
	}
}

func TestRepository_SaveAllRejectsDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	for name, r := range equipmentRepos(t) {
		t.Run(name, func(t *testing.T) {
			_, err := r.Add(ctx, pump("A", model.StatusOperational))
			require.NoError(t, err)

			err = r.SaveAll(ctx, []model.Equipment{
				pump("B", model.StatusOperational).WithID(4),
				pump("C", model.StatusMaintenance).WithID(4),
			})
			require.ErrorIs(t, err, ErrDuplicateID)

			items, err := r.Load(ctx)
			require.NoError(t, err)
			require.Len(t, items, 1)
			assert.Equal(t, 1, items[0].ID)
		})
	}
}

func TestRepository_SaveAllNormalizes(t *testing.T) {
	ctx := context.Background()
	repos := map[string]Repository[model.Instance]{
		"blob": NewBlob[model.Instance](newTestStore(t), KeyInstances, nil),
		"sql":  NewSQL(setupTestDB(t).RawDB(), InstanceMapping, nil),
	}
	for name, r := range repos {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, r.SaveAll(ctx, []model.Instance{{
				ID:       1,
				Title:    "Audit",
				Category: model.CategoryAudit,
				DueDate:  "2024-05-01",
				Status:   "bogus",
			}}))
			items, err := r.Load(ctx)
			require.NoError(t, err)
			require.Len(t, items, 1)
			assert.Equal(t, model.InstancePending, items[0].Status)
		})
	}
}

func TestRepository_RemoveWhere(t *testing.T) {
	ctx := context.Background()
	for name, r := range equipmentRepos(t) {
		t.Run(name, func(t *testing.T) {
			for _, s := range []model.EquipmentStatus{model.StatusOperational, model.StatusMaintenance, model.StatusMaintenance} {
				_, err := r.Add(ctx, pump("x", s))
				require.NoError(t, err)
			}
			removed, err := r.RemoveWhere(ctx, func(e model.Equipment) bool { return e.Status == model.StatusMaintenance })
			require.NoError(t, err)
			require.Len(t, removed, 2)
			assert.ElementsMatch(t, []int{2, 3}, []int{removed[0].ID, removed[1].ID})

			removed, err = r.RemoveWhere(ctx, func(e model.Equipment) bool { return false })
			require.NoError(t, err)
			assert.Empty(t, removed)
			assert.Len(t, r.GetAll(ctx), 1)
		})
	}
}

func TestBlob_MalformedCollection(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.SetItem(ctx, KeyEquipment, "{not json")
	r := NewBlob[model.Equipment](store, KeyEquipment, nil)

	_, err := r.Load(ctx)
	assert.ErrorIs(t, err, ErrMalformedRecord)

	// Quarantined and cleared: the next read is an ordinary empty collection.
	items, err := r.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	q, err := r.Quarantined(ctx)
	require.NoError(t, err)
	require.Len(t, q, 1)
	assert.Equal(t, "{not json", q[0].Raw)
}

func TestBlob_GetAllMalformedIsEmpty(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.SetItem(ctx, KeyEquipment, `"just a string"`)
	r := NewBlob[model.Equipment](store, KeyEquipment, nil)

	items := r.GetAll(ctx)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestBlob_QuarantinesInvalidElements(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.SetItem(ctx, KeyEquipment, `[
		{"id":1,"name":"Pump","service":"ICU","status":"operational","sensitivity":2},
		{"id":2,"name":"Bad","status":"melted","sensitivity":2},
		{"id":"three"}
	]`)
	r := NewBlob[model.Equipment](store, KeyEquipment, nil)

	items, err := r.Load(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Pump", items[0].Name)

	q, err := r.Quarantined(ctx)
	require.NoError(t, err)
	assert.Len(t, q, 2)

	// Loading again does not quarantine the same records twice.
	_, err = r.Load(ctx)
	require.NoError(t, err)
	q, err = r.Quarantined(ctx)
	require.NoError(t, err)
	assert.Len(t, q, 2)

	// Quarantined ids are not reserved.
	added, err := r.Add(ctx, pump("Next", model.StatusOperational))
	require.NoError(t, err)
	assert.Equal(t, 2, added.ID)
}

func TestBlob_NormalizesInstances(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.SetItem(ctx, KeyInstances, `[{"id":1,"title":"Audit","dueDate":"2024-03-01","status":"weird"}]`)
	r := NewBlob[model.Instance](store, KeyInstances, nil)

	items, err := r.Load(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.InstancePending, items[0].Status)
	assert.Equal(t, model.CategoryTask, items[0].Category)
}

func TestBlob_StorageUnavailable(t *testing.T) {
	ctx := context.Background()
	drv := storage.NewMemoryDriver()
	store := storage.NewStore(drv, "smartm_", nil)
	r := NewBlob[model.Equipment](store, KeyEquipment, nil)
	drv.Fail = assert.AnError

	_, err := r.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
	assert.Empty(t, r.GetAll(ctx))

	_, err = r.Add(ctx, pump("A", model.StatusOperational))
	assert.Error(t, err)
}

func TestSQLMappings_RoundTripOptionalFields(t *testing.T) {
	ctx := context.Background()
	conn := setupTestDB(t).RawDB()

	instances := NewSQL(conn, InstanceMapping, nil)
	in, err := instances.Add(ctx, model.Instance{
		Title: "Inspection", Category: model.CategoryInspection, Assignee: "Lea",
		DueDate: "2024-05-01", Status: model.InstancePending, Reference: "REF-1",
	})
	require.NoError(t, err)
	got, err := instances.Find(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, in, got)
	assert.Empty(t, got.Description)

	absences := NewSQL(conn, AbsenceMapping, nil)
	ab, err := absences.Add(ctx, model.PersonnelAbsence{
		PersonnelID: 1, PersonnelName: "Lea", Reason: model.ReasonAnnualLeave,
		StartDate: "2024-01-01", EndDate: "2024-01-05", Rejoined: true, DateRejoined: "2024-01-06",
	})
	require.NoError(t, err)
	gotAb, err := absences.Find(ctx, ab.ID)
	require.NoError(t, err)
	assert.Equal(t, ab, gotAb)

	consumptions := NewSQL(conn, ConsumptionMapping, nil)
	c, err := consumptions.Add(ctx, model.Consumption{Amount: 19.99, Date: "2024-02-01", Category: "fuel"})
	require.NoError(t, err)
	gotC, err := consumptions.Find(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, gotC)

	notifications := NewSQL(conn, NotificationMapping, nil)
	n, err := notifications.Add(ctx, model.Notification{Title: "t", Date: "2024-02-01", Type: model.NotifyInfo})
	require.NoError(t, err)
	require.NoError(t, notifications.Update(ctx, n.ID, func(x *model.Notification) { x.Read = true }))
	gotN, err := notifications.Find(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, gotN.Read)

	failures := NewSQL(conn, FailureMapping, nil)
	f, err := failures.Add(ctx, model.EquipmentFailure{EquipmentID: 3, FailureType: "leak", FailureDate: "2024-02-01"})
	require.NoError(t, err)
	gotF, err := failures.Find(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f, gotF)

	personnel := NewSQL(conn, PersonnelMapping, nil)
	p, err := personnel.Add(ctx, model.Personnel{Name: "Lea", CreatedAt: "2024-01-01"})
	require.NoError(t, err)
	gotP, err := personnel.Find(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, gotP)
}

func TestSQLSet_MigrateFrom(t *testing.T) {
	ctx := context.Background()
	legacy := NewBlobSet(newTestStore(t), nil)
	_, err := legacy.Equipment.Add(ctx, pump("A", model.StatusOperational))
	require.NoError(t, err)
	_, err = legacy.Equipment.Add(ctx, pump("B", model.StatusOperational))
	require.NoError(t, err)
	_, err = legacy.Personnel.Add(ctx, model.Personnel{Name: "Lea"})
	require.NoError(t, err)

	target := NewSQLSet(setupTestDB(t).RawDB(), nil)
	steps := target.MigrateFrom(ctx, legacy)

	copied := map[string]int{}
	for _, s := range steps {
		require.NoError(t, s.Err)
		copied[s.Collection] = s.Copied
	}
	assert.Equal(t, 2, copied[KeyEquipment])
	assert.Equal(t, 1, copied[KeyPersonnel])
	assert.Zero(t, copied[KeyInstances])

	// Second run is a no-op because the tables are populated.
	_, err = legacy.Equipment.Add(ctx, pump("C", model.StatusOperational))
	require.NoError(t, err)
	for _, s := range target.MigrateFrom(ctx, legacy) {
		require.NoError(t, s.Err)
		if s.Collection == KeyEquipment {
			assert.Zero(t, s.Copied)
		}
	}
	n, err := target.Equipment.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
