package repo

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/smartm-app/smartm/internal/model"
	"github.com/smartm-app/smartm/internal/storage"
)

// Set holds one repository per entity collection.
type Set struct {
	Equipment     Repository[model.Equipment]
	Failures      Repository[model.EquipmentFailure]
	Personnel     Repository[model.Personnel]
	Absences      Repository[model.PersonnelAbsence]
	Instances     Repository[model.Instance]
	Consumptions  Repository[model.Consumption]
	Notifications Repository[model.Notification]
}

// NewBlobSet builds JSON-collection repositories over store.
func NewBlobSet(store *storage.Store, logger *zap.Logger) *Set {
	return &Set{
		Equipment:     NewBlob[model.Equipment](store, KeyEquipment, logger),
		Failures:      NewBlob[model.EquipmentFailure](store, KeyEquipmentFailures, logger),
		Personnel:     NewBlob[model.Personnel](store, KeyPersonnel, logger),
		Absences:      NewBlob[model.PersonnelAbsence](store, KeyPersonnelAbsences, logger),
		Instances:     NewBlob[model.Instance](store, KeyInstances, logger),
		Consumptions:  NewBlob[model.Consumption](store, KeyConsumptions, logger),
		Notifications: NewBlob[model.Notification](store, KeyNotifications, logger),
	}
}

// SQLSet is a Set backed by tables, keeping the concrete repositories for
// migration.
type SQLSet struct {
	Set

	equipment     *SQL[model.Equipment]
	failures      *SQL[model.EquipmentFailure]
	personnel     *SQL[model.Personnel]
	absences      *SQL[model.PersonnelAbsence]
	instances     *SQL[model.Instance]
	consumptions  *SQL[model.Consumption]
	notifications *SQL[model.Notification]
}

// NewSQLSet builds table-backed repositories over conn.
func NewSQLSet(conn *sql.DB, logger *zap.Logger) *SQLSet {
	s := &SQLSet{
		equipment:     NewSQL(conn, EquipmentMapping, logger),
		failures:      NewSQL(conn, FailureMapping, logger),
		personnel:     NewSQL(conn, PersonnelMapping, logger),
		absences:      NewSQL(conn, AbsenceMapping, logger),
		instances:     NewSQL(conn, InstanceMapping, logger),
		consumptions:  NewSQL(conn, ConsumptionMapping, logger),
		notifications: NewSQL(conn, NotificationMapping, logger),
	}
	s.Set = Set{
		Equipment:     s.equipment,
		Failures:      s.failures,
		Personnel:     s.personnel,
		Absences:      s.absences,
		Instances:     s.instances,
		Consumptions:  s.consumptions,
		Notifications: s.notifications,
	}
	return s
}

// MigrationStep reports the outcome for one collection.
type MigrationStep struct {
	Collection string
	Copied     int
	Err        error
}

// MigrateFrom copies every collection of legacy whose table is still empty.
// A failing collection does not stop the others.
func (s *SQLSet) MigrateFrom(ctx context.Context, legacy *Set) []MigrationStep {
	return []MigrationStep{
		step(ctx, s.equipment, legacy.Equipment),
		step(ctx, s.failures, legacy.Failures),
		step(ctx, s.personnel, legacy.Personnel),
		step(ctx, s.absences, legacy.Absences),
		step(ctx, s.instances, legacy.Instances),
		step(ctx, s.consumptions, legacy.Consumptions),
		step(ctx, s.notifications, legacy.Notifications),
	}
}

func step[T model.Entity[T]](ctx context.Context, target *SQL[T], source Repository[T]) MigrationStep {
	n, err := target.MigrateFrom(ctx, source)
	return MigrationStep{Collection: target.Name(), Copied: n, Err: err}
}
