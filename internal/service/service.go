// Package service is the write path every surface goes through. It keeps
// related collections consistent (cascading deletes, absence day totals)
// and records each change with the sync manager.
//
// The repositories themselves know nothing about each other, and the
// relational schema carries no foreign keys, so the cascades here are the
// only place parent and child collections are kept in step.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/smartm-app/smartm/internal/logging"
	"github.com/smartm-app/smartm/internal/model"
	"github.com/smartm-app/smartm/internal/prefs"
	"github.com/smartm-app/smartm/internal/repo"
	"github.com/smartm-app/smartm/internal/stats"
	smsync "github.com/smartm-app/smartm/internal/sync"
)

// ErrPersonnelNotFound is returned when an absence names an unknown person.
var ErrPersonnelNotFound = errors.New("personnel not found")

// Service wraps a repository set.
type Service struct {
	repos  *repo.Set
	sync   *smsync.Manager
	prefs  *prefs.Prefs
	now    func() time.Time
	logger *zap.Logger
}

// New returns a service. mgr and p may be nil; changes are then not
// tracked and the default head count is reported.
func New(repos *repo.Set, mgr *smsync.Manager, p *prefs.Prefs, logger *zap.Logger) *Service {
	return &Service{
		repos:  repos,
		sync:   mgr,
		prefs:  p,
		now:    time.Now,
		logger: logging.OrNop(logger).Named("service"),
	}
}

func (s *Service) mark(ctx context.Context, t smsync.EntityType, id int) {
	if s.sync != nil {
		s.sync.MarkEntityForSync(ctx, t, id)
	}
}

// Equipment returns the whole fleet.
func (s *Service) Equipment(ctx context.Context) []model.Equipment {
	return s.repos.Equipment.GetAll(ctx)
}

// AddEquipment creates a piece of equipment.
func (s *Service) AddEquipment(ctx context.Context, e model.Equipment) (model.Equipment, error) {
	created, err := s.repos.Equipment.Add(ctx, e)
	if err != nil {
		return created, err
	}
	s.mark(ctx, smsync.EntityEquipment, created.ID)
	return created, nil
}

// UpdateEquipment applies patch to equipment id.
func (s *Service) UpdateEquipment(ctx context.Context, id int, patch func(*model.Equipment)) error {
	if err := s.repos.Equipment.Update(ctx, id, patch); err != nil {
		return err
	}
	s.mark(ctx, smsync.EntityEquipment, id)
	return nil
}

// SetEquipmentStatus changes the status of equipment id.
func (s *Service) SetEquipmentStatus(ctx context.Context, id int, status model.EquipmentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid equipment status %q", status)
	}
	return s.UpdateEquipment(ctx, id, func(e *model.Equipment) { e.Status = status })
}

// RemoveEquipment deletes equipment id together with its failures.
func (s *Service) RemoveEquipment(ctx context.Context, id int) error {
	if err := s.repos.Equipment.Remove(ctx, id); err != nil {
		return err
	}
	s.mark(ctx, smsync.EntityEquipment, id)

	removed, err := s.repos.Failures.RemoveWhere(ctx, func(f model.EquipmentFailure) bool { return f.EquipmentID == id })
	if err != nil {
		return fmt.Errorf("failed to remove failures of equipment %d: %w", id, err)
	}
	for _, f := range removed {
		s.mark(ctx, smsync.EntityFailures, f.ID)
	}
	if len(removed) > 0 {
		s.logger.Debug("cascaded equipment removal", zap.Int("equipment", id), zap.Int("failures", len(removed)))
	}
	return nil
}

// Failures returns every recorded failure.
func (s *Service) Failures(ctx context.Context) []model.EquipmentFailure {
	return s.repos.Failures.GetAll(ctx)
}

// EquipmentFailures returns the failures of equipment id.
func (s *Service) EquipmentFailures(ctx context.Context, id int) []model.EquipmentFailure {
	var out []model.EquipmentFailure
	for _, f := range s.repos.Failures.GetAll(ctx) {
		if f.EquipmentID == id {
			out = append(out, f)
		}
	}
	return out
}

// AddFailure records a failure of existing equipment.
func (s *Service) AddFailure(ctx context.Context, f model.EquipmentFailure) (model.EquipmentFailure, error) {
	if _, err := s.repos.Equipment.Find(ctx, f.EquipmentID); err != nil {
		return f, fmt.Errorf("equipment %d: %w", f.EquipmentID, err)
	}
	created, err := s.repos.Failures.Add(ctx, f)
	if err != nil {
		return created, err
	}
	s.mark(ctx, smsync.EntityFailures, created.ID)
	return created, nil
}

// RemoveFailure deletes failure id.
func (s *Service) RemoveFailure(ctx context.Context, id int) error {
	if err := s.repos.Failures.Remove(ctx, id); err != nil {
		return err
	}
	s.mark(ctx, smsync.EntityFailures, id)
	return nil
}

// Personnel returns every person.
func (s *Service) Personnel(ctx context.Context) []model.Personnel {
	return s.repos.Personnel.GetAll(ctx)
}

// AddPersonnel creates a person. The creation date defaults to today.
func (s *Service) AddPersonnel(ctx context.Context, p model.Personnel) (model.Personnel, error) {
	if p.CreatedAt == "" {
		p.CreatedAt = model.FormatDate(s.now())
	}
	p.AbsenceDays = 0
	created, err := s.repos.Personnel.Add(ctx, p)
	if err != nil {
		return created, err
	}
	s.mark(ctx, smsync.EntityPersonnel, created.ID)
	return created, nil
}

// UpdatePersonnel applies patch to person id. The absence day total is
// derived and cannot be patched.
func (s *Service) UpdatePersonnel(ctx context.Context, id int, patch func(*model.Personnel)) error {
	err := s.repos.Personnel.Update(ctx, id, func(p *model.Personnel) {
		days := p.AbsenceDays
		patch(p)
		p.AbsenceDays = days
	})
	if err != nil {
		return err
	}
	s.mark(ctx, smsync.EntityPersonnel, id)
	return nil
}

// RemovePersonnel deletes person id together with their absences.
func (s *Service) RemovePersonnel(ctx context.Context, id int) error {
	if err := s.repos.Personnel.Remove(ctx, id); err != nil {
		return err
	}
	s.mark(ctx, smsync.EntityPersonnel, id)

	removed, err := s.repos.Absences.RemoveWhere(ctx, func(a model.PersonnelAbsence) bool { return a.PersonnelID == id })
	if err != nil {
		return fmt.Errorf("failed to remove absences of personnel %d: %w", id, err)
	}
	if len(removed) > 0 {
		s.logger.Debug("cascaded personnel removal", zap.Int("personnel", id), zap.Int("absences", len(removed)))
	}
	return nil
}

// Absences returns every absence, rejoined ones included.
func (s *Service) Absences(ctx context.Context) []model.PersonnelAbsence {
	return s.repos.Absences.GetAll(ctx)
}

// AddAbsence records an absence of an existing person and refreshes their
// absence day total.
func (s *Service) AddAbsence(ctx context.Context, a model.PersonnelAbsence) (model.PersonnelAbsence, error) {
	person, err := s.repos.Personnel.Find(ctx, a.PersonnelID)
	if errors.Is(err, repo.ErrNotFound) {
		return a, fmt.Errorf("%w: %d", ErrPersonnelNotFound, a.PersonnelID)
	}
	if err != nil {
		return a, err
	}
	if a.PersonnelName == "" {
		a.PersonnelName = person.Name
	}
	if a.Label == "" {
		a.Label = person.Name
	}

	created, err := s.repos.Absences.Add(ctx, a)
	if err != nil {
		return created, err
	}
	if err := s.refreshAbsenceDays(ctx, a.PersonnelID); err != nil {
		return created, err
	}
	s.mark(ctx, smsync.EntityPersonnel, a.PersonnelID)
	return created, nil
}

// MarkAbsenceRejoined closes absence id. An empty date means today.
func (s *Service) MarkAbsenceRejoined(ctx context.Context, id int, date string) error {
	if date == "" {
		date = model.FormatDate(s.now())
	}
	var personnelID int
	err := s.repos.Absences.Update(ctx, id, func(a *model.PersonnelAbsence) {
		a.Rejoined = true
		a.DateRejoined = date
		personnelID = a.PersonnelID
	})
	if err != nil {
		return err
	}
	if err := s.refreshAbsenceDays(ctx, personnelID); err != nil {
		return err
	}
	s.mark(ctx, smsync.EntityPersonnel, personnelID)
	return nil
}

// RemoveAbsence deletes absence id and refreshes the owner's total.
func (s *Service) RemoveAbsence(ctx context.Context, id int) error {
	a, err := s.repos.Absences.Find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repos.Absences.Remove(ctx, id); err != nil {
		return err
	}
	if err := s.refreshAbsenceDays(ctx, a.PersonnelID); err != nil {
		return err
	}
	s.mark(ctx, smsync.EntityPersonnel, a.PersonnelID)
	return nil
}

// refreshAbsenceDays recomputes the stored total of one person. A person
// deleted meanwhile is ignored.
func (s *Service) refreshAbsenceDays(ctx context.Context, personnelID int) error {
	absences, err := s.repos.Absences.Load(ctx)
	if err != nil {
		return err
	}
	days := stats.AbsenceDays(personnelID, absences)
	err = s.repos.Personnel.Update(ctx, personnelID, func(p *model.Personnel) { p.AbsenceDays = days })
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	return err
}

// Instances returns every instance.
func (s *Service) Instances(ctx context.Context) []model.Instance {
	return s.repos.Instances.GetAll(ctx)
}

// InstancesIn returns the instances of category; empty means all.
func (s *Service) InstancesIn(ctx context.Context, category model.InstanceCategory) []model.Instance {
	return model.FilterByCategory(s.Instances(ctx), category)
}

// AddInstance schedules an instance.
func (s *Service) AddInstance(ctx context.Context, it model.Instance) (model.Instance, error) {
	created, err := s.repos.Instances.Add(ctx, it)
	if err != nil {
		return created, err
	}
	s.mark(ctx, smsync.EntityInstances, created.ID)
	return created, nil
}

// UpdateInstance applies patch to instance id.
func (s *Service) UpdateInstance(ctx context.Context, id int, patch func(*model.Instance)) error {
	if err := s.repos.Instances.Update(ctx, id, patch); err != nil {
		return err
	}
	s.mark(ctx, smsync.EntityInstances, id)
	return nil
}

// CompleteInstance marks instance id completed.
func (s *Service) CompleteInstance(ctx context.Context, id int) error {
	return s.UpdateInstance(ctx, id, func(it *model.Instance) { it.Status = model.InstanceCompleted })
}

// RemoveInstance deletes instance id.
func (s *Service) RemoveInstance(ctx context.Context, id int) error {
	if err := s.repos.Instances.Remove(ctx, id); err != nil {
		return err
	}
	s.mark(ctx, smsync.EntityInstances, id)
	return nil
}

// Consumptions returns every expense.
func (s *Service) Consumptions(ctx context.Context) []model.Consumption {
	return s.repos.Consumptions.GetAll(ctx)
}

// AddConsumption records an expense.
func (s *Service) AddConsumption(ctx context.Context, c model.Consumption) (model.Consumption, error) {
	created, err := s.repos.Consumptions.Add(ctx, c)
	if err != nil {
		return created, err
	}
	s.mark(ctx, smsync.EntityConsumptions, created.ID)
	return created, nil
}

// UpdateConsumption applies patch to expense id.
func (s *Service) UpdateConsumption(ctx context.Context, id int, patch func(*model.Consumption)) error {
	if err := s.repos.Consumptions.Update(ctx, id, patch); err != nil {
		return err
	}
	s.mark(ctx, smsync.EntityConsumptions, id)
	return nil
}

// RemoveConsumption deletes expense id.
func (s *Service) RemoveConsumption(ctx context.Context, id int) error {
	if err := s.repos.Consumptions.Remove(ctx, id); err != nil {
		return err
	}
	s.mark(ctx, smsync.EntityConsumptions, id)
	return nil
}

// TotalPersonnel returns the declared head count.
func (s *Service) TotalPersonnel(ctx context.Context) int {
	if s.prefs == nil {
		return prefs.DefaultTotalPersonnel
	}
	return s.prefs.TotalPersonnel(ctx)
}

// Operability returns the fleet operability percentage.
func (s *Service) Operability(ctx context.Context) int {
	return stats.TotalOperability(s.Equipment(ctx))
}

// Presence counts present and absent personnel against the declared head
// count. Absent means an active (not rejoined) absence.
func (s *Service) Presence(ctx context.Context) (present, absent int) {
	absent = len(stats.ActiveAbsences(s.Absences(ctx)))
	present = max(s.TotalPersonnel(ctx)-absent, 0)
	return present, absent
}
