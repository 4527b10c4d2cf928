package repo

import (
	"github.com/aarondl/null/v8"

	"github.com/smartm-app/smartm/internal/model"
)

// Collection keys. Each is both the storage key of the JSON collection and
// the table name in the relational store.
const (
	KeyEquipment         = "equipment"
	KeyPersonnel         = "personnel"
	KeyPersonnelAbsences = "personnel_absences"
	KeyInstances         = "instances"
	KeyConsumptions      = "consumptions"
	KeyNotifications     = "notifications"
	KeyEquipmentFailures = "equipment_failures"
)

// optional maps an empty string to SQL NULL.
func optional(s string) null.String {
	return null.NewString(s, s != "")
}

var EquipmentMapping = Mapping[model.Equipment]{
	Table:   KeyEquipment,
	Columns: []string{"id", "name", "service", "status", "sensitivity"},
	Values: func(e model.Equipment) []any {
		return []any{e.ID, e.Name, e.Service, string(e.Status), e.Sensitivity}
	},
	Scan: func(scan func(dest ...any) error) (model.Equipment, error) {
		var e model.Equipment
		var status string
		err := scan(&e.ID, &e.Name, &e.Service, &status, &e.Sensitivity)
		e.Status = model.EquipmentStatus(status)
		return e, err
	},
}

var PersonnelMapping = Mapping[model.Personnel]{
	Table:   KeyPersonnel,
	Columns: []string{"id", "name", "absence_days", "created_at"},
	Values: func(p model.Personnel) []any {
		return []any{p.ID, p.Name, p.AbsenceDays, p.CreatedAt}
	},
	Scan: func(scan func(dest ...any) error) (model.Personnel, error) {
		var p model.Personnel
		err := scan(&p.ID, &p.Name, &p.AbsenceDays, &p.CreatedAt)
		return p, err
	},
}

var AbsenceMapping = Mapping[model.PersonnelAbsence]{
	Table: KeyPersonnelAbsences,
	Columns: []string{
		"id", "personnel_id", "personnel_name", "label", "reason",
		"start_date", "end_date", "notified", "rejoined", "date_rejoined",
	},
	Values: func(a model.PersonnelAbsence) []any {
		return []any{
			a.ID, a.PersonnelID, a.PersonnelName, a.Label, a.Reason,
			a.StartDate, a.EndDate, a.Notified, a.Rejoined, optional(a.DateRejoined),
		}
	},
	Scan: func(scan func(dest ...any) error) (model.PersonnelAbsence, error) {
		var a model.PersonnelAbsence
		var rejoinedOn null.String
		err := scan(
			&a.ID, &a.PersonnelID, &a.PersonnelName, &a.Label, &a.Reason,
			&a.StartDate, &a.EndDate, &a.Notified, &a.Rejoined, &rejoinedOn,
		)
		a.DateRejoined = rejoinedOn.String
		return a, err
	},
}

var InstanceMapping = Mapping[model.Instance]{
	Table: KeyInstances,
	Columns: []string{
		"id", "title", "description", "category", "assignee", "due_date",
		"status", "reference", "last_notified", "notification_sent",
	},
	Values: func(i model.Instance) []any {
		return []any{
			i.ID, i.Title, optional(i.Description), string(i.Category), i.Assignee, i.DueDate,
			string(i.Status), optional(i.Reference), optional(i.LastNotified), i.NotificationSent,
		}
	},
	Scan: func(scan func(dest ...any) error) (model.Instance, error) {
		var i model.Instance
		var category, status string
		var description, reference, lastNotified null.String
		err := scan(
			&i.ID, &i.Title, &description, &category, &i.Assignee, &i.DueDate,
			&status, &reference, &lastNotified, &i.NotificationSent,
		)
		i.Description = description.String
		i.Category = model.InstanceCategory(category)
		i.Status = model.InstanceStatus(status)
		i.Reference = reference.String
		i.LastNotified = lastNotified.String
		return i, err
	},
}

var ConsumptionMapping = Mapping[model.Consumption]{
	Table:   KeyConsumptions,
	Columns: []string{"id", "invoice_id", "amount", "date", "description", "category", "image_path"},
	Values: func(c model.Consumption) []any {
		return []any{
			c.ID, optional(c.InvoiceID), c.Amount, c.Date,
			optional(c.Description), optional(c.Category), optional(c.ImagePath),
		}
	},
	Scan: func(scan func(dest ...any) error) (model.Consumption, error) {
		var c model.Consumption
		var invoice, description, category, image null.String
		err := scan(&c.ID, &invoice, &c.Amount, &c.Date, &description, &category, &image)
		c.InvoiceID = invoice.String
		c.Description = description.String
		c.Category = category.String
		c.ImagePath = image.String
		return c, err
	},
}

var NotificationMapping = Mapping[model.Notification]{
	Table:   KeyNotifications,
	Columns: []string{"id", "title", "message", "date", "read", "type"},
	Values: func(n model.Notification) []any {
		return []any{n.ID, n.Title, n.Message, n.Date, n.Read, string(n.Type)}
	},
	Scan: func(scan func(dest ...any) error) (model.Notification, error) {
		var n model.Notification
		var typ string
		err := scan(&n.ID, &n.Title, &n.Message, &n.Date, &n.Read, &typ)
		n.Type = model.NotificationType(typ)
		return n, err
	},
}

var FailureMapping = Mapping[model.EquipmentFailure]{
	Table:   KeyEquipmentFailures,
	Columns: []string{"id", "equipment_id", "failure_type", "failure_date", "component", "reference"},
	Values: func(f model.EquipmentFailure) []any {
		return []any{f.ID, f.EquipmentID, f.FailureType, f.FailureDate, f.Component, optional(f.Reference)}
	},
	Scan: func(scan func(dest ...any) error) (model.EquipmentFailure, error) {
		var f model.EquipmentFailure
		var reference null.String
		err := scan(&f.ID, &f.EquipmentID, &f.FailureType, &f.FailureDate, &f.Component, &reference)
		f.Reference = reference.String
		return f, err
	},
}
