package model

// InstanceStatus is the progress of a schedulable item.
type InstanceStatus string

const (
	InstancePending   InstanceStatus = "pending"
	InstanceCompleted InstanceStatus = "completed"
)

// InstanceCategory classifies a schedulable item.
type InstanceCategory string

const (
	CategoryTask       InstanceCategory = "task"
	CategoryInspection InstanceCategory = "inspection"
	CategoryEvent      InstanceCategory = "event"
	CategoryReunion    InstanceCategory = "reunion"
	CategoryRendezvous InstanceCategory = "rendezvous"
	CategoryAudit      InstanceCategory = "audit"
	CategoryOther      InstanceCategory = "other"
)

// Categories lists every category in display order.
func Categories() []InstanceCategory {
	return []InstanceCategory{
		CategoryTask, CategoryInspection, CategoryEvent, CategoryReunion,
		CategoryRendezvous, CategoryAudit, CategoryOther,
	}
}

var categoryLabels = map[string]map[InstanceCategory]string{
	"fr": {
		CategoryTask:       "Tâche",
		CategoryInspection: "Inspection",
		CategoryEvent:      "Événement",
		CategoryReunion:    "Réunion",
		CategoryRendezvous: "Rendez-vous",
		CategoryAudit:      "Audit",
		CategoryOther:      "Autre",
	},
	"en": {
		CategoryTask:       "Task",
		CategoryInspection: "Inspection",
		CategoryEvent:      "Event",
		CategoryReunion:    "Meeting",
		CategoryRendezvous: "Appointment",
		CategoryAudit:      "Audit",
		CategoryOther:      "Other",
	},
}

// Label returns the display name of c in language ("fr" or "en").
// Unknown languages fall back to English, unknown categories to the raw value.
func (c InstanceCategory) Label(language string) string {
	labels, ok := categoryLabels[language]
	if !ok {
		labels = categoryLabels["en"]
	}
	if l, ok := labels[c]; ok {
		return l
	}
	return string(c)
}

// Label returns the display name of s in language ("fr" or "en").
func (s InstanceStatus) Label(language string) string {
	if language == "fr" {
		if s == InstanceCompleted {
			return "Terminé"
		}
		return "En cours"
	}
	if s == InstanceCompleted {
		return "Completed"
	}
	return "Pending"
}

// Instance is a task, inspection, event, meeting, appointment, audit or
// other schedulable item.
type Instance struct {
	ID               int              `json:"id"`
	Title            string           `json:"title" validate:"required"`
	Description      string           `json:"description,omitempty"`
	Category         InstanceCategory `json:"category" validate:"oneof=task inspection event reunion rendezvous audit other"`
	Assignee         string           `json:"assignee"`
	DueDate          string           `json:"dueDate" validate:"required,smartdate"`
	Status           InstanceStatus   `json:"status" validate:"oneof=pending completed"`
	Reference        string           `json:"reference,omitempty"`
	LastNotified     string           `json:"lastNotified,omitempty" validate:"omitempty,smartdate"`
	NotificationSent bool             `json:"notificationSent,omitempty"`
}

func (i Instance) GetID() int { return i.ID }

func (i Instance) WithID(id int) Instance {
	i.ID = id
	return i
}

// Normalize maps any status other than completed to pending and fills a
// missing category.
func (i *Instance) Normalize() {
	if i.Status != InstanceCompleted {
		i.Status = InstancePending
	}
	if i.Category == "" {
		i.Category = CategoryTask
	}
}

// FilterByCategory returns the instances in category; an empty category
// matches everything.
func FilterByCategory(items []Instance, category InstanceCategory) []Instance {
	if category == "" {
		return items
	}
	out := make([]Instance, 0, len(items))
	for _, it := range items {
		if it.Category == category {
			out = append(out, it)
		}
	}
	return out
}
