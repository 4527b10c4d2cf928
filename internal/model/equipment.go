package model

// EquipmentStatus is the operating state of an equipment item.
type EquipmentStatus string

const (
	StatusOperational  EquipmentStatus = "operational"
	StatusMaintenance  EquipmentStatus = "maintenance"
	StatusOutOfService EquipmentStatus = "outOfService"
)

// Valid reports whether s is a known status.
func (s EquipmentStatus) Valid() bool {
	switch s {
	case StatusOperational, StatusMaintenance, StatusOutOfService:
		return true
	}
	return false
}

// Equipment is a tracked device belonging to a service.
type Equipment struct {
	ID          int             `json:"id"`
	Name        string          `json:"name" validate:"required"`
	Service     string          `json:"service"`
	Status      EquipmentStatus `json:"status" validate:"oneof=operational maintenance outOfService"`
	Sensitivity int             `json:"sensitivity" validate:"min=1,max=5"`
}

func (e Equipment) GetID() int { return e.ID }

func (e Equipment) WithID(id int) Equipment {
	e.ID = id
	return e
}

// EquipmentFailure records a breakdown of one equipment item.
type EquipmentFailure struct {
	ID          int    `json:"id"`
	EquipmentID int    `json:"equipment_id" validate:"required"`
	FailureType string `json:"failure_type" validate:"required"`
	FailureDate string `json:"failure_date" validate:"required,smartdate"`
	Component   string `json:"component"`
	Reference   string `json:"reference,omitempty"`
}

func (f EquipmentFailure) GetID() int { return f.ID }

func (f EquipmentFailure) WithID(id int) EquipmentFailure {
	f.ID = id
	return f
}
