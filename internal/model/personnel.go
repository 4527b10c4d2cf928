package model

// ReasonAnnualLeave is the absence reason counted as annual leave.
const ReasonAnnualLeave = "Congé"

// Personnel is a staff member.
type Personnel struct {
	ID          int    `json:"id"`
	Name        string `json:"name" validate:"required"`
	AbsenceDays int    `json:"absenceDays" validate:"gte=0"`
	CreatedAt   string `json:"createdAt,omitempty" validate:"omitempty,smartdate"`
}

func (p Personnel) GetID() int { return p.ID }

func (p Personnel) WithID(id int) Personnel {
	p.ID = id
	return p
}

// PersonnelAbsence is one period of unavailability. Once Rejoined is set
// the absence is archived and no longer active.
type PersonnelAbsence struct {
	ID            int    `json:"id"`
	PersonnelID   int    `json:"personnelId" validate:"required"`
	PersonnelName string `json:"personnelName"`
	Label         string `json:"label"`
	Reason        string `json:"reason"`
	StartDate     string `json:"startDate" validate:"required,smartdate"`
	EndDate       string `json:"endDate" validate:"required,smartdate"`
	Notified      bool   `json:"notified,omitempty"`
	Rejoined      bool   `json:"rejoined,omitempty"`
	DateRejoined  string `json:"dateRejoined,omitempty" validate:"omitempty,smartdate"`
}

func (a PersonnelAbsence) GetID() int { return a.ID }

func (a PersonnelAbsence) WithID(id int) PersonnelAbsence {
	a.ID = id
	return a
}

// Active reports whether the absence still counts against availability.
func (a PersonnelAbsence) Active() bool {
	return !a.Rejoined
}
