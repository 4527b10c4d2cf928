package model

// Consumption is one expense entry.
type Consumption struct {
	ID          int     `json:"id"`
	InvoiceID   string  `json:"invoice_id,omitempty"`
	Amount      float64 `json:"amount" validate:"gte=0"`
	Date        string  `json:"date" validate:"required,smartdate"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	ImagePath   string  `json:"image_path,omitempty"`
}

func (c Consumption) GetID() int { return c.ID }

func (c Consumption) WithID(id int) Consumption {
	c.ID = id
	return c
}

// NotificationType is the severity of a notification.
type NotificationType string

const (
	NotifyInfo    NotificationType = "info"
	NotifyWarning NotificationType = "warning"
	NotifyError   NotificationType = "error"
	NotifySuccess NotificationType = "success"
)

// Notification is an in-app message.
type Notification struct {
	ID      int              `json:"id"`
	Title   string           `json:"title" validate:"required"`
	Message string           `json:"message"`
	Date    string           `json:"date" validate:"required,smartdate"`
	Read    bool             `json:"read"`
	Type    NotificationType `json:"type" validate:"oneof=info warning error success"`
}

func (n Notification) GetID() int { return n.ID }

func (n Notification) WithID(id int) Notification {
	n.ID = id
	return n
}
