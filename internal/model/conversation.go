package model

import (
	"time"
)

// Conversation lifecycle statuses.
const (
	ConvStatusStarted             = "started"
	ConvStatusWaitingForAttendant = "waiting_for_attendant"
	ConvStatusInService           = "in_service"
	ConvStatusFinished            = "finished"
	ConvStatusAbandoned           = "abandoned"
)

// Menu states for the bot flow. The state survives restarts because it
// lives on the conversation row rather than in process memory.
const (
	MenuStateRoot       = "root"
	MenuStateUnit       = "unit"
	MenuStateDepartment = "department"
	MenuStatePrices     = "prices"
	MenuStateSellers    = "sellers"
	MenuStateQueued     = "queued"
)

// Conversation tracks one WhatsApp user's session with the front desk.
// A user has at most one open conversation at a time.
type Conversation struct {
	ID     int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID string `json:"user_id" gorm:"column:user_id;uniqueIndex" validate:"required,wa_user"`
	Status string `json:"status" gorm:"column:status;index" validate:"required,oneof=started waiting_for_attendant in_service finished abandoned"`
	// MenuState is the bot flow position, e.g. root or department.
	MenuState string `json:"menu_state" gorm:"column:menu_state"`
	// UnitID is the clinic unit the user picked, empty before selection.
	UnitID        string     `json:"unit_id,omitempty" gorm:"column:unit_id"`
	DepartmentID  string     `json:"department_id,omitempty" gorm:"column:department_id"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty" gorm:"column:last_message_at"`
	CreatedAt     time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (Conversation) TableName() string {
	return "conversations"
}

// IsOpen reports whether the conversation is still in progress.
func (c *Conversation) IsOpen() bool {
	return c.Status == ConvStatusStarted ||
		c.Status == ConvStatusWaitingForAttendant ||
		c.Status == ConvStatusInService
}
