package model

import (
	"time"

	"gorm.io/datatypes"
)

// Interaction event kinds. The log is append-only; rows are never updated.
const (
	InteractionMessageReceived     = "message_received"
	InteractionMessageSent         = "message_sent"
	InteractionConversationStarted = "conversation_started"
	InteractionQueueEntry          = "queue_entry"
	InteractionAttendanceStarted   = "attendance_started"
	InteractionQueueAbandoned      = "queue_abandoned"
	InteractionAttendanceFinished  = "attendance_finished"
	InteractionUnitSelected        = "unit_selected"
	InteractionAddressViewed       = "address_viewed"
	InteractionPricesViewed        = "prices_viewed"
	InteractionSellerHandoff       = "seller_handoff"
)

// Interaction is one event in the audit log of user activity.
type Interaction struct {
	ID     int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID string `json:"user_id" gorm:"column:user_id;index" validate:"required"`
	Kind   string `json:"kind" gorm:"column:kind;index" validate:"required"`
	// Payload carries kind-specific detail, e.g. department or position.
	Payload   datatypes.JSON `json:"payload,omitempty" gorm:"type:jsonb;column:payload"`
	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime;index"`
}

// TableName specifies the table name for GORM.
func (Interaction) TableName() string {
	return "interactions"
}
