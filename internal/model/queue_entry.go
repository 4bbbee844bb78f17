package model

import (
	"time"
)

// Queue entry lifecycle statuses.
const (
	QueueStatusWaiting   = "waiting"
	QueueStatusInService = "in_service"
	QueueStatusFinished  = "finished"
	QueueStatusClosed    = "closed"
	QueueStatusAbandoned = "abandoned"
)

// Abandon reasons recorded when a waiting entry leaves the queue
// without being served.
const (
	AbandonReasonTimeout = "timeout"
	AbandonReasonMenu    = "menu"
	AbandonReasonAdmin   = "admin"
)

// QueueEntry represents one user's place in a department's attendance queue.
// At most one active (waiting or in_service) entry exists per user per
// department; FIFO order is (created_at, id).
type QueueEntry struct {
	ID           int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	DepartmentID string `json:"department_id" gorm:"column:department_id;index:idx_queue_dept_status" validate:"required"`
	// UnitID is the unit the department belongs to, denormalized so
	// interaction payloads carry it without a catalog lookup.
	UnitID string `json:"unit_id" gorm:"column:unit_id;index" validate:"required"`
	UserID string `json:"user_id" gorm:"column:user_id;index" validate:"required,wa_user"`
	Status       string `json:"status" gorm:"column:status;index:idx_queue_dept_status" validate:"required,oneof=waiting in_service finished closed abandoned"`
	// AbandonReason is set only when Status is abandoned.
	AbandonReason string `json:"abandon_reason,omitempty" gorm:"column:abandon_reason"`
	// LastMessageAt tracks the user's most recent inbound message while
	// waiting; the abandonment clock runs from it (or CreatedAt when nil).
	LastMessageAt *time.Time `json:"last_message_at,omitempty" gorm:"column:last_message_at"`
	// LastNotifiedAt is when the user last received a position update.
	LastNotifiedAt *time.Time `json:"last_notified_at,omitempty" gorm:"column:last_notified_at"`
	CreatedAt      time.Time  `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM.
func (QueueEntry) TableName() string {
	return "queue_entries"
}

// IsActive reports whether the entry still occupies the queue.
func (q *QueueEntry) IsActive() bool {
	return q.Status == QueueStatusWaiting || q.Status == QueueStatusInService
}

// AnchorTime returns the instant the abandonment clock runs from.
func (q *QueueEntry) AnchorTime() time.Time {
	if q.LastMessageAt != nil {
		return *q.LastMessageAt
	}
	return q.CreatedAt
}
