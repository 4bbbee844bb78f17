package messaging

import (
	"time"
)

// InboundEvent is one WhatsApp message received from the gateway stream.
type InboundEvent struct {
	UserID    string `json:"user_id" validate:"required,wa_user"`
	Text      string `json:"text" validate:"required"`
	PushName  string `json:"push_name,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"` // unix seconds, gateway clock
}

// OutboundMessage is one text reply published for the gateway to deliver.
type OutboundMessage struct {
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}
