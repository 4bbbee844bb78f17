package messaging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gitlab.com/atividade/api/wa-frontdesk/internal/apperrors"
	"gitlab.com/atividade/api/wa-frontdesk/internal/validator"
)

func TestDetermineAckAction(t *testing.T) {
	const (
		maxDeliver = 5
		baseDelay  = 2 * time.Second
		maxDelay   = 10 * time.Second
	)

	retryable := apperrors.NewRetryable(apperrors.ErrDatabase, "db unavailable")
	fatal := apperrors.NewFatal(apperrors.ErrBadRequest, "unknown department")
	plain := errors.New("unclassified failure")

	testCases := []struct {
		name          string
		err           error
		numDelivered  uint64
		expectedAct   ackAction
		expectedDelay time.Duration
	}{
		{name: "Success acks", err: nil, numDelivered: 1, expectedAct: actionAck},
		{name: "Fatal error terminates", err: fatal, numDelivered: 1, expectedAct: actionTerm},
		{name: "Unclassified error terminates", err: plain, numDelivered: 1, expectedAct: actionTerm},
		{name: "Retryable first delivery uses base delay", err: retryable, numDelivered: 1, expectedAct: actionNakDelay, expectedDelay: baseDelay},
		{name: "Retryable second delivery doubles delay", err: retryable, numDelivered: 2, expectedAct: actionNakDelay, expectedDelay: 4 * time.Second},
		{name: "Retryable third delivery doubles again", err: retryable, numDelivered: 3, expectedAct: actionNakDelay, expectedDelay: 8 * time.Second},
		{name: "Backoff is capped at max delay", err: retryable, numDelivered: 4, expectedAct: actionNakDelay, expectedDelay: maxDelay}, // 16s uncapped
		{name: "Max deliveries reached terminates", err: retryable, numDelivered: maxDeliver, expectedAct: actionTerm},
		{name: "Past max deliveries terminates", err: retryable, numDelivered: maxDeliver + 3, expectedAct: actionTerm},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			action, delay := determineAckAction(tc.err, tc.numDelivered, maxDeliver, baseDelay, maxDelay)
			assert.Equal(t, tc.expectedAct, action)
			assert.Equal(t, tc.expectedDelay, delay)
		})
	}

	t.Run("Zero max deliver never terminates on count", func(t *testing.T) {
		action, _ := determineAckAction(retryable, 100, 0, baseDelay, maxDelay)
		assert.Equal(t, actionNakDelay, action)
	})
}

func TestInboundEventValidation(t *testing.T) {
	testCases := []struct {
		name    string
		event   InboundEvent
		wantErr bool
	}{
		{
			name:  "Valid s.whatsapp.net JID",
			event: InboundEvent{UserID: "5511999990001@s.whatsapp.net", Text: "oi"},
		},
		{
			name:  "Valid c.us JID",
			event: InboundEvent{UserID: "5511999990001@c.us", Text: "1"},
		},
		{
			name:    "Missing user id",
			event:   InboundEvent{Text: "oi"},
			wantErr: true,
		},
		{
			name:    "Missing text",
			event:   InboundEvent{UserID: "5511999990001@s.whatsapp.net"},
			wantErr: true,
		},
		{
			name:    "Bare phone number",
			event:   InboundEvent{UserID: "5511999990001", Text: "oi"},
			wantErr: true,
		},
		{
			name:    "Group JID rejected",
			event:   InboundEvent{UserID: "5511999990001@g.us", Text: "oi"},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Validate(tc.event)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
