package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/atividade/api/wa-frontdesk/internal/apperrors"
	"gitlab.com/atividade/api/wa-frontdesk/internal/cache"
	"gitlab.com/atividade/api/wa-frontdesk/internal/model"
	"gitlab.com/atividade/api/wa-frontdesk/internal/storage"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/logger"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/utils"
)

// Sender delivers one text message to a WhatsApp user.
type Sender interface {
	Send(ctx context.Context, userID, text string) error
}

// TunablesProvider supplies the current queue runtime settings snapshot.
type TunablesProvider interface {
	Tunables() cache.Tunables
}

// QueueService owns the attendance queue state machine. All mutations go
// through a single mutex, so the poller tick and inbound handlers never
// interleave partial state changes.
type QueueService struct {
	queueRepo       storage.QueueEntryRepo
	convRepo        storage.ConversationRepo
	interactionRepo storage.InteractionRepo
	catalogRepo     storage.CatalogRepo
	tunables        TunablesProvider
	sender          Sender

	mu sync.Mutex
	// now is replaceable in tests to control the abandonment and
	// notification clocks.
	now func() time.Time
}

// NewQueueService creates a new queue service
func NewQueueService(
	queueRepo storage.QueueEntryRepo,
	convRepo storage.ConversationRepo,
	interactionRepo storage.InteractionRepo,
	catalogRepo storage.CatalogRepo,
	tunables TunablesProvider,
	sender Sender,
) *QueueService {
	return &QueueService{
		queueRepo:       queueRepo,
		convRepo:        convRepo,
		interactionRepo: interactionRepo,
		catalogRepo:     catalogRepo,
		tunables:        tunables,
		sender:          sender,
		now:             utils.Now,
	}
}

// classifyRepoError maps storage errors onto retryable/fatal wrappers.
// Transient database trouble is worth redelivering; everything else is not.
func classifyRepoError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if apperrors.IsDatabaseError(err) || apperrors.IsTimeoutError(err) {
		return apperrors.NewRetryable(err, message, args...)
	}
	return apperrors.NewFatal(err, message, args...)
}

// recordInteraction appends an audit event. Failures are logged and
// swallowed; the audit log must not block queue mutations.
func (s *QueueService) recordInteraction(ctx context.Context, userID, kind string, payload map[string]interface{}) {
	interaction := &model.Interaction{
		UserID:    userID,
		Kind:      kind,
		CreatedAt: s.now(),
	}
	if payload != nil {
		interaction.Payload = datatypes.JSON(utils.MustMarshalJSON(payload))
	}
	if err := s.interactionRepo.Save(ctx, interaction); err != nil {
		logger.FromContext(ctx).Warn("Failed to record interaction",
			zap.String("user_id", userID),
			zap.String("kind", kind),
			zap.Error(err))
	}
}

// send delivers a message to the user, logging failures without aborting
// the surrounding state change.
func (s *QueueService) send(ctx context.Context, userID, text string) {
	if err := s.sender.Send(ctx, userID, text); err != nil {
		logger.FromContext(ctx).Error("Failed to send message to user",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}
