package usecase

import (
	"context"

	"go.uber.org/zap"

	"gitlab.com/atividade/api/wa-frontdesk/internal/apperrors"
	"gitlab.com/atividade/api/wa-frontdesk/internal/model"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/logger"
)

// EnsureConversation returns the user's open conversation, creating or
// reopening one when needed. The second return reports whether a new
// session was started by this call.
func (s *QueueService) EnsureConversation(ctx context.Context, userID string) (*model.Conversation, bool, error) {
	now := s.now()

	conv, err := s.convRepo.FindByUserID(ctx, userID)
	if err != nil {
		if !apperrors.IsNotFoundError(err) {
			return nil, false, classifyRepoError(err, "failed to look up conversation for %s", userID)
		}
		conv = &model.Conversation{
			UserID:        userID,
			Status:        model.ConvStatusStarted,
			MenuState:     model.MenuStateRoot,
			LastMessageAt: &now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.convRepo.Save(ctx, conv); err != nil {
			return nil, false, classifyRepoError(err, "failed to create conversation for %s", userID)
		}
		s.recordInteraction(ctx, userID, model.InteractionConversationStarted, nil)
		logger.FromContext(ctx).Info("Conversation started",
			zap.String("user_id", userID))
		return conv, true, nil
	}

	if conv.IsOpen() {
		return conv, false, nil
	}

	// Closed sessions reopen at the root menu rather than resuming a
	// stale flow position.
	conv.Status = model.ConvStatusStarted
	conv.MenuState = model.MenuStateRoot
	conv.DepartmentID = ""
	conv.LastMessageAt = &now
	if err := s.convRepo.Update(ctx, conv); err != nil {
		return nil, false, classifyRepoError(err, "failed to reopen conversation for %s", userID)
	}
	s.recordInteraction(ctx, userID, model.InteractionConversationStarted, nil)
	logger.FromContext(ctx).Info("Conversation reopened",
		zap.String("user_id", userID))
	return conv, true, nil
}

// TouchConversation stamps the conversation's last message time.
func (s *QueueService) TouchConversation(ctx context.Context, conv *model.Conversation) error {
	now := s.now()
	conv.LastMessageAt = &now
	if err := s.convRepo.Update(ctx, conv); err != nil {
		return classifyRepoError(err, "failed to touch conversation %d", conv.ID)
	}
	return nil
}

// SetMenuState persists the bot flow position, with the unit carried
// along so department menus survive a restart.
func (s *QueueService) SetMenuState(ctx context.Context, conv *model.Conversation, state, unitID string) error {
	conv.MenuState = state
	conv.UnitID = unitID
	if err := s.convRepo.Update(ctx, conv); err != nil {
		return classifyRepoError(err, "failed to update menu state for conversation %d", conv.ID)
	}
	return nil
}

// ResetToRoot puts the conversation back at the root menu.
func (s *QueueService) ResetToRoot(ctx context.Context, conv *model.Conversation) error {
	conv.Status = model.ConvStatusStarted
	conv.MenuState = model.MenuStateRoot
	conv.DepartmentID = ""
	if err := s.convRepo.Update(ctx, conv); err != nil {
		return classifyRepoError(err, "failed to reset conversation %d", conv.ID)
	}
	return nil
}

// setConversationQueued marks the conversation as waiting for an
// attendant in the given department.
func (s *QueueService) setConversationQueued(ctx context.Context, userID, departmentID string) {
	conv, err := s.convRepo.FindByUserID(ctx, userID)
	if err != nil {
		logger.FromContext(ctx).Warn("Conversation not found while queueing user",
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}
	conv.Status = model.ConvStatusWaitingForAttendant
	conv.MenuState = model.MenuStateQueued
	conv.DepartmentID = departmentID
	if err := s.convRepo.Update(ctx, conv); err != nil {
		logger.FromContext(ctx).Warn("Failed to mark conversation as queued",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

// setConversationInService marks the conversation as being attended in
// the given department. Used when an empty queue admits a user straight
// to service, so the flow lands in the same state a promotion would
// leave it in.
func (s *QueueService) setConversationInService(ctx context.Context, userID, departmentID string) {
	conv, err := s.convRepo.FindByUserID(ctx, userID)
	if err != nil {
		logger.FromContext(ctx).Warn("Conversation not found while starting attendance",
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}
	conv.Status = model.ConvStatusInService
	conv.MenuState = model.MenuStateQueued
	conv.DepartmentID = departmentID
	if err := s.convRepo.Update(ctx, conv); err != nil {
		logger.FromContext(ctx).Warn("Failed to mark conversation as in service",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

// setConversationStatus updates the conversation status for engine-driven
// transitions. A missing conversation is logged, not fatal; queue rows
// are the source of truth for the queue itself.
func (s *QueueService) setConversationStatus(ctx context.Context, userID, status string) {
	conv, err := s.convRepo.FindByUserID(ctx, userID)
	if err != nil {
		logger.FromContext(ctx).Warn("Conversation not found for status update",
			zap.String("user_id", userID),
			zap.String("status", status),
			zap.Error(err))
		return
	}
	conv.Status = status
	if status != model.ConvStatusInService {
		conv.MenuState = model.MenuStateRoot
	}
	if err := s.convRepo.Update(ctx, conv); err != nil {
		logger.FromContext(ctx).Warn("Failed to update conversation status",
			zap.String("user_id", userID),
			zap.String("status", status),
			zap.Error(err))
	}
}
