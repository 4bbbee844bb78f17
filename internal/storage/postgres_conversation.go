package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitlab.com/atividade/api/wa-frontdesk/internal/apperrors"
	"gitlab.com/atividade/api/wa-frontdesk/internal/model"
	"gitlab.com/atividade/api/wa-frontdesk/internal/observer"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/logger"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/utils"
)

// SaveConversation upserts a conversation keyed by user_id
func (r *PostgresRepo) SaveConversation(ctx context.Context, conv *model.Conversation) error {
	conv.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "menu_state", "unit_id", "department_id", "last_message_at", "updated_at",
			}),
		}).Create(conv)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveConversation Commit", operation)
	observer.ObserveDbOperationDuration("upsert", "conversation", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save conversation after retries",
			zap.String("user_id", conv.UserID),
			zap.Error(commitErr))
		return commitErr
	}

	return nil
}

// UpdateConversation persists changes to an existing conversation
func (r *PostgresRepo) UpdateConversation(ctx context.Context, conv *model.Conversation) error {
	conv.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.db.WithContext(ctx).
			Model(&model.Conversation{}).
			Where("id = ?", conv.ID).
			Updates(map[string]interface{}{
				"status":          conv.Status,
				"menu_state":      conv.MenuState,
				"unit_id":         conv.UnitID,
				"department_id":   conv.DepartmentID,
				"last_message_at": conv.LastMessageAt,
				"updated_at":      conv.UpdatedAt,
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: conversation %d not found for update", apperrors.ErrNotFound, conv.ID)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateConversation Commit", operation)
	observer.ObserveDbOperationDuration("update", "conversation", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to update conversation after retries",
			zap.Int64("id", conv.ID),
			zap.Error(commitErr))
		return commitErr
	}

	return nil
}

// FindConversationByUserID retrieves a conversation by WhatsApp user id
func (r *PostgresRepo) FindConversationByUserID(ctx context.Context, userID string) (*model.Conversation, error) {
	var conv model.Conversation

	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("user_id = ?", userID).
			First(&conv)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: conversation for user %s", apperrors.ErrNotFound, userID)
			}
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindConversationByUserID", operation)
	observer.ObserveDbOperationDuration("find", "conversation", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return &conv, nil
}
