package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gitlab.com/atividade/api/wa-frontdesk/internal/model"
	"gitlab.com/atividade/api/wa-frontdesk/internal/observer"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/logger"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/utils"
)

// SaveInteraction appends one event to the interaction log
func (r *PostgresRepo) SaveInteraction(ctx context.Context, interaction *model.Interaction) error {
	operation := func() error {
		result := r.db.WithContext(ctx).Create(interaction)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveInteraction Commit", operation)
	observer.ObserveDbOperationDuration("insert", "interaction", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save interaction after retries",
			zap.String("user_id", interaction.UserID),
			zap.String("kind", interaction.Kind),
			zap.Error(commitErr))
		return commitErr
	}

	return nil
}

// FindInteractionsByUserID returns a user's events, newest first
func (r *PostgresRepo) FindInteractionsByUserID(ctx context.Context, userID string, limit, offset int) ([]model.Interaction, error) {
	var interactions []model.Interaction

	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("user_id = ?", userID).
			Order("created_at DESC, id DESC").
			Limit(limit).
			Offset(offset).
			Find(&interactions)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindInteractionsByUserID", operation)
	observer.ObserveDbOperationDuration("find", "interaction", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return interactions, nil
}

// FindInteractionsByKind returns events of one kind, newest first
func (r *PostgresRepo) FindInteractionsByKind(ctx context.Context, kind string, limit, offset int) ([]model.Interaction, error) {
	var interactions []model.Interaction

	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("kind = ?", kind).
			Order("created_at DESC, id DESC").
			Limit(limit).
			Offset(offset).
			Find(&interactions)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindInteractionsByKind", operation)
	observer.ObserveDbOperationDuration("find", "interaction", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return interactions, nil
}

// FindInteractionsWithinTimeRange returns events between start and end, oldest first
func (r *PostgresRepo) FindInteractionsWithinTimeRange(ctx context.Context, start, end time.Time, limit, offset int) ([]model.Interaction, error) {
	var interactions []model.Interaction

	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("created_at >= ? AND created_at < ?", start, end).
			Order("created_at ASC, id ASC").
			Limit(limit).
			Offset(offset).
			Find(&interactions)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindInteractionsWithinTimeRange", operation)
	observer.ObserveDbOperationDuration("find", "interaction", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return interactions, nil
}
