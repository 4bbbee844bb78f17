package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gitlab.com/atividade/api/wa-frontdesk/internal/apperrors"
	"gitlab.com/atividade/api/wa-frontdesk/internal/model"
	"gitlab.com/atividade/api/wa-frontdesk/internal/observer"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/logger"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/utils"
)

// SaveQueueEntry stores a new queue entry
func (r *PostgresRepo) SaveQueueEntry(ctx context.Context, entry *model.QueueEntry) error {
	entry.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.db.WithContext(ctx).Create(entry)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveQueueEntry Commit", operation)
	observer.ObserveDbOperationDuration("insert", "queue_entry", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save queue entry after retries",
			zap.String("user_id", entry.UserID),
			zap.String("department_id", entry.DepartmentID),
			zap.Error(commitErr))
		return commitErr
	}

	return nil
}

// UpdateQueueEntry persists changes to an existing queue entry
func (r *PostgresRepo) UpdateQueueEntry(ctx context.Context, entry *model.QueueEntry) error {
	entry.UpdatedAt = utils.Now()

	operation := func() error {
		result := r.db.WithContext(ctx).
			Model(&model.QueueEntry{}).
			Where("id = ?", entry.ID).
			Updates(map[string]interface{}{
				"status":           entry.Status,
				"abandon_reason":   entry.AbandonReason,
				"last_message_at":  entry.LastMessageAt,
				"last_notified_at": entry.LastNotifiedAt,
				"updated_at":       entry.UpdatedAt,
			})
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: queue entry %d not found for update", apperrors.ErrNotFound, entry.ID)
		}
		return nil
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "UpdateQueueEntry Commit", operation)
	observer.ObserveDbOperationDuration("update", "queue_entry", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to update queue entry after retries",
			zap.Int64("id", entry.ID),
			zap.Error(commitErr))
		return commitErr
	}

	return nil
}

// FindQueueEntryByID retrieves a single entry by primary key
func (r *PostgresRepo) FindQueueEntryByID(ctx context.Context, id int64) (*model.QueueEntry, error) {
	var entry model.QueueEntry

	operation := func() error {
		result := r.db.WithContext(ctx).First(&entry, id)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: queue entry %d", apperrors.ErrNotFound, id)
			}
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindQueueEntryByID", operation)
	observer.ObserveDbOperationDuration("find", "queue_entry", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindActiveQueueEntryByUser finds the user's waiting or in_service entry across departments
func (r *PostgresRepo) FindActiveQueueEntryByUser(ctx context.Context, userID string) (*model.QueueEntry, error) {
	var entry model.QueueEntry

	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("user_id = ? AND status IN ?", userID, []string{model.QueueStatusWaiting, model.QueueStatusInService}).
			Order("created_at ASC, id ASC").
			First(&entry)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: no active queue entry for user %s", apperrors.ErrNotFound, userID)
			}
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindActiveQueueEntryByUser", operation)
	observer.ObserveDbOperationDuration("find", "queue_entry", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindActiveQueueEntryByUserAndDepartment finds the user's active entry in one department
func (r *PostgresRepo) FindActiveQueueEntryByUserAndDepartment(ctx context.Context, userID, departmentID string) (*model.QueueEntry, error) {
	var entry model.QueueEntry

	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("user_id = ? AND department_id = ? AND status IN ?",
				userID, departmentID, []string{model.QueueStatusWaiting, model.QueueStatusInService}).
			First(&entry)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: no active queue entry for user %s in department %s",
					apperrors.ErrNotFound, userID, departmentID)
			}
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindActiveQueueEntryByUserAndDepartment", operation)
	observer.ObserveDbOperationDuration("find", "queue_entry", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindWaitingQueueEntriesByDepartment returns waiting entries in FIFO order
func (r *PostgresRepo) FindWaitingQueueEntriesByDepartment(ctx context.Context, departmentID string) ([]model.QueueEntry, error) {
	var entries []model.QueueEntry

	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("department_id = ? AND status = ?", departmentID, model.QueueStatusWaiting).
			Order("created_at ASC, id ASC").
			Find(&entries)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindWaitingQueueEntriesByDepartment", operation)
	observer.ObserveDbOperationDuration("find", "queue_entry", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return entries, nil
}

// FindInServiceQueueEntryByDepartment returns the department's entry currently being served
func (r *PostgresRepo) FindInServiceQueueEntryByDepartment(ctx context.Context, departmentID string) (*model.QueueEntry, error) {
	var entry model.QueueEntry

	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("department_id = ? AND status = ?", departmentID, model.QueueStatusInService).
			First(&entry)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: no in_service entry for department %s", apperrors.ErrNotFound, departmentID)
			}
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindInServiceQueueEntryByDepartment", operation)
	observer.ObserveDbOperationDuration("find", "queue_entry", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListActiveQueueDepartmentIDs returns department ids with at least one active entry
func (r *PostgresRepo) ListActiveQueueDepartmentIDs(ctx context.Context) ([]string, error) {
	var ids []string

	operation := func() error {
		result := r.db.WithContext(ctx).
			Model(&model.QueueEntry{}).
			Where("status IN ?", []string{model.QueueStatusWaiting, model.QueueStatusInService}).
			Distinct().
			Order("department_id ASC").
			Pluck("department_id", &ids)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "ListActiveQueueDepartmentIDs", operation)
	observer.ObserveDbOperationDuration("find", "queue_entry", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FindFinishedQueueEntriesPendingClose returns finished entries whose farewell
// notification is older than the finish itself, across all departments.
func (r *PostgresRepo) FindFinishedQueueEntriesPendingClose(ctx context.Context) ([]model.QueueEntry, error) {
	var entries []model.QueueEntry

	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("status = ? AND (last_notified_at IS NULL OR last_notified_at < updated_at)", model.QueueStatusFinished).
			Order("updated_at ASC, id ASC").
			Find(&entries)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindFinishedQueueEntriesPendingClose", operation)
	observer.ObserveDbOperationDuration("find", "queue_entry", time.Since(startTime), err)

	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CountWaitingQueueEntriesAhead counts waiting entries strictly ahead in FIFO order
func (r *PostgresRepo) CountWaitingQueueEntriesAhead(ctx context.Context, departmentID string, createdAt time.Time, id int64) (int64, error) {
	var count int64

	operation := func() error {
		result := r.db.WithContext(ctx).
			Model(&model.QueueEntry{}).
			Where("department_id = ? AND status = ?", departmentID, model.QueueStatusWaiting).
			Where("created_at < ? OR (created_at = ? AND id < ?)", createdAt, createdAt, id).
			Count(&count)
		if result.Error != nil {
			return checkConstraintViolation(result.Error)
		}
		return nil
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "CountWaitingQueueEntriesAhead", operation)
	observer.ObserveDbOperationDuration("count", "queue_entry", time.Since(startTime), err)

	if err != nil {
		return 0, err
	}
	return count, nil
}
