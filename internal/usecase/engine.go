package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.com/atividade/api/wa-frontdesk/internal/apperrors"
	"gitlab.com/atividade/api/wa-frontdesk/internal/model"
	"gitlab.com/atividade/api/wa-frontdesk/internal/observer"
	"gitlab.com/atividade/api/wa-frontdesk/pkg/logger"
)

// DepartmentSummary is the per-department view returned by Summary.
type DepartmentSummary struct {
	DepartmentID       string     `json:"department_id"`
	DepartmentName     string     `json:"department_name"`
	Waiting            int        `json:"waiting"`
	InServiceUserID    string     `json:"in_service_user_id,omitempty"`
	OldestWaitingSince *time.Time `json:"oldest_waiting_since,omitempty"`
}

// EnterQueue admits the user into the department queue. When nobody is
// in service for the department the entry starts attendance immediately
// and the position is 0; otherwise the user joins the tail and gets the
// 1-based position. Calling it again for the same user and department
// returns the current status and position without creating a second
// entry.
func (s *QueueService) EnterQueue(ctx context.Context, userID, unitID, departmentID string) (string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logger.FromContext(ctx)

	dept, err := s.catalogRepo.FindDepartment(ctx, departmentID)
	if err != nil {
		return "", 0, classifyRepoError(err, "failed to load department %s", departmentID)
	}
	if !dept.Active {
		return "", 0, apperrors.NewFatal(apperrors.ErrBadRequest, "department %s is not accepting entries", departmentID)
	}
	if unitID == "" {
		unitID = dept.UnitID
	}

	existing, err := s.queueRepo.FindActiveByUser(ctx, userID)
	if err != nil && !apperrors.IsNotFoundError(err) {
		return "", 0, classifyRepoError(err, "failed to look up active queue entry for %s", userID)
	}
	if existing != nil {
		if existing.DepartmentID != departmentID {
			return "", 0, apperrors.NewFatal(apperrors.ErrConflict,
				"user %s already queued in department %s", userID, existing.DepartmentID)
		}
		if existing.Status == model.QueueStatusInService {
			return model.QueueStatusInService, 0, nil
		}
		position, err := s.position(ctx, existing)
		if err != nil {
			return "", 0, err
		}
		log.Info("User already in queue, returning current position",
			zap.String("user_id", userID),
			zap.String("department_id", departmentID),
			zap.Int("position", position))
		return model.QueueStatusWaiting, position, nil
	}

	now := s.now()
	entry := &model.QueueEntry{
		DepartmentID:  departmentID,
		UnitID:        unitID,
		UserID:        userID,
		Status:        model.QueueStatusWaiting,
		LastMessageAt: &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err = s.queueRepo.FindInServiceByDepartment(ctx, departmentID)
	if err != nil && !apperrors.IsNotFoundError(err) {
		return "", 0, classifyRepoError(err, "failed to look up in_service entry for department %s", departmentID)
	}
	if apperrors.IsNotFoundError(err) {
		// Free slot: skip the waiting line and start attendance at once.
		entry.Status = model.QueueStatusInService
		if err := s.queueRepo.Save(ctx, entry); err != nil {
			return "", 0, classifyRepoError(err, "failed to create queue entry for %s", userID)
		}

		s.recordInteraction(ctx, userID, model.InteractionAttendanceStarted, map[string]interface{}{
			"department_id": departmentID,
			"unit_id":       unitID,
		})
		s.send(ctx, userID, msgYourTurn)
		s.setConversationInService(ctx, userID, departmentID)

		log.Info("User entered empty queue, attendance started",
			zap.String("user_id", userID),
			zap.String("department_id", departmentID))
		return model.QueueStatusInService, 0, nil
	}

	if err := s.queueRepo.Save(ctx, entry); err != nil {
		return "", 0, classifyRepoError(err, "failed to create queue entry for %s", userID)
	}

	position, err := s.position(ctx, entry)
	if err != nil {
		return "", 0, err
	}

	s.recordInteraction(ctx, userID, model.InteractionQueueEntry, map[string]interface{}{
		"department_id": departmentID,
		"unit_id":       unitID,
		"position":      position,
	})

	s.send(ctx, userID, fmt.Sprintf(msgQueuePositionFmt, position))
	entry.LastNotifiedAt = &now
	if err := s.queueRepo.Update(ctx, entry); err != nil {
		log.Warn("Failed to stamp initial notification time",
			zap.Int64("entry_id", entry.ID),
			zap.Error(err))
	}

	s.setConversationQueued(ctx, userID, departmentID)

	log.Info("User entered queue",
		zap.String("user_id", userID),
		zap.String("department_id", departmentID),
		zap.Int("position", position))
	return model.QueueStatusWaiting, position, nil
}

// Touch resets the user's abandonment clock. A user with no active entry
// is a no-op, not an error; inbound chatter outside the queue is normal.
func (s *QueueService) Touch(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.queueRepo.FindActiveByUser(ctx, userID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil
		}
		return classifyRepoError(err, "failed to look up queue entry for %s", userID)
	}
	now := s.now()
	entry.LastMessageAt = &now
	if err := s.queueRepo.Update(ctx, entry); err != nil {
		return classifyRepoError(err, "failed to touch queue entry %d", entry.ID)
	}
	return nil
}

// AbandonByUser drops the user's waiting entry with reason "menu". An
// in_service entry is left alone so the attendant conversation is not
// cut off from under them. Returns the abandoned entry, or nil when the
// user had nothing waiting.
func (s *QueueService) AbandonByUser(ctx context.Context, userID string) (*model.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.queueRepo.FindActiveByUser(ctx, userID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, classifyRepoError(err, "failed to look up queue entry for %s", userID)
	}
	if entry.Status != model.QueueStatusWaiting {
		return nil, nil
	}

	entry.Status = model.QueueStatusAbandoned
	entry.AbandonReason = model.AbandonReasonMenu
	if err := s.queueRepo.Update(ctx, entry); err != nil {
		return nil, classifyRepoError(err, "failed to abandon queue entry %d", entry.ID)
	}

	s.recordInteraction(ctx, userID, model.InteractionQueueAbandoned, map[string]interface{}{
		"department_id": entry.DepartmentID,
		"unit_id":       entry.UnitID,
		"reason":        model.AbandonReasonMenu,
	})
	observer.IncQueueAbandoned(entry.DepartmentID, model.AbandonReasonMenu)

	logger.FromContext(ctx).Info("User abandoned queue via menu",
		zap.String("user_id", userID),
		zap.String("department_id", entry.DepartmentID))
	return entry, nil
}

// CloseDepartmentQueue marks the department's in_service entry as
// finished. The farewell, the attendance_finished record and the
// conversation close are all delivered by the next tick's finished
// sweep, so the admin call returns without touching the transport.
func (s *QueueService) CloseDepartmentQueue(ctx context.Context, departmentID string) (*model.QueueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.queueRepo.FindInServiceByDepartment(ctx, departmentID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.NewFatal(apperrors.ErrNotFound, "no attendance in progress for department %s", departmentID)
		}
		return nil, classifyRepoError(err, "failed to look up in_service entry for department %s", departmentID)
	}

	entry.Status = model.QueueStatusFinished
	if err := s.queueRepo.Update(ctx, entry); err != nil {
		return nil, classifyRepoError(err, "failed to finish queue entry %d", entry.ID)
	}

	logger.FromContext(ctx).Info("Attendance finished",
		zap.String("user_id", entry.UserID),
		zap.String("department_id", departmentID))
	return entry, nil
}

// DrainDepartmentQueue empties a department queue: waiting entries are
// abandoned with reason "admin" and told the queue closed, the in_service
// entry (if any) is finished so the sweep can say farewell. Returns the
// number of abandoned and finished entries.
func (s *QueueService) DrainDepartmentQueue(ctx context.Context, departmentID string) (abandoned, finished int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logger.FromContext(ctx)

	waiting, err := s.queueRepo.FindWaitingByDepartment(ctx, departmentID)
	if err != nil {
		return 0, 0, classifyRepoError(err, "failed to list waiting entries for department %s", departmentID)
	}
	for i := range waiting {
		entry := &waiting[i]
		entry.Status = model.QueueStatusAbandoned
		entry.AbandonReason = model.AbandonReasonAdmin
		if err := s.queueRepo.Update(ctx, entry); err != nil {
			log.Error("Failed to abandon entry during queue close",
				zap.Int64("entry_id", entry.ID),
				zap.Error(err))
			continue
		}
		s.recordInteraction(ctx, entry.UserID, model.InteractionQueueAbandoned, map[string]interface{}{
			"department_id": departmentID,
			"unit_id":       entry.UnitID,
			"reason":        model.AbandonReasonAdmin,
		})
		observer.IncQueueAbandoned(departmentID, model.AbandonReasonAdmin)
		s.send(ctx, entry.UserID, msgQueueClosed)
		s.setConversationStatus(ctx, entry.UserID, model.ConvStatusAbandoned)
		abandoned++
	}

	inService, err := s.queueRepo.FindInServiceByDepartment(ctx, departmentID)
	if err != nil && !apperrors.IsNotFoundError(err) {
		return abandoned, 0, classifyRepoError(err, "failed to look up in_service entry for department %s", departmentID)
	}
	if inService != nil {
		inService.Status = model.QueueStatusFinished
		if err := s.queueRepo.Update(ctx, inService); err != nil {
			return abandoned, 0, classifyRepoError(err, "failed to finish queue entry %d", inService.ID)
		}
		finished++
	}

	observer.SetQueueWaiting(departmentID, 0)
	log.Info("Department queue drained",
		zap.String("department_id", departmentID),
		zap.Int("abandoned", abandoned),
		zap.Int("finished", finished))
	return abandoned, finished, nil
}

// Summary reports the live state of every department with active entries.
func (s *QueueService) Summary(ctx context.Context) ([]DepartmentSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deptIDs, err := s.queueRepo.ListActiveDepartmentIDs(ctx)
	if err != nil {
		return nil, classifyRepoError(err, "failed to list active departments")
	}

	summaries := make([]DepartmentSummary, 0, len(deptIDs))
	for _, deptID := range deptIDs {
		summary := DepartmentSummary{DepartmentID: deptID}

		if dept, err := s.catalogRepo.FindDepartment(ctx, deptID); err == nil {
			summary.DepartmentName = dept.Name
		}

		waiting, err := s.queueRepo.FindWaitingByDepartment(ctx, deptID)
		if err != nil {
			return nil, classifyRepoError(err, "failed to list waiting entries for department %s", deptID)
		}
		summary.Waiting = len(waiting)
		if len(waiting) > 0 {
			oldest := waiting[0].CreatedAt
			summary.OldestWaitingSince = &oldest
		}

		inService, err := s.queueRepo.FindInServiceByDepartment(ctx, deptID)
		if err != nil && !apperrors.IsNotFoundError(err) {
			return nil, classifyRepoError(err, "failed to look up in_service entry for department %s", deptID)
		}
		if inService != nil {
			summary.InServiceUserID = inService.UserID
		}

		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// position computes the 1-based queue position of an entry among the
// waiting entries of its department.
func (s *QueueService) position(ctx context.Context, entry *model.QueueEntry) (int, error) {
	ahead, err := s.queueRepo.CountWaitingAhead(ctx, entry.DepartmentID, entry.CreatedAt, entry.ID)
	if err != nil {
		return 0, classifyRepoError(err, "failed to count queue position for entry %d", entry.ID)
	}
	return int(ahead) + 1, nil
}
