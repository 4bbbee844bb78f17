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

// Tick runs one poll cycle of the queue engine. Phase order is fixed:
// promotion first so a freed attendant picks up the head before that head
// can expire, then the finished sweep, then timeouts, then position
// notifications against the already-pruned queue.
func (s *QueueService) Tick(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	log := logger.FromContext(ctx)

	deptIDs, err := s.queueRepo.ListActiveDepartmentIDs(ctx)
	if err != nil {
		return classifyRepoError(err, "failed to list active departments")
	}

	for _, deptID := range deptIDs {
		if err := s.promoteHead(ctx, deptID); err != nil {
			log.Error("Promotion phase failed",
				zap.String("department_id", deptID),
				zap.Error(err))
		}
	}

	if err := s.sweepFinished(ctx); err != nil {
		log.Error("Finished sweep failed", zap.Error(err))
	}

	tun := s.tunables.Tunables()
	for _, deptID := range deptIDs {
		if err := s.expireAndNotify(ctx, deptID, tun.AbandonTimeout, tun.NotifyInterval); err != nil {
			log.Error("Timeout/notify phase failed",
				zap.String("department_id", deptID),
				zap.Error(err))
		}
	}

	observer.ObserveEngineTickDuration(s.now().Sub(start))
	return nil
}

// promoteHead moves the department's FIFO head into service when no entry
// is currently in_service. At most one promotion per department per tick,
// matching the single-attendant model.
func (s *QueueService) promoteHead(ctx context.Context, departmentID string) error {
	_, err := s.queueRepo.FindInServiceByDepartment(ctx, departmentID)
	if err == nil {
		return nil
	}
	if !apperrors.IsNotFoundError(err) {
		return classifyRepoError(err, "failed to look up in_service entry for department %s", departmentID)
	}

	waiting, err := s.queueRepo.FindWaitingByDepartment(ctx, departmentID)
	if err != nil {
		return classifyRepoError(err, "failed to list waiting entries for department %s", departmentID)
	}
	if len(waiting) == 0 {
		return nil
	}

	head := &waiting[0]
	head.Status = model.QueueStatusInService
	if err := s.queueRepo.Update(ctx, head); err != nil {
		return classifyRepoError(err, "failed to promote queue entry %d", head.ID)
	}

	s.send(ctx, head.UserID, msgYourTurn)
	s.recordInteraction(ctx, head.UserID, model.InteractionAttendanceStarted, map[string]interface{}{
		"department_id": departmentID,
		"unit_id":       head.UnitID,
	})
	s.setConversationStatus(ctx, head.UserID, model.ConvStatusInService)

	observer.IncQueuePromotion(departmentID)
	observer.ObserveQueueWaitDuration(departmentID, s.now().Sub(head.CreatedAt))

	logger.FromContext(ctx).Info("Promoted queue head to in_service",
		zap.String("user_id", head.UserID),
		zap.String("department_id", departmentID),
		zap.Int64("entry_id", head.ID))
	return nil
}

// sweepFinished delivers the farewell to finished entries, records the
// attendance_finished interaction, closes the conversation and moves the
// entry to closed. The farewell-pending predicate lives in the repository
// query, so an entry finished and swept in the same tick is handled
// exactly once.
func (s *QueueService) sweepFinished(ctx context.Context) error {
	pending, err := s.queueRepo.FindFinishedPendingClose(ctx)
	if err != nil {
		return classifyRepoError(err, "failed to list finished entries pending close")
	}

	log := logger.FromContext(ctx)
	now := s.now()
	for i := range pending {
		entry := &pending[i]
		s.send(ctx, entry.UserID, msgAttendanceFinished)
		entry.Status = model.QueueStatusClosed
		entry.LastNotifiedAt = &now
		if err := s.queueRepo.Update(ctx, entry); err != nil {
			log.Error("Failed to close finished entry",
				zap.Int64("entry_id", entry.ID),
				zap.Error(err))
			continue
		}
		s.recordInteraction(ctx, entry.UserID, model.InteractionAttendanceFinished, map[string]interface{}{
			"department_id": entry.DepartmentID,
			"unit_id":       entry.UnitID,
		})
		s.setConversationStatus(ctx, entry.UserID, model.ConvStatusFinished)
		log.Info("Closed finished attendance",
			zap.String("user_id", entry.UserID),
			zap.String("department_id", entry.DepartmentID),
			zap.Int64("entry_id", entry.ID))
	}
	return nil
}

// expireAndNotify walks the department's waiting list once: entries whose
// inactivity clock passed the abandon timeout are dropped, survivors get a
// position notification when their throttle interval elapsed. Positions
// are computed against the pruned list so users never see a stale number.
func (s *QueueService) expireAndNotify(ctx context.Context, departmentID string, abandonTimeout, notifyInterval time.Duration) error {
	waiting, err := s.queueRepo.FindWaitingByDepartment(ctx, departmentID)
	if err != nil {
		return classifyRepoError(err, "failed to list waiting entries for department %s", departmentID)
	}

	log := logger.FromContext(ctx)
	now := s.now()

	survivors := make([]*model.QueueEntry, 0, len(waiting))
	for i := range waiting {
		entry := &waiting[i]
		if now.Sub(entry.AnchorTime()) >= abandonTimeout {
			entry.Status = model.QueueStatusAbandoned
			entry.AbandonReason = model.AbandonReasonTimeout
			if err := s.queueRepo.Update(ctx, entry); err != nil {
				log.Error("Failed to expire queue entry",
					zap.Int64("entry_id", entry.ID),
					zap.Error(err))
				survivors = append(survivors, entry)
				continue
			}
			s.send(ctx, entry.UserID, msgQueueExpired)
			s.recordInteraction(ctx, entry.UserID, model.InteractionQueueAbandoned, map[string]interface{}{
				"department_id": departmentID,
				"unit_id":       entry.UnitID,
				"reason":        model.AbandonReasonTimeout,
			})
			observer.IncQueueAbandoned(departmentID, model.AbandonReasonTimeout)
			s.setConversationStatus(ctx, entry.UserID, model.ConvStatusAbandoned)
			log.Info("Expired queue entry by inactivity",
				zap.String("user_id", entry.UserID),
				zap.String("department_id", departmentID),
				zap.Int64("entry_id", entry.ID))
			continue
		}
		survivors = append(survivors, entry)
	}

	observer.SetQueueWaiting(departmentID, len(survivors))

	for position, entry := range survivors {
		if entry.LastNotifiedAt != nil && now.Sub(*entry.LastNotifiedAt) < notifyInterval {
			continue
		}
		s.send(ctx, entry.UserID, fmt.Sprintf(msgQueuePositionFmt, position+1))
		notified := now
		entry.LastNotifiedAt = &notified
		if err := s.queueRepo.Update(ctx, entry); err != nil {
			log.Error("Failed to stamp notification time",
				zap.Int64("entry_id", entry.ID),
				zap.Error(err))
			continue
		}
		observer.IncQueueNotification(departmentID)
	}
	return nil
}
