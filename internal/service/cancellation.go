package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"go.uber.org/zap"
)

// CancelRequest отменяет бронь пользователя. requesterID == 0 отключает проверку владельца.
func (s *ReservationService) CancelRequest(ctx context.Context, reservationID, requesterID int64) (*model.Reservation, error) {
	r, err := s.Get(ctx, reservationID, requesterID)
	if err != nil {
		return nil, err
	}
	if err := s.Cancel(ctx, r); err != nil {
		return nil, err
	}

	cancelled := *r
	cancelled.Status = model.ReservationStatusCancelled
	cancelled.UpdatedAt = s.now()
	return &cancelled, nil
}

// Cancel удаляет событие и задачу в CRM и только потом помечает бронь отменённой.
// Уже удалённые сущности считаются успехом, поэтому повторная отмена безопасна.
func (s *ReservationService) Cancel(ctx context.Context, r *model.Reservation) error {
	if r.Status != model.ReservationStatusPlanned {
		return ErrNotPlanned
	}

	opID := s.newOpID()
	log := s.logger.With(
		zap.String("op_id", opID),
		zap.Int64("reservation_id", r.ID),
		zap.String("resource_id", r.ResourceID),
	)
	esc := Escalation{
		Operation:       "cancel",
		OpID:            opID,
		ReservationID:   r.ID,
		RequesterID:     r.RequesterID,
		ResourceID:      r.ResourceID,
		WorkItemID:      r.WorkItemID,
		CalendarBlockID: r.CalendarBlockID,
		Start:           r.StartTime,
		End:             r.EndTime,
	}

	if err := s.deleteCalendarBlock(ctx, r.CalendarBlockID); err != nil {
		s.escalate(ctx, log, esc, SeverityWarning, err)
		return err
	}

	if err := s.deleteWorkItem(ctx, r.WorkItemID); err != nil {
		// Время уже освобождено, а задача видна в CRM. Бронь остаётся planned.
		inconsistent := &InconsistentStateError{Op: "delete work item", ReservationID: r.ID, Err: err}
		s.escalate(ctx, log, esc, SeverityCritical, inconsistent)
		return inconsistent
	}

	if err := s.store.UpdateStatus(ctx, r.ID, model.ReservationStatusCancelled); err != nil {
		if errors.Is(err, model.ErrReservationNotPlanned) {
			log.Info("Reservation already left planned state")
			return ErrNotPlanned
		}
		storeErr := fmt.Errorf("save cancellation: %w", err)
		inconsistent := &InconsistentStateError{Op: "save cancellation", ReservationID: r.ID, Err: storeErr}
		s.escalate(ctx, log, esc, SeverityCritical, inconsistent)
		return inconsistent
	}

	log.Info("Reservation cancelled")
	return nil
}
