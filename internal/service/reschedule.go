package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"go.uber.org/zap"
)

// Get возвращает бронь. requesterID == 0 отключает проверку владельца.
func (s *ReservationService) Get(ctx context.Context, id, requesterID int64) (*model.Reservation, error) {
	r, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	if r == nil || (requesterID != 0 && r.RequesterID != requesterID) {
		return nil, ErrReservationNotFound
	}
	return r, nil
}

// ListActive запланированные уроки пользователя
func (s *ReservationService) ListActive(ctx context.Context, requesterID int64) ([]*model.Reservation, error) {
	list, err := s.store.ListActiveByRequester(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return list, nil
}

// RescheduleOptions свободные слоты того же преподавателя для переноса
func (s *ReservationService) RescheduleOptions(ctx context.Context, r *model.Reservation, days int) (map[string][]model.Slot, error) {
	resource, ok := s.Resource(r.ResourceID)
	if !ok {
		resource = model.Resource{ID: r.ResourceID, Name: r.ResourceID}
	}
	from, to := s.availability.Horizon(days)
	return s.availability.ComputeFreeSlots(ctx, []model.Resource{resource}, from, to, r.Duration())
}

// RescheduleRequest переносит бронь пользователя на newStart с прежней длительностью
func (s *ReservationService) RescheduleRequest(ctx context.Context, reservationID, requesterID int64, newStart time.Time) (*model.Reservation, error) {
	r, err := s.Get(ctx, reservationID, requesterID)
	if err != nil {
		return nil, err
	}
	if !s.availability.IsSlotOnGrid(newStart, r.Duration()) {
		return nil, ErrOutsideWorkingHours
	}
	return s.Reschedule(ctx, r, newStart, r.Duration())
}

// Reschedule переносит урок. Сначала событие календаря (оно определяет занятость),
// потом задача. Если задача не обновилась, событие возвращается на прежнее время.
func (s *ReservationService) Reschedule(ctx context.Context, r *model.Reservation, newStart time.Time, duration time.Duration) (*model.Reservation, error) {
	if r.Status != model.ReservationStatusPlanned {
		return nil, ErrNotPlanned
	}
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if !newStart.After(s.now()) {
		return nil, ErrSlotInPast
	}

	resource, ok := s.Resource(r.ResourceID)
	if !ok {
		// Преподавателя убрали из конфигурации, но его уроки остаются в силе
		resource = model.Resource{ID: r.ResourceID, Name: r.ResourceID}
	}

	newStart = newStart.In(s.availability.Location())
	newEnd := newStart.Add(duration)
	oldStart, oldEnd := r.StartTime, r.EndTime

	opID := s.newOpID()
	log := s.logger.With(
		zap.String("op_id", opID),
		zap.Int64("reservation_id", r.ID),
		zap.String("resource_id", resource.ID),
		zap.Time("old_start", oldStart),
		zap.Time("new_start", newStart),
	)
	esc := Escalation{
		Operation:       "reschedule",
		OpID:            opID,
		ReservationID:   r.ID,
		RequesterID:     r.RequesterID,
		ResourceID:      resource.ID,
		WorkItemID:      r.WorkItemID,
		CalendarBlockID: r.CalendarBlockID,
		Start:           newStart,
		End:             newEnd,
		OriginalStart:   oldStart,
	}

	unlock := s.locks.lock(resource.ID)
	defer unlock()

	if err := s.recheck(ctx, resource.ID, newStart, newEnd, r.CalendarBlockID); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			log.Info("Reschedule target is taken")
			return nil, err
		}
		s.escalate(ctx, log, esc, SeverityWarning, err)
		return nil, err
	}

	requester := s.requester(ctx, r.RequesterID)
	note := rescheduledNote(oldStart)

	err := s.retry.do(ctx, "update calendar block", func(ctx context.Context) error {
		return s.crm.UpdateCalendarBlock(ctx, r.CalendarBlockID,
			calendarBlockFor(requester, resource, newStart, newEnd, r.WorkItemID, note, s.remind))
	})
	if err != nil {
		// Ничего не изменилось, бронь остаётся на старом времени
		remoteErr := &RemoteError{Op: "update calendar block", Err: err}
		s.escalate(ctx, log, esc, SeverityWarning, remoteErr)
		return nil, remoteErr
	}

	err = s.retry.do(ctx, "update work item", func(ctx context.Context) error {
		return s.crm.UpdateWorkItem(ctx, r.WorkItemID, workItemFor(requester, resource, newStart, newEnd, note))
	})
	if err != nil {
		remoteErr := &RemoteError{Op: "update work item", Err: err}
		if compErr := s.restoreCalendarBlock(ctx, r, requester, resource, newStart); compErr != nil {
			inconsistent := &InconsistentStateError{Op: remoteErr.Op, ReservationID: r.ID, Err: remoteErr, CompensationErr: compErr}
			s.escalate(ctx, log, esc, SeverityCritical, inconsistent)
			return nil, inconsistent
		}
		log.Info("Calendar block rolled back", zap.Time("restored_start", oldStart))
		s.escalate(ctx, log, esc, SeverityWarning, remoteErr)
		return nil, remoteErr
	}

	if err := s.store.UpdateSchedule(ctx, r.ID, newStart, newEnd); err != nil {
		storeErr := fmt.Errorf("save reschedule: %w", err)
		// CRM уже на новом времени: возвращаем обе сущности
		compErr := errors.Join(
			s.restoreCalendarBlock(ctx, r, requester, resource, newStart),
			s.restoreWorkItem(ctx, r, requester, resource, newStart),
		)
		if compErr != nil {
			inconsistent := &InconsistentStateError{Op: "save reschedule", ReservationID: r.ID, Err: storeErr, CompensationErr: compErr}
			s.escalate(ctx, log, esc, SeverityCritical, inconsistent)
			return nil, inconsistent
		}
		s.escalate(ctx, log, esc, SeverityCritical, storeErr)
		return nil, storeErr
	}

	updated := *r
	updated.StartTime = newStart
	updated.EndTime = newEnd
	updated.RemindedAt = nil
	updated.UpdatedAt = s.now()

	log.Info("Reservation rescheduled", zap.Time("old_end", oldEnd))
	return &updated, nil
}

func (s *ReservationService) restoreCalendarBlock(ctx context.Context, r *model.Reservation, requester model.Requester, resource model.Resource, attempted time.Time) error {
	err := s.retry.do(context.WithoutCancel(ctx), "rollback calendar block", func(ctx context.Context) error {
		return s.crm.UpdateCalendarBlock(ctx, r.CalendarBlockID,
			calendarBlockFor(requester, resource, r.StartTime, r.EndTime, r.WorkItemID, rollbackNote(attempted), s.remind))
	})
	if err != nil {
		return &RemoteError{Op: "rollback calendar block", Err: err}
	}
	return nil
}

func (s *ReservationService) restoreWorkItem(ctx context.Context, r *model.Reservation, requester model.Requester, resource model.Resource, attempted time.Time) error {
	err := s.retry.do(context.WithoutCancel(ctx), "rollback work item", func(ctx context.Context) error {
		return s.crm.UpdateWorkItem(ctx, r.WorkItemID,
			workItemFor(requester, resource, r.StartTime, r.EndTime, rollbackNote(attempted)))
	})
	if err != nil {
		return &RemoteError{Op: "rollback work item", Err: err}
	}
	return nil
}
