package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"go.uber.org/zap"
)

// ReminderService напоминает ученикам о скором уроке
type ReminderService struct {
	store     ReservationStore
	users     UserStore
	reminder  Reminder
	resources []model.Resource
	lead      time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewReminderService(
	store ReservationStore,
	users UserStore,
	reminder Reminder,
	resources []model.Resource,
	lead time.Duration,
	logger *zap.Logger,
) *ReminderService {
	return &ReminderService{
		store:     store,
		users:     users,
		reminder:  reminder,
		resources: resources,
		lead:      lead,
		logger:    logger,
		now:       time.Now,
	}
}

// SendDue отправляет напоминания по урокам, которые начнутся в ближайшие lead.
// Неудачные отправки не помечаются и повторятся на следующем тике.
func (s *ReminderService) SendDue(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.store.ListDueReminders(ctx, now, now.Add(s.lead))
	if err != nil {
		return 0, fmt.Errorf("list due reminders: %w", err)
	}

	sent := 0
	for _, r := range due {
		user, err := s.users.GetByID(ctx, r.RequesterID)
		if err != nil || user == nil {
			s.logger.Warn("Cannot remind, requester not found",
				zap.Int64("reservation_id", r.ID),
				zap.Int64("requester_id", r.RequesterID),
				zap.Error(err),
			)
			continue
		}

		if err := s.reminder.Remind(ctx, user.TelegramID, r, s.resource(r.ResourceID)); err != nil {
			s.logger.Warn("Failed to send reminder",
				zap.Int64("reservation_id", r.ID),
				zap.Error(err),
			)
			continue
		}

		if err := s.store.MarkReminded(ctx, r.ID, now); err != nil {
			s.logger.Error("Failed to mark reminder sent",
				zap.Int64("reservation_id", r.ID),
				zap.Error(err),
			)
			continue
		}
		sent++
	}

	return sent, nil
}

func (s *ReminderService) resource(id string) model.Resource {
	for _, r := range s.resources {
		if r.ID == id {
			return r
		}
	}
	return model.Resource{ID: id, Name: id}
}
