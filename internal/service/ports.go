package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/trial_lesson_bot/internal/crm"
	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
)

// CRM удалённая система задач и календарей. Транзакций между вызовами нет.
type CRM interface {
	ListEvents(ctx context.Context, ownerID string, from, to time.Time) ([]crm.Event, error)
	CreateWorkItem(ctx context.Context, item crm.WorkItem) (string, error)
	UpdateWorkItem(ctx context.Context, id string, item crm.WorkItem) error
	DeleteWorkItem(ctx context.Context, id string) error
	CreateCalendarBlock(ctx context.Context, block crm.CalendarBlock) (string, error)
	UpdateCalendarBlock(ctx context.Context, id string, block crm.CalendarBlock) error
	DeleteCalendarBlock(ctx context.Context, id string) error
}

// ReservationStore единственный путь записи броней.
// GetByID возвращает (nil, nil), если брони нет.
// UpdateSchedule и UpdateStatus меняют только planned-брони, иначе model.ErrReservationNotPlanned.
type ReservationStore interface {
	Create(ctx context.Context, r *model.Reservation) error
	GetByID(ctx context.Context, id int64) (*model.Reservation, error)
	ListActiveByRequester(ctx context.Context, requesterID int64) ([]*model.Reservation, error)
	UpdateSchedule(ctx context.Context, id int64, start, end time.Time) error
	UpdateStatus(ctx context.Context, id int64, status model.ReservationStatus) error
	ListDueReminders(ctx context.Context, from, to time.Time) ([]*model.Reservation, error)
	MarkReminded(ctx context.Context, id int64, at time.Time) error
}

// UserStore пользователи бота
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	UpdateProfile(ctx context.Context, id int64, profile model.Profile) error
}

type Severity string

const (
	SeverityWarning  Severity = "warning"  // Действие не выполнено, состояние согласовано
	SeverityCritical Severity = "critical" // Компенсация не удалась, нужна ручная сверка
)

// Escalation контекст сбоя для администратора
type Escalation struct {
	Severity        Severity
	Operation       string
	OpID            string
	ReservationID   int64
	RequesterID     int64
	ResourceID      string
	WorkItemID      string
	CalendarBlockID string
	Start           time.Time
	End             time.Time
	OriginalStart   time.Time
	Err             error
}

// Escalator уведомляет людей о сбоях, которые нельзя исправить автоматически
type Escalator interface {
	Escalate(ctx context.Context, e Escalation) error
}

// Reminder отправляет напоминание о скором уроке
type Reminder interface {
	Remind(ctx context.Context, chatID int64, r *model.Reservation, resource model.Resource) error
}
