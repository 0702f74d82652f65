package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Freeeeeet/trial_lesson_bot/internal/crm"
	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReservationConfig struct {
	Resources       []model.Resource
	LessonDuration  time.Duration
	Retry           RetryPolicy
	ReminderMinutes int // Напоминание в календаре CRM
}

// ReservationService бронирует, переносит и отменяет уроки.
// Каждая операция это сага над CRM: прямой путь плюс явная компенсация.
type ReservationService struct {
	crm          CRM
	store        ReservationStore
	users        UserStore
	availability *AvailabilityService
	escalator    Escalator
	resources    []model.Resource
	duration     time.Duration
	remind       int
	retry        *retrier
	locks        *resourceLocks
	logger       *zap.Logger
	now          func() time.Time
	newOpID      func() string
}

func NewReservationService(
	crm CRM,
	store ReservationStore,
	users UserStore,
	availability *AvailabilityService,
	escalator Escalator,
	cfg ReservationConfig,
	logger *zap.Logger,
) *ReservationService {
	duration := cfg.LessonDuration
	if duration <= 0 {
		duration = time.Hour
	}
	return &ReservationService{
		crm:          crm,
		store:        store,
		users:        users,
		availability: availability,
		escalator:    escalator,
		resources:    cfg.Resources,
		duration:     duration,
		remind:       cfg.ReminderMinutes,
		retry:        newRetrier(cfg.Retry, logger),
		locks:        newResourceLocks(),
		logger:       logger,
		now:          time.Now,
		newOpID:      newOpID,
	}
}

func newOpID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Resources преподаватели в порядке из конфигурации
func (s *ReservationService) Resources() []model.Resource {
	return s.resources
}

// Resource находит преподавателя по ID
func (s *ReservationService) Resource(id string) (model.Resource, bool) {
	for _, r := range s.resources {
		if r.ID == id {
			return r, true
		}
	}
	return model.Resource{}, false
}

func (s *ReservationService) LessonDuration() time.Duration {
	return s.duration
}

// Location часовой пояс, в котором считаются рабочие часы
func (s *ReservationService) Location() *time.Location {
	return s.availability.Location()
}

// AvailabilityHorizon интервал, за который Availability ищет слоты
func (s *ReservationService) AvailabilityHorizon(days int) (time.Time, time.Time) {
	return s.availability.Horizon(days)
}

// Availability свободные слоты всех преподавателей на days дней вперёд
func (s *ReservationService) Availability(ctx context.Context, days int) (map[string][]model.Slot, error) {
	from, to := s.availability.Horizon(days)
	return s.availability.ComputeFreeSlots(ctx, s.resources, from, to, s.duration)
}

// BookRequest бронирует урок на start. Без resourceHint берётся первый свободный
// преподаватель в порядке конфигурации.
func (s *ReservationService) BookRequest(ctx context.Context, resourceHint string, requester model.Requester, start time.Time) (*model.Reservation, error) {
	if resourceHint != "" {
		return s.Book(ctx, resourceHint, start, s.duration, requester)
	}

	if !start.After(s.now()) {
		return nil, ErrSlotInPast
	}
	if !s.availability.IsSlotOnGrid(start, s.duration) {
		return nil, ErrOutsideWorkingHours
	}

	day := startOfDay(start.In(s.availability.Location()))
	slots, err := s.availability.ComputeFreeSlots(ctx, s.resources, day, day.AddDate(0, 0, 1), s.duration)
	if err != nil {
		return nil, err
	}

	for _, slot := range slots[day.Format(DateKey)] {
		if !slot.StartTime.Equal(start) {
			continue
		}
		for _, resourceID := range slot.ResourceIDs {
			reservation, err := s.Book(ctx, resourceID, start, s.duration, requester)
			if errors.Is(err, ErrSlotTaken) {
				continue
			}
			return reservation, err
		}
	}

	return nil, ErrNoFreeResource
}

// Book бронирует урок у конкретного преподавателя:
// повторная проверка слота, задача в CRM, событие в календаре, запись в базе.
// Начало должно лежать на сетке рабочих часов.
func (s *ReservationService) Book(
	ctx context.Context,
	resourceID string,
	start time.Time,
	duration time.Duration,
	requester model.Requester,
) (*model.Reservation, error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	resource, ok := s.Resource(resourceID)
	if !ok {
		return nil, ErrUnknownResource
	}
	if !start.After(s.now()) {
		return nil, ErrSlotInPast
	}
	if !s.availability.IsSlotOnGrid(start, duration) {
		return nil, ErrOutsideWorkingHours
	}

	start = start.In(s.availability.Location())
	end := start.Add(duration)
	opID := s.newOpID()
	log := s.logger.With(
		zap.String("op_id", opID),
		zap.String("resource_id", resource.ID),
		zap.Int64("requester_id", requester.UserID),
		zap.Time("start", start),
	)
	esc := Escalation{
		Operation:   "book",
		OpID:        opID,
		RequesterID: requester.UserID,
		ResourceID:  resource.ID,
		Start:       start,
		End:         end,
	}

	unlock := s.locks.lock(resource.ID)
	defer unlock()

	// Слот могли занять, пока пользователь выбирал время
	if err := s.recheck(ctx, resource.ID, start, end, ""); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			log.Info("Slot taken before booking")
			return nil, err
		}
		s.escalate(ctx, log, esc, SeverityWarning, err)
		return nil, err
	}

	// Create-вызовы не повторяем: после таймаута сущность могла создаться
	var workItemID string
	err := s.retry.once(ctx, func(ctx context.Context) error {
		id, err := s.crm.CreateWorkItem(ctx, workItemFor(requester, resource, start, end, ""))
		workItemID = id
		return err
	})
	if err != nil {
		remoteErr := &RemoteError{Op: "create work item", Err: err}
		s.escalate(ctx, log, esc, SeverityWarning, remoteErr)
		return nil, remoteErr
	}
	esc.WorkItemID = workItemID
	log = log.With(zap.String("work_item_id", workItemID))

	var blockID string
	err = s.retry.once(ctx, func(ctx context.Context) error {
		id, err := s.crm.CreateCalendarBlock(ctx, calendarBlockFor(requester, resource, start, end, workItemID, "", s.remind))
		blockID = id
		return err
	})
	if err != nil {
		remoteErr := &RemoteError{Op: "create calendar block", Err: err}
		if compErr := s.deleteWorkItem(ctx, workItemID); compErr != nil {
			inconsistent := &InconsistentStateError{Op: remoteErr.Op, Err: remoteErr, CompensationErr: compErr}
			s.escalate(ctx, log, esc, SeverityCritical, inconsistent)
			return nil, inconsistent
		}
		log.Info("Work item rolled back")
		s.escalate(ctx, log, esc, SeverityWarning, remoteErr)
		return nil, remoteErr
	}
	esc.CalendarBlockID = blockID

	reservation := &model.Reservation{
		RequesterID:     requester.UserID,
		ResourceID:      resource.ID,
		StartTime:       start,
		EndTime:         end,
		WorkItemID:      workItemID,
		CalendarBlockID: blockID,
		Status:          model.ReservationStatusPlanned,
	}
	if err := s.store.Create(ctx, reservation); err != nil {
		storeErr := fmt.Errorf("save reservation: %w", err)
		compErr := errors.Join(s.deleteCalendarBlock(ctx, blockID), s.deleteWorkItem(ctx, workItemID))
		if compErr != nil {
			inconsistent := &InconsistentStateError{Op: "save reservation", Err: storeErr, CompensationErr: compErr}
			s.escalate(ctx, log, esc, SeverityCritical, inconsistent)
			return nil, inconsistent
		}
		s.escalate(ctx, log, esc, SeverityCritical, storeErr)
		return nil, storeErr
	}

	log.Info("Reservation booked",
		zap.Int64("reservation_id", reservation.ID),
		zap.String("calendar_block_id", blockID),
	)
	return reservation, nil
}

// recheck перечитывает календарь преподавателя на день урока.
// ignoreBlockID исключает собственное событие брони (для переноса).
func (s *ReservationService) recheck(ctx context.Context, resourceID string, start, end time.Time, ignoreBlockID string) error {
	dayStart := startOfDay(start)
	dayEnd := dayStart.AddDate(0, 0, 1)
	if end.After(dayEnd) {
		dayEnd = end
	}

	busy, err := s.availability.FetchBusy(ctx, resourceID, dayStart, dayEnd)
	if err != nil {
		return err
	}

	for _, b := range busy {
		if ignoreBlockID != "" && b.SourceID == ignoreBlockID {
			continue
		}
		if b.Overlaps(start, end) {
			return ErrSlotTaken
		}
	}
	return nil
}

// Компенсации выполняются даже если исходный запрос уже отменён

func (s *ReservationService) deleteWorkItem(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	err := s.retry.do(context.WithoutCancel(ctx), "delete work item", func(ctx context.Context) error {
		return s.crm.DeleteWorkItem(ctx, id)
	})
	if err != nil && !errors.Is(err, crm.ErrNotFound) {
		return &RemoteError{Op: "delete work item", Err: err}
	}
	return nil
}

func (s *ReservationService) deleteCalendarBlock(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	err := s.retry.do(context.WithoutCancel(ctx), "delete calendar block", func(ctx context.Context) error {
		return s.crm.DeleteCalendarBlock(ctx, id)
	})
	if err != nil && !errors.Is(err, crm.ErrNotFound) {
		return &RemoteError{Op: "delete calendar block", Err: err}
	}
	return nil
}

// escalate пишет в лог и уведомляет администраторов. Вызывается ровно один раз на неудачную сагу.
func (s *ReservationService) escalate(ctx context.Context, log *zap.Logger, esc Escalation, severity Severity, err error) {
	esc.Severity = severity
	esc.Err = err

	log.Error("Booking operation failed",
		zap.String("operation", esc.Operation),
		zap.String("severity", string(severity)),
		zap.Error(err),
	)

	if s.escalator == nil {
		return
	}
	if notifyErr := s.escalator.Escalate(context.WithoutCancel(ctx), esc); notifyErr != nil {
		log.Error("Failed to deliver escalation", zap.Error(notifyErr))
	}
}

// requester восстанавливает данные заявителя для текстов в CRM
func (s *ReservationService) requester(ctx context.Context, userID int64) model.Requester {
	if s.users == nil {
		return model.Requester{UserID: userID}
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil || user == nil {
		s.logger.Warn("Requester not found, using bare id", zap.Int64("user_id", userID), zap.Error(err))
		return model.Requester{UserID: userID}
	}
	return user.AsRequester()
}

// resourceLocks сериализует проверку и запись по одному преподавателю внутри процесса.
// Между процессами гарантия остаётся best-effort: CRM блокировок не даёт.
type resourceLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newResourceLocks() *resourceLocks {
	return &resourceLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *resourceLocks) lock(resourceID string) func() {
	l.mu.Lock()
	m, ok := l.locks[resourceID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[resourceID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
