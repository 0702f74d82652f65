package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"github.com/Freeeeeet/trial_lesson_bot/internal/timeparse"
	"go.uber.org/zap"
)

// DateKey формат ключа дня в карте слотов
const DateKey = "2006-01-02"

// WorkingHours шаблон рабочего дня: слоты начинаются каждый час с StartHour
// и заканчиваются не позже EndHour.
type WorkingHours struct {
	StartHour int
	EndHour   int
	DaysOff   []time.Weekday
}

// DefaultWorkingHours будни с 10 до 19
func DefaultWorkingHours() WorkingHours {
	return WorkingHours{StartHour: 10, EndHour: 19, DaysOff: []time.Weekday{time.Saturday, time.Sunday}}
}

func (h WorkingHours) IsDayOff(d time.Weekday) bool {
	for _, off := range h.DaysOff {
		if off == d {
			return true
		}
	}
	return false
}

func (h WorkingHours) Validate() error {
	if h.StartHour < 0 || h.EndHour > 24 || h.StartHour >= h.EndHour {
		return fmt.Errorf("invalid working hours %d-%d", h.StartHour, h.EndHour)
	}
	return nil
}

// AvailabilityService считает свободные слоты по календарям преподавателей
type AvailabilityService struct {
	crm    CRM
	hours  WorkingHours
	loc    *time.Location
	retry  *retrier
	logger *zap.Logger
	now    func() time.Time
}

func NewAvailabilityService(
	crm CRM,
	hours WorkingHours,
	loc *time.Location,
	policy RetryPolicy,
	logger *zap.Logger,
) *AvailabilityService {
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityService{
		crm:    crm,
		hours:  hours,
		loc:    loc,
		retry:  newRetrier(policy, logger),
		logger: logger,
		now:    time.Now,
	}
}

func (s *AvailabilityService) Location() *time.Location {
	return s.loc
}

// Horizon возвращает интервал [сейчас, начало дня через days дней)
func (s *AvailabilityService) Horizon(days int) (time.Time, time.Time) {
	now := s.now().In(s.loc)
	return now, startOfDay(now).AddDate(0, 0, days+1)
}

// ComputeFreeSlots возвращает свободные слоты по дням (ключ DateKey).
// Преподаватель, чей календарь не удалось получить, пропускается.
func (s *AvailabilityService) ComputeFreeSlots(
	ctx context.Context,
	pool []model.Resource,
	from, to time.Time,
	duration time.Duration,
) (map[string][]model.Slot, error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}

	result := make(map[string][]model.Slot)
	if len(pool) == 0 || !from.Before(to) {
		return result, nil
	}

	busy := make(map[string][]model.BusyInterval, len(pool))
	fetched := make([]model.Resource, 0, len(pool))
	for _, res := range pool {
		intervals, err := s.FetchBusy(ctx, res.ID, from, to)
		if err != nil {
			s.logger.Warn("Skipping resource, calendar unavailable",
				zap.String("resource_id", res.ID),
				zap.Error(err),
			)
			continue
		}
		busy[res.ID] = intervals
		fetched = append(fetched, res)
	}

	for _, candidate := range s.candidates(from, to, duration) {
		slot := model.Slot{StartTime: candidate, EndTime: candidate.Add(duration)}
		for _, res := range fetched {
			if isFree(busy[res.ID], slot.StartTime, slot.EndTime) {
				slot.ResourceIDs = append(slot.ResourceIDs, res.ID)
			}
		}
		if len(slot.ResourceIDs) == 0 {
			continue
		}
		key := candidate.Format(DateKey)
		result[key] = append(result[key], slot)
	}

	for key := range result {
		slots := result[key]
		sort.Slice(slots, func(i, j int) bool {
			return slots[i].StartTime.Before(slots[j].StartTime)
		})
	}

	return result, nil
}

// FetchBusy получает занятые интервалы преподавателя. Нераспознанные события отбрасываются.
func (s *AvailabilityService) FetchBusy(ctx context.Context, resourceID string, from, to time.Time) ([]model.BusyInterval, error) {
	var intervals []model.BusyInterval

	err := s.retry.do(ctx, "list events", func(ctx context.Context) error {
		events, err := s.crm.ListEvents(ctx, resourceID, from, to)
		if err != nil {
			return err
		}

		intervals = intervals[:0]
		for _, ev := range events {
			start, end, err := timeparse.ParseInterval(ev.DateFrom, ev.DateTo, s.loc)
			if err != nil {
				s.logger.Warn("Dropping unparsable calendar event",
					zap.String("resource_id", resourceID),
					zap.String("event_id", ev.ID.String()),
					zap.Error(err),
				)
				continue
			}
			intervals = append(intervals, model.BusyInterval{
				ResourceID: resourceID,
				SourceID:   ev.ID.String(),
				Start:      start,
				End:        end,
			})
		}
		return nil
	})
	if err != nil {
		return nil, &RemoteError{Op: "list events", Err: err}
	}

	return intervals, nil
}

// candidates сетка начал слотов в рабочие часы внутри [from, to), только в будущем
func (s *AvailabilityService) candidates(from, to time.Time, duration time.Duration) []time.Time {
	now := s.now()
	var starts []time.Time

	for day := startOfDay(from.In(s.loc)); day.Before(to); day = day.AddDate(0, 0, 1) {
		if s.hours.IsDayOff(day.Weekday()) {
			continue
		}

		dayEnd := atHour(day, s.hours.EndHour)
		for hour := s.hours.StartHour; hour < s.hours.EndHour; hour++ {
			start := atHour(day, hour)
			end := start.Add(duration)

			if end.After(dayEnd) || !start.After(now) {
				continue
			}
			if start.Before(from) || end.After(to) {
				continue
			}
			starts = append(starts, start)
		}
	}

	return starts
}

// IsSlotOnGrid проверяет, что время попадает в сетку рабочих часов
func (s *AvailabilityService) IsSlotOnGrid(start time.Time, duration time.Duration) bool {
	local := start.In(s.loc)
	if s.hours.IsDayOff(local.Weekday()) || local.Minute() != 0 || local.Second() != 0 || local.Nanosecond() != 0 {
		return false
	}
	day := startOfDay(local)
	return local.Hour() >= s.hours.StartHour && !local.Add(duration).After(atHour(day, s.hours.EndHour))
}

func isFree(busy []model.BusyInterval, start, end time.Time) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return false
		}
	}
	return true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func atHour(day time.Time, hour int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, day.Location())
}
