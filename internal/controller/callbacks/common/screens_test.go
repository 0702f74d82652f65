package common

import (
	"testing"
	"time"

	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var msk = time.FixedZone("MSK", 3*60*60)

func at(day, hour int) time.Time {
	return time.Date(2026, 10, day, hour, 0, 0, 0, msk)
}

func slot(day, hour int, resources ...string) model.Slot {
	return model.Slot{StartTime: at(day, hour), EndTime: at(day, hour+1), ResourceIDs: resources}
}

func TestDatesScreen_SortedNonEmptyDays(t *testing.T) {
	slots := map[string][]model.Slot{
		"2026-10-21": {slot(21, 10, "11")},
		"2026-10-20": {slot(20, 10, "11"), slot(20, 11, "12")},
		"2026-10-22": {},
	}

	s := DatesScreen(BookingFlow(), slots, msk)

	rows := s.Keyboard.InlineKeyboard
	require.Len(t, rows, 2)
	assert.Equal(t, "book_date:2026-10-20", rows[0][0].CallbackData)
	assert.Equal(t, "Вт 20.10 · 2 окна", rows[0][0].Text)
	assert.Equal(t, "book_date:2026-10-21", rows[1][0].CallbackData)
	assert.Contains(t, s.Text, "Выберите день")
}

func TestDatesScreen_Empty(t *testing.T) {
	s := DatesScreen(BookingFlow(), map[string][]model.Slot{}, msk)
	assert.Contains(t, s.Text, "свободного времени нет")
	assert.Empty(t, s.Keyboard.InlineKeyboard)
}

func TestTimesScreen_Booking(t *testing.T) {
	daySlots := []model.Slot{slot(20, 10, "11"), slot(20, 11, "11"), slot(20, 14, "12"), slot(20, 15, "12"), slot(20, 16, "11")}

	s := TimesScreen(BookingFlow(), at(20, 0), daySlots, msk)

	rows := s.Keyboard.InlineKeyboard
	require.Len(t, rows, 3)
	assert.Len(t, rows[0], 4)
	assert.Equal(t, "14:00", rows[0][2].Text)
	assert.Equal(t, "book_time:2026-10-20T1400", rows[0][2].CallbackData)
	assert.Equal(t, BackToDates, rows[2][0].CallbackData)
	assert.Contains(t, s.Text, "вторник, 20 октября")
}

func TestRescheduleFlow_CallbackData(t *testing.T) {
	r := &model.Reservation{ID: 42, StartTime: at(20, 10), EndTime: at(20, 11)}
	flow := RescheduleFlow(r, msk)

	dates := DatesScreen(flow, map[string][]model.Slot{"2026-10-21": {slot(21, 12, "11")}}, msk)
	rows := dates.Keyboard.InlineKeyboard
	require.Len(t, rows, 2)
	assert.Equal(t, "resched_date:42:2026-10-21", rows[0][0].CallbackData)
	assert.Equal(t, MyBookings, rows[1][0].CallbackData)

	times := TimesScreen(flow, at(21, 0), []model.Slot{slot(21, 12, "11")}, msk)
	assert.Equal(t, "resched_time:42:2026-10-21T1200", times.Keyboard.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "reschedule:42", times.Keyboard.InlineKeyboard[1][0].CallbackData)

	for _, row := range append(dates.Keyboard.InlineKeyboard, times.Keyboard.InlineKeyboard...) {
		for _, b := range row {
			assert.LessOrEqual(t, len(b.CallbackData), 64)
		}
	}
}

func TestReservationsScreen(t *testing.T) {
	list := []*model.Reservation{
		{ID: 1, ResourceID: "11", StartTime: at(20, 10), EndTime: at(20, 11), Status: model.ReservationStatusPlanned},
		{ID: 2, ResourceID: "12", StartTime: at(21, 14), EndTime: at(21, 15), Status: model.ReservationStatusPlanned},
	}
	names := map[string]string{"11": "Анна", "12": "Олег <Иванович>"}
	resources := func(id string) model.Resource { return model.Resource{ID: id, Name: names[id]} }

	s := ReservationsScreen(list, resources, msk)

	assert.Contains(t, s.Text, "У вас 2 записи")
	assert.Contains(t, s.Text, "Олег &lt;Иванович&gt;")
	assert.Contains(t, s.Text, "14:00-15:00")
	rows := s.Keyboard.InlineKeyboard
	require.Len(t, rows, 2)
	assert.Equal(t, "reschedule:2", rows[1][0].CallbackData)
	assert.Equal(t, "cancel_booking:2", rows[1][1].CallbackData)

	empty := ReservationsScreen(nil, resources, msk)
	assert.Contains(t, empty.Text, "нет запланированных")
	assert.Equal(t, BackToDates, empty.Keyboard.InlineKeyboard[0][0].CallbackData)
}

func TestConfirmCancelScreen(t *testing.T) {
	r := &model.Reservation{ID: 9, StartTime: at(20, 10), EndTime: at(20, 11), Status: model.ReservationStatusPlanned}
	s := ConfirmCancelScreen(r, model.Resource{Name: "Анна"}, msk)

	assert.Equal(t, "confirm_cancel:9", s.Keyboard.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, MyBookings, s.Keyboard.InlineKeyboard[0][1].CallbackData)
}
