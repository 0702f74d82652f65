package common

import (
	"fmt"
	"html"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/trial_lesson_bot/internal/controller/callbacks/common/formatting"
	"github.com/Freeeeeet/trial_lesson_bot/internal/controller/callbacks/common/keyboard"
	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"github.com/go-telegram/bot/models"
)

// Screen текст сообщения и его клавиатура
type Screen struct {
	Text     string
	Keyboard *models.InlineKeyboardMarkup
}

// SlotFlow куда ведут кнопки выбора даты и времени: запись или перенос
type SlotFlow struct {
	Title       string
	DateData    func(date string) string
	TimeData    func(start time.Time) string
	BackToDates string
	Back        *models.InlineKeyboardButton
}

// BookingFlow выбор времени для новой записи
func BookingFlow() SlotFlow {
	return SlotFlow{
		Title:       "🗓 <b>Запись на пробный урок</b>",
		DateData:    func(date string) string { return BookDate + date },
		TimeData:    func(start time.Time) string { return BookTime + EncodeSlotTime(start) },
		BackToDates: BackToDates,
	}
}

// RescheduleFlow выбор нового времени для брони
func RescheduleFlow(r *model.Reservation, loc *time.Location) SlotFlow {
	id := strconv.FormatInt(r.ID, 10)
	back := keyboard.Button("⬅️ К моим записям", MyBookings)
	return SlotFlow{
		Title: fmt.Sprintf("🔁 <b>Перенос урока #%d</b>\nСейчас: %s",
			r.ID, formatting.FormatDateTime(r.StartTime.In(loc))),
		DateData:    func(date string) string { return RescheduleDate + id + ":" + date },
		TimeData:    func(start time.Time) string { return RescheduleTime + id + ":" + EncodeSlotTime(start) },
		BackToDates: Reschedule + id,
		Back:        &back,
	}
}

// DatesScreen дни, в которых есть свободные окна
func DatesScreen(flow SlotFlow, slots map[string][]model.Slot, loc *time.Location) Screen {
	dates := make([]string, 0, len(slots))
	for date, daySlots := range slots {
		if len(daySlots) > 0 {
			dates = append(dates, date)
		}
	}
	slices.Sort(dates)

	kb := keyboard.NewBuilder()
	for _, date := range dates {
		day, err := ParseDate(date, loc)
		if err != nil {
			continue
		}
		n := len(slots[date])
		label := fmt.Sprintf("%s · %d %s", formatting.FormatDayLabel(day), n, formatting.PluralizeSlots(n))
		kb.Row(keyboard.Button(label, flow.DateData(date)))
	}
	if flow.Back != nil {
		kb.Row(*flow.Back)
	}

	if len(dates) == 0 {
		return Screen{
			Text:     flow.Title + "\n\n😔 В ближайшие дни свободного времени нет. Загляните позже.",
			Keyboard: kb.Build(),
		}
	}
	return Screen{
		Text:     flow.Title + "\n\nВыберите день:",
		Keyboard: kb.Build(),
	}
}

// TimesScreen свободные окна выбранного дня
func TimesScreen(flow SlotFlow, date time.Time, daySlots []model.Slot, loc *time.Location) Screen {
	buttons := make([]models.InlineKeyboardButton, 0, len(daySlots))
	for _, slot := range daySlots {
		start := slot.StartTime.In(loc)
		buttons = append(buttons, keyboard.Button(formatting.FormatTime(start), flow.TimeData(start)))
	}

	kb := keyboard.NewBuilder().
		Grid(4, buttons...).
		Row(keyboard.Button("⬅️ Другой день", flow.BackToDates))

	text := fmt.Sprintf("%s\n\n📅 %s\n\n", flow.Title, formatting.FormatLongDate(date))
	if len(buttons) == 0 {
		text += "Свободного времени в этот день уже нет."
	} else {
		text += "Выберите время начала:"
	}
	return Screen{Text: text, Keyboard: kb.Build()}
}

// BookedScreen подтверждение записи
func BookedScreen(r *model.Reservation, resource model.Resource, loc *time.Location) Screen {
	text := fmt.Sprintf(
		"✅ <b>Вы записаны на пробный урок!</b>\n\n%s\n\nМы напомним о занятии заранее.",
		describe(r, resource, loc),
	)
	kb := keyboard.NewBuilder().Row(keyboard.Button("📋 Мои записи", MyBookings)).Build()
	return Screen{Text: text, Keyboard: kb}
}

// RescheduledScreen подтверждение переноса
func RescheduledScreen(r *model.Reservation, resource model.Resource, loc *time.Location) Screen {
	text := fmt.Sprintf("🔁 <b>Урок перенесён</b>\n\n%s", describe(r, resource, loc))
	kb := keyboard.NewBuilder().Row(keyboard.Button("📋 Мои записи", MyBookings)).Build()
	return Screen{Text: text, Keyboard: kb}
}

// CancelledScreen подтверждение отмены
func CancelledScreen(r *model.Reservation, loc *time.Location) Screen {
	text := fmt.Sprintf("❌ Урок #%d на %s отменён.", r.ID, formatting.FormatDateTime(r.StartTime.In(loc)))
	kb := keyboard.NewBuilder().Row(keyboard.Button("➕ Записаться снова", BackToDates)).Build()
	return Screen{Text: text, Keyboard: kb}
}

// ConfirmCancelScreen вопрос перед отменой
func ConfirmCancelScreen(r *model.Reservation, resource model.Resource, loc *time.Location) Screen {
	text := fmt.Sprintf("❓ <b>Отменить урок?</b>\n\n%s", describe(r, resource, loc))
	id := strconv.FormatInt(r.ID, 10)
	kb := keyboard.NewBuilder().
		Row(
			keyboard.Button("✅ Да, отменить", ConfirmCancel+id),
			keyboard.Button("⬅️ Нет", MyBookings),
		).
		Build()
	return Screen{Text: text, Keyboard: kb}
}

// ReservationsScreen список запланированных уроков с кнопками управления
func ReservationsScreen(list []*model.Reservation, resources func(id string) model.Resource, loc *time.Location) Screen {
	if len(list) == 0 {
		kb := keyboard.NewBuilder().Row(keyboard.Button("➕ Записаться", BackToDates)).Build()
		return Screen{Text: "📋 У вас нет запланированных уроков.", Keyboard: kb}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 <b>У вас %d %s</b>\n", len(list), formatting.PluralizeBookings(len(list)))

	kb := keyboard.NewBuilder()
	for _, r := range list {
		sb.WriteString("\n")
		sb.WriteString(describe(r, resources(r.ResourceID), loc))
		sb.WriteString("\n")

		id := strconv.FormatInt(r.ID, 10)
		kb.Row(
			keyboard.Button(fmt.Sprintf("🔁 Перенести #%d", r.ID), Reschedule+id),
			keyboard.Button(fmt.Sprintf("❌ Отменить #%d", r.ID), CancelBooking+id),
		)
	}

	return Screen{Text: sb.String(), Keyboard: kb.Build()}
}

func describe(r *model.Reservation, resource model.Resource, loc *time.Location) string {
	start := r.StartTime.In(loc)
	status := formatting.GetReservationStatusDisplay(r.Status)
	return fmt.Sprintf(
		"%s Урок #%d\n📅 %s\n🕐 %s\n👩‍🏫 %s",
		status.Emoji,
		r.ID,
		formatting.FormatLongDate(start),
		formatting.FormatTimeRange(start, r.EndTime.In(loc)),
		html.EscapeString(resource.Name),
	)
}
