package formatting

import "github.com/Freeeeeet/trial_lesson_bot/internal/model"

// StatusDisplay emoji и текст статуса
type StatusDisplay struct {
	Emoji string
	Text  string
}

// GetReservationStatusDisplay возвращает emoji и текст для статуса брони
func GetReservationStatusDisplay(status model.ReservationStatus) StatusDisplay {
	displays := map[model.ReservationStatus]StatusDisplay{
		model.ReservationStatusPlanned:   {"📅", "Запланирован"},
		model.ReservationStatusCompleted: {"✔️", "Проведён"},
		model.ReservationStatusCancelled: {"❌", "Отменён"},
	}

	if display, ok := displays[status]; ok {
		return display
	}

	return StatusDisplay{"❓", "Неизвестно"}
}
