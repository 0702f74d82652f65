package service

import (
	"errors"
	"fmt"

	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
)

var (
	ErrSlotTaken           = errors.New("slot is already taken")
	ErrSlotInPast          = errors.New("slot is in the past")
	ErrUnknownResource     = errors.New("unknown resource")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrNotPlanned          = model.ErrReservationNotPlanned
	ErrInvalidDuration     = errors.New("invalid lesson duration")
	ErrNoFreeResource      = errors.New("no free resource for requested time")
	ErrOutsideWorkingHours = errors.New("time is outside working hours")
)

// RemoteError сбой обращения к CRM после всех попыток
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// InconsistentStateError не удалась компенсация, CRM и локальное состояние разошлись.
// Чинится только человеком.
type InconsistentStateError struct {
	Op              string
	ReservationID   int64
	Err             error
	CompensationErr error
}

func (e *InconsistentStateError) Error() string {
	if e.CompensationErr == nil {
		return fmt.Sprintf("inconsistent state after %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("inconsistent state after %s: %v (compensation: %v)", e.Op, e.Err, e.CompensationErr)
}

func (e *InconsistentStateError) Unwrap() []error {
	if e.CompensationErr == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.CompensationErr}
}

// UserMessage возвращает понятную пользователю причину результата операции
func UserMessage(err error) string {
	var (
		remoteErr       *RemoteError
		inconsistentErr *InconsistentStateError
	)

	switch {
	case err == nil:
		return "✅ Готово"
	case errors.Is(err, ErrSlotTaken):
		return "⏰ Это время только что заняли. Выберите, пожалуйста, другое."
	case errors.Is(err, ErrSlotInPast):
		return "⏰ Это время уже прошло. Выберите другое."
	case errors.Is(err, ErrNoFreeResource):
		return "😔 На это время нет свободных преподавателей."
	case errors.Is(err, ErrOutsideWorkingHours):
		return "⏰ В это время уроки не проводятся. Выберите время из списка."
	case errors.Is(err, ErrUnknownResource):
		return "❌ Преподаватель не найден"
	case errors.Is(err, ErrReservationNotFound):
		return "❌ Запись не найдена"
	case errors.Is(err, ErrNotPlanned):
		return "❌ Запись уже отменена или урок проведён"
	case errors.Is(err, ErrInvalidDuration):
		return "❌ Неверная длительность урока"
	case errors.As(err, &inconsistentErr), errors.As(err, &remoteErr):
		return "❌ Не удалось выполнить действие. Администратор уже уведомлён и свяжется с вами."
	default:
		return "❌ Произошла ошибка. Администратор уже уведомлён."
	}
}

// IsValidation ошибки, вызванные входными данными, а не сбоем системы
func IsValidation(err error) bool {
	return errors.Is(err, ErrSlotInPast) ||
		errors.Is(err, ErrUnknownResource) ||
		errors.Is(err, ErrInvalidDuration) ||
		errors.Is(err, ErrOutsideWorkingHours)
}
