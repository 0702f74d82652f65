package callbacktypes

import (
	"github.com/Freeeeeet/trial_lesson_bot/internal/service"
	"go.uber.org/zap"
)

// UserState представляет текущее состояние пользователя в диалоге
type UserState string

// StateManager интерфейс для управления состоянием пользователей
type StateManager interface {
	ClearState(telegramID int64)
	GetState(telegramID int64) UserState
	SetState(telegramID int64, state UserState)
	SetData(telegramID int64, key string, value interface{})
	GetData(telegramID int64, key string) (interface{}, bool)
	GetAllData(telegramID int64) map[string]interface{}
}

// Options параметры отображения расписания
type Options struct {
	HorizonDays int
	Hours       service.WorkingHours
}

// Handler содержит общие зависимости для всех callback handlers
type Handler struct {
	UserService        *service.UserService
	ReservationService *service.ReservationService
	StateManager       StateManager
	Logger             *zap.Logger
	Options            Options
}
