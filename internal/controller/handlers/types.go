package handlers

import (
	"github.com/Freeeeeet/trial_lesson_bot/internal/controller/callbacks/callbacktypes"
	"github.com/Freeeeeet/trial_lesson_bot/internal/controller/state"
	"github.com/Freeeeeet/trial_lesson_bot/internal/service"
	"go.uber.org/zap"
)

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	userService  *service.UserService
	reservations *service.ReservationService
	stateManager *state.Manager
	opts         callbacktypes.Options
	logger       *zap.Logger
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(
	userService *service.UserService,
	reservations *service.ReservationService,
	stateManager *state.Manager,
	opts callbacktypes.Options,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		userService:  userService,
		reservations: reservations,
		stateManager: stateManager,
		opts:         opts,
		logger:       logger,
	}
}
