package controller

import (
	"context"

	"github.com/Freeeeeet/trial_lesson_bot/internal/controller/callbacks"
	"github.com/Freeeeeet/trial_lesson_bot/internal/controller/callbacks/callbacktypes"
	"github.com/Freeeeeet/trial_lesson_bot/internal/controller/handlers"
	"github.com/Freeeeeet/trial_lesson_bot/internal/controller/state"
	"github.com/Freeeeeet/trial_lesson_bot/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Options настройки чат-интерфейса
type Options = callbacktypes.Options

type BotController struct {
	bot             *bot.Bot
	handlers        *handlers.Handlers
	callbackHandler *callbacks.Handler
	states          *state.Manager
	logger          *zap.Logger
}

func NewBotController(
	botInstance *bot.Bot,
	userService *service.UserService,
	reservationService *service.ReservationService,
	states *state.Manager,
	opts Options,
	logger *zap.Logger,
) *BotController {
	cmdHandlers := handlers.NewHandlers(
		userService,
		reservationService,
		states,
		opts,
		logger,
	)

	callbackHandler := callbacks.NewHandler(
		userService,
		reservationService,
		states,
		opts,
		logger,
	)

	return &BotController{
		bot:             botInstance,
		handlers:        cmdHandlers,
		callbackHandler: callbackHandler,
		states:          states,
		logger:          logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.handlers.HandleStart)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.handlers.HandleHelp)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/book", bot.MatchTypeExact, c.handlers.HandleBook)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/mybookings", bot.MatchTypeExact, c.handlers.HandleMyBookings)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/reschedule", bot.MatchTypeExact, c.handlers.HandleReschedule)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/profile", bot.MatchTypeExact, c.handlers.HandleProfile)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/cancel", bot.MatchTypeExact, c.handlers.HandleCancel)

	// Обработчик текстовых сообщений (для диалогов с состояниями)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, c.handlers.HandleTextMessage)

	// Обработчик нажатий на inline кнопки
	c.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, c.callbackHandler.HandleCallbackQuery)

	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "book", Description: "🗓 Записаться на пробный урок"},
		{Command: "mybookings", Description: "📋 Мои записи"},
		{Command: "reschedule", Description: "🔁 Перенести урок"},
		{Command: "profile", Description: "📝 Изменить анкету"},
		{Command: "help", Description: "❓ Справка по командам"},
		{Command: "cancel", Description: "✖️ Прервать диалог"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})

	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("✅ Bot commands menu set")
	return nil
}

// PruneDialogs удаляет брошенные диалоги
func (c *BotController) PruneDialogs() {
	if n := c.states.Prune(); n > 0 {
		c.logger.Debug("Pruned stale dialogs", zap.Int("count", n))
	}
}

// Start запускает бота, блокируется до отмены ctx
func (c *BotController) Start(ctx context.Context) error {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
	return nil
}
