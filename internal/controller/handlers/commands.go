package handlers

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/Freeeeeet/trial_lesson_bot/internal/controller/state"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// HandleStart регистрирует пользователя и при необходимости запускает анкету
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	from := update.Message.From
	chatID := update.Message.Chat.ID

	user, err := h.userService.RegisterUser(
		ctx,
		from.ID,
		from.Username,
		from.FirstName,
		from.LastName,
		from.LanguageCode,
	)
	if err != nil {
		h.logger.Error("Failed to register user", zap.Error(err))
		h.sendError(ctx, b, chatID, "❌ Произошла ошибка при регистрации. Попробуйте позже.")
		return
	}

	h.sendMessage(ctx, b, chatID, fmt.Sprintf(
		"👋 Привет, %s!\n\n"+
			"Я помогу записать ребёнка на бесплатный пробный урок.\n\n"+
			"/book - Записаться на урок\n"+
			"/mybookings - Мои записи\n"+
			"/reschedule - Перенести урок\n"+
			"/profile - Изменить анкету\n"+
			"/help - Справка",
		html.EscapeString(user.FirstName),
	))

	if !user.Profile.Complete() {
		h.startProfile(ctx, b, chatID, from.ID, false)
	}
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	h.sendMessage(ctx, b, update.Message.Chat.ID,
		"📚 Справка по командам:\n\n"+
			"/book - Выбрать день и время пробного урока\n"+
			"/mybookings - Посмотреть, перенести или отменить запись\n"+
			"/reschedule - Перенести урок на другое время\n"+
			"/profile - Заполнить анкету заново\n"+
			"/cancel - Прервать текущий диалог\n\n"+
			"Если что-то пошло не так при записи, администратор получит уведомление и свяжется с вами.")
}

// HandleCancel обрабатывает команду /cancel - отмена текущего диалога
func (h *Handlers) HandleCancel(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	telegramID := update.Message.From.ID
	if h.stateManager.GetState(telegramID) == state.StateNone {
		h.sendMessage(ctx, b, update.Message.Chat.ID, "❌ Нет активных операций для отмены.")
		return
	}

	h.stateManager.ClearState(telegramID)
	h.sendMessage(ctx, b, update.Message.Chat.ID, "✅ Операция отменена.\n\nИспользуйте /help для просмотра доступных команд.")
}

// HandleTextMessage обрабатывает текстовые сообщения в зависимости от состояния пользователя
func (h *Handlers) HandleTextMessage(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
		return
	}

	// Команды обрабатываются другими handlers
	if strings.HasPrefix(update.Message.Text, "/") {
		return
	}

	telegramID := update.Message.From.ID
	currentState := h.stateManager.GetState(telegramID)

	h.logger.Debug("HandleTextMessage called",
		zap.Int64("telegram_id", telegramID),
		zap.String("state", string(currentState)))

	switch currentState {
	case state.StateProfileChildName:
		h.handleProfileChildName(ctx, b, update)
	case state.StateProfileChildAge:
		h.handleProfileChildAge(ctx, b, update)
	case state.StateProfileInterests:
		h.handleProfileInterests(ctx, b, update)
	case state.StateProfileContact:
		h.handleProfileContact(ctx, b, update)
	default:
		h.sendMessage(ctx, b, update.Message.Chat.ID, "Чтобы записаться на урок, используйте /book")
	}
}
