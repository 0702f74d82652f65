package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Freeeeeet/trial_lesson_bot/internal/controller/state"
	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Ограничения анкеты
const (
	ChildNameMinLength = 2
	ChildNameMaxLength = 60
	ChildMinAge        = 3
	ChildMaxAge        = 18
	InterestsMaxLength = 300
	ContactMinLength   = 5
	ContactMaxLength   = 100
)

// HandleProfile обрабатывает команду /profile - заполнить анкету заново
func (h *Handlers) HandleProfile(ctx context.Context, b *bot.Bot, update *models.Update) {
	if _, ok := h.requireUser(ctx, b, update); !ok {
		return
	}
	h.startProfile(ctx, b, update.Message.Chat.ID, update.Message.From.ID, false)
}

// startProfile начинает анкету. afterBook: по окончании сразу показать запись.
func (h *Handlers) startProfile(ctx context.Context, b *bot.Bot, chatID, telegramID int64, afterBook bool) {
	h.stateManager.ClearState(telegramID)
	h.stateManager.SetState(telegramID, state.StateProfileChildName)
	if afterBook {
		h.stateManager.SetData(telegramID, state.DataAfterBook, true)
	}

	h.logger.Info("Starting profile dialog",
		zap.Int64("telegram_id", telegramID),
		zap.Bool("after_book", afterBook))

	h.sendMessage(ctx, b, chatID,
		"📝 Несколько вопросов перед записью.\n\n"+
			"Шаг 1 из 4: Как зовут ребёнка?\n\n"+
			"Для отмены используйте /cancel")
}

func (h *Handlers) handleProfileChildName(ctx context.Context, b *bot.Bot, update *models.Update) {
	telegramID := update.Message.From.ID
	name := strings.TrimSpace(update.Message.Text)

	if n := utf8.RuneCountInString(name); n < ChildNameMinLength || n > ChildNameMaxLength {
		h.sendError(ctx, b, update.Message.Chat.ID,
			fmt.Sprintf("❌ Имя должно быть от %d до %d символов.\n\nПопробуйте ещё раз:", ChildNameMinLength, ChildNameMaxLength))
		return
	}

	h.stateManager.SetData(telegramID, state.DataChildName, name)
	h.stateManager.SetState(telegramID, state.StateProfileChildAge)

	h.sendMessage(ctx, b, update.Message.Chat.ID, "Шаг 2 из 4: Сколько ребёнку лет? Напишите число.")
}

func (h *Handlers) handleProfileChildAge(ctx context.Context, b *bot.Bot, update *models.Update) {
	telegramID := update.Message.From.ID

	age, err := parseAge(update.Message.Text)
	if err != nil {
		h.sendError(ctx, b, update.Message.Chat.ID,
			fmt.Sprintf("❌ Укажите возраст числом от %d до %d.\n\nПопробуйте ещё раз:", ChildMinAge, ChildMaxAge))
		return
	}

	h.stateManager.SetData(telegramID, state.DataChildAge, strconv.Itoa(age))
	h.stateManager.SetState(telegramID, state.StateProfileInterests)

	h.sendMessage(ctx, b, update.Message.Chat.ID,
		"Шаг 3 из 4: Чем ребёнок увлекается? Это поможет преподавателю подготовиться.\n\nЕсли не хотите отвечать, напишите «-».")
}

func (h *Handlers) handleProfileInterests(ctx context.Context, b *bot.Bot, update *models.Update) {
	telegramID := update.Message.From.ID
	interests := strings.TrimSpace(update.Message.Text)

	if utf8.RuneCountInString(interests) > InterestsMaxLength {
		h.sendError(ctx, b, update.Message.Chat.ID,
			fmt.Sprintf("❌ Слишком длинно, максимум %d символов.\n\nПопробуйте ещё раз:", InterestsMaxLength))
		return
	}
	if interests == "-" {
		interests = ""
	}

	h.stateManager.SetData(telegramID, state.DataInterests, interests)
	h.stateManager.SetState(telegramID, state.StateProfileContact)

	h.sendMessage(ctx, b, update.Message.Chat.ID,
		"Шаг 4 из 4: Оставьте телефон или другой контакт для связи с вами.")
}

func (h *Handlers) handleProfileContact(ctx context.Context, b *bot.Bot, update *models.Update) {
	telegramID := update.Message.From.ID
	chatID := update.Message.Chat.ID
	contact := strings.TrimSpace(update.Message.Text)

	if n := utf8.RuneCountInString(contact); n < ContactMinLength || n > ContactMaxLength {
		h.sendError(ctx, b, chatID,
			fmt.Sprintf("❌ Контакт должен быть от %d до %d символов.\n\nПопробуйте ещё раз:", ContactMinLength, ContactMaxLength))
		return
	}

	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}

	data := h.stateManager.GetAllData(telegramID)
	profile := model.Profile{
		ChildName:      stringData(data, state.DataChildName),
		ChildAge:       stringData(data, state.DataChildAge),
		ChildInterests: stringData(data, state.DataInterests),
		ParentName:     strings.TrimSpace(user.FirstName + " " + user.LastName),
		ParentContact:  contact,
	}

	firstTime := !user.Profile.Complete()
	if err := h.userService.UpdateProfile(ctx, user, profile); err != nil {
		h.logger.Error("Failed to save profile", zap.Int64("user_id", user.ID), zap.Error(err))
		h.sendError(ctx, b, chatID, "❌ Не удалось сохранить анкету. Попробуйте позже.")
		return
	}

	afterBook, _ := data[state.DataAfterBook].(bool)
	h.stateManager.ClearState(telegramID)

	h.logger.Info("Profile saved", zap.Int64("user_id", user.ID))
	h.sendMessage(ctx, b, chatID, "✅ Спасибо! Анкета сохранена.")

	if afterBook || firstTime {
		h.showBooking(ctx, b, chatID)
	}
}

// parseAge принимает "7" или "7 лет"
func parseAge(text string) (int, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty age")
	}
	age, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, err
	}
	if age < ChildMinAge || age > ChildMaxAge {
		return 0, fmt.Errorf("age %d out of range", age)
	}
	return age, nil
}

func stringData(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}
