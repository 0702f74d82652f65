package callbacks

import (
	"context"
	"strings"

	"github.com/Freeeeeet/trial_lesson_bot/internal/controller/callbacks/callbacktypes"
	"github.com/Freeeeeet/trial_lesson_bot/internal/controller/callbacks/common"
	"github.com/Freeeeeet/trial_lesson_bot/internal/controller/callbacks/student"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Route распределяет callback query по соответствующим обработчикам
func Route(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, h *callbacktypes.Handler) {
	data := callback.Data

	h.Logger.Info("Routing callback",
		zap.String("data", data),
		zap.Int64("user_id", callback.From.ID),
		zap.String("user_name", callback.From.FirstName))

	switch {
	case data == common.Noop:
		common.AnswerCallback(ctx, b, callback.ID, "")

	// ===== Запись =====
	case data == common.BackToDates:
		student.HandleBackToDates(ctx, b, callback, h)
	case strings.HasPrefix(data, common.BookDate):
		student.HandleBookDate(ctx, b, callback, h)
	case strings.HasPrefix(data, common.BookTime):
		student.HandleBookTime(ctx, b, callback, h)

	// ===== Мои записи =====
	case data == common.MyBookings:
		student.HandleMyBookings(ctx, b, callback, h)
	case strings.HasPrefix(data, common.RescheduleDate):
		student.HandleRescheduleDate(ctx, b, callback, h)
	case strings.HasPrefix(data, common.RescheduleTime):
		student.HandleRescheduleTime(ctx, b, callback, h)
	case strings.HasPrefix(data, common.Reschedule):
		student.HandleReschedule(ctx, b, callback, h)
	case strings.HasPrefix(data, common.CancelBooking):
		student.HandleCancelBooking(ctx, b, callback, h)
	case strings.HasPrefix(data, common.ConfirmCancel):
		student.HandleConfirmCancel(ctx, b, callback, h)

	default:
		h.Logger.Warn("Unknown callback", zap.String("data", data))
		common.AnswerCallback(ctx, b, callback.ID, "❓ Неизвестная команда")
	}
}
