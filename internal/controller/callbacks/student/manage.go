package student

import (
	"context"

	"github.com/Freeeeeet/trial_lesson_bot/internal/controller/callbacks/callbacktypes"
	"github.com/Freeeeeet/trial_lesson_bot/internal/controller/callbacks/common"
	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// HandleMyBookings список запланированных уроков
func HandleMyBookings(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, h *callbacktypes.Handler) {
	common.WithUser(ctx, b, callback, h, func(hc *common.HandlerContext) {
		list, err := h.ReservationService.ListActive(ctx, hc.User.ID)
		if err != nil {
			common.HandleError(hc, err, "list reservations")
			return
		}

		hc.Answer("")
		resources := func(id string) model.Resource { return resourceByID(h, id) }
		common.LogEditError(hc, hc.Screen(common.ReservationsScreen(list, resources, h.ReservationService.Location())))
	})
}

// HandleReschedule показывает дни, на которые можно перенести урок
func HandleReschedule(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, h *callbacktypes.Handler) {
	common.WithUser(ctx, b, callback, h, func(hc *common.HandlerContext) {
		id, err := common.ParseIDFromCallback(callback.Data)
		if err != nil {
			hc.AnswerAlert(common.ErrorMessage(err))
			return
		}

		r, err := h.ReservationService.Get(ctx, id, hc.User.ID)
		if err != nil {
			common.HandleError(hc, err, "get reservation")
			return
		}

		slots, err := h.ReservationService.RescheduleOptions(ctx, r, h.Options.HorizonDays)
		if err != nil {
			common.HandleError(hc, err, "reschedule options")
			return
		}

		hc.Answer("")
		loc := h.ReservationService.Location()
		common.LogEditError(hc, hc.Screen(common.DatesScreen(common.RescheduleFlow(r, loc), slots, loc)))
	})
}

// HandleRescheduleDate свободное время преподавателя в выбранный день
func HandleRescheduleDate(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, h *callbacktypes.Handler) {
	common.WithUser(ctx, b, callback, h, func(hc *common.HandlerContext) {
		loc := h.ReservationService.Location()

		id, date, err := common.ParseIDAndValue(callback.Data, common.RescheduleDate)
		if err != nil {
			hc.AnswerAlert(common.ErrorMessage(err))
			return
		}
		day, err := common.ParseDate(date, loc)
		if err != nil {
			hc.AnswerAlert(common.ErrorMessage(err))
			return
		}

		r, err := h.ReservationService.Get(ctx, id, hc.User.ID)
		if err != nil {
			common.HandleError(hc, err, "get reservation")
			return
		}

		slots, err := h.ReservationService.RescheduleOptions(ctx, r, h.Options.HorizonDays)
		if err != nil {
			common.HandleError(hc, err, "reschedule options")
			return
		}

		hc.Answer("")
		common.LogEditError(hc, hc.Screen(common.TimesScreen(common.RescheduleFlow(r, loc), day, slots[date], loc)))
	})
}

// HandleRescheduleTime переносит урок на выбранное время
func HandleRescheduleTime(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, h *callbacktypes.Handler) {
	common.WithUser(ctx, b, callback, h, func(hc *common.HandlerContext) {
		loc := h.ReservationService.Location()

		id, raw, err := common.ParseIDAndValue(callback.Data, common.RescheduleTime)
		if err != nil {
			hc.AnswerAlert(common.ErrorMessage(err))
			return
		}
		newStart, err := common.DecodeSlotTime(raw, loc)
		if err != nil {
			hc.AnswerAlert(common.ErrorMessage(err))
			return
		}

		hc.Answer("⏳ Переносим...")

		updated, err := h.ReservationService.RescheduleRequest(ctx, id, hc.User.ID, newStart)
		if err != nil {
			h.Logger.Warn("Reschedule failed",
				zap.Int64("user_id", hc.User.ID),
				zap.Int64("reservation_id", id),
				zap.Time("new_start", newStart),
				zap.Error(err))

			r, getErr := h.ReservationService.Get(ctx, id, hc.User.ID)
			if getErr != nil {
				common.LogEditError(hc, hc.EditMessage(common.ErrorMessage(err), nil))
				return
			}
			showFailure(hc, err, common.RescheduleFlow(r, loc), func() (map[string][]model.Slot, error) {
				return h.ReservationService.RescheduleOptions(ctx, r, h.Options.HorizonDays)
			})
			return
		}

		h.Logger.Info("Lesson rescheduled",
			zap.Int64("user_id", hc.User.ID),
			zap.Int64("reservation_id", updated.ID),
			zap.Time("new_start", updated.StartTime))

		common.LogEditError(hc, hc.Screen(common.RescheduledScreen(updated, resourceByID(h, updated.ResourceID), loc)))
	})
}

// HandleCancelBooking спрашивает подтверждение отмены
func HandleCancelBooking(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, h *callbacktypes.Handler) {
	common.WithUser(ctx, b, callback, h, func(hc *common.HandlerContext) {
		id, err := common.ParseIDFromCallback(callback.Data)
		if err != nil {
			hc.AnswerAlert(common.ErrorMessage(err))
			return
		}

		r, err := h.ReservationService.Get(ctx, id, hc.User.ID)
		if err != nil {
			common.HandleError(hc, err, "get reservation")
			return
		}

		hc.Answer("Подтверждение отмены")
		loc := h.ReservationService.Location()
		common.LogEditError(hc, hc.Screen(common.ConfirmCancelScreen(r, resourceByID(h, r.ResourceID), loc)))
	})
}

// HandleConfirmCancel отменяет урок
func HandleConfirmCancel(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, h *callbacktypes.Handler) {
	common.WithUser(ctx, b, callback, h, func(hc *common.HandlerContext) {
		id, err := common.ParseIDFromCallback(callback.Data)
		if err != nil {
			hc.AnswerAlert(common.ErrorMessage(err))
			return
		}

		hc.Answer("⏳ Отменяем...")

		r, err := h.ReservationService.CancelRequest(ctx, id, hc.User.ID)
		if err != nil {
			h.Logger.Warn("Cancellation failed",
				zap.Int64("user_id", hc.User.ID),
				zap.Int64("reservation_id", id),
				zap.Error(err))
			common.LogEditError(hc, hc.EditMessage(common.ErrorMessage(err), nil))
			return
		}

		h.Logger.Info("Lesson cancelled",
			zap.Int64("user_id", hc.User.ID),
			zap.Int64("reservation_id", r.ID))

		common.LogEditError(hc, hc.Screen(common.CancelledScreen(r, h.ReservationService.Location())))
	})
}
