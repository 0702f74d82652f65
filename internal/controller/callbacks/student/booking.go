package student

import (
	"context"
	"errors"

	"github.com/Freeeeeet/trial_lesson_bot/internal/controller/callbacks/callbacktypes"
	"github.com/Freeeeeet/trial_lesson_bot/internal/controller/callbacks/common"
	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"github.com/Freeeeeet/trial_lesson_bot/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// HandleBackToDates заново показывает дни со свободными окнами
func HandleBackToDates(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, h *callbacktypes.Handler) {
	hc := common.NewHandlerContext(ctx, b, callback, h)

	slots, err := h.ReservationService.Availability(ctx, h.Options.HorizonDays)
	if err != nil {
		common.HandleError(hc, err, "availability")
		return
	}

	hc.Answer("")
	common.LogEditError(hc, hc.Screen(common.DatesScreen(common.BookingFlow(), slots, h.ReservationService.Location())))
}

// HandleBookDate показывает свободное время выбранного дня
func HandleBookDate(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, h *callbacktypes.Handler) {
	hc := common.NewHandlerContext(ctx, b, callback, h)
	loc := h.ReservationService.Location()

	date, err := common.ParseValue(callback.Data, common.BookDate)
	if err != nil {
		hc.AnswerAlert(common.ErrorMessage(err))
		return
	}
	day, err := common.ParseDate(date, loc)
	if err != nil {
		hc.AnswerAlert(common.ErrorMessage(err))
		return
	}

	// Свежий расчёт: кнопки дат могли устареть
	slots, err := h.ReservationService.Availability(ctx, h.Options.HorizonDays)
	if err != nil {
		common.HandleError(hc, err, "availability")
		return
	}

	hc.Answer("")
	common.LogEditError(hc, hc.Screen(common.TimesScreen(common.BookingFlow(), day, slots[date], loc)))
}

// HandleBookTime бронирует урок на выбранное время
func HandleBookTime(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, h *callbacktypes.Handler) {
	common.WithUser(ctx, b, callback, h, func(hc *common.HandlerContext) {
		loc := h.ReservationService.Location()

		raw, err := common.ParseValue(callback.Data, common.BookTime)
		if err != nil {
			hc.AnswerAlert(common.ErrorMessage(err))
			return
		}
		start, err := common.DecodeSlotTime(raw, loc)
		if err != nil {
			hc.AnswerAlert(common.ErrorMessage(err))
			return
		}

		hc.Answer("⏳ Бронируем...")

		reservation, err := h.ReservationService.BookRequest(ctx, "", hc.User.AsRequester(), start)
		if err != nil {
			h.Logger.Warn("Booking failed",
				zap.Int64("user_id", hc.User.ID),
				zap.Time("start", start),
				zap.Error(err))
			showFailure(hc, err, common.BookingFlow(), func() (map[string][]model.Slot, error) {
				return h.ReservationService.Availability(ctx, h.Options.HorizonDays)
			})
			return
		}

		h.Logger.Info("Lesson booked",
			zap.Int64("user_id", hc.User.ID),
			zap.Int64("reservation_id", reservation.ID),
			zap.String("resource_id", reservation.ResourceID))

		resource := resourceByID(h, reservation.ResourceID)
		common.LogEditError(hc, hc.Screen(common.BookedScreen(reservation, resource, loc)))
	})
}

// showFailure выводит причину. Если время заняли, сразу показывает свежие даты.
func showFailure(hc *common.HandlerContext, err error, flow common.SlotFlow, refresh func() (map[string][]model.Slot, error)) {
	h := hc.Handler
	text := service.UserMessage(err)

	if errors.Is(err, service.ErrSlotTaken) || errors.Is(err, service.ErrNoFreeResource) || errors.Is(err, service.ErrSlotInPast) {
		slots, availErr := refresh()
		if availErr == nil {
			screen := common.DatesScreen(flow, slots, h.ReservationService.Location())
			screen.Text = text + "\n\n" + screen.Text
			common.LogEditError(hc, hc.Screen(screen))
			return
		}
		h.Logger.Warn("Failed to refresh availability", zap.Error(availErr))
	}

	common.LogEditError(hc, hc.EditMessage(text, nil))
}

func resourceByID(h *callbacktypes.Handler, id string) model.Resource {
	if r, ok := h.ReservationService.Resource(id); ok {
		return r
	}
	return model.Resource{ID: id, Name: id}
}
