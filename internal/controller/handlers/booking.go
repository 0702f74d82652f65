package handlers

import (
	"bytes"
	"context"

	"github.com/Freeeeeet/trial_lesson_bot/internal/controller/callbacks/common"
	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"github.com/Freeeeeet/trial_lesson_bot/internal/render"
	"github.com/Freeeeeet/trial_lesson_bot/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// HandleBook обрабатывает команду /book
func (h *Handlers) HandleBook(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}

	if !user.Profile.Complete() {
		h.startProfile(ctx, b, update.Message.Chat.ID, update.Message.From.ID, true)
		return
	}

	h.showBooking(ctx, b, update.Message.Chat.ID)
}

// showBooking отправляет картинку свободного времени и клавиатуру с днями
func (h *Handlers) showBooking(ctx context.Context, b *bot.Bot, chatID int64) {
	slots, err := h.reservations.Availability(ctx, h.opts.HorizonDays)
	if err != nil {
		h.logger.Error("Failed to compute availability", zap.Error(err))
		h.sendError(ctx, b, chatID, service.UserMessage(err))
		return
	}

	h.sendAvailabilityImage(ctx, b, chatID, slots)
	h.sendScreen(ctx, b, chatID, common.DatesScreen(common.BookingFlow(), slots, h.reservations.Location()))
}

// sendAvailabilityImage картинка не обязательна: при ошибке только лог
func (h *Handlers) sendAvailabilityImage(ctx context.Context, b *bot.Bot, chatID int64, slots map[string][]model.Slot) {
	loc := h.reservations.Location()
	from, _ := h.reservations.AvailabilityHorizon(h.opts.HorizonDays)

	png, err := render.AvailabilityImage(slots, render.Grid{
		From:      from.In(loc),
		Days:      h.opts.HorizonDays + 1,
		StartHour: h.opts.Hours.StartHour,
		EndHour:   h.opts.Hours.EndHour,
		DaysOff:   h.opts.Hours.DaysOff,
		Now:       from,
	})
	if err != nil {
		h.logger.Warn("Failed to render availability image", zap.Error(err))
		return
	}

	_, err = b.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID: chatID,
		Photo: &models.InputFileUpload{
			Filename: "availability.png",
			Data:     bytes.NewReader(png),
		},
		Caption: "🟩 Свободное время на ближайшие дни",
	})
	if err != nil {
		h.logger.Warn("Failed to send availability image", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// HandleMyBookings обрабатывает команду /mybookings
func (h *Handlers) HandleMyBookings(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}

	list, err := h.reservations.ListActive(ctx, user.ID)
	if err != nil {
		h.logger.Error("Failed to list reservations", zap.Int64("user_id", user.ID), zap.Error(err))
		h.sendError(ctx, b, update.Message.Chat.ID, "❌ Не удалось загрузить записи. Попробуйте позже.")
		return
	}

	h.sendScreen(ctx, b, update.Message.Chat.ID, common.ReservationsScreen(list, h.resource, h.reservations.Location()))
}

// HandleReschedule обрабатывает команду /reschedule
func (h *Handlers) HandleReschedule(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, b, update)
	if !ok {
		return
	}

	list, err := h.reservations.ListActive(ctx, user.ID)
	if err != nil {
		h.logger.Error("Failed to list reservations", zap.Int64("user_id", user.ID), zap.Error(err))
		h.sendError(ctx, b, update.Message.Chat.ID, "❌ Не удалось загрузить записи. Попробуйте позже.")
		return
	}

	// Один урок: сразу к выбору нового времени
	if len(list) == 1 {
		r := list[0]
		slots, err := h.reservations.RescheduleOptions(ctx, r, h.opts.HorizonDays)
		if err != nil {
			h.logger.Error("Failed to compute reschedule options", zap.Int64("reservation_id", r.ID), zap.Error(err))
			h.sendError(ctx, b, update.Message.Chat.ID, service.UserMessage(err))
			return
		}
		loc := h.reservations.Location()
		h.sendScreen(ctx, b, update.Message.Chat.ID, common.DatesScreen(common.RescheduleFlow(r, loc), slots, loc))
		return
	}

	h.sendScreen(ctx, b, update.Message.Chat.ID, common.ReservationsScreen(list, h.resource, h.reservations.Location()))
}

func (h *Handlers) resource(id string) model.Resource {
	if r, ok := h.reservations.Resource(id); ok {
		return r
	}
	return model.Resource{ID: id, Name: id}
}
