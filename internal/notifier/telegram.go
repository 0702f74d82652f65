package notifier

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"github.com/Freeeeeet/trial_lesson_bot/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Sender часть *bot.Bot, нужная для отправки сообщений
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Telegram рассылает эскалации администраторам и напоминания ученикам
type Telegram struct {
	sender   Sender
	adminIDs []int64
	loc      *time.Location
	logger   *zap.Logger
}

var (
	_ service.Escalator = (*Telegram)(nil)
	_ service.Reminder  = (*Telegram)(nil)
)

func NewTelegram(sender Sender, adminIDs []int64, loc *time.Location, logger *zap.Logger) *Telegram {
	if loc == nil {
		loc = time.UTC
	}
	return &Telegram{
		sender:   sender,
		adminIDs: adminIDs,
		loc:      loc,
		logger:   logger,
	}
}

// Escalate отправляет сообщение каждому администратору.
// Ошибка возвращается, только если не доставлено ни одному.
func (t *Telegram) Escalate(ctx context.Context, e service.Escalation) error {
	if len(t.adminIDs) == 0 {
		t.logger.Warn("No admins configured, escalation dropped",
			zap.String("op_id", e.OpID),
			zap.String("operation", e.Operation),
		)
		return errors.New("no admins configured")
	}

	text := FormatEscalation(e, t.loc)
	delivered := 0
	var errs []error
	for _, adminID := range t.adminIDs {
		_, err := t.sender.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    adminID,
			Text:      text,
			ParseMode: models.ParseModeHTML,
		})
		if err != nil {
			t.logger.Error("Failed to notify admin",
				zap.Int64("admin_id", adminID),
				zap.String("op_id", e.OpID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("admin %d: %w", adminID, err))
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Remind отправляет ученику напоминание о скором уроке
func (t *Telegram) Remind(ctx context.Context, chatID int64, r *model.Reservation, resource model.Resource) error {
	_, err := t.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      FormatReminder(r, resource, t.loc),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	return nil
}

// FormatEscalation текст для администратора
func FormatEscalation(e service.Escalation, loc *time.Location) string {
	var sb strings.Builder

	if e.Severity == service.SeverityCritical {
		sb.WriteString("🚨 <b>Требуется ручная сверка с CRM</b>\n\n")
	} else {
		sb.WriteString("⚠️ <b>Операция не выполнена</b>\n\n")
	}

	fmt.Fprintf(&sb, "<b>Операция:</b> %s\n", html.EscapeString(e.Operation))
	fmt.Fprintf(&sb, "<b>ID операции:</b> <code>%s</code>\n", html.EscapeString(e.OpID))
	if e.ReservationID != 0 {
		fmt.Fprintf(&sb, "<b>Бронь:</b> #%d\n", e.ReservationID)
	}
	if e.RequesterID != 0 {
		fmt.Fprintf(&sb, "<b>Пользователь:</b> %d\n", e.RequesterID)
	}
	if e.ResourceID != "" {
		fmt.Fprintf(&sb, "<b>Преподаватель:</b> %s\n", html.EscapeString(e.ResourceID))
	}
	if !e.Start.IsZero() {
		fmt.Fprintf(&sb, "<b>Время:</b> %s\n", formatRange(e.Start, e.End, loc))
	}
	if !e.OriginalStart.IsZero() {
		fmt.Fprintf(&sb, "<b>Прежнее время:</b> %s\n", e.OriginalStart.In(loc).Format("02.01.2006 15:04"))
	}
	if e.WorkItemID != "" {
		fmt.Fprintf(&sb, "<b>Задача:</b> %s\n", html.EscapeString(e.WorkItemID))
	}
	if e.CalendarBlockID != "" {
		fmt.Fprintf(&sb, "<b>Событие:</b> %s\n", html.EscapeString(e.CalendarBlockID))
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, "\n<b>Ошибка:</b>\n<pre>%s</pre>", html.EscapeString(e.Err.Error()))
	}

	return sb.String()
}

// FormatReminder текст напоминания для ученика
func FormatReminder(r *model.Reservation, resource model.Resource, loc *time.Location) string {
	return fmt.Sprintf(
		"⏰ <b>Напоминание</b>\n\nСкоро пробный урок: %s\nПреподаватель: %s\n\nЕсли планы изменились, перенесите или отмените запись через /mybookings.",
		formatRange(r.StartTime, r.EndTime, loc),
		html.EscapeString(resource.Name),
	)
}

func formatRange(start, end time.Time, loc *time.Location) string {
	s := start.In(loc)
	if end.IsZero() {
		return s.Format("02.01.2006 15:04")
	}
	return s.Format("02.01.2006 15:04") + "-" + end.In(loc).Format("15:04")
}
