package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/trial_lesson_bot/internal/crm"
	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
)

// Тексты задач и событий в CRM (BBCode портала)

const lessonTimeLayout = "02.01.2006 15:04"

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func studentName(req model.Requester) string {
	if req.Profile.ChildName != "" {
		return req.Profile.ChildName
	}
	return orDefault(req.FullName, "Клиент")
}

func workItemFor(req model.Requester, res model.Resource, start, end time.Time, note string) crm.WorkItem {
	var b strings.Builder
	b.WriteString("Новая заявка на пробный урок из Telegram-бота.\n\n")
	fmt.Fprintf(&b, "[B]Ученик:[/B] %s\n", orDefault(req.Profile.ChildName, "не указано"))
	fmt.Fprintf(&b, "[B]Возраст:[/B] %s\n", orDefault(req.Profile.ChildAge, "не указано"))
	fmt.Fprintf(&b, "[B]Увлечения:[/B] %s\n\n", orDefault(req.Profile.ChildInterests, "не указано"))
	fmt.Fprintf(&b, "[B]Родитель:[/B] %s\n", orDefault(req.Profile.ParentName, orDefault(req.FullName, "не указано")))
	fmt.Fprintf(&b, "[B]Контакт родителя:[/B] %s\n", orDefault(req.Profile.ParentContact, "не указано"))
	fmt.Fprintf(&b, "[B]Telegram:[/B] @%s\n\n", orDefault(req.Username, "нет"))
	b.WriteString("-------------------------------------\n")
	fmt.Fprintf(&b, "Назначенный преподаватель: [USER=%s]%s[/USER]\n", res.ID, res.Name)
	fmt.Fprintf(&b, "Забронированное время: [B]%s – %s[/B]", start.Format(lessonTimeLayout), end.Format("15:04"))
	if note != "" {
		fmt.Fprintf(&b, "\n\n%s", note)
	}

	return crm.WorkItem{
		Title:         fmt.Sprintf("Пробный урок: %s (%s)", studentName(req), res.Name),
		Description:   b.String(),
		ResponsibleID: res.ID,
		Deadline:      start,
	}
}

func calendarBlockFor(req model.Requester, res model.Resource, start, end time.Time, workItemID, note string, remindMinutes int) crm.CalendarBlock {
	desc := fmt.Sprintf("Пробный урок. Ученик: %s.\nПодробности в связанной задаче (ID: %s)", studentName(req), workItemID)
	if note != "" {
		desc += "\n\n" + note
	}

	return crm.CalendarBlock{
		OwnerID:         res.ID,
		Name:            "Пробный урок: " + studentName(req),
		Description:     desc,
		From:            start,
		To:              end,
		ReminderMinutes: remindMinutes,
	}
}

func rescheduledNote(previous time.Time) string {
	return "Перенесено. Прежнее время: " + previous.Format(lessonTimeLayout)
}

func rollbackNote(attempted time.Time) string {
	return "[B]Автоматический откат:[/B] перенос на " + attempted.Format(lessonTimeLayout) + " не завершён"
}
