package crm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound сущность в CRM отсутствует (уже удалена или не создавалась)
var ErrNotFound = errors.New("crm: entity not found")

// APIError ошибка, которую вернул REST API портала
type APIError struct {
	Method      string
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("crm %s: %s: %s (status=%d)", e.Method, e.Code, e.Description, e.StatusCode)
	}
	return fmt.Sprintf("crm %s: %s (status=%d)", e.Method, e.Code, e.StatusCode)
}

// Is позволяет сравнивать "не найдено" через errors.Is
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.notFound()
}

func (e *APIError) notFound() bool {
	code := strings.ToUpper(e.Code)
	if code == "NOT_FOUND" || code == "ERROR_NOT_FOUND" || code == "ERROR_EVENT_NOT_FOUND" || code == "ERROR_TASK_NOT_FOUND" {
		return true
	}
	desc := strings.ToLower(e.Description)
	return strings.Contains(desc, "not found") || strings.Contains(desc, "не найден")
}

// ID идентификатор сущности портала. Приходит то строкой, то числом.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("crm id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Int возвращает ID числом, как его ждут методы портала
func (id ID) Int() (int64, error) {
	return strconv.ParseInt(string(id), 10, 64)
}

// Event событие календаря в сыром виде. Даты разбирает пакет timeparse.
type Event struct {
	ID            ID     `json:"ID"`
	Name          string `json:"NAME"`
	OwnerID       ID     `json:"OWNER_ID"`
	DateFrom      string `json:"DATE_FROM"`
	DateTo        string `json:"DATE_TO"`
	Accessibility string `json:"ACCESSIBILITY"`
}

// WorkItem поля задачи
type WorkItem struct {
	Title         string
	Description   string
	ResponsibleID string
	Deadline      time.Time
}

// CalendarBlock поля события, которое блокирует время преподавателя
type CalendarBlock struct {
	OwnerID         string
	Name            string
	Description     string
	From            time.Time
	To              time.Time
	ReminderMinutes int
}

// --- запросы и ответы REST API ---

type listEventsRequest struct {
	Type    string `json:"type"`
	OwnerID string `json:"ownerId"`
	From    string `json:"from"`
	To      string `json:"to"`
}

type taskFields struct {
	Title         string `json:"TITLE,omitempty"`
	Description   string `json:"DESCRIPTION,omitempty"`
	ResponsibleID string `json:"RESPONSIBLE_ID,omitempty"`
	Deadline      string `json:"DEADLINE,omitempty"`
	GroupID       int64  `json:"GROUP_ID,omitempty"`
}

type addTaskRequest struct {
	Fields taskFields `json:"fields"`
}

type updateTaskRequest struct {
	TaskID string     `json:"taskId"`
	Fields taskFields `json:"fields"`
}

type deleteTaskRequest struct {
	TaskID string `json:"taskId"`
}

type taskResult struct {
	Task json.RawMessage `json:"task"`
}

type taskItem struct {
	ID ID `json:"id"`
}

type remind struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type eventRequest struct {
	ID            string   `json:"id,omitempty"`
	Type          string   `json:"type"`
	OwnerID       string   `json:"ownerId"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	From          string   `json:"from"`
	To            string   `json:"to"`
	SkipTime      string   `json:"skip_time"`
	Section       int64    `json:"section,omitempty"`
	Accessibility string   `json:"accessibility"`
	Remind        []remind `json:"remind,omitempty"`
}

type deleteEventRequest struct {
	ID string `json:"id"`
}

// Формат дат, который портал принимает во всех методах
const wireLayout = time.RFC3339

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(wireLayout)
}
