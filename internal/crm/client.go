// Package crm клиент REST API портала (входящий вебхук Битрикс24).
// Только этот пакет работает с "сырыми" JSON-ответами.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	WebhookURL string
	GroupID    int64
	SectionID  int64
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client обращается к порталу. Каждый вызов самостоятельный, без состояния между вызовами.
type Client struct {
	base      string
	hc        *http.Client
	groupID   int64
	sectionID int64
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.WebhookURL), "/")
	if base == "" {
		return nil, errors.New("crm webhook url is empty")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		base:      base,
		hc:        hc,
		groupID:   cfg.GroupID,
		sectionID: cfg.SectionID,
	}, nil
}

// Ping проверяет доступность вебхука
func (c *Client) Ping(ctx context.Context) error {
	var info json.RawMessage
	if err := c.call(ctx, "app.info", struct{}{}, &info); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// ListEvents возвращает события календаря пользователя, пересекающие [from, to)
func (c *Client) ListEvents(ctx context.Context, ownerID string, from, to time.Time) ([]Event, error) {
	req := listEventsRequest{
		Type:    "user",
		OwnerID: ownerID,
		From:    formatTime(from),
		To:      formatTime(to),
	}

	var events []Event
	if err := c.call(ctx, "calendar.event.get", req, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CreateWorkItem создаёт задачу и возвращает её ID
func (c *Client) CreateWorkItem(ctx context.Context, item WorkItem) (string, error) {
	req := addTaskRequest{Fields: c.taskFields(item)}

	var res taskResult
	if err := c.call(ctx, "tasks.task.add", req, &res); err != nil {
		return "", err
	}

	var task taskItem
	if err := json.Unmarshal(res.Task, &task); err != nil || task.ID == "" {
		return "", &APIError{Method: "tasks.task.add", Code: "EMPTY_RESULT", Description: "task id missing in response"}
	}
	return task.ID.String(), nil
}

// UpdateWorkItem обновляет срок и описание задачи
func (c *Client) UpdateWorkItem(ctx context.Context, id string, item WorkItem) error {
	req := updateTaskRequest{TaskID: id, Fields: c.taskFields(item)}

	var res taskResult
	return c.call(ctx, "tasks.task.update", req, &res)
}

// DeleteWorkItem удаляет задачу. Отсутствующая задача даёт ErrNotFound.
func (c *Client) DeleteWorkItem(ctx context.Context, id string) error {
	var res taskResult
	if err := c.call(ctx, "tasks.task.delete", deleteTaskRequest{TaskID: id}, &res); err != nil {
		return err
	}
	if string(res.Task) == "false" {
		return ErrNotFound
	}
	return nil
}

// CreateCalendarBlock создаёт занятое событие в календаре преподавателя
func (c *Client) CreateCalendarBlock(ctx context.Context, block CalendarBlock) (string, error) {
	req := c.eventRequest("", block)

	var id ID
	if err := c.call(ctx, "calendar.event.add", req, &id); err != nil {
		return "", err
	}
	if id == "" {
		return "", &APIError{Method: "calendar.event.add", Code: "EMPTY_RESULT", Description: "event id missing in response"}
	}
	return id.String(), nil
}

// UpdateCalendarBlock переносит событие и обновляет описание
func (c *Client) UpdateCalendarBlock(ctx context.Context, id string, block CalendarBlock) error {
	var res ID
	return c.call(ctx, "calendar.event.update", c.eventRequest(id, block), &res)
}

// DeleteCalendarBlock удаляет событие. Отсутствующее событие даёт ErrNotFound.
func (c *Client) DeleteCalendarBlock(ctx context.Context, id string) error {
	var ok bool
	if err := c.call(ctx, "calendar.event.delete", deleteEventRequest{ID: id}, &ok); err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (c *Client) taskFields(item WorkItem) taskFields {
	return taskFields{
		Title:         item.Title,
		Description:   item.Description,
		ResponsibleID: item.ResponsibleID,
		Deadline:      formatTime(item.Deadline),
		GroupID:       c.groupID,
	}
}

func (c *Client) eventRequest(id string, block CalendarBlock) eventRequest {
	req := eventRequest{
		ID:            id,
		Type:          "user",
		OwnerID:       block.OwnerID,
		Name:          block.Name,
		Description:   block.Description,
		From:          formatTime(block.From),
		To:            formatTime(block.To),
		SkipTime:      "N",
		Section:       c.sectionID,
		Accessibility: "busy",
	}
	if block.ReminderMinutes > 0 {
		req.Remind = []remind{{Type: "min", Count: block.ReminderMinutes}}
	}
	return req
}

type envelope struct {
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("crm %s: encode params: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("crm %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("crm %s: %w", method, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("crm %s: read body: %w", method, err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && res.StatusCode < 400 {
			return fmt.Errorf("crm %s: decode response: %w", method, err)
		}
	}

	if env.Error != "" {
		return &APIError{Method: method, StatusCode: res.StatusCode, Code: env.Error, Description: env.ErrorDescription}
	}
	if res.StatusCode == http.StatusNotFound {
		return &APIError{Method: method, StatusCode: res.StatusCode, Code: "NOT_FOUND"}
	}
	if res.StatusCode >= 400 {
		return &APIError{Method: method, StatusCode: res.StatusCode, Code: http.StatusText(res.StatusCode)}
	}

	if result == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, result); err != nil {
		return fmt.Errorf("crm %s: decode result: %w", method, err)
	}
	return nil
}
