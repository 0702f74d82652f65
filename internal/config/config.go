package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"github.com/Freeeeeet/trial_lesson_bot/internal/service"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	TelegramToken string
	DBDSN         string
	Environment   string
	LogLevel      string
	EnvFileLoaded bool

	WebhookURL      string
	GroupID         int64
	CalendarSection int64

	Teachers []model.Resource
	AdminIDs []int64

	Location       *time.Location
	WorkingHours   service.WorkingHours
	LessonDuration time.Duration
	HorizonDays    int

	RemoteTimeout     time.Duration
	RemoteMaxAttempts int
	RemoteBackoff     time.Duration

	ReminderInterval   time.Duration
	ReminderLead       time.Duration
	CRMReminderMinutes int // Напоминание в календаре CRM, 0 выключает

	DialogTTL time.Duration

	APIAddr         string
	APIStaticTokens []string
	APIJWTSecret    string

	MigrationsDir string
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	envLoaded := godotenv.Load(".env") == nil

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("BITRIX24_GROUP_ID", 0)
	v.SetDefault("BITRIX24_CALENDAR_SECTION", 0)
	v.SetDefault("TIMEZONE", "Europe/Moscow")
	v.SetDefault("WORK_START_HOUR", 10)
	v.SetDefault("WORK_END_HOUR", 19)
	v.SetDefault("WORK_DAYS_OFF", "sat,sun")
	v.SetDefault("LESSON_DURATION", "60m")
	v.SetDefault("BOOKING_HORIZON_DAYS", 7)
	v.SetDefault("REMOTE_TIMEOUT", "10s")
	v.SetDefault("REMOTE_MAX_ATTEMPTS", 3)
	v.SetDefault("REMOTE_RETRY_BACKOFF", "500ms")
	v.SetDefault("REMINDER_INTERVAL", "5m")
	v.SetDefault("REMINDER_LEAD", "1h")
	v.SetDefault("CRM_REMINDER_MINUTES", 15)
	v.SetDefault("DIALOG_TTL", "30m")
	v.SetDefault("API_ADDR", ":8080")

	for _, key := range []string{
		"TELEGRAM_TOKEN", "DB_DSN", "BITRIX24_WEBHOOK_URL", "TEACHERS", "ADMIN_IDS",
		"API_STATIC_TOKENS", "API_JWT_SECRET", "MIGRATIONS_DIR",
	} {
		_ = v.BindEnv(key)
	}

	cfg := &Config{
		TelegramToken:      strings.TrimSpace(v.GetString("TELEGRAM_TOKEN")),
		DBDSN:              strings.TrimSpace(v.GetString("DB_DSN")),
		Environment:        v.GetString("ENV"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		EnvFileLoaded:      envLoaded,
		WebhookURL:         strings.TrimSpace(v.GetString("BITRIX24_WEBHOOK_URL")),
		GroupID:            v.GetInt64("BITRIX24_GROUP_ID"),
		CalendarSection:    v.GetInt64("BITRIX24_CALENDAR_SECTION"),
		HorizonDays:        v.GetInt("BOOKING_HORIZON_DAYS"),
		RemoteMaxAttempts:  v.GetInt("REMOTE_MAX_ATTEMPTS"),
		CRMReminderMinutes: v.GetInt("CRM_REMINDER_MINUTES"),
		APIAddr:            strings.TrimSpace(v.GetString("API_ADDR")),
		APIStaticTokens:    splitList(v.GetString("API_STATIC_TOKENS")),
		APIJWTSecret:       v.GetString("API_JWT_SECRET"),
		MigrationsDir:      strings.TrimSpace(v.GetString("MIGRATIONS_DIR")),
	}

	var err error
	if cfg.Teachers, err = ParseTeachers(v.GetString("TEACHERS")); err != nil {
		return nil, err
	}
	if cfg.AdminIDs, err = ParseIDs(v.GetString("ADMIN_IDS")); err != nil {
		return nil, fmt.Errorf("ADMIN_IDS: %w", err)
	}
	if cfg.Location, err = time.LoadLocation(v.GetString("TIMEZONE")); err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}

	daysOff, err := ParseWeekdays(v.GetString("WORK_DAYS_OFF"))
	if err != nil {
		return nil, fmt.Errorf("WORK_DAYS_OFF: %w", err)
	}
	cfg.WorkingHours = service.WorkingHours{
		StartHour: v.GetInt("WORK_START_HOUR"),
		EndHour:   v.GetInt("WORK_END_HOUR"),
		DaysOff:   daysOff,
	}
	if err := cfg.WorkingHours.Validate(); err != nil {
		return nil, err
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"LESSON_DURATION", &cfg.LessonDuration},
		{"REMOTE_TIMEOUT", &cfg.RemoteTimeout},
		{"REMOTE_RETRY_BACKOFF", &cfg.RemoteBackoff},
		{"REMINDER_INTERVAL", &cfg.ReminderInterval},
		{"REMINDER_LEAD", &cfg.ReminderLead},
		{"DIALOG_TTL", &cfg.DialogTTL},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(v.GetString(d.key))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("%s must be positive", d.key)
		}
		*d.dst = parsed
	}

	if cfg.HorizonDays < 1 {
		return nil, errors.New("BOOKING_HORIZON_DAYS must be at least 1")
	}
	if cfg.RemoteMaxAttempts < 1 {
		return nil, errors.New("REMOTE_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.CRMReminderMinutes < 0 {
		return nil, errors.New("CRM_REMINDER_MINUTES must not be negative")
	}

	return cfg, nil
}

// Require проверяет обязательные для конкретной команды переменные
func (c *Config) Require(keys ...string) error {
	values := map[string]string{
		"TELEGRAM_TOKEN":       c.TelegramToken,
		"DB_DSN":               c.DBDSN,
		"BITRIX24_WEBHOOK_URL": c.WebhookURL,
	}

	var missing []string
	for _, key := range keys {
		if values[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s is required but not set", strings.Join(missing, ", "))
	}
	return nil
}

// RetryPolicy ограничения обращений к CRM
func (c *Config) RetryPolicy() service.RetryPolicy {
	return service.RetryPolicy{
		MaxAttempts: c.RemoteMaxAttempts,
		Timeout:     c.RemoteTimeout,
		Backoff:     c.RemoteBackoff,
	}
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

// ParseTeachers разбирает список "id:Имя,id:Имя". Порядок сохраняется.
func ParseTeachers(raw string) ([]model.Resource, error) {
	var teachers []model.Resource
	seen := make(map[string]bool)

	for _, item := range splitList(raw) {
		id, name, ok := strings.Cut(item, ":")
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if !ok || id == "" || name == "" {
			return nil, fmt.Errorf("TEACHERS: invalid entry %q, want id:Name", item)
		}
		if seen[id] {
			return nil, fmt.Errorf("TEACHERS: duplicate id %q", id)
		}
		seen[id] = true
		teachers = append(teachers, model.Resource{ID: id, Name: name})
	}

	return teachers, nil
}

// ParseIDs разбирает список chat id через запятую
func ParseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, item := range splitList(raw) {
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", item)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekdays разбирает "sat,sun"
func ParseWeekdays(raw string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, item := range splitList(raw) {
		d, ok := weekdays[strings.ToLower(item)]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", item)
		}
		days = append(days, d)
	}
	return days, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
