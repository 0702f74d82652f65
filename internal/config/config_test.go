package config

import (
	"os"
	"testing"
	"time"

	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir mirrors testing.T.Chdir (Go 1.24+): change the working directory
// for the duration of the test and restore it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("TEACHERS", "11:Анна, 12:Олег")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.EnvFileLoaded)
	assert.Equal(t, []model.Resource{{ID: "11", Name: "Анна"}, {ID: "12", Name: "Олег"}}, cfg.Teachers)
	assert.Equal(t, 10, cfg.WorkingHours.StartHour)
	assert.Equal(t, 19, cfg.WorkingHours.EndHour)
	assert.Equal(t, []time.Weekday{time.Saturday, time.Sunday}, cfg.WorkingHours.DaysOff)
	assert.Equal(t, time.Hour, cfg.LessonDuration)
	assert.Equal(t, 7, cfg.HorizonDays)
	assert.Equal(t, 3, cfg.RetryPolicy().MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.RetryPolicy().Timeout)
	assert.Equal(t, ":8080", cfg.APIAddr)
	assert.Equal(t, 15, cfg.CRMReminderMinutes)
	assert.Equal(t, 30*time.Minute, cfg.DialogTTL)
}

func TestLoad_Overrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("WORK_START_HOUR", "9")
	t.Setenv("WORK_END_HOUR", "18")
	t.Setenv("WORK_DAYS_OFF", "sunday")
	t.Setenv("LESSON_DURATION", "45m")
	t.Setenv("ADMIN_IDS", "100, 200")
	t.Setenv("API_STATIC_TOKENS", "a,b")
	t.Setenv("REMOTE_MAX_ATTEMPTS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.WorkingHours.StartHour)
	assert.Equal(t, []time.Weekday{time.Sunday}, cfg.WorkingHours.DaysOff)
	assert.Equal(t, 45*time.Minute, cfg.LessonDuration)
	assert.Equal(t, []int64{100, 200}, cfg.AdminIDs)
	assert.Equal(t, []string{"a", "b"}, cfg.APIStaticTokens)
	assert.Equal(t, 5, cfg.RemoteMaxAttempts)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"WORK_END_HOUR":        "5",
		"LESSON_DURATION":      "soon",
		"ADMIN_IDS":            "admin",
		"WORK_DAYS_OFF":        "someday",
		"TEACHERS":             "11",
		"TIMEZONE":             "Mars/Olympus",
		"CRM_REMINDER_MINUTES": "-5",
		"DIALOG_TTL":           "0s",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			chdir(t, t.TempDir())
			t.Setenv("TIMEZONE", "UTC")
			t.Setenv(key, value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestRequire(t *testing.T) {
	cfg := &Config{DBDSN: "postgres://"}

	assert.NoError(t, cfg.Require("DB_DSN"))
	err := cfg.Require("DB_DSN", "TELEGRAM_TOKEN", "BITRIX24_WEBHOOK_URL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_TOKEN, BITRIX24_WEBHOOK_URL")
}

func TestParseTeachers_Duplicate(t *testing.T) {
	_, err := ParseTeachers("11:Анна,11:Олег")
	assert.Error(t, err)
}
