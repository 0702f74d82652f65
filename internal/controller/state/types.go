package state

import (
	"time"

	"github.com/Freeeeeet/trial_lesson_bot/internal/controller/callbacks/callbacktypes"
)

// UserState текущий шаг диалога пользователя
type UserState = callbacktypes.UserState

const (
	StateNone UserState = "" // Нет активного состояния

	// Анкета перед первой записью
	StateProfileChildName UserState = "profile_child_name"
	StateProfileChildAge  UserState = "profile_child_age"
	StateProfileInterests UserState = "profile_interests"
	StateProfileContact   UserState = "profile_contact"
)

// Ключи данных диалога
const (
	DataChildName = "child_name"
	DataChildAge  = "child_age"
	DataInterests = "interests"
	DataAfterBook = "after_profile_book" // Показать даты после заполнения анкеты
)

// UserData хранит временные данные пользователя во время диалога
type UserData struct {
	State     UserState
	Data      map[string]interface{}
	UpdatedAt time.Time
}
