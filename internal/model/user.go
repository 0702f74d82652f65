package model

import (
	"strings"
	"time"
)

// Profile анкета, собранная онбордингом
type Profile struct {
	ChildName      string `json:"child_name,omitempty"`
	ChildAge       string `json:"child_age,omitempty"`
	ChildInterests string `json:"child_interests,omitempty"`
	ParentName     string `json:"parent_name,omitempty"`
	ParentContact  string `json:"parent_contact,omitempty"`
}

// Complete анкета достаточна для записи: есть имя ребёнка и контакт
func (p Profile) Complete() bool {
	return strings.TrimSpace(p.ChildName) != "" && strings.TrimSpace(p.ParentContact) != ""
}

type User struct {
	ID           int64     `json:"id"`
	TelegramID   int64     `json:"telegram_id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	LanguageCode string    `json:"language_code"`
	Profile      Profile   `json:"profile"`
	CreatedAt    time.Time `json:"created_at"`
}

// Requester данные того, кто записывается на урок
type Requester struct {
	UserID     int64
	TelegramID int64
	Username   string
	FullName   string
	Profile    Profile
}

// AsRequester собирает данные заявителя из пользователя
func (u *User) AsRequester() Requester {
	return Requester{
		UserID:     u.ID,
		TelegramID: u.TelegramID,
		Username:   u.Username,
		FullName:   strings.TrimSpace(u.FirstName + " " + u.LastName),
		Profile:    u.Profile,
	}
}
