package model

import (
	"errors"
	"time"
)

// ErrReservationNotPlanned бронь уже не в статусе planned (отменена или проведена)
var ErrReservationNotPlanned = errors.New("reservation is not planned")

type ReservationStatus string

const (
	ReservationStatusPlanned   ReservationStatus = "planned"   // Урок запланирован
	ReservationStatusCompleted ReservationStatus = "completed" // Проведён (проставляется снаружи)
	ReservationStatusCancelled ReservationStatus = "cancelled" // Отменён
)

// CanTransitionTo проверяет допустимость перехода статуса.
// Planned -> Planned означает перенос (меняется только время).
func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	if s != ReservationStatusPlanned {
		return false
	}
	switch next {
	case ReservationStatusPlanned, ReservationStatusCancelled, ReservationStatusCompleted:
		return true
	}
	return false
}

// Reservation пробный урок, забронированный в CRM
type Reservation struct {
	ID              int64             `json:"id"`
	RequesterID     int64             `json:"requester_id"`
	ResourceID      string            `json:"resource_id"`
	StartTime       time.Time         `json:"start_time"`
	EndTime         time.Time         `json:"end_time"`
	WorkItemID      string            `json:"work_item_id"`      // ID задачи в CRM
	CalendarBlockID string            `json:"calendar_block_id"` // ID события календаря в CRM
	Status          ReservationStatus `json:"status"`
	RemindedAt      *time.Time        `json:"reminded_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Duration возвращает длительность урока
func (r *Reservation) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
