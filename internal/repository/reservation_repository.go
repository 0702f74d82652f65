package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"github.com/Freeeeeet/trial_lesson_bot/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReservationRepository единственный путь записи броней.
// Брони не удаляются, меняется только статус.
type ReservationRepository struct {
	*base.Repository
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{Repository: base.NewRepository(pool)}
}

const reservationColumns = `id, requester_id, resource_id, start_time, end_time,
	work_item_id, calendar_block_id, status, reminded_at, created_at, updated_at`

func scanReservation(row base.Scanner) (*model.Reservation, error) {
	var r model.Reservation
	err := row.Scan(
		&r.ID,
		&r.RequesterID,
		&r.ResourceID,
		&r.StartTime,
		&r.EndTime,
		&r.WorkItemID,
		&r.CalendarBlockID,
		&r.Status,
		&r.RemindedAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Create сохраняет новую бронь
func (r *ReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	query := `
		INSERT INTO reservations (requester_id, resource_id, start_time, end_time, work_item_id, calendar_block_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		reservation.RequesterID,
		reservation.ResourceID,
		reservation.StartTime,
		reservation.EndTime,
		reservation.WorkItemID,
		reservation.CalendarBlockID,
		reservation.Status,
	).Scan(&reservation.ID, &reservation.CreatedAt, &reservation.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}

	return nil
}

// GetByID получает бронь по ID
func (r *ReservationRepository) GetByID(ctx context.Context, id int64) (*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	reservation, err := scanReservation(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reservation by id: %w", err)
	}

	return reservation, nil
}

// ListActiveByRequester запланированные уроки пользователя, ближайшие первыми
func (r *ReservationRepository) ListActiveByRequester(ctx context.Context, requesterID int64) ([]*model.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE requester_id = $1 AND status = 'planned'
		ORDER BY start_time
	`
	return r.list(ctx, "list reservations by requester", query, requesterID)
}

// ListDueReminders запланированные уроки, начинающиеся в (from, to], без напоминания
func (r *ReservationRepository) ListDueReminders(ctx context.Context, from, to time.Time) ([]*model.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = 'planned'
		  AND reminded_at IS NULL
		  AND start_time > $1
		  AND start_time <= $2
		ORDER BY start_time
	`
	return r.list(ctx, "list due reminders", query, from, to)
}

func (r *ReservationRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.Reservation, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var reservations []*model.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return reservations, nil
}

// UpdateSchedule переносит урок. Меняется только planned-бронь, напоминание сбрасывается.
func (r *ReservationRepository) UpdateSchedule(ctx context.Context, id int64, start, end time.Time) error {
	query := `
		UPDATE reservations
		SET start_time = $1, end_time = $2, reminded_at = NULL, updated_at = now()
		WHERE id = $3 AND status = 'planned'
	`

	affected, err := r.ExecAffected(ctx, query, start, end, id)
	if err != nil {
		return fmt.Errorf("update reservation schedule: %w", err)
	}
	if affected == 0 {
		return model.ErrReservationNotPlanned
	}

	return nil
}

// UpdateStatus переводит бронь из planned в новый статус
func (r *ReservationRepository) UpdateStatus(ctx context.Context, id int64, status model.ReservationStatus) error {
	if !model.ReservationStatusPlanned.CanTransitionTo(status) {
		return fmt.Errorf("invalid reservation status %q", status)
	}

	query := `
		UPDATE reservations
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = 'planned'
	`

	affected, err := r.ExecAffected(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	if affected == 0 {
		return model.ErrReservationNotPlanned
	}

	return nil
}

// MarkReminded отмечает отправленное напоминание
func (r *ReservationRepository) MarkReminded(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE reservations SET reminded_at = $1 WHERE id = $2`

	affected, err := r.ExecAffected(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("mark reservation reminded: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("reservation not found")
	}

	return nil
}
