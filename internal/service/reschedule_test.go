package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReschedule_Success(t *testing.T) {
	h := newHarness(t, teacherAnna)
	r := h.book(t, teacherAnna.ID, at(20, 14))

	updated, err := h.svc.Reschedule(context.Background(), r, at(21, 11), time.Hour)
	require.NoError(t, err)

	assert.True(t, updated.StartTime.Equal(at(21, 11)))
	assert.True(t, updated.EndTime.Equal(at(21, 12)))

	block, _ := h.crm.block(r.CalendarBlockID)
	assert.True(t, block.From.Equal(at(21, 11)))
	assert.Contains(t, block.Description, "Прежнее время: 20.10.2026 14:00")

	item, _ := h.crm.item(r.WorkItemID)
	assert.True(t, item.Deadline.Equal(at(21, 11)))

	stored := h.store.get(r.ID)
	assert.True(t, stored.StartTime.Equal(at(21, 11)))
	assert.Equal(t, model.ReservationStatusPlanned, stored.Status)
	assert.Empty(t, h.esc.all())
}

func TestReschedule_IgnoresOwnCalendarBlock(t *testing.T) {
	h := newHarness(t, teacherAnna)
	r := h.book(t, teacherAnna.ID, at(20, 14))

	// Новое время пересекается только с собственным событием брони
	updated, err := h.svc.Reschedule(context.Background(), r, at(20, 14).Add(30*time.Minute), time.Hour)
	require.NoError(t, err)
	assert.True(t, updated.EndTime.Equal(at(20, 15).Add(30*time.Minute)))
}

func TestReschedule_TargetTaken(t *testing.T) {
	h := newHarness(t, teacherAnna)
	r := h.book(t, teacherAnna.ID, at(20, 14))
	h.crm.addBusy(teacherAnna.ID, "21.10.2026 11:00:00", "21.10.2026 12:00:00")

	_, err := h.svc.Reschedule(context.Background(), r, at(21, 11), time.Hour)
	require.ErrorIs(t, err, ErrSlotTaken)

	assert.Zero(t, h.crm.count("UpdateCalendarBlock"))
	assert.Empty(t, h.esc.all())
}

func TestReschedule_CalendarFailureLeavesEverythingUntouched(t *testing.T) {
	h := newHarness(t, teacherAnna)
	r := h.book(t, teacherAnna.ID, at(20, 14))
	h.crm.updateBlockErrs = []error{errTimeout, errTimeout, errTimeout}

	_, err := h.svc.Reschedule(context.Background(), r, at(21, 11), time.Hour)

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "update calendar block", remoteErr.Op)

	assert.Zero(t, h.crm.count("UpdateWorkItem"))
	block, _ := h.crm.block(r.CalendarBlockID)
	assert.True(t, block.From.Equal(at(20, 14)))
	assert.True(t, h.store.get(r.ID).StartTime.Equal(at(20, 14)))

	esc := h.esc.all()
	require.Len(t, esc, 1)
	assert.Equal(t, SeverityWarning, esc[0].Severity)
}

func TestReschedule_WorkItemTimeoutsRollBackCalendar(t *testing.T) {
	h := newHarness(t, teacherAnna)
	r := h.book(t, teacherAnna.ID, at(20, 14))
	h.crm.updateItemErrs = []error{errTimeout, errTimeout, errTimeout}

	_, err := h.svc.Reschedule(context.Background(), r, at(21, 11), time.Hour)

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "update work item", remoteErr.Op)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 3, h.crm.count("UpdateWorkItem"))

	// Событие вернулось на исходное время
	block, _ := h.crm.block(r.CalendarBlockID)
	assert.True(t, block.From.Equal(at(20, 14)))
	assert.True(t, block.To.Equal(at(20, 15)))
	assert.Contains(t, block.Description, "Автоматический откат")

	item, _ := h.crm.item(r.WorkItemID)
	assert.True(t, item.Deadline.Equal(at(20, 14)))
	assert.True(t, h.store.get(r.ID).StartTime.Equal(at(20, 14)))

	esc := h.esc.all()
	require.Len(t, esc, 1)
	assert.Equal(t, SeverityWarning, esc[0].Severity)
	assert.Equal(t, "reschedule", esc[0].Operation)
	assert.True(t, esc[0].OriginalStart.Equal(at(20, 14)))
	assert.Equal(t, r.ID, esc[0].ReservationID)
}

func TestReschedule_FailedRollbackEscalatesCritical(t *testing.T) {
	h := newHarness(t, teacherAnna)
	r := h.book(t, teacherAnna.ID, at(20, 14))
	rollbackErr := errors.New("calendar unavailable")
	h.crm.updateItemErrs = []error{errTimeout, errTimeout, errTimeout}
	// Первый вызов это перенос, следующие три это откат
	h.crm.updateBlockErrs = []error{nil, rollbackErr, rollbackErr, rollbackErr}

	_, err := h.svc.Reschedule(context.Background(), r, at(21, 11), time.Hour)

	var inconsistent *InconsistentStateError
	require.ErrorAs(t, err, &inconsistent)
	assert.ErrorIs(t, inconsistent.CompensationErr, rollbackErr)
	assert.Equal(t, r.ID, inconsistent.ReservationID)
	assert.Equal(t, 4, h.crm.count("UpdateCalendarBlock"))

	// Календарь остался на новом времени, бронь в базе на старом
	block, _ := h.crm.block(r.CalendarBlockID)
	assert.True(t, block.From.Equal(at(21, 11)))
	assert.True(t, h.store.get(r.ID).StartTime.Equal(at(20, 14)))

	esc := h.esc.all()
	require.Len(t, esc, 1)
	assert.Equal(t, SeverityCritical, esc[0].Severity)
}

func TestReschedule_StoreFailureRestoresRemote(t *testing.T) {
	h := newHarness(t, teacherAnna)
	r := h.book(t, teacherAnna.ID, at(20, 14))
	h.store.updateErr = errors.New("connection refused")

	_, err := h.svc.Reschedule(context.Background(), r, at(21, 11), time.Hour)

	// CRM вернули на прежнее время, состояние согласовано
	require.Error(t, err)
	var inconsistent *InconsistentStateError
	assert.False(t, errors.As(err, &inconsistent))
	assert.ErrorContains(t, err, "connection refused")

	block, _ := h.crm.block(r.CalendarBlockID)
	assert.True(t, block.From.Equal(at(20, 14)))
	item, _ := h.crm.item(r.WorkItemID)
	assert.True(t, item.Deadline.Equal(at(20, 14)))

	esc := h.esc.all()
	require.Len(t, esc, 1)
	assert.Equal(t, SeverityCritical, esc[0].Severity)
}

func TestReschedule_Validation(t *testing.T) {
	h := newHarness(t, teacherAnna)
	r := h.book(t, teacherAnna.ID, at(20, 14))

	_, err := h.svc.Reschedule(context.Background(), r, at(19, 8), time.Hour)
	assert.ErrorIs(t, err, ErrSlotInPast)

	_, err = h.svc.Reschedule(context.Background(), r, at(21, 11), -time.Hour)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	cancelled := *r
	cancelled.Status = model.ReservationStatusCancelled
	_, err = h.svc.Reschedule(context.Background(), &cancelled, at(21, 11), time.Hour)
	assert.ErrorIs(t, err, ErrNotPlanned)
}

func TestRescheduleRequest(t *testing.T) {
	h := newHarness(t, teacherAnna)
	r := h.book(t, teacherAnna.ID, at(20, 14))

	_, err := h.svc.RescheduleRequest(context.Background(), r.ID, parent.ID+1, at(21, 11))
	assert.ErrorIs(t, err, ErrReservationNotFound)

	_, err = h.svc.RescheduleRequest(context.Background(), r.ID, parent.ID, at(21, 11).Add(15*time.Minute))
	assert.ErrorIs(t, err, ErrOutsideWorkingHours)

	updated, err := h.svc.RescheduleRequest(context.Background(), r.ID, parent.ID, at(21, 11))
	require.NoError(t, err)
	assert.True(t, updated.StartTime.Equal(at(21, 11)))
}

func TestRescheduleOptions_SingleResource(t *testing.T) {
	h := newHarness(t, teacherAnna, teacherOleg)
	r := h.book(t, teacherAnna.ID, at(20, 14))

	slots, err := h.svc.RescheduleOptions(context.Background(), r, 2)
	require.NoError(t, err)

	for _, day := range slots {
		for _, s := range day {
			assert.Equal(t, []string{teacherAnna.ID}, s.ResourceIDs)
			assert.False(t, s.StartTime.Equal(at(20, 14)))
		}
	}
}
