package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBook_Success(t *testing.T) {
	h := newHarness(t, teacherAnna)

	r, err := h.svc.Book(context.Background(), teacherAnna.ID, at(20, 14), time.Hour, parent.AsRequester())
	require.NoError(t, err)

	assert.NotZero(t, r.ID)
	assert.Equal(t, model.ReservationStatusPlanned, r.Status)
	assert.Equal(t, parent.ID, r.RequesterID)
	assert.Equal(t, teacherAnna.ID, r.ResourceID)
	assert.True(t, r.StartTime.Equal(at(20, 14)))
	assert.True(t, r.EndTime.Equal(at(20, 15)))
	require.NotEmpty(t, r.WorkItemID)
	require.NotEmpty(t, r.CalendarBlockID)

	item, ok := h.crm.item(r.WorkItemID)
	require.True(t, ok)
	assert.Equal(t, teacherAnna.ID, item.ResponsibleID)
	assert.Contains(t, item.Title, "Петя")
	assert.Contains(t, item.Description, "+79990000000")
	assert.True(t, item.Deadline.Equal(at(20, 14)))

	block, ok := h.crm.block(r.CalendarBlockID)
	require.True(t, ok)
	assert.Equal(t, teacherAnna.ID, block.OwnerID)
	assert.Equal(t, 60, block.ReminderMinutes)
	assert.Contains(t, block.Description, r.WorkItemID)

	assert.Equal(t, 1, h.store.size())
	assert.Empty(t, h.esc.all())
}

func TestBook_SlotTakenMakesNoWrites(t *testing.T) {
	h := newHarness(t, teacherAnna)
	h.crm.addBusy(teacherAnna.ID, "20.10.2026 14:30:00", "20.10.2026 15:30:00")

	_, err := h.svc.Book(context.Background(), teacherAnna.ID, at(20, 14), time.Hour, parent.AsRequester())
	require.ErrorIs(t, err, ErrSlotTaken)

	assert.Zero(t, h.crm.count("CreateWorkItem"))
	assert.Zero(t, h.crm.count("CreateCalendarBlock"))
	assert.Zero(t, h.store.size())
	assert.Empty(t, h.esc.all())
}

func TestBook_BackToBackIsNotTaken(t *testing.T) {
	h := newHarness(t, teacherAnna)
	h.book(t, teacherAnna.ID, at(20, 13))

	_, err := h.svc.Book(context.Background(), teacherAnna.ID, at(20, 14), time.Hour, parent.AsRequester())
	require.NoError(t, err)
	assert.Equal(t, 2, h.store.size())
}

func TestBook_Validation(t *testing.T) {
	h := newHarness(t, teacherAnna)
	req := parent.AsRequester()

	_, err := h.svc.Book(context.Background(), "999", at(20, 14), time.Hour, req)
	assert.ErrorIs(t, err, ErrUnknownResource)

	_, err = h.svc.Book(context.Background(), teacherAnna.ID, at(19, 9), time.Hour, req)
	assert.ErrorIs(t, err, ErrSlotInPast)

	_, err = h.svc.Book(context.Background(), teacherAnna.ID, at(20, 14), 0, req)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	assert.Zero(t, h.crm.count("ListEvents"))
}

func TestBook_CalendarBlockFailureRemovesWorkItem(t *testing.T) {
	h := newHarness(t, teacherAnna)
	h.crm.createBlockErr = errors.New("calendar unavailable")

	_, err := h.svc.Book(context.Background(), teacherAnna.ID, at(20, 14), time.Hour, parent.AsRequester())

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "create calendar block", remoteErr.Op)

	assert.Empty(t, h.crm.items, "compensation must remove the work item")
	assert.Equal(t, 1, h.crm.count("DeleteWorkItem"))
	assert.Zero(t, h.store.size())

	esc := h.esc.all()
	require.Len(t, esc, 1)
	assert.Equal(t, SeverityWarning, esc[0].Severity)
	assert.Equal(t, "book", esc[0].Operation)
	assert.Equal(t, "op-1", esc[0].OpID)
	assert.NotEmpty(t, esc[0].WorkItemID)
}

func TestBook_CompensationRetriedAfterTimeout(t *testing.T) {
	h := newHarness(t, teacherAnna)
	h.crm.createBlockErr = errors.New("calendar unavailable")
	h.crm.deleteItemErrs = []error{errTimeout}

	_, err := h.svc.Book(context.Background(), teacherAnna.ID, at(20, 14), time.Hour, parent.AsRequester())

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Empty(t, h.crm.items)
	assert.Equal(t, 2, h.crm.count("DeleteWorkItem"))

	esc := h.esc.all()
	require.Len(t, esc, 1)
	assert.Equal(t, SeverityWarning, esc[0].Severity)
}

func TestBook_FailedCompensationEscalatesCritical(t *testing.T) {
	h := newHarness(t, teacherAnna)
	h.crm.createBlockErr = errors.New("calendar unavailable")
	h.crm.deleteItemErrs = []error{errTimeout, errTimeout, errTimeout}

	_, err := h.svc.Book(context.Background(), teacherAnna.ID, at(20, 14), time.Hour, parent.AsRequester())

	var inconsistent *InconsistentStateError
	require.ErrorAs(t, err, &inconsistent)
	assert.Error(t, inconsistent.CompensationErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, 3, h.crm.count("DeleteWorkItem"))
	assert.Len(t, h.crm.items, 1, "work item survives and needs manual cleanup")
	assert.Zero(t, h.store.size())

	esc := h.esc.all()
	require.Len(t, esc, 1)
	assert.Equal(t, SeverityCritical, esc[0].Severity)
	assert.Equal(t, 1, h.logs.FilterMessage("Booking operation failed").Len())
}

func TestBook_WorkItemFailureIsNotRetried(t *testing.T) {
	h := newHarness(t, teacherAnna)
	h.crm.createItemErr = errTimeout

	_, err := h.svc.Book(context.Background(), teacherAnna.ID, at(20, 14), time.Hour, parent.AsRequester())

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "create work item", remoteErr.Op)
	assert.Equal(t, 1, h.crm.count("CreateWorkItem"))
	assert.Zero(t, h.crm.count("CreateCalendarBlock"))
	assert.Len(t, h.esc.all(), 1)
}

func TestBook_RecheckFailureIsEscalated(t *testing.T) {
	h := newHarness(t, teacherAnna)
	h.crm.listErr[teacherAnna.ID] = errors.New("503")

	_, err := h.svc.Book(context.Background(), teacherAnna.ID, at(20, 14), time.Hour, parent.AsRequester())

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, 3, h.crm.count("ListEvents"))
	assert.Zero(t, h.crm.count("CreateWorkItem"))
	assert.Len(t, h.esc.all(), 1)
}

func TestBook_StoreFailureRemovesRemoteEntities(t *testing.T) {
	h := newHarness(t, teacherAnna)
	h.store.createErr = errors.New("connection refused")

	_, err := h.svc.Book(context.Background(), teacherAnna.ID, at(20, 14), time.Hour, parent.AsRequester())
	require.Error(t, err)

	assert.Empty(t, h.crm.items)
	assert.Empty(t, h.crm.blocks)

	esc := h.esc.all()
	require.Len(t, esc, 1)
	assert.Equal(t, SeverityCritical, esc[0].Severity)
	assert.NotEmpty(t, esc[0].CalendarBlockID)
}

func TestBook_ClaimBetweenListingAndConfirming(t *testing.T) {
	h := newHarness(t, teacherAnna)

	slots, err := h.svc.Availability(context.Background(), 2)
	require.NoError(t, err)
	require.NotEmpty(t, slots["2026-10-20"])
	shown := slots["2026-10-20"][0]
	require.True(t, shown.HasResource(teacherAnna.ID))

	// Другой пользователь успел забронировать показанный слот
	h.book(t, teacherAnna.ID, shown.StartTime)

	_, err = h.svc.Book(context.Background(), teacherAnna.ID, shown.StartTime, time.Hour, parent.AsRequester())
	require.ErrorIs(t, err, ErrSlotTaken)
	assert.Equal(t, 1, h.store.size())
	assert.Len(t, h.crm.blocks, 1)
}

func TestBook_ConcurrentRequestsForSameSlot(t *testing.T) {
	h := newHarness(t, teacherAnna)

	const callers = 5
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ok    int
		taken int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Book(context.Background(), teacherAnna.ID, at(20, 14), time.Hour, parent.AsRequester())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrSlotTaken):
				taken++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, taken)
	assert.Equal(t, 1, h.store.size())
	assert.Len(t, h.crm.blocks, 1)
}

func TestBookRequest_PicksFirstFreeResourceInPoolOrder(t *testing.T) {
	h := newHarness(t, teacherAnna, teacherOleg)
	h.crm.addBusy(teacherAnna.ID, "20.10.2026 14:00:00", "20.10.2026 15:00:00")

	r, err := h.svc.BookRequest(context.Background(), "", parent.AsRequester(), at(20, 14))
	require.NoError(t, err)
	assert.Equal(t, teacherOleg.ID, r.ResourceID)

	r, err = h.svc.BookRequest(context.Background(), "", parent.AsRequester(), at(20, 15))
	require.NoError(t, err)
	assert.Equal(t, teacherAnna.ID, r.ResourceID)
}

func TestBookRequest_WithHint(t *testing.T) {
	h := newHarness(t, teacherAnna, teacherOleg)

	r, err := h.svc.BookRequest(context.Background(), teacherOleg.ID, parent.AsRequester(), at(20, 14))
	require.NoError(t, err)
	assert.Equal(t, teacherOleg.ID, r.ResourceID)
}

func TestBookRequest_NoFreeResource(t *testing.T) {
	h := newHarness(t, teacherAnna)
	h.crm.addBusy(teacherAnna.ID, "20.10.2026 14:00:00", "20.10.2026 15:00:00")

	_, err := h.svc.BookRequest(context.Background(), "", parent.AsRequester(), at(20, 14))
	assert.ErrorIs(t, err, ErrNoFreeResource)
}

func TestBookRequest_OutsideWorkingHours(t *testing.T) {
	h := newHarness(t, teacherAnna)

	_, err := h.svc.BookRequest(context.Background(), "", parent.AsRequester(), at(20, 14).Add(30*time.Minute))
	assert.ErrorIs(t, err, ErrOutsideWorkingHours)

	_, err = h.svc.BookRequest(context.Background(), "", parent.AsRequester(), at(24, 12))
	assert.ErrorIs(t, err, ErrOutsideWorkingHours)
}

func TestBookRequest_WithHintOutsideWorkingHours(t *testing.T) {
	h := newHarness(t, teacherAnna)

	cases := map[string]time.Time{
		"off the hour": at(20, 13).Add(17 * time.Minute),
		"before start": at(20, 8),
		"past day end": at(20, 17).Add(30 * time.Minute),
		"saturday":     at(24, 12),
	}
	for name, start := range cases {
		t.Run(name, func(t *testing.T) {
			r, err := h.svc.BookRequest(context.Background(), teacherAnna.ID, parent.AsRequester(), start)
			assert.ErrorIs(t, err, ErrOutsideWorkingHours)
			assert.Nil(t, r)
		})
	}

	assert.Zero(t, h.store.size())
	assert.Empty(t, h.crm.blocks)
	assert.Empty(t, h.esc.all())
}

func TestResourceLocks_SerializePerResource(t *testing.T) {
	locks := newResourceLocks()

	unlockA := locks.lock("a")
	unlockB := locks.lock("b") // другой преподаватель не блокируется

	acquired := make(chan struct{})
	go func() {
		unlock := locks.lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on the same resource must wait")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	<-acquired
	unlockB()
}
