package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/trial_lesson_bot/internal/crm"
	"github.com/Freeeeeet/trial_lesson_bot/internal/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var msk = time.FixedZone("MSK", 3*60*60)

// at время 2026-10-day hour:00 по Москве. 19 октября 2026 это понедельник.
func at(day, hour int) time.Time {
	return time.Date(2026, time.October, day, hour, 0, 0, 0, msk)
}

var errTimeout = fmt.Errorf("remote call: %w", context.DeadlineExceeded)

// fakeCRM календари и задачи в памяти
type fakeCRM struct {
	mu     sync.Mutex
	nextID int

	external map[string][]crm.Event // события, созданные не ботом
	blocks   map[string]crm.CalendarBlock
	items    map[string]crm.WorkItem

	listErr         map[string]error
	createItemErr   error
	createBlockErr  error
	updateBlockErrs []error
	updateItemErrs  []error
	deleteBlockErrs []error
	deleteItemErrs  []error

	calls map[string]int
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{
		external: make(map[string][]crm.Event),
		blocks:   make(map[string]crm.CalendarBlock),
		items:    make(map[string]crm.WorkItem),
		listErr:  make(map[string]error),
		calls:    make(map[string]int),
	}
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *fakeCRM) addBusy(ownerID string, from, to string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.external[ownerID] = append(f.external[ownerID], crm.Event{
		ID:       crm.ID("ext" + strconv.Itoa(f.nextID)),
		DateFrom: from,
		DateTo:   to,
	})
}

func (f *fakeCRM) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeCRM) block(id string) (crm.CalendarBlock, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blocks[id]
	return b, ok
}

func (f *fakeCRM) item(id string) (crm.WorkItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.items[id]
	return i, ok
}

func (f *fakeCRM) ListEvents(_ context.Context, ownerID string, _, _ time.Time) ([]crm.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ListEvents"]++

	if err := f.listErr[ownerID]; err != nil {
		return nil, err
	}

	events := append([]crm.Event(nil), f.external[ownerID]...)
	ids := make([]string, 0, len(f.blocks))
	for id := range f.blocks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		b := f.blocks[id]
		if b.OwnerID != ownerID {
			continue
		}
		events = append(events, crm.Event{
			ID:       crm.ID(id),
			Name:     b.Name,
			DateFrom: b.From.Format(time.RFC3339),
			DateTo:   b.To.Format(time.RFC3339),
		})
	}
	return events, nil
}

func (f *fakeCRM) CreateWorkItem(_ context.Context, item crm.WorkItem) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateWorkItem"]++

	if f.createItemErr != nil {
		return "", f.createItemErr
	}
	f.nextID++
	id := "task" + strconv.Itoa(f.nextID)
	f.items[id] = item
	return id, nil
}

func (f *fakeCRM) UpdateWorkItem(_ context.Context, id string, item crm.WorkItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["UpdateWorkItem"]++

	if err := pop(&f.updateItemErrs); err != nil {
		return err
	}
	if _, ok := f.items[id]; !ok {
		return crm.ErrNotFound
	}
	f.items[id] = item
	return nil
}

func (f *fakeCRM) DeleteWorkItem(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["DeleteWorkItem"]++

	if err := pop(&f.deleteItemErrs); err != nil {
		return err
	}
	if _, ok := f.items[id]; !ok {
		return crm.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeCRM) CreateCalendarBlock(_ context.Context, block crm.CalendarBlock) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateCalendarBlock"]++

	if f.createBlockErr != nil {
		return "", f.createBlockErr
	}
	f.nextID++
	id := "ev" + strconv.Itoa(f.nextID)
	f.blocks[id] = block
	return id, nil
}

func (f *fakeCRM) UpdateCalendarBlock(_ context.Context, id string, block crm.CalendarBlock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["UpdateCalendarBlock"]++

	if err := pop(&f.updateBlockErrs); err != nil {
		return err
	}
	if _, ok := f.blocks[id]; !ok {
		return crm.ErrNotFound
	}
	f.blocks[id] = block
	return nil
}

func (f *fakeCRM) DeleteCalendarBlock(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["DeleteCalendarBlock"]++

	if err := pop(&f.deleteBlockErrs); err != nil {
		return err
	}
	if _, ok := f.blocks[id]; !ok {
		return crm.ErrNotFound
	}
	delete(f.blocks, id)
	return nil
}

// fakeStore брони в памяти с теми же правилами статусов, что и в базе
type fakeStore struct {
	mu        sync.Mutex
	nextID    int64
	items     map[int64]*model.Reservation
	createErr error
	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: make(map[int64]*model.Reservation)}
}

func (s *fakeStore) Create(_ context.Context, r *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	r.ID = s.nextID
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	s.items[r.ID] = &cp
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id int64) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) ListActiveByRequester(_ context.Context, requesterID int64) ([]*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Reservation
	for _, r := range s.items {
		if r.RequesterID == requesterID && r.Status == model.ReservationStatusPlanned {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *fakeStore) UpdateSchedule(_ context.Context, id int64, start, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	r, ok := s.items[id]
	if !ok || r.Status != model.ReservationStatusPlanned {
		return model.ErrReservationNotPlanned
	}
	r.StartTime, r.EndTime, r.RemindedAt = start, end, nil
	return nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, id int64, status model.ReservationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	r, ok := s.items[id]
	if !ok || !r.Status.CanTransitionTo(status) {
		return model.ErrReservationNotPlanned
	}
	r.Status = status
	return nil
}

func (s *fakeStore) ListDueReminders(_ context.Context, from, to time.Time) ([]*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Reservation
	for _, r := range s.items {
		if r.Status == model.ReservationStatusPlanned && r.RemindedAt == nil &&
			r.StartTime.After(from) && !r.StartTime.After(to) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) MarkReminded(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return errors.New("reservation not found")
	}
	r.RemindedAt = &at
	return nil
}

func (s *fakeStore) get(id int64) model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.items[id]
}

func (s *fakeStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

type fakeUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*model.User
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{byID: make(map[int64]*model.User)}
	for _, u := range users {
		cp := *u
		f.byID[u.ID] = &cp
		if u.ID > f.nextID {
			f.nextID = u.ID
		}
	}
	return f
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByTelegramID(_ context.Context, telegramID int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.TelegramID == telegramID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	user.ID = f.nextID
	cp := *user
	f.byID[user.ID] = &cp
	return nil
}

func (f *fakeUsers) Update(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *user
	f.byID[user.ID] = &cp
	return nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id int64, profile model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return errors.New("user not found")
	}
	u.Profile = profile
	return nil
}

type fakeEscalator struct {
	mu   sync.Mutex
	sent []Escalation
}

func (f *fakeEscalator) Escalate(_ context.Context, e Escalation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, e)
	return nil
}

func (f *fakeEscalator) all() []Escalation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Escalation(nil), f.sent...)
}

var (
	teacherAnna = model.Resource{ID: "11", Name: "Анна"}
	teacherOleg = model.Resource{ID: "12", Name: "Олег"}
)

var parent = &model.User{
	ID:         7,
	TelegramID: 7007,
	Username:   "parent",
	FirstName:  "Мария",
	Profile:    model.Profile{ChildName: "Петя", ChildAge: "9", ParentName: "Мария", ParentContact: "+79990000000"},
}

type harness struct {
	crm   *fakeCRM
	store *fakeStore
	users *fakeUsers
	esc   *fakeEscalator
	logs  *observer.ObservedLogs
	avail *AvailabilityService
	svc   *ReservationService
}

func newHarness(t *testing.T, resources ...model.Resource) *harness {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	h := &harness{
		crm:   newFakeCRM(),
		store: newFakeStore(),
		users: newFakeUsers(parent),
		esc:   &fakeEscalator{},
		logs:  logs,
	}

	policy := RetryPolicy{MaxAttempts: 3, Timeout: time.Second, Backoff: time.Millisecond}
	hours := WorkingHours{StartHour: 10, EndHour: 18, DaysOff: []time.Weekday{time.Saturday, time.Sunday}}
	now := func() time.Time { return at(19, 9) }

	h.avail = NewAvailabilityService(h.crm, hours, msk, policy, logger)
	h.avail.now = now

	h.svc = NewReservationService(h.crm, h.store, h.users, h.avail, h.esc, ReservationConfig{
		Resources:       resources,
		LessonDuration:  time.Hour,
		Retry:           policy,
		ReminderMinutes: 60,
	}, logger)
	h.svc.now = now

	seq := 0
	h.svc.newOpID = func() string {
		seq++
		return "op-" + strconv.Itoa(seq)
	}

	return h
}

func (h *harness) book(t *testing.T, resourceID string, start time.Time) *model.Reservation {
	t.Helper()
	r, err := h.svc.Book(context.Background(), resourceID, start, time.Hour, parent.AsRequester())
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	return r
}
