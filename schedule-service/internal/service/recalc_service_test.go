package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mqcontracts "obraflow/contracts/mq"
	"obraflow/pkg/redis"
	"obraflow/pkg/schedule"
	"obraflow/schedule-service/internal/model"
)

type fakeStore struct {
	snap     *model.Snapshot
	loadErr  error
	saveErr  error
	saved    *model.Recalculation
	updates  []schedule.Update
	event    *mqcontracts.RecalculatedPayload
	history  []model.Recalculation
	histSize int
}

func (f *fakeStore) LoadSnapshot(_ context.Context, _, _ uuid.UUID) (*model.Snapshot, error) {
	return f.snap, f.loadErr
}

func (f *fakeStore) SaveRecalculation(_ context.Context, rec *model.Recalculation, updates []schedule.Update, event *mqcontracts.RecalculatedPayload) error {
	f.saved, f.updates, f.event = rec, updates, event
	return f.saveErr
}

func (f *fakeStore) ListRecalculations(_ context.Context, _, _ uuid.UUID, limit int) ([]model.Recalculation, error) {
	f.histSize = limit
	return f.history, nil
}

type fakeLocker struct {
	held     bool
	err      error
	acquired []string
	released int
}

func (l *fakeLocker) Acquire(_ context.Context, key string) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.held {
		return nil, redis.ErrLockHeld
	}
	l.acquired = append(l.acquired, key)
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

func day(s string) schedule.Date { return schedule.ParseDate(s) }

func newSnapshot(orgID, scheduleID uuid.UUID) *model.Snapshot {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	return &model.Snapshot{
		Schedule: model.Schedule{ID: scheduleID, OrgID: orgID, Name: "Torre A"},
		Items: []model.ScheduleItem{
			{ID: a, Status: schedule.StatusInProgress, PlannedDurationDays: 3,
				PlannedStartDate: day("2024-01-01"), PlannedEndDate: day("2024-01-03")},
			{ID: b, Status: schedule.StatusPending, PlannedDurationDays: 2,
				PlannedStartDate: day("2024-01-01"), PlannedEndDate: day("2024-01-02")},
			{ID: c, Status: schedule.StatusBlocked, PlannedDurationDays: 1},
		},
		Dependencies: []model.ScheduleDependency{
			{PredecessorID: a, SuccessorID: b, LagDays: 1, Type: schedule.FinishToStart},
			{PredecessorID: a, SuccessorID: c, Type: schedule.StartToStart},
		},
	}
}

func newService(store Store, locker Locker, now time.Time) *RecalcService {
	return NewRecalcService(store, locker, schedule.CalendarConfig{}, zap.NewNop()).
		WithClock(func() time.Time { return now })
}

func TestRecalculatePersistsResult(t *testing.T) {
	org, sched := uuid.New(), uuid.New()
	snap := newSnapshot(org, sched)
	store := &fakeStore{snap: snap}
	locker := &fakeLocker{}
	now := time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)

	rec, err := newService(store, locker, now).Recalculate(context.Background(), org, sched, mqcontracts.TriggerItemChanged)
	require.NoError(t, err)

	assert.Equal(t, []string{sched.String()}, locker.acquired)
	assert.Equal(t, 1, locker.released)
	assert.Same(t, rec, store.saved)

	require.Len(t, store.updates, 3)
	// predecessor ends Wed 01-03, one working day of lag
	assert.Equal(t, "2024-01-04", store.updates[1].PlannedStartDate.String())
	assert.Equal(t, "2024-01-05", store.updates[1].PlannedEndDate.String())
	assert.Equal(t, 7, store.updates[0].OverdueDays)

	assert.Equal(t, 3, rec.Summary.TotalItems)
	assert.Equal(t, 1, rec.Summary.BlockedItemCount)
	assert.Equal(t, 1, rec.IgnoredDependencies)
	assert.Equal(t, snap.Items[2].ID.String(), rec.Summary.CriticalItemIDs[0])
	assert.NotEmpty(t, rec.TraceID)

	require.NotNil(t, store.event)
	assert.Equal(t, sched, store.event.ScheduleID)
	assert.Equal(t, mqcontracts.TriggerItemChanged, store.event.Trigger)
	require.NotNil(t, store.event.ProjectedEndDate)
	assert.Equal(t, rec.Summary.ProjectedEndDate.String(), *store.event.ProjectedEndDate)
}

func TestRecalculateUsesScheduleCalendar(t *testing.T) {
	org, sched := uuid.New(), uuid.New()
	snap := newSnapshot(org, sched)
	snap.Schedule.Calendar = &schedule.CalendarConfig{Holidays: []string{"2024-01-05"}}
	store := &fakeStore{snap: snap}

	_, err := newService(store, &fakeLocker{}, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)).
		Recalculate(context.Background(), org, sched, mqcontracts.TriggerCalendarChanged)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-04", store.updates[1].PlannedStartDate.String())
	// Friday is a holiday on this schedule's calendar
	assert.Equal(t, "2024-01-08", store.updates[1].PlannedEndDate.String())
}

func TestRecalculateLocked(t *testing.T) {
	store := &fakeStore{}
	_, err := newService(store, &fakeLocker{held: true}, time.Now()).
		Recalculate(context.Background(), uuid.New(), uuid.New(), mqcontracts.TriggerManual)
	assert.ErrorIs(t, err, ErrScheduleLocked)
	assert.Nil(t, store.saved)
}

func TestRecalculateNotFoundReleasesLock(t *testing.T) {
	store := &fakeStore{loadErr: model.ErrScheduleNotFound}
	locker := &fakeLocker{}
	_, err := newService(store, locker, time.Now()).
		Recalculate(context.Background(), uuid.New(), uuid.New(), mqcontracts.TriggerManual)
	assert.ErrorIs(t, err, model.ErrScheduleNotFound)
	assert.Equal(t, 1, locker.released)
}

func TestRecalculateLockError(t *testing.T) {
	boom := errors.New("redis down")
	_, err := newService(&fakeStore{}, &fakeLocker{err: boom}, time.Now()).
		Recalculate(context.Background(), uuid.New(), uuid.New(), mqcontracts.TriggerManual)
	assert.ErrorIs(t, err, boom)
}

func TestPreview(t *testing.T) {
	now := time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC)
	svc := newService(&fakeStore{}, &fakeLocker{}, now)

	req := PreviewRequest{
		Items: []schedule.Item{
			{ID: "a", Status: schedule.StatusPending, PlannedDurationDays: 2, PlannedStartDate: day("2024-01-08"), PlannedEndDate: day("2024-01-09")},
		},
	}
	res := svc.Preview(context.Background(), req)
	require.Len(t, res.Updates, 1)
	assert.Equal(t, 11, res.Updates[0].OverdueDays)

	earlier := time.Date(2024, time.January, 9, 0, 0, 0, 0, time.UTC)
	req.Now = &earlier
	res = svc.Preview(context.Background(), req)
	assert.Zero(t, res.Updates[0].OverdueDays)
}

func TestHistoryClampsLimit(t *testing.T) {
	store := &fakeStore{}
	svc := newService(store, &fakeLocker{}, time.Now())

	_, err := svc.History(context.Background(), uuid.New(), uuid.New(), 0)
	require.NoError(t, err)
	assert.Equal(t, 20, store.histSize)

	_, err = svc.History(context.Background(), uuid.New(), uuid.New(), 50)
	require.NoError(t, err)
	assert.Equal(t, 50, store.histSize)
}
