package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mqcontracts "obraflow/contracts/mq"
	"obraflow/pkg/circuitbreaker"
	"obraflow/schedule-runner-service/internal/repository"
)

type fakeLister struct {
	mu    sync.Mutex
	refs  []repository.ScheduleRef
	err   error
	calls int
}

func (f *fakeLister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeLister) ListActiveSchedules(_ context.Context, after uuid.UUID, limit int) ([]repository.ScheduleRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []repository.ScheduleRef
	for _, r := range f.refs {
		if r.ID.String() > after.String() {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	fail map[uuid.UUID]bool
	got  []mqcontracts.RecalculateRequestedPayload
	keys []string
}

func (p *fakePublisher) PublishWithContext(_ context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg := payload.(mqcontracts.RecalculateRequestedPayload)
	if p.fail[msg.ScheduleID] {
		return errors.New("broker down")
	}
	p.keys = append(p.keys, routingKey)
	p.got = append(p.got, msg)
	return nil
}

func sortedRefs(n int) []repository.ScheduleRef {
	refs := make([]repository.ScheduleRef, n)
	for i := range refs {
		refs[i] = repository.ScheduleRef{ID: uuid.New(), OrgID: uuid.New()}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID.String() < refs[j].ID.String() })
	return refs
}

func TestRunOncePagesThroughSchedules(t *testing.T) {
	lister := &fakeLister{refs: sortedRefs(5)}
	pub := &fakePublisher{}
	s := NewSweeper(lister, pub, time.Hour, 2, zap.NewNop())
	fixed := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 3, lister.calls)

	require.Len(t, pub.got, 5)
	for i, msg := range pub.got {
		assert.Equal(t, lister.refs[i].ID, msg.ScheduleID)
		assert.Equal(t, lister.refs[i].OrgID, msg.OrgID)
		assert.Equal(t, mqcontracts.TriggerOverdueSweep, msg.Trigger)
		assert.Equal(t, fixed, msg.RequestedAt)
		assert.NotEqual(t, uuid.Nil, msg.RequestID)
		assert.Equal(t, pub.got[0].TraceID, msg.TraceID)
		assert.Equal(t, mqcontracts.RoutingKeyRecalculateRequested, pub.keys[i])
	}
}

func TestRunOnceSkipsPublishFailures(t *testing.T) {
	refs := sortedRefs(3)
	pub := &fakePublisher{fail: map[uuid.UUID]bool{refs[1].ID: true}}
	s := NewSweeper(&fakeLister{refs: refs}, pub, time.Hour, 10, zap.NewNop())

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunOnceListError(t *testing.T) {
	s := NewSweeper(&fakeLister{err: errors.New("db down")}, &fakePublisher{}, time.Hour, 10, zap.NewNop())
	_, err := s.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestStartStopsOnCancel(t *testing.T) {
	lister := &fakeLister{refs: sortedRefs(1)}
	pub := &fakePublisher{}
	s := NewSweeper(lister, pub, time.Hour, 10, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return lister.callCount() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
	assert.Len(t, pub.got, 1)
}

func TestRunOnceAbortsWhenBreakerOpens(t *testing.T) {
	refs := sortedRefs(6)
	fail := map[uuid.UUID]bool{}
	for _, r := range refs {
		fail[r.ID] = true
	}
	pub := &fakePublisher{fail: fail}
	s := NewSweeper(&fakeLister{refs: refs}, pub, time.Hour, 10, zap.NewNop()).
		WithBreaker(circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 3, OpenTimeout: time.Hour}))

	n, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Zero(t, n)
	assert.Equal(t, circuitbreaker.StateOpen, s.breaker.State())
}
