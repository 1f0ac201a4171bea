package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	mqcontracts "obraflow/contracts/mq"
	"obraflow/pkg/logger"
	"obraflow/pkg/metrics"
	"obraflow/pkg/otel"
	"obraflow/pkg/redis"
	"obraflow/pkg/schedule"
	"obraflow/pkg/trace"
	"obraflow/schedule-service/internal/model"
)

// ErrScheduleLocked another recalculation of the same schedule is in flight.
var ErrScheduleLocked = errors.New("schedule is being recalculated")

type Store interface {
	LoadSnapshot(ctx context.Context, orgID, scheduleID uuid.UUID) (*model.Snapshot, error)
	SaveRecalculation(ctx context.Context, rec *model.Recalculation, updates []schedule.Update, event *mqcontracts.RecalculatedPayload) error
	ListRecalculations(ctx context.Context, orgID, scheduleID uuid.UUID, limit int) ([]model.Recalculation, error)
}

type Locker interface {
	Acquire(ctx context.Context, key string) (func(context.Context) error, error)
}

// PreviewRequest is an in-memory snapshot evaluated without persistence.
type PreviewRequest struct {
	Items        []schedule.Item          `json:"items" yaml:"items"`
	Dependencies []schedule.Dependency    `json:"dependencies" yaml:"dependencies"`
	Calendar     *schedule.CalendarConfig `json:"calendar" yaml:"calendar"`
	// Now overrides the evaluation instant.
	Now *time.Time `json:"now,omitempty" yaml:"now,omitempty"`
}

type RecalcService struct {
	store           Store
	locker          Locker
	defaultCalendar schedule.CalendarConfig
	now             func() time.Time
	logger          *zap.Logger
}

func NewRecalcService(store Store, locker Locker, defaultCalendar schedule.CalendarConfig, logger *zap.Logger) *RecalcService {
	return &RecalcService{
		store:           store,
		locker:          locker,
		defaultCalendar: defaultCalendar,
		now:             time.Now,
		logger:          logger,
	}
}

// WithClock replaces the wall clock.
func (s *RecalcService) WithClock(now func() time.Time) *RecalcService {
	s.now = now
	return s
}

// Recalculate reruns the engine over the stored schedule and persists the result.
func (s *RecalcService) Recalculate(ctx context.Context, orgID, scheduleID uuid.UUID, trigger string) (rec *model.Recalculation, err error) {
	start := time.Now()
	ctx, traceID := trace.Ensure(ctx)
	ctx, span := otel.StartSpan(ctx, "schedule.recalculate")
	span.SetAttributes(
		attribute.String("schedule.id", scheduleID.String()),
		attribute.String("schedule.trigger", trigger),
	)
	defer span.End()

	log := logger.WithTrace(ctx, s.logger).With(
		zap.String("org_id", orgID.String()),
		zap.String("schedule_id", scheduleID.String()),
		zap.String("trigger", trigger),
	)

	defer func() {
		metrics.RecordRecalculation(trigger, resultLabel(err), time.Since(start))
		if err != nil && !errors.Is(err, ErrScheduleLocked) {
			span.RecordError(err)
		}
	}()

	release, err := s.locker.Acquire(ctx, scheduleID.String())
	if errors.Is(err, redis.ErrLockHeld) {
		log.Info("Schedule is locked, skipping")
		return nil, ErrScheduleLocked
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
			log.Warn("Failed to release schedule lock", zap.Error(relErr))
		}
	}()

	snap, err := s.store.LoadSnapshot(ctx, orgID, scheduleID)
	if err != nil {
		return nil, err
	}

	items, deps := snap.EngineInputs()
	now := s.now()
	res := schedule.RecalculateAt(now, items, deps, snap.CalendarOr(s.defaultCalendar))

	rec = &model.Recalculation{
		ID:                  uuid.New(),
		ScheduleID:          scheduleID,
		OrgID:               orgID,
		Trigger:             trigger,
		Summary:             res.Summary,
		IgnoredDependencies: len(res.IgnoredDependencies),
		ComputedAt:          now.UTC(),
		TraceID:             traceID,
	}

	if err := s.store.SaveRecalculation(ctx, rec, res.Updates, recalculatedEvent(rec)); err != nil {
		return nil, err
	}

	metrics.ObserveSummary(res.Summary.DelayedItemCount, len(res.Summary.CriticalItemIDs))
	for _, d := range res.IgnoredDependencies {
		metrics.IncrementIgnoredDependency(string(d.Type))
	}

	log.Info("Schedule recalculated",
		zap.Int("items", res.Summary.TotalItems),
		zap.Int("delayed", res.Summary.DelayedItemCount),
		zap.Int("blocked", res.Summary.BlockedItemCount),
		zap.Int("ignored_dependencies", rec.IgnoredDependencies),
		zap.String("projected_end_date", res.Summary.ProjectedEndDate.String()),
		zap.Duration("took", time.Since(start)),
	)
	return rec, nil
}

// Preview runs the engine over a caller-supplied snapshot. Nothing is stored.
func (s *RecalcService) Preview(ctx context.Context, req PreviewRequest) schedule.Result {
	_, span := otel.StartSpan(ctx, "schedule.preview")
	defer span.End()

	now := s.now()
	if req.Now != nil {
		now = *req.Now
	}
	cal := req.Calendar
	if cal == nil {
		cal = &s.defaultCalendar
	}
	return schedule.RecalculateAt(now, req.Items, req.Dependencies, cal)
}

// History returns the latest recalculations for a schedule.
func (s *RecalcService) History(ctx context.Context, orgID, scheduleID uuid.UUID, limit int) ([]model.Recalculation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListRecalculations(ctx, orgID, scheduleID, limit)
}

func recalculatedEvent(rec *model.Recalculation) *mqcontracts.RecalculatedPayload {
	var projected *string
	if rec.Summary.ProjectedEndDate.Valid() {
		v := rec.Summary.ProjectedEndDate.String()
		projected = &v
	}
	return &mqcontracts.RecalculatedPayload{
		OrgID:            rec.OrgID,
		ScheduleID:       rec.ScheduleID,
		Trigger:          rec.Trigger,
		TotalItems:       rec.Summary.TotalItems,
		DelayedItemCount: rec.Summary.DelayedItemCount,
		BlockedItemCount: rec.Summary.BlockedItemCount,
		CriticalItemIDs:  rec.Summary.CriticalItemIDs,
		ProjectedEndDate: projected,
		RecalculatedAt:   rec.ComputedAt,
		TraceID:          rec.TraceID,
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrScheduleLocked):
		return "locked"
	case errors.Is(err, model.ErrScheduleNotFound):
		return "not_found"
	default:
		return "failed"
	}
}

