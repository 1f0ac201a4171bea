package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontracts "obraflow/contracts/mq"
	"obraflow/pkg/circuitbreaker"
	"obraflow/pkg/metrics"
	"obraflow/pkg/trace"
	"obraflow/schedule-runner-service/internal/repository"
)

type ScheduleLister interface {
	ListActiveSchedules(ctx context.Context, after uuid.UUID, limit int) ([]repository.ScheduleRef, error)
}

type Publisher interface {
	PublishWithContext(ctx context.Context, routingKey string, payload any) error
}

// Sweeper periodically requests recalculation of every active schedule so
// overdue counts advance with the clock even when nothing is edited.
type Sweeper struct {
	repo      ScheduleLister
	publisher Publisher
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
	breaker   *circuitbreaker.CircuitBreaker
	now       func() time.Time
}

func NewSweeper(repo ScheduleLister, publisher Publisher, interval time.Duration, batchSize int, logger *zap.Logger) *Sweeper {
	s := &Sweeper{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
	return s.WithBreaker(circuitbreaker.New(circuitbreaker.DefaultConfig()))
}

// WithBreaker replaces the breaker guarding publishes.
func (s *Sweeper) WithBreaker(cb *circuitbreaker.CircuitBreaker) *Sweeper {
	cb.OnStateChange(func(from, to circuitbreaker.State) {
		s.logger.Warn("Publish circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	})
	s.breaker = cb
	return s
}

// Start runs one sweep immediately, then one per interval until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting overdue sweeper",
		zap.Duration("interval", s.interval),
		zap.Int("batch_size", s.batchSize),
	)

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("Overdue sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Overdue sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("Overdue sweep failed", zap.Error(err))
			}
		}
	}
}

// RunOnce publishes a recalculate request for every active schedule and
// returns how many were published. Publish failures are logged and skipped
// until the breaker opens, which aborts the sweep with circuitbreaker.ErrOpen.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	ctx, traceID := trace.Ensure(ctx)
	log := s.logger.With(zap.String("trace_id", traceID))

	published, failed := 0, 0
	after := uuid.Nil
	for {
		refs, err := s.repo.ListActiveSchedules(ctx, after, s.batchSize)
		if err != nil {
			return published, err
		}

		for _, ref := range refs {
			payload := mqcontracts.RecalculateRequestedPayload{
				RequestID:   uuid.New(),
				OrgID:       ref.OrgID,
				ScheduleID:  ref.ID,
				Trigger:     mqcontracts.TriggerOverdueSweep,
				RequestedAt: s.now().UTC(),
				TraceID:     traceID,
			}
			err := s.breaker.Execute(func() error {
				return s.publisher.PublishWithContext(ctx, mqcontracts.RoutingKeyRecalculateRequested, payload)
			})
			if errors.Is(err, circuitbreaker.ErrOpen) {
				metrics.IncrementSweepRequest("aborted")
				log.Warn("Overdue sweep aborted, broker unavailable",
					zap.Int("published", published),
					zap.Int("failed", failed),
				)
				return published, err
			}
			if err != nil {
				failed++
				metrics.IncrementSweepRequest("failed")
				log.Error("Failed to publish recalculate request",
					zap.String("schedule_id", ref.ID.String()),
					zap.Error(err),
				)
				continue
			}
			published++
			metrics.IncrementSweepRequest("published")
		}

		if len(refs) < s.batchSize {
			break
		}
		after = refs[len(refs)-1].ID
	}

	log.Info("Overdue sweep completed",
		zap.Int("published", published),
		zap.Int("failed", failed),
	)
	return published, nil
}
