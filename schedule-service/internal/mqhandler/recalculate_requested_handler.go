package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontracts "obraflow/contracts/mq"
	"obraflow/pkg/logger"
	"obraflow/pkg/trace"
	"obraflow/pkg/util"
	"obraflow/schedule-service/internal/model"
	"obraflow/schedule-service/internal/service"
)

const handlerName = "schedule.recalculate"

// ErrInvalidPayload marks messages that can never succeed.
var ErrInvalidPayload = errors.New("invalid recalculate payload")

type Recalculator interface {
	Recalculate(ctx context.Context, orgID, scheduleID uuid.UUID, trigger string) (*model.Recalculation, error)
}

type Deduper interface {
	AcquireOnce(ctx context.Context, handler, key string) bool
	Release(ctx context.Context, handler, key string)
}

type RecalculateRequestedHandler struct {
	svc     Recalculator
	deduper Deduper
	logger  *zap.Logger
}

func NewRecalculateRequestedHandler(svc Recalculator, deduper Deduper, logger *zap.Logger) *RecalculateRequestedHandler {
	return &RecalculateRequestedHandler{
		svc:     svc,
		deduper: deduper,
		logger:  logger,
	}
}

func (h *RecalculateRequestedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.RecalculateRequestedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal RecalculateRequestedPayload", zap.Error(err))
		return err
	}
	if p.OrgID == uuid.Nil || p.ScheduleID == uuid.Nil {
		return fmt.Errorf("%w: org_id and schedule_id are required", ErrInvalidPayload)
	}
	if p.Trigger == "" {
		p.Trigger = mqcontracts.TriggerManual
	}
	if p.TraceID != "" && trace.FromContext(ctx) == "" {
		ctx = trace.WithContext(ctx, p.TraceID)
	}

	log := logger.WithTrace(ctx, h.logger).With(
		zap.String("schedule_id", p.ScheduleID.String()),
		zap.String("trigger", p.Trigger),
	)

	dedupKey := p.RequestID.String()
	if p.RequestID != uuid.Nil && !h.deduper.AcquireOnce(ctx, handlerName, dedupKey) {
		return nil
	}

	log.Info("Handling schedule.recalculate.requested event")

	_, err := h.svc.Recalculate(ctx, p.OrgID, p.ScheduleID, p.Trigger)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrScheduleNotFound):
		// deleted or archived since the request was emitted
		log.Warn("Schedule not found, dropping request")
		return nil
	default:
		if p.RequestID != uuid.Nil {
			h.deduper.Release(ctx, handlerName, dedupKey)
		}
		return err
	}
}

// ClassifyError extends util.IsRetryableError with this service's errors.
func ClassifyError(err error) (bool, string) {
	switch {
	case errors.Is(err, service.ErrScheduleLocked):
		return true, "schedule_locked"
	case errors.Is(err, ErrInvalidPayload):
		return false, "invalid_payload"
	default:
		return util.IsRetryableError(err)
	}
}
