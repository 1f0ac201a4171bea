package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	mqcontracts "obraflow/contracts/mq"
	"obraflow/pkg/auth"
	"obraflow/pkg/logger"
	"obraflow/pkg/schedule"
	"obraflow/schedule-service/internal/model"
	"obraflow/schedule-service/internal/service"
)

// ClaimsKey is the gin context key holding *auth.Claims.
const ClaimsKey = "claims"

type Recalculator interface {
	Recalculate(ctx context.Context, orgID, scheduleID uuid.UUID, trigger string) (*model.Recalculation, error)
	Preview(ctx context.Context, req service.PreviewRequest) schedule.Result
	History(ctx context.Context, orgID, scheduleID uuid.UUID, limit int) ([]model.Recalculation, error)
}

type ScheduleHandler struct {
	svc    Recalculator
	logger *zap.Logger
}

func NewScheduleHandler(svc Recalculator, logger *zap.Logger) *ScheduleHandler {
	return &ScheduleHandler{svc: svc, logger: logger}
}

func claimsFrom(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

func (h *ScheduleHandler) scheduleID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return uuid.Nil, false
	}
	return id, true
}

// Recalculate handles POST /schedules/:id/recalculate.
func (h *ScheduleHandler) Recalculate(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.WithTrace(ctx, h.logger)

	scheduleID, ok := h.scheduleID(c)
	if !ok {
		return
	}
	claims := claimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
		return
	}

	rec, err := h.svc.Recalculate(ctx, claims.OrgID, scheduleID, mqcontracts.TriggerManual)
	switch {
	case errors.Is(err, model.ErrScheduleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
		return
	case errors.Is(err, service.ErrScheduleLocked):
		c.JSON(http.StatusConflict, gin.H{"error": "schedule is being recalculated, retry later"})
		return
	case err != nil:
		log.Error("Recalculate: failed",
			zap.String("schedule_id", scheduleID.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to recalculate schedule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"recalculation": rec})
}

// Preview handles POST /schedules/preview.
func (h *ScheduleHandler) Preview(c *gin.Context) {
	var req service.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := validatePreview(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.svc.Preview(c.Request.Context(), req))
}

// validatePreview rejects statuses and link types the API does not declare.
// Dates and durations stay lenient; the engine treats them as absent or clamps.
func validatePreview(req service.PreviewRequest) error {
	for _, it := range req.Items {
		if !it.Status.IsValid() {
			return fmt.Errorf("item %q: unknown status %q", it.ID, it.Status)
		}
	}
	for _, d := range req.Dependencies {
		if !d.Type.IsValid() {
			return fmt.Errorf("dependency %s -> %s: unknown type %q", d.PredecessorID, d.SuccessorID, d.Type)
		}
	}
	return nil
}

// History handles GET /schedules/:id/recalculations.
func (h *ScheduleHandler) History(c *gin.Context) {
	scheduleID, ok := h.scheduleID(c)
	if !ok {
		return
	}
	claims := claimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return
	}
	recs, err := h.svc.History(c.Request.Context(), claims.OrgID, scheduleID, limit)
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("History: failed",
			zap.String("schedule_id", scheduleID.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list recalculations"})
		return
	}
	if recs == nil {
		recs = []model.Recalculation{}
	}
	c.JSON(http.StatusOK, gin.H{"recalculations": recs})
}
