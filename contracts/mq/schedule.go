package mq

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoutingKeyRecalculateRequested = "schedule.recalculate.requested"
	RoutingKeyRecalculated         = "schedule.recalculated"
)

// 触发重算的来源
const (
	TriggerItemChanged       = "item_changed"
	TriggerDependencyChanged = "dependency_changed"
	TriggerCalendarChanged   = "calendar_changed"
	TriggerOverdueSweep      = "overdue_sweep"
	TriggerManual            = "manual"
)

// RecalculateRequestedPayload 请求重算某个 schedule
type RecalculateRequestedPayload struct {
	RequestID   uuid.UUID `json:"request_id"`
	OrgID       uuid.UUID `json:"org_id"`
	ScheduleID  uuid.UUID `json:"schedule_id"`
	Trigger     string    `json:"trigger"`
	RequestedAt time.Time `json:"requested_at"`
	TraceID     string    `json:"trace_id,omitempty"`
}

// RecalculatedPayload 重算完成后经 outbox 发布
type RecalculatedPayload struct {
	OrgID            uuid.UUID `json:"org_id"`
	ScheduleID       uuid.UUID `json:"schedule_id"`
	Trigger          string    `json:"trigger"`
	TotalItems       int       `json:"total_items"`
	DelayedItemCount int       `json:"delayed_item_count"`
	BlockedItemCount int       `json:"blocked_item_count"`
	CriticalItemIDs  []string  `json:"critical_item_ids"`
	ProjectedEndDate *string   `json:"projected_end_date"`
	RecalculatedAt   time.Time `json:"recalculated_at"`
	TraceID          string    `json:"trace_id,omitempty"`
}
