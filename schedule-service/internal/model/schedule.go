package model

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"obraflow/pkg/schedule"
)

var ErrScheduleNotFound = errors.New("schedule not found")

type Schedule struct {
	ID               uuid.UUID                `json:"id"`
	OrgID            uuid.UUID                `json:"org_id"`
	ObraID           *uuid.UUID               `json:"obra_id,omitempty"`
	Name             string                   `json:"name"`
	Calendar         *schedule.CalendarConfig `json:"calendar,omitempty"`
	ProjectedEndDate schedule.Date            `json:"projected_end_date"`
	RecalculatedAt   *time.Time               `json:"recalculated_at,omitempty"`
}

type ScheduleItem struct {
	ID                  uuid.UUID       `json:"id"`
	ScheduleID          uuid.UUID       `json:"schedule_id"`
	Title               string          `json:"title"`
	Kind                string          `json:"kind"` // task / milestone
	Status              schedule.Status `json:"status"`
	PlannedDurationDays int             `json:"planned_duration_days"`
	PlannedStartDate    schedule.Date   `json:"planned_start_date"`
	PlannedEndDate      schedule.Date   `json:"planned_end_date"`
	OverdueDays         int             `json:"overdue_days"`
}

type ScheduleDependency struct {
	ID            uuid.UUID               `json:"id"`
	ScheduleID    uuid.UUID               `json:"schedule_id"`
	PredecessorID uuid.UUID               `json:"predecessor_id"`
	SuccessorID   uuid.UUID               `json:"successor_id"`
	LagDays       int                     `json:"lag_days"`
	Type          schedule.DependencyType `json:"type"`
}

// Snapshot is everything one recalculation reads.
type Snapshot struct {
	Schedule     Schedule
	Items        []ScheduleItem
	Dependencies []ScheduleDependency
}

// EngineInputs converts the stored rows into engine values, preserving order.
func (s *Snapshot) EngineInputs() ([]schedule.Item, []schedule.Dependency) {
	items := make([]schedule.Item, len(s.Items))
	for i, it := range s.Items {
		items[i] = schedule.Item{
			ID:                  it.ID.String(),
			Status:              it.Status,
			PlannedDurationDays: it.PlannedDurationDays,
			PlannedStartDate:    it.PlannedStartDate,
			PlannedEndDate:      it.PlannedEndDate,
		}
	}
	deps := make([]schedule.Dependency, len(s.Dependencies))
	for i, d := range s.Dependencies {
		deps[i] = schedule.Dependency{
			PredecessorID: d.PredecessorID.String(),
			SuccessorID:   d.SuccessorID.String(),
			LagDays:       d.LagDays,
			Type:          d.Type,
		}
	}
	return items, deps
}

// CalendarOr returns the schedule's own calendar, or fallback when none is stored.
func (s *Snapshot) CalendarOr(fallback schedule.CalendarConfig) *schedule.CalendarConfig {
	if s.Schedule.Calendar != nil {
		return s.Schedule.Calendar
	}
	return &fallback
}

// Recalculation is the persisted record of one run.
type Recalculation struct {
	ID                  uuid.UUID        `json:"id"`
	ScheduleID          uuid.UUID        `json:"schedule_id"`
	OrgID               uuid.UUID        `json:"org_id"`
	Trigger             string           `json:"trigger"`
	Summary             schedule.Summary `json:"summary"`
	IgnoredDependencies int              `json:"ignored_dependencies"`
	ComputedAt          time.Time        `json:"computed_at"`
	TraceID             string           `json:"trace_id,omitempty"`
}
