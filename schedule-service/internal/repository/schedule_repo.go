package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	mqcontracts "obraflow/contracts/mq"
	"obraflow/pkg/otel"
	"obraflow/pkg/outbox"
	"obraflow/pkg/schedule"
	"obraflow/schedule-service/internal/model"
)

const aggregateSchedule = "schedule"

type ScheduleRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewScheduleRepository(db *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *ScheduleRepository {
	return &ScheduleRepository{
		db:     db,
		outbox: outboxRepo,
		logger: logger,
	}
}

const selectScheduleSQL = `
	SELECT id, org_id, obra_id, name, calendar, projected_end_date, recalculated_at
	FROM schedules
	WHERE id = $1 AND org_id = $2 AND archived_at IS NULL
`

const selectItemsSQL = `
	SELECT id, schedule_id, title, kind, status, planned_duration_days,
	       planned_start_date, planned_end_date, overdue_days
	FROM schedule_items
	WHERE schedule_id = $1 AND org_id = $2
	ORDER BY sort_order, created_at
`

const selectDependenciesSQL = `
	SELECT id, schedule_id, predecessor_id, successor_id, lag_days, type
	FROM schedule_dependencies
	WHERE schedule_id = $1
	ORDER BY created_at
`

// LoadSnapshot reads the schedule, its items and dependencies inside one
// repeatable-read transaction so the three reads are consistent.
func (r *ScheduleRepository) LoadSnapshot(ctx context.Context, orgID, scheduleID uuid.UUID) (*model.Snapshot, error) {
	var snap model.Snapshot

	err := otel.WithDBSpan(ctx, "select", "schedules", func(ctx context.Context) error {
		return pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
			s, err := scanSchedule(tx.QueryRow(ctx, selectScheduleSQL, scheduleID, orgID))
			if err != nil {
				return err
			}
			snap.Schedule = s

			if snap.Items, err = queryItems(ctx, tx, scheduleID, orgID); err != nil {
				return err
			}
			snap.Dependencies, err = queryDependencies(ctx, tx, scheduleID)
			return err
		})
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", model.ErrScheduleNotFound, scheduleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule %s: %w", scheduleID, err)
	}

	r.logger.Debug("Loaded schedule snapshot",
		zap.String("schedule_id", scheduleID.String()),
		zap.Int("items", len(snap.Items)),
		zap.Int("dependencies", len(snap.Dependencies)),
	)
	return &snap, nil
}

func scanSchedule(row pgx.Row) (model.Schedule, error) {
	var (
		s          model.Schedule
		calendar   []byte
		projection *time.Time
	)
	if err := row.Scan(&s.ID, &s.OrgID, &s.ObraID, &s.Name, &calendar, &projection, &s.RecalculatedAt); err != nil {
		return s, err
	}
	if len(calendar) > 0 && string(calendar) != "null" {
		var cfg schedule.CalendarConfig
		if err := json.Unmarshal(calendar, &cfg); err != nil {
			return s, fmt.Errorf("invalid calendar for schedule %s: %w", s.ID, err)
		}
		s.Calendar = &cfg
	}
	s.ProjectedEndDate = dateOf(projection)
	return s, nil
}

func queryItems(ctx context.Context, tx pgx.Tx, scheduleID, orgID uuid.UUID) ([]model.ScheduleItem, error) {
	rows, err := tx.Query(ctx, selectItemsSQL, scheduleID, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.ScheduleItem
	for rows.Next() {
		var (
			it         model.ScheduleItem
			start, end *time.Time
		)
		if err := rows.Scan(&it.ID, &it.ScheduleID, &it.Title, &it.Kind, &it.Status,
			&it.PlannedDurationDays, &start, &end, &it.OverdueDays); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		it.PlannedStartDate = dateOf(start)
		it.PlannedEndDate = dateOf(end)
		items = append(items, it)
	}
	return items, rows.Err()
}

func queryDependencies(ctx context.Context, tx pgx.Tx, scheduleID uuid.UUID) ([]model.ScheduleDependency, error) {
	rows, err := tx.Query(ctx, selectDependenciesSQL, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deps []model.ScheduleDependency
	for rows.Next() {
		var d model.ScheduleDependency
		if err := rows.Scan(&d.ID, &d.ScheduleID, &d.PredecessorID, &d.SuccessorID, &d.LagDays, &d.Type); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

const updateItemSQL = `
	UPDATE schedule_items
	SET planned_start_date = $1,
	    planned_end_date = $2,
	    planned_duration_days = $3,
	    overdue_days = $4,
	    updated_at = NOW()
	WHERE id = $5 AND schedule_id = $6
`

const updateScheduleSQL = `
	UPDATE schedules
	SET projected_end_date = $1,
	    delayed_item_count = $2,
	    blocked_item_count = $3,
	    recalculated_at = $4,
	    updated_at = NOW()
	WHERE id = $5 AND org_id = $6
`

const insertRecalculationSQL = `
	INSERT INTO schedule_recalculations
	    (id, schedule_id, org_id, trigger, total_items, delayed_item_count, blocked_item_count,
	     critical_item_ids, projected_end_date, ignored_dependencies, trace_id, computed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

// SaveRecalculation writes item updates, the schedule roll-up, the history
// row and the schedule.recalculated outbox event in one transaction.
func (r *ScheduleRepository) SaveRecalculation(ctx context.Context, rec *model.Recalculation, updates []schedule.Update, event *mqcontracts.RecalculatedPayload) error {
	err := otel.WithDBSpan(ctx, "update", "schedule_items", func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
			batch := &pgx.Batch{}
			for _, u := range updates {
				itemID, err := uuid.Parse(u.ID)
				if err != nil {
					return fmt.Errorf("invalid item id %q: %w", u.ID, err)
				}
				batch.Queue(updateItemSQL,
					u.PlannedStartDate.Ptr(),
					u.PlannedEndDate.Ptr(),
					u.PlannedDurationDays,
					u.OverdueDays,
					itemID,
					rec.ScheduleID,
				)
			}
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("failed to update items: %w", err)
			}

			s := rec.Summary
			tag, err := tx.Exec(ctx, updateScheduleSQL,
				s.ProjectedEndDate.Ptr(), s.DelayedItemCount, s.BlockedItemCount, rec.ComputedAt,
				rec.ScheduleID, rec.OrgID)
			if err != nil {
				return fmt.Errorf("failed to update schedule: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return pgx.ErrNoRows
			}

			if _, err := tx.Exec(ctx, insertRecalculationSQL,
				rec.ID, rec.ScheduleID, rec.OrgID, rec.Trigger,
				s.TotalItems, s.DelayedItemCount, s.BlockedItemCount, s.CriticalItemIDs,
				s.ProjectedEndDate.Ptr(), rec.IgnoredDependencies, rec.TraceID, rec.ComputedAt,
			); err != nil {
				return fmt.Errorf("failed to insert recalculation: %w", err)
			}

			if event == nil {
				return nil
			}
			return outbox.InsertEventInTx(ctx, tx, r.outbox, aggregateSchedule, rec.ScheduleID,
				mqcontracts.RoutingKeyRecalculated, event)
		})
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", model.ErrScheduleNotFound, rec.ScheduleID)
	}
	if err != nil {
		r.logger.Error("Failed to save recalculation",
			zap.String("schedule_id", rec.ScheduleID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

const listRecalculationsSQL = `
	SELECT id, schedule_id, org_id, trigger, total_items, delayed_item_count, blocked_item_count,
	       critical_item_ids, projected_end_date, ignored_dependencies, COALESCE(trace_id, ''), computed_at
	FROM schedule_recalculations
	WHERE schedule_id = $1 AND org_id = $2
	ORDER BY computed_at DESC
	LIMIT $3
`

// ListRecalculations returns the most recent runs for a schedule, newest first.
func (r *ScheduleRepository) ListRecalculations(ctx context.Context, orgID, scheduleID uuid.UUID, limit int) ([]model.Recalculation, error) {
	var out []model.Recalculation
	err := otel.WithDBSpan(ctx, "select", "schedule_recalculations", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, listRecalculationsSQL, scheduleID, orgID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				rec        model.Recalculation
				projection *time.Time
			)
			if err := rows.Scan(&rec.ID, &rec.ScheduleID, &rec.OrgID, &rec.Trigger,
				&rec.Summary.TotalItems, &rec.Summary.DelayedItemCount, &rec.Summary.BlockedItemCount,
				&rec.Summary.CriticalItemIDs, &projection, &rec.IgnoredDependencies, &rec.TraceID, &rec.ComputedAt,
			); err != nil {
				return fmt.Errorf("failed to scan recalculation: %w", err)
			}
			rec.Summary.ProjectedEndDate = dateOf(projection)
			out = append(out, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list recalculations: %w", err)
	}
	return out, nil
}

func dateOf(t *time.Time) schedule.Date {
	if t == nil {
		return schedule.Date{}
	}
	return schedule.DateOf(t.UTC())
}
