package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"obraflow/pkg/otel"
)

type ScheduleRef struct {
	ID    uuid.UUID
	OrgID uuid.UUID
}

type ScheduleRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewScheduleRepository(db *pgxpool.Pool, logger *zap.Logger) *ScheduleRepository {
	return &ScheduleRepository{
		db:     db,
		logger: logger,
	}
}

// schedules with at least one unfinished item, keyset-paged by id
const listActiveSQL = `
	SELECT s.id, s.org_id
	FROM schedules s
	WHERE s.archived_at IS NULL
	  AND s.id > $1
	  AND EXISTS (
	      SELECT 1 FROM schedule_items i
	      WHERE i.schedule_id = s.id AND i.status <> 'done'
	  )
	ORDER BY s.id
	LIMIT $2
`

// ListActiveSchedules pages through active schedules by id. Pass uuid.Nil to start.
func (r *ScheduleRepository) ListActiveSchedules(ctx context.Context, after uuid.UUID, limit int) ([]ScheduleRef, error) {
	var refs []ScheduleRef
	err := otel.WithDBSpan(ctx, "select", "schedules", func(ctx context.Context) error {
		rows, err := r.db.Query(ctx, listActiveSQL, after, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var ref ScheduleRef
			if err := rows.Scan(&ref.ID, &ref.OrgID); err != nil {
				return err
			}
			refs = append(refs, ref)
		}
		return rows.Err()
	})
	if err != nil {
		r.logger.Error("Failed to list active schedules", zap.Error(err))
		return nil, fmt.Errorf("failed to list active schedules: %w", err)
	}
	return refs, nil
}
