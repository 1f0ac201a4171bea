package outbox

import (
	"context"
	"fmt"

	"obraflow/pkg/trace"
)

// ReplayStore 重放需要的 outbox 操作
type ReplayStore interface {
	Store
	GetEventByID(ctx context.Context, eventID int64) (*Event, error)
	GetFailedEvents(ctx context.Context, limit int) ([]*Event, error)
}

// ReplayService 重新发布失败的事件
type ReplayService struct {
	repo      ReplayStore
	publisher Publisher
}

func NewReplayService(repo ReplayStore, publisher Publisher) *ReplayService {
	return &ReplayService{repo: repo, publisher: publisher}
}

// ReplayEvent 重新发布指定事件
func (s *ReplayService) ReplayEvent(ctx context.Context, eventID int64) error {
	event, err := s.repo.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}

	if traceID := traceIDOf(event.Payload); traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}
	if err := s.publisher.PublishWithContext(ctx, event.RoutingKey, event.Payload); err != nil {
		return fmt.Errorf("failed to publish event %d: %w", eventID, err)
	}
	return s.repo.MarkAsSent(ctx, eventID)
}

// ReplayFailedEvents 重放最多 limit 个失败事件，返回成功数与第一个错误
func (s *ReplayService) ReplayFailedEvents(ctx context.Context, limit int) (int, error) {
	events, err := s.repo.GetFailedEvents(ctx, limit)
	if err != nil {
		return 0, err
	}

	var firstErr error
	ok := 0
	for _, event := range events {
		if err := s.ReplayEvent(ctx, event.ID); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		ok++
	}
	return ok, firstErr
}
