package service

import (
	"context"
	"errors"
	"time"

	"github.com/pulsegram/relation-service/internal/domain"
	"github.com/pulsegram/relation-service/internal/publisher"
	"github.com/pulsegram/relation-service/internal/repository"
	"github.com/pulsegram/relation-service/internal/store"
	pkglog "github.com/pulsegram/relation-service/pkg/log"
)

// followRequestService implements FollowRequestService.
type followRequestService struct {
	requests repository.FollowRequestRepository
	store    store.CounterStore
	events   publisher.EventPublisher
}

// NewFollowRequestService creates a new FollowRequestService instance.
func NewFollowRequestService(
	requests repository.FollowRequestRepository,
	counterStore store.CounterStore,
	events publisher.EventPublisher,
) FollowRequestService {
	return &followRequestService{
		requests: requests,
		store:    counterStore,
		events:   events,
	}
}

func (s *followRequestService) publish(ctx context.Context, event publisher.Event) {
	event.At = time.Now().UTC()
	if err := s.events.Publish(ctx, event); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Str("event", event.Type).Msg("failed to publish relationship event")
	}
}

// Approve transitions the request to approved and creates the follow edge.
// Only the request's target may approve; anything else reads as not found.
func (s *followRequestService) Approve(ctx context.Context, targetID string, requestID uint) (*FollowResult, error) {
	l := pkglog.Ctx(ctx)

	requesterID, requester, target, err := s.requests.Approve(ctx, requestID, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return nil, ErrRequestNotFound
		}
		l.Error().Err(err).
			Uint("request_id", requestID).
			Str("target_id", targetID).
			Msg("failed to approve follow request")
		return nil, err
	}

	if err := s.store.SetCounts(ctx, requesterID, requester); err != nil {
		l.Warn().Err(err).Str("user_id", requesterID).Msg("failed to cache counts")
	}
	if err := s.store.SetCounts(ctx, targetID, target); err != nil {
		l.Warn().Err(err).Str("user_id", targetID).Msg("failed to cache counts")
	}

	s.publish(ctx, publisher.Event{
		Type:      publisher.EventRequestApproved,
		ActorID:   targetID,
		TargetID:  requesterID,
		RequestID: requestID,
	})

	return &FollowResult{
		FollowingCount:       requester.FollowingCount,
		TargetFollowersCount: target.FollowersCount,
	}, nil
}

// Reject transitions the request to rejected. The requester may file a new
// request afterwards.
func (s *followRequestService) Reject(ctx context.Context, targetID string, requestID uint) error {
	requesterID, err := s.requests.Reject(ctx, requestID, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			return ErrRequestNotFound
		}
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).
			Uint("request_id", requestID).
			Str("target_id", targetID).
			Msg("failed to reject follow request")
		return err
	}

	s.publish(ctx, publisher.Event{
		Type:      publisher.EventRequestRejected,
		ActorID:   targetID,
		TargetID:  requesterID,
		RequestID: requestID,
	})
	return nil
}

// BulkApprove applies Approve to each id. Per-item failures are collected
// in the result set; the batch itself never fails.
func (s *followRequestService) BulkApprove(ctx context.Context, targetID string, requestIDs []uint) []BulkApproveResult {
	results := make([]BulkApproveResult, 0, len(requestIDs))
	for _, id := range requestIDs {
		res := BulkApproveResult{RequestID: id}
		if _, err := s.Approve(ctx, targetID, id); err != nil {
			res.Error = err.Error()
		} else {
			res.Approved = true
		}
		results = append(results, res)
	}
	return results
}

// List returns pending requests targeting targetID, newest first.
func (s *followRequestService) List(ctx context.Context, targetID string, page, limit int) ([]domain.FollowRequest, int64, error) {
	return s.requests.ListByTarget(ctx, targetID, page, limit)
}

// Ensure interface is satisfied at compile time.
var _ FollowRequestService = (*followRequestService)(nil)
