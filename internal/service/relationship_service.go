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

// relationshipService implements RelationshipService.
type relationshipService struct {
	repo     repository.RelationshipRepository
	requests repository.FollowRequestRepository
	privacy  repository.PrivacyRepository
	store    store.CounterStore
	events   publisher.EventPublisher
}

// NewRelationshipService creates a new RelationshipService instance.
func NewRelationshipService(
	repo repository.RelationshipRepository,
	requests repository.FollowRequestRepository,
	privacy repository.PrivacyRepository,
	counterStore store.CounterStore,
	events publisher.EventPublisher,
) RelationshipService {
	return &relationshipService{
		repo:     repo,
		requests: requests,
		privacy:  privacy,
		store:    counterStore,
		events:   events,
	}
}

// publish emits a relationship event, best-effort.
func (s *relationshipService) publish(ctx context.Context, event publisher.Event) {
	event.At = time.Now().UTC()
	if err := s.events.Publish(ctx, event); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Str("event", event.Type).Msg("failed to publish relationship event")
	}
}

// cacheCounts writes fresh counters through to redis, best-effort.
func (s *relationshipService) cacheCounts(ctx context.Context, userID string, counts domain.FollowCounts) {
	if err := s.store.SetCounts(ctx, userID, counts); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Str("user_id", userID).Msg("failed to cache counts")
	}
}

// Follow creates a follow edge from followerID to targetID, or files a
// follow request when the target requires approval.
func (s *relationshipService) Follow(ctx context.Context, followerID, targetID string) (*FollowResult, error) {
	l := pkglog.Ctx(ctx)

	if followerID == targetID {
		return nil, ErrSelfReference
	}

	blocked, err := s.repo.IsBlockedEither(ctx, followerID, targetID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlocked
	}

	settings, err := s.privacy.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if settings.RequireFollowApproval {
		if !settings.AllowFollowRequests {
			return nil, ErrRequestsDisabled
		}

		following, err := s.repo.IsFollowing(ctx, followerID, targetID)
		if err != nil {
			return nil, err
		}
		if following {
			return nil, ErrAlreadyFollowing
		}

		req, err := s.requests.Create(ctx, followerID, targetID)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateRequest) {
				// A pending request already exists; report it rather than
				// erroring so a repeated follow tap stays idempotent.
				return &FollowResult{Pending: true}, nil
			}
			return nil, err
		}

		s.publish(ctx, publisher.Event{
			Type:      publisher.EventRequestCreated,
			ActorID:   followerID,
			TargetID:  targetID,
			RequestID: req.ID,
		})
		return &FollowResult{Pending: true, RequestID: req.ID}, nil
	}

	follower, target, err := s.repo.CreateFollow(ctx, followerID, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyFollowing) {
			return nil, ErrAlreadyFollowing
		}
		l.Error().Err(err).
			Str("follower_id", followerID).
			Str("target_id", targetID).
			Msg("failed to follow user")
		return nil, err
	}

	s.cacheCounts(ctx, followerID, follower)
	s.cacheCounts(ctx, targetID, target)
	s.publish(ctx, publisher.Event{
		Type:     publisher.EventFollowCreated,
		ActorID:  followerID,
		TargetID: targetID,
	})

	return &FollowResult{
		FollowingCount:       follower.FollowingCount,
		TargetFollowersCount: target.FollowersCount,
	}, nil
}

// Unfollow removes the follow edge from followerID to targetID.
func (s *relationshipService) Unfollow(ctx context.Context, followerID, targetID string) (*FollowResult, error) {
	l := pkglog.Ctx(ctx)

	if followerID == targetID {
		return nil, ErrSelfReference
	}

	follower, target, err := s.repo.DeleteFollow(ctx, followerID, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrFollowNotFound) {
			return nil, ErrNotFollowing
		}
		l.Error().Err(err).
			Str("follower_id", followerID).
			Str("target_id", targetID).
			Msg("failed to unfollow user")
		return nil, err
	}

	s.cacheCounts(ctx, followerID, follower)
	s.cacheCounts(ctx, targetID, target)
	s.publish(ctx, publisher.Event{
		Type:     publisher.EventFollowRemoved,
		ActorID:  followerID,
		TargetID: targetID,
	})

	return &FollowResult{
		FollowingCount:       follower.FollowingCount,
		TargetFollowersCount: target.FollowersCount,
	}, nil
}

// Block inserts a block edge and retracts any follow between the pair.
func (s *relationshipService) Block(ctx context.Context, blockerID, targetID string, reason domain.BlockReason, reportID string) error {
	l := pkglog.Ctx(ctx)

	if blockerID == targetID {
		return ErrSelfReference
	}
	if !reason.Valid() {
		return &InvalidSettingError{Field: "reason"}
	}

	if err := s.repo.CreateBlock(ctx, blockerID, targetID, reason, reportID); err != nil {
		if errors.Is(err, repository.ErrAlreadyBlocked) {
			return ErrAlreadyBlocked
		}
		l.Error().Err(err).
			Str("blocker_id", blockerID).
			Str("target_id", targetID).
			Msg("failed to block user")
		return err
	}

	// The cascade may have removed edges on both sides; drop cached counts
	// rather than guessing at them.
	if err := s.store.Invalidate(ctx, blockerID, targetID); err != nil {
		l.Warn().Err(err).Msg("failed to invalidate cached counts after block")
	}

	s.publish(ctx, publisher.Event{
		Type:     publisher.EventUserBlocked,
		ActorID:  blockerID,
		TargetID: targetID,
		Reason:   string(reason),
	})
	return nil
}

// Unblock removes the block edge from blockerID to targetID.
func (s *relationshipService) Unblock(ctx context.Context, blockerID, targetID string) error {
	removed, err := s.repo.DeleteBlock(ctx, blockerID, targetID)
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).
			Str("blocker_id", blockerID).
			Str("target_id", targetID).
			Msg("failed to unblock user")
		return err
	}
	if !removed {
		return ErrNotBlocked
	}

	s.publish(ctx, publisher.Event{
		Type:     publisher.EventUserUnblocked,
		ActorID:  blockerID,
		TargetID: targetID,
	})
	return nil
}

// GetRelationship returns the edge state between viewer and target.
func (s *relationshipService) GetRelationship(ctx context.Context, viewerID, targetID string) (domain.Relationship, error) {
	return s.repo.GetRelationship(ctx, viewerID, targetID)
}

// IsBlocked reports whether a block exists in either direction.
func (s *relationshipService) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	return s.repo.IsBlockedEither(ctx, a, b)
}

// HasBlocked reports whether blockerID has blocked blockedID.
func (s *relationshipService) HasBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	return s.repo.HasBlocked(ctx, blockerID, blockedID)
}

// ListBlocked returns the users blocked by userID, newest first.
func (s *relationshipService) ListBlocked(ctx context.Context, userID string, page, limit int) ([]domain.BlockedUser, int64, error) {
	return s.repo.ListBlocked(ctx, userID, page, limit)
}

// ListBlockedBy returns the users who have blocked userID, newest first.
func (s *relationshipService) ListBlockedBy(ctx context.Context, userID string, page, limit int) ([]domain.BlockedUser, int64, error) {
	return s.repo.ListBlockedBy(ctx, userID, page, limit)
}

// GetCounts returns both counters for userID, redis first with a DB fallback.
// Each read records a hot-key access for the reconciler sweep.
func (s *relationshipService) GetCounts(ctx context.Context, userID string) (domain.FollowCounts, error) {
	l := pkglog.Ctx(ctx)

	if err := s.store.RecordAccess(ctx, userID); err != nil {
		l.Warn().Err(err).Str("user_id", userID).Msg("failed to record hot key access")
	}

	counts, found, err := s.store.GetCounts(ctx, userID)
	if err != nil {
		l.Warn().Err(err).Str("user_id", userID).Msg("redis get counts failed, falling back to db")
	}
	if found {
		return counts, nil
	}

	counts, err = s.repo.GetCounts(ctx, userID)
	if err != nil {
		l.Error().Err(err).Str("user_id", userID).Msg("failed to get counts from db")
		return domain.FollowCounts{}, err
	}

	s.cacheCounts(ctx, userID, counts)
	return counts, nil
}

// BatchIsFollowing checks whether followerID follows each of the targetIDs.
func (s *relationshipService) BatchIsFollowing(ctx context.Context, followerID string, targetIDs []string) (map[string]bool, error) {
	return s.repo.BatchIsFollowing(ctx, followerID, targetIDs)
}

// Ensure interface is satisfied at compile time.
var _ RelationshipService = (*relationshipService)(nil)
