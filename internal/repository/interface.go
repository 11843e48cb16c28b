package repository

import (
	"context"
	"errors"

	"github.com/pulsegram/relation-service/internal/domain"
)

var (
	ErrAlreadyFollowing = errors.New("already following")
	ErrFollowNotFound   = errors.New("follow relationship not found")
	ErrAlreadyBlocked   = errors.New("already blocked")
	ErrBlockNotFound    = errors.New("block not found")
	ErrDuplicateRequest = errors.New("pending follow request already exists")
	ErrRequestNotFound  = errors.New("follow request not found")
)

// RelationshipRepository defines persistence operations for follow and block
// edges and the denormalized counters that ride along with them. Every
// multi-row mutation (edge + counters, block + cascading unfollow) is applied
// inside a single transaction.
type RelationshipRepository interface {
	// CreateFollow inserts a follow edge and adjusts both counters, returning
	// the follower's following count and the target's followers count.
	CreateFollow(ctx context.Context, followerID, followingID string) (domain.FollowCounts, domain.FollowCounts, error)
	// DeleteFollow removes a follow edge and adjusts both counters.
	DeleteFollow(ctx context.Context, followerID, followingID string) (domain.FollowCounts, domain.FollowCounts, error)

	// CreateBlock inserts a block edge and removes any follow edge between
	// the pair in either direction as one atomic unit.
	CreateBlock(ctx context.Context, blockerID, blockedID string, reason domain.BlockReason, reportID string) error
	// DeleteBlock removes a block edge, reporting whether one existed.
	DeleteBlock(ctx context.Context, blockerID, blockedID string) (bool, error)

	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	BatchIsFollowing(ctx context.Context, followerID string, targetIDs []string) (map[string]bool, error)
	IsBlockedEither(ctx context.Context, a, b string) (bool, error)
	HasBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)
	GetRelationship(ctx context.Context, a, b string) (domain.Relationship, error)

	ListBlocked(ctx context.Context, userID string, page, limit int) ([]domain.BlockedUser, int64, error)
	ListBlockedBy(ctx context.Context, userID string, page, limit int) ([]domain.BlockedUser, int64, error)

	// Stored (denormalized) counters.
	GetCounts(ctx context.Context, userID string) (domain.FollowCounts, error)
	// Edge-set counts, used by the reconciler as ground truth.
	CountEdges(ctx context.Context, userID string) (domain.FollowCounts, error)
	// SetCounts writes both counters to an absolute value (idempotent).
	SetCounts(ctx context.Context, userID string, counts domain.FollowCounts) error
}

// FollowRequestRepository defines persistence operations for the follow
// request lifecycle. Approve transitions the row and creates the follow edge
// in the same transaction.
type FollowRequestRepository interface {
	Create(ctx context.Context, requesterID, targetID string) (*domain.FollowRequest, error)
	HasPending(ctx context.Context, requesterID, targetID string) (bool, error)
	// Approve marks the pending request owned by targetID as approved and
	// creates the follow edge with its counter updates atomically. It
	// returns the requester's id alongside both sides' fresh counters.
	Approve(ctx context.Context, id uint, targetID string) (string, domain.FollowCounts, domain.FollowCounts, error)
	// Reject marks the pending request owned by targetID as rejected and
	// returns the requester's id.
	Reject(ctx context.Context, id uint, targetID string) (string, error)
	ListByTarget(ctx context.Context, targetID string, page, limit int) ([]domain.FollowRequest, int64, error)
}

// PrivacyRepository defines persistence operations for per-user privacy
// configuration. Reads of a missing row return the default configuration.
type PrivacyRepository interface {
	Get(ctx context.Context, userID string) (domain.PrivacySettings, error)
	Upsert(ctx context.Context, settings domain.PrivacySettings) error
	Reset(ctx context.Context, userID string) (domain.PrivacySettings, error)
}
