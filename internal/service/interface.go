package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/pulsegram/relation-service/internal/domain"
)

var (
	ErrSelfReference    = errors.New("cannot target yourself")
	ErrBlocked          = errors.New("blocked relationship")
	ErrAlreadyFollowing = errors.New("already following")
	ErrNotFollowing     = errors.New("not following")
	ErrAlreadyBlocked   = errors.New("already blocked")
	ErrNotBlocked       = errors.New("not blocked")
	ErrRequestNotFound  = errors.New("follow request not found")
	ErrRequestPending   = errors.New("follow request already pending")
	ErrRequestsDisabled = errors.New("target does not accept follow requests")
)

// InvalidSettingError reports a malformed enum value on a settings write.
type InvalidSettingError struct {
	Field string
}

func (e *InvalidSettingError) Error() string {
	return fmt.Sprintf("invalid value for setting %q", e.Field)
}

// FollowResult is the outcome of a follow, unfollow, or approval. Either the
// counters are populated (an edge changed) or Pending is set (a request was
// filed instead).
type FollowResult struct {
	Pending              bool  `json:"pending,omitempty"`
	RequestID            uint  `json:"request_id,omitempty"`
	FollowingCount       int64 `json:"following_count"`
	TargetFollowersCount int64 `json:"target_followers_count"`
}

// BulkApproveResult is the per-request outcome of a bulk approval.
type BulkApproveResult struct {
	RequestID uint   `json:"request_id"`
	Approved  bool   `json:"approved"`
	Error     string `json:"error,omitempty"`
}

// RelationshipService defines the business logic for follow and block edges.
type RelationshipService interface {
	Follow(ctx context.Context, followerID, targetID string) (*FollowResult, error)
	Unfollow(ctx context.Context, followerID, targetID string) (*FollowResult, error)
	Block(ctx context.Context, blockerID, targetID string, reason domain.BlockReason, reportID string) error
	Unblock(ctx context.Context, blockerID, targetID string) error
	GetRelationship(ctx context.Context, viewerID, targetID string) (domain.Relationship, error)
	IsBlocked(ctx context.Context, a, b string) (bool, error)
	HasBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)
	ListBlocked(ctx context.Context, userID string, page, limit int) ([]domain.BlockedUser, int64, error)
	ListBlockedBy(ctx context.Context, userID string, page, limit int) ([]domain.BlockedUser, int64, error)
	GetCounts(ctx context.Context, userID string) (domain.FollowCounts, error)
	BatchIsFollowing(ctx context.Context, followerID string, targetIDs []string) (map[string]bool, error)
}

// FollowRequestService defines the approval workflow for private accounts.
type FollowRequestService interface {
	Approve(ctx context.Context, targetID string, requestID uint) (*FollowResult, error)
	Reject(ctx context.Context, targetID string, requestID uint) error
	BulkApprove(ctx context.Context, targetID string, requestIDs []uint) []BulkApproveResult
	List(ctx context.Context, targetID string, page, limit int) ([]domain.FollowRequest, int64, error)
}

// PrivacyService defines privacy configuration reads and writes.
type PrivacyService interface {
	Get(ctx context.Context, userID string) (domain.PrivacySettings, error)
	Update(ctx context.Context, settings domain.PrivacySettings) (domain.PrivacySettings, error)
	Reset(ctx context.Context, userID string) (domain.PrivacySettings, error)
}
