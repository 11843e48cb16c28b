package domain

import "time"

// Relationship describes the edge state between two users, always from the
// perspective of the first user passed to the lookup.
type Relationship struct {
	IsFollowing  bool `json:"is_following"`
	IsFollowedBy bool `json:"is_followed_by"`
	IsMutual     bool `json:"is_mutual"`
	IsBlocking   bool `json:"is_blocking"`
	IsBlockedBy  bool `json:"is_blocked_by"`
}

// BlockReason categorizes why a user was blocked.
type BlockReason string

const (
	BlockReasonSpam          BlockReason = "spam"
	BlockReasonHarassment    BlockReason = "harassment"
	BlockReasonInappropriate BlockReason = "inappropriate"
	BlockReasonOther         BlockReason = "other"
)

// Valid reports whether the reason is a known value. The empty reason is
// accepted: blocking does not require one.
func (r BlockReason) Valid() bool {
	switch r {
	case "", BlockReasonSpam, BlockReasonHarassment, BlockReasonInappropriate, BlockReasonOther:
		return true
	}
	return false
}

// Request lifecycle states. Approved and rejected are terminal.
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
)

// BlockedUser is a projection of one entry in a user's block list.
type BlockedUser struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url"`
	Reason    string    `json:"reason,omitempty"`
	BlockedAt time.Time `json:"blocked_at"`
}

// FollowRequest is a projection of a pending or terminal follow request,
// carrying a minimal requester profile for list rendering.
type FollowRequest struct {
	ID                 uint      `json:"id"`
	RequesterID        string    `json:"requester_id"`
	RequesterUsername  string    `json:"requester_username"`
	RequesterAvatarURL string    `json:"requester_avatar_url"`
	TargetID           string    `json:"target_id"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
}

// FollowCounts carries both denormalized counters for a user.
type FollowCounts struct {
	FollowersCount int64 `json:"followers_count"`
	FollowingCount int64 `json:"following_count"`
}
