package domain

import (
	"time"
)

// UserModel is the GORM model for the users projection table.
// The relation service owns only the denormalized counters; identity fields
// are a projection maintained by the user subsystem.
type UserModel struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)"`
	Username       string    `gorm:"column:username;type:varchar(64)"`
	AvatarURL      string    `gorm:"column:avatar_url;type:varchar(255)"`
	FollowersCount int64     `gorm:"column:followers_count;not null;default:0"`
	FollowingCount int64     `gorm:"column:following_count;not null;default:0"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (UserModel) TableName() string { return "users" }

// FollowModel is the GORM model for the follow_edges table.
// The unique composite index on (follower_id, following_id) is the concurrency
// guard: exactly one writer wins an insert for a given ordered pair.
type FollowModel struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	FollowerID  string    `gorm:"column:follower_id;type:varchar(36);not null;uniqueIndex:uidx_follow_pair;index:idx_follow_follower"`
	FollowingID string    `gorm:"column:following_id;type:varchar(36);not null;uniqueIndex:uidx_follow_pair;index:idx_follow_following"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (FollowModel) TableName() string { return "follow_edges" }

// BlockModel is the GORM model for the block_edges table.
type BlockModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	BlockerID string    `gorm:"column:blocker_id;type:varchar(36);not null;uniqueIndex:uidx_block_pair;index:idx_block_blocker"`
	BlockedID string    `gorm:"column:blocked_id;type:varchar(36);not null;uniqueIndex:uidx_block_pair;index:idx_block_blocked"`
	Reason    string    `gorm:"column:reason;type:varchar(20)"`
	ReportID  string    `gorm:"column:report_id;type:varchar(36)"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (BlockModel) TableName() string { return "block_edges" }

// FollowRequestModel is the GORM model for the follow_requests table.
// Uniqueness of (requester_id, target_id) is enforced only while the request
// is pending, via a partial index created at startup. Terminal rows are kept
// as history; a re-request after rejection inserts a fresh row.
type FollowRequestModel struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	RequesterID string    `gorm:"column:requester_id;type:varchar(36);not null;index:idx_request_requester"`
	TargetID    string    `gorm:"column:target_id;type:varchar(36);not null;index:idx_request_target"`
	Status      string    `gorm:"column:status;type:varchar(10);not null;default:pending"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (FollowRequestModel) TableName() string { return "follow_requests" }

// PrivacySettingsModel is the GORM model for the privacy_settings table,
// keyed by the owning user. Rows are always written with every column set
// explicitly, so no column carries a schema default: GORM omits zero-value
// fields from inserts when a default tag is present, which would silently
// drop booleans flipped to false.
type PrivacySettingsModel struct {
	UserID                string    `gorm:"primaryKey;type:varchar(36)"`
	IsPrivate             bool      `gorm:"column:is_private;not null"`
	RequireFollowApproval bool      `gorm:"column:require_follow_approval;not null"`
	AllowFollowRequests   bool      `gorm:"column:allow_follow_requests;not null"`
	DefaultPostVisibility string    `gorm:"column:default_post_visibility;type:varchar(10);not null"`
	AllowComments         string    `gorm:"column:allow_comments;type:varchar(10);not null"`
	AllowLikes            string    `gorm:"column:allow_likes;type:varchar(10);not null"`
	AllowShares           string    `gorm:"column:allow_shares;type:varchar(10);not null"`
	NotifyOnFollow        bool      `gorm:"column:notify_on_follow;not null"`
	NotifyOnFollowRequest bool      `gorm:"column:notify_on_follow_request;not null"`
	NotifyOnComment       bool      `gorm:"column:notify_on_comment;not null"`
	NotifyOnLike          bool      `gorm:"column:notify_on_like;not null"`
	NotifyOnMention       bool      `gorm:"column:notify_on_mention;not null"`
	ShowFollowerCount     bool      `gorm:"column:show_follower_count;not null"`
	ShowFollowingCount    bool      `gorm:"column:show_following_count;not null"`
	ShowPostCount         bool      `gorm:"column:show_post_count;not null"`
	ShowJoinDate          bool      `gorm:"column:show_join_date;not null"`
	ShowOnlineStatus      bool      `gorm:"column:show_online_status;not null"`
	ShowLastSeen          bool      `gorm:"column:show_last_seen;not null"`
	AllowSearchIndexing   bool      `gorm:"column:allow_search_indexing;not null"`
	CreatedAt             time.Time `gorm:"autoCreateTime"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime"`
}

func (PrivacySettingsModel) TableName() string { return "privacy_settings" }
