package domain

// Visibility is the per-post audience level.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityFollowers Visibility = "followers"
	VisibilityMutual    Visibility = "mutual"
	VisibilityPrivate   Visibility = "private"
)

// Valid reports whether v is a known visibility level.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityFollowers, VisibilityMutual, VisibilityPrivate:
		return true
	}
	return false
}

// PermissionLevel controls which relationship states may perform an
// interaction (comment, like, share) against a user's content.
type PermissionLevel string

const (
	PermissionEveryone  PermissionLevel = "everyone"
	PermissionFollowers PermissionLevel = "followers"
	PermissionMutual    PermissionLevel = "mutual"
	PermissionNone      PermissionLevel = "none"
)

// Valid reports whether p is a known permission level.
func (p PermissionLevel) Valid() bool {
	switch p {
	case PermissionEveryone, PermissionFollowers, PermissionMutual, PermissionNone:
		return true
	}
	return false
}

// InteractionType names an interaction checked against privacy settings.
type InteractionType string

const (
	InteractionComment InteractionType = "comment"
	InteractionLike    InteractionType = "like"
	InteractionShare   InteractionType = "share"
)

// NotificationPrefs is the fixed set of notification toggles. Unknown event
// types are rejected at the binding boundary, not stored.
type NotificationPrefs struct {
	OnFollow        bool `json:"on_follow"`
	OnFollowRequest bool `json:"on_follow_request"`
	OnComment       bool `json:"on_comment"`
	OnLike          bool `json:"on_like"`
	OnMention       bool `json:"on_mention"`
}

// ProfileVisibility is the set of profile-field display toggles.
type ProfileVisibility struct {
	ShowFollowerCount  bool `json:"show_follower_count"`
	ShowFollowingCount bool `json:"show_following_count"`
	ShowPostCount      bool `json:"show_post_count"`
	ShowJoinDate       bool `json:"show_join_date"`
	ShowOnlineStatus   bool `json:"show_online_status"`
	ShowLastSeen       bool `json:"show_last_seen"`
}

// PrivacySettings is the domain view of a user's privacy configuration.
type PrivacySettings struct {
	UserID                string            `json:"user_id"`
	IsPrivate             bool              `json:"is_private"`
	RequireFollowApproval bool              `json:"require_follow_approval"`
	AllowFollowRequests   bool              `json:"allow_follow_requests"`
	DefaultPostVisibility Visibility        `json:"default_post_visibility"`
	AllowComments         PermissionLevel   `json:"allow_comments"`
	AllowLikes            PermissionLevel   `json:"allow_likes"`
	AllowShares           PermissionLevel   `json:"allow_shares"`
	Notifications         NotificationPrefs `json:"notifications"`
	Profile               ProfileVisibility `json:"profile"`
	AllowSearchIndexing   bool              `json:"allow_search_indexing"`
}

// DefaultPrivacySettings returns the documented default configuration:
// public account, approval off, everything visible, all notifications on.
func DefaultPrivacySettings(userID string) PrivacySettings {
	return PrivacySettings{
		UserID:                userID,
		IsPrivate:             false,
		RequireFollowApproval: false,
		AllowFollowRequests:   true,
		DefaultPostVisibility: VisibilityPublic,
		AllowComments:         PermissionEveryone,
		AllowLikes:            PermissionEveryone,
		AllowShares:           PermissionEveryone,
		Notifications: NotificationPrefs{
			OnFollow:        true,
			OnFollowRequest: true,
			OnComment:       true,
			OnLike:          true,
			OnMention:       true,
		},
		Profile: ProfileVisibility{
			ShowFollowerCount:  true,
			ShowFollowingCount: true,
			ShowPostCount:      true,
			ShowJoinDate:       true,
			ShowOnlineStatus:   true,
			ShowLastSeen:       true,
		},
		AllowSearchIndexing: true,
	}
}

// Normalize enforces the write-time invariant: a private account always
// requires follow approval. The reverse is not forced.
func (s *PrivacySettings) Normalize() {
	if s.IsPrivate {
		s.RequireFollowApproval = true
	}
}

// Validate checks every enum field, returning the name of the first invalid
// field, or "" when the settings are well formed.
func (s *PrivacySettings) Validate() string {
	if !s.DefaultPostVisibility.Valid() {
		return "default_post_visibility"
	}
	if !s.AllowComments.Valid() {
		return "allow_comments"
	}
	if !s.AllowLikes.Valid() {
		return "allow_likes"
	}
	if !s.AllowShares.Valid() {
		return "allow_shares"
	}
	return ""
}

// InteractionLevel returns the configured permission level for an
// interaction type, defaulting closed for unknown types.
func (s *PrivacySettings) InteractionLevel(t InteractionType) PermissionLevel {
	switch t {
	case InteractionComment:
		return s.AllowComments
	case InteractionLike:
		return s.AllowLikes
	case InteractionShare:
		return s.AllowShares
	}
	return PermissionNone
}

// Post is the slice of post metadata the evaluator needs. Posts themselves
// live in the content subsystem.
type Post struct {
	ID         string     `json:"id"`
	AuthorID   string     `json:"author_id"`
	Visibility Visibility `json:"visibility"`
}
