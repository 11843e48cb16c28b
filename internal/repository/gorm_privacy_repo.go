package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pulsegram/relation-service/internal/domain"
)

// GormPrivacyRepository implements PrivacyRepository using GORM.
type GormPrivacyRepository struct {
	db *gorm.DB
}

// NewGormPrivacyRepository creates a new GORM-backed privacy repository.
func NewGormPrivacyRepository(db *gorm.DB) *GormPrivacyRepository {
	return &GormPrivacyRepository{db: db}
}

func settingsToModel(s domain.PrivacySettings) domain.PrivacySettingsModel {
	return domain.PrivacySettingsModel{
		UserID:                s.UserID,
		IsPrivate:             s.IsPrivate,
		RequireFollowApproval: s.RequireFollowApproval,
		AllowFollowRequests:   s.AllowFollowRequests,
		DefaultPostVisibility: string(s.DefaultPostVisibility),
		AllowComments:         string(s.AllowComments),
		AllowLikes:            string(s.AllowLikes),
		AllowShares:           string(s.AllowShares),
		NotifyOnFollow:        s.Notifications.OnFollow,
		NotifyOnFollowRequest: s.Notifications.OnFollowRequest,
		NotifyOnComment:       s.Notifications.OnComment,
		NotifyOnLike:          s.Notifications.OnLike,
		NotifyOnMention:       s.Notifications.OnMention,
		ShowFollowerCount:     s.Profile.ShowFollowerCount,
		ShowFollowingCount:    s.Profile.ShowFollowingCount,
		ShowPostCount:         s.Profile.ShowPostCount,
		ShowJoinDate:          s.Profile.ShowJoinDate,
		ShowOnlineStatus:      s.Profile.ShowOnlineStatus,
		ShowLastSeen:          s.Profile.ShowLastSeen,
		AllowSearchIndexing:   s.AllowSearchIndexing,
	}
}

func modelToSettings(m domain.PrivacySettingsModel) domain.PrivacySettings {
	return domain.PrivacySettings{
		UserID:                m.UserID,
		IsPrivate:             m.IsPrivate,
		RequireFollowApproval: m.RequireFollowApproval,
		AllowFollowRequests:   m.AllowFollowRequests,
		DefaultPostVisibility: domain.Visibility(m.DefaultPostVisibility),
		AllowComments:         domain.PermissionLevel(m.AllowComments),
		AllowLikes:            domain.PermissionLevel(m.AllowLikes),
		AllowShares:           domain.PermissionLevel(m.AllowShares),
		Notifications: domain.NotificationPrefs{
			OnFollow:        m.NotifyOnFollow,
			OnFollowRequest: m.NotifyOnFollowRequest,
			OnComment:       m.NotifyOnComment,
			OnLike:          m.NotifyOnLike,
			OnMention:       m.NotifyOnMention,
		},
		Profile: domain.ProfileVisibility{
			ShowFollowerCount:  m.ShowFollowerCount,
			ShowFollowingCount: m.ShowFollowingCount,
			ShowPostCount:      m.ShowPostCount,
			ShowJoinDate:       m.ShowJoinDate,
			ShowOnlineStatus:   m.ShowOnlineStatus,
			ShowLastSeen:       m.ShowLastSeen,
		},
		AllowSearchIndexing: m.AllowSearchIndexing,
	}
}

// Get returns the stored settings for a user, or the default configuration
// when no row exists yet.
func (r *GormPrivacyRepository) Get(ctx context.Context, userID string) (domain.PrivacySettings, error) {
	var model domain.PrivacySettingsModel
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.DefaultPrivacySettings(userID), nil
		}
		return domain.PrivacySettings{}, err
	}
	return modelToSettings(model), nil
}

// Upsert writes the full settings record for a user in one statement.
func (r *GormPrivacyRepository) Upsert(ctx context.Context, settings domain.PrivacySettings) error {
	model := settingsToModel(settings)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&model).Error
}

// Reset restores the documented default configuration for a user.
func (r *GormPrivacyRepository) Reset(ctx context.Context, userID string) (domain.PrivacySettings, error) {
	defaults := domain.DefaultPrivacySettings(userID)
	if err := r.Upsert(ctx, defaults); err != nil {
		return domain.PrivacySettings{}, err
	}
	return defaults, nil
}

// Ensure interface is satisfied at compile time.
var _ PrivacyRepository = (*GormPrivacyRepository)(nil)
