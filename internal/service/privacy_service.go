package service

import (
	"context"

	"github.com/pulsegram/relation-service/internal/domain"
	"github.com/pulsegram/relation-service/internal/repository"
	pkglog "github.com/pulsegram/relation-service/pkg/log"
)

// privacyService implements PrivacyService.
type privacyService struct {
	privacy repository.PrivacyRepository
}

// NewPrivacyService creates a new PrivacyService instance.
func NewPrivacyService(privacy repository.PrivacyRepository) PrivacyService {
	return &privacyService{privacy: privacy}
}

// Get returns the user's settings, defaulting when none are stored.
func (s *privacyService) Get(ctx context.Context, userID string) (domain.PrivacySettings, error) {
	return s.privacy.Get(ctx, userID)
}

// Update validates and persists the full settings record. Turning is_private
// on forces require_follow_approval in the same write. Existing follow edges
// are untouched: followers gained while the account was public are
// grandfathered in.
func (s *privacyService) Update(ctx context.Context, settings domain.PrivacySettings) (domain.PrivacySettings, error) {
	if field := settings.Validate(); field != "" {
		return domain.PrivacySettings{}, &InvalidSettingError{Field: field}
	}
	settings.Normalize()

	if err := s.privacy.Upsert(ctx, settings); err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).
			Str("user_id", settings.UserID).
			Msg("failed to update privacy settings")
		return domain.PrivacySettings{}, err
	}
	return settings, nil
}

// Reset restores the documented default configuration.
func (s *privacyService) Reset(ctx context.Context, userID string) (domain.PrivacySettings, error) {
	settings, err := s.privacy.Reset(ctx, userID)
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).
			Str("user_id", userID).
			Msg("failed to reset privacy settings")
		return domain.PrivacySettings{}, err
	}
	return settings, nil
}

// Ensure interface is satisfied at compile time.
var _ PrivacyService = (*privacyService)(nil)
