package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsegram/relation-service/internal/domain"
)

func TestPrivacyGet(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewGormPrivacyRepository(db)

	t.Run("missing row reads as defaults", func(t *testing.T) {
		settings, err := repo.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultPrivacySettings("alice"), settings)
	})
}

func TestPrivacyUpsert(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewGormPrivacyRepository(db)

	t.Run("insert then read back", func(t *testing.T) {
		settings := domain.DefaultPrivacySettings("alice")
		settings.IsPrivate = true
		settings.RequireFollowApproval = true
		settings.DefaultPostVisibility = domain.VisibilityFollowers
		settings.AllowComments = domain.PermissionMutual
		settings.Notifications.OnLike = false
		settings.Profile.ShowLastSeen = false

		require.NoError(t, repo.Upsert(ctx, settings))

		got, err := repo.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, settings, got)

		// The flags flipped off must survive the write: a column default
		// would silently resurrect them if the insert omitted zero values.
		assert.False(t, got.Notifications.OnLike)
		assert.False(t, got.Profile.ShowLastSeen)
	})

	t.Run("second upsert overwrites", func(t *testing.T) {
		settings := domain.DefaultPrivacySettings("alice")
		settings.AllowShares = domain.PermissionNone

		require.NoError(t, repo.Upsert(ctx, settings))

		got, err := repo.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, domain.PermissionNone, got.AllowShares)
		assert.False(t, got.IsPrivate)

		// Exactly one row per user.
		var count int64
		require.NoError(t, db.Model(&domain.PrivacySettingsModel{}).
			Where("user_id = ?", "alice").Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})
}

func TestPrivacyReset(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewGormPrivacyRepository(db)

	settings := domain.DefaultPrivacySettings("alice")
	settings.IsPrivate = true
	settings.RequireFollowApproval = true
	require.NoError(t, repo.Upsert(ctx, settings))

	got, err := repo.Reset(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultPrivacySettings("alice"), got)

	stored, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, got, stored)
}
