package repository

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pulsegram/relation-service/internal/domain"
)

// newTestDB opens an isolated in-memory SQLite database with the full schema,
// including the partial unique index on pending follow requests that
// production creates at startup.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&domain.UserModel{},
		&domain.FollowModel{},
		&domain.BlockModel{},
		&domain.FollowRequestModel{},
		&domain.PrivacySettingsModel{},
	)
	require.NoError(t, err)

	err = db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS uidx_request_pair_pending " +
			"ON follow_requests (requester_id, target_id) WHERE status = 'pending'",
	).Error
	require.NoError(t, err)

	return db
}

func seedUser(t *testing.T, db *gorm.DB, id, username string) {
	t.Helper()
	require.NoError(t, db.Create(&domain.UserModel{ID: id, Username: username}).Error)
}

func storedCounts(t *testing.T, db *gorm.DB, userID string) domain.FollowCounts {
	t.Helper()
	var user domain.UserModel
	require.NoError(t, db.Where("id = ?", userID).First(&user).Error)
	return domain.FollowCounts{
		FollowersCount: user.FollowersCount,
		FollowingCount: user.FollowingCount,
	}
}
