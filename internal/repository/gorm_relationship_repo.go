package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/pulsegram/relation-service/internal/domain"
)

// isUniqueViolation reports whether err is a unique-constraint violation.
// GORM v1.25+ wraps these as gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// GormRelationshipRepository implements RelationshipRepository using GORM.
type GormRelationshipRepository struct {
	db *gorm.DB
}

// NewGormRelationshipRepository creates a new GORM-backed relationship repository.
func NewGormRelationshipRepository(db *gorm.DB) *GormRelationshipRepository {
	return &GormRelationshipRepository{db: db}
}

// adjustCounter applies a delta to one counter column on the users row.
// Decrements are guarded so the counter never goes below zero; increments
// create the users row on first touch.
func adjustCounter(tx *gorm.DB, userID, column string, delta int64) error {
	if delta >= 0 {
		result := tx.Model(&domain.UserModel{}).
			Where("id = ?", userID).
			Update(column, gorm.Expr(column+" + ?", delta))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			user := domain.UserModel{ID: userID}
			switch column {
			case "followers_count":
				user.FollowersCount = delta
			case "following_count":
				user.FollowingCount = delta
			}
			if err := tx.Create(&user).Error; err != nil {
				// Concurrent first touch; retry as a plain update.
				if isUniqueViolation(err) {
					return tx.Model(&domain.UserModel{}).
						Where("id = ?", userID).
						Update(column, gorm.Expr(column+" + ?", delta)).Error
				}
				return err
			}
		}
		return nil
	}

	return tx.Model(&domain.UserModel{}).
		Where("id = ? AND "+column+" >= ?", userID, -delta).
		Update(column, gorm.Expr(column+" + ?", delta)).Error
}

// readCounts loads the stored counters for a user inside tx. A missing row
// reads as zero counts.
func readCounts(tx *gorm.DB, userID string) (domain.FollowCounts, error) {
	var user domain.UserModel
	err := tx.Select("followers_count", "following_count").
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.FollowCounts{}, nil
		}
		return domain.FollowCounts{}, err
	}
	return domain.FollowCounts{
		FollowersCount: user.FollowersCount,
		FollowingCount: user.FollowingCount,
	}, nil
}

// createFollowTx inserts the follow edge and applies both counter updates
// inside tx. Shared with the follow-request approval path, which creates the
// edge in the same transaction that marks the request approved.
func createFollowTx(tx *gorm.DB, followerID, followingID string) (domain.FollowCounts, domain.FollowCounts, error) {
	var follower, target domain.FollowCounts

	edge := domain.FollowModel{
		FollowerID:  followerID,
		FollowingID: followingID,
	}
	if err := tx.Create(&edge).Error; err != nil {
		if isUniqueViolation(err) {
			return follower, target, ErrAlreadyFollowing
		}
		return follower, target, err
	}

	// Counter updates are conditioned on the edge insert having won the
	// uniqueness race above.
	if err := adjustCounter(tx, followerID, "following_count", 1); err != nil {
		return follower, target, err
	}
	if err := adjustCounter(tx, followingID, "followers_count", 1); err != nil {
		return follower, target, err
	}

	var err error
	if follower, err = readCounts(tx, followerID); err != nil {
		return follower, target, err
	}
	if target, err = readCounts(tx, followingID); err != nil {
		return follower, target, err
	}
	return follower, target, nil
}

// deleteFollowTx removes the follow edge and decrements both counters inside
// tx. Returns ErrFollowNotFound when no edge existed; counters are untouched
// in that case.
func deleteFollowTx(tx *gorm.DB, followerID, followingID string) error {
	result := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&domain.FollowModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrFollowNotFound
	}

	if err := adjustCounter(tx, followerID, "following_count", -1); err != nil {
		return err
	}
	return adjustCounter(tx, followingID, "followers_count", -1)
}

// CreateFollow inserts a follow edge and increments both counters atomically.
func (r *GormRelationshipRepository) CreateFollow(ctx context.Context, followerID, followingID string) (domain.FollowCounts, domain.FollowCounts, error) {
	var follower, target domain.FollowCounts
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		follower, target, txErr = createFollowTx(tx, followerID, followingID)
		return txErr
	})
	return follower, target, err
}

// DeleteFollow removes a follow edge and decrements both counters atomically.
func (r *GormRelationshipRepository) DeleteFollow(ctx context.Context, followerID, followingID string) (domain.FollowCounts, domain.FollowCounts, error) {
	var follower, target domain.FollowCounts
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteFollowTx(tx, followerID, followingID); err != nil {
			return err
		}
		var txErr error
		if follower, txErr = readCounts(tx, followerID); txErr != nil {
			return txErr
		}
		target, txErr = readCounts(tx, followingID)
		return txErr
	})
	return follower, target, err
}

// CreateBlock inserts a block edge and, in the same transaction, removes any
// follow edge between the pair in either direction with the matching counter
// decrements.
func (r *GormRelationshipRepository) CreateBlock(ctx context.Context, blockerID, blockedID string, reason domain.BlockReason, reportID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		edge := domain.BlockModel{
			BlockerID: blockerID,
			BlockedID: blockedID,
			Reason:    string(reason),
			ReportID:  reportID,
		}
		if err := tx.Create(&edge).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyBlocked
			}
			return err
		}

		// Cascade: retract follows in both directions. A missing edge is
		// fine here; only a real delete adjusts counters.
		if err := deleteFollowTx(tx, blockerID, blockedID); err != nil && !errors.Is(err, ErrFollowNotFound) {
			return err
		}
		if err := deleteFollowTx(tx, blockedID, blockerID); err != nil && !errors.Is(err, ErrFollowNotFound) {
			return err
		}
		return nil
	})
}

// DeleteBlock removes the block edge. A missing edge is reported, not an error.
func (r *GormRelationshipRepository) DeleteBlock(ctx context.Context, blockerID, blockedID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&domain.BlockModel{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IsFollowing checks if followerID follows followingID.
func (r *GormRelationshipRepository) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.FollowModel{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// BatchIsFollowing checks if followerID follows each of the targetIDs.
func (r *GormRelationshipRepository) BatchIsFollowing(ctx context.Context, followerID string, targetIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(targetIDs))
	for _, id := range targetIDs {
		result[id] = false
	}

	if len(targetIDs) == 0 {
		return result, nil
	}

	var models []domain.FollowModel
	err := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id IN ?", followerID, targetIDs).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	for _, m := range models {
		result[m.FollowingID] = true
	}
	return result, nil
}

// IsBlockedEither reports whether a block exists in either direction between
// a and b. Symmetric by construction.
func (r *GormRelationshipRepository) IsBlockedEither(ctx context.Context, a, b string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.BlockModel{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasBlocked reports whether blockerID has blocked blockedID. Directional.
func (r *GormRelationshipRepository) HasBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.BlockModel{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetRelationship computes the full edge state between a and b from both edge
// tables, one range query per table.
func (r *GormRelationshipRepository) GetRelationship(ctx context.Context, a, b string) (domain.Relationship, error) {
	var rel domain.Relationship

	var follows []domain.FollowModel
	err := r.db.WithContext(ctx).
		Where("(follower_id = ? AND following_id = ?) OR (follower_id = ? AND following_id = ?)", a, b, b, a).
		Find(&follows).Error
	if err != nil {
		return rel, err
	}
	for _, f := range follows {
		if f.FollowerID == a {
			rel.IsFollowing = true
		} else {
			rel.IsFollowedBy = true
		}
	}
	rel.IsMutual = rel.IsFollowing && rel.IsFollowedBy

	var blocks []domain.BlockModel
	err = r.db.WithContext(ctx).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Find(&blocks).Error
	if err != nil {
		return rel, err
	}
	for _, blk := range blocks {
		if blk.BlockerID == a {
			rel.IsBlocking = true
		} else {
			rel.IsBlockedBy = true
		}
	}
	return rel, nil
}

// listBlockedWhere pages block edges newest-first, joining the users
// projection on the given side of the edge.
func (r *GormRelationshipRepository) listBlockedWhere(ctx context.Context, column, joinColumn, userID string, page, limit int) ([]domain.BlockedUser, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	var total int64
	err := r.db.WithContext(ctx).Model(&domain.BlockModel{}).
		Where(column+" = ?", userID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var rows []domain.BlockedUser
	err = r.db.WithContext(ctx).Model(&domain.BlockModel{}).
		Where("block_edges."+column+" = ?", userID).
		Select("block_edges."+joinColumn+" AS user_id, users.username, users.avatar_url, block_edges.reason, block_edges.created_at AS blocked_at").
		Joins("LEFT JOIN users ON users.id = block_edges." + joinColumn).
		Order("block_edges.created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListBlocked returns the users blocked by userID, newest first.
func (r *GormRelationshipRepository) ListBlocked(ctx context.Context, userID string, page, limit int) ([]domain.BlockedUser, int64, error) {
	return r.listBlockedWhere(ctx, "blocker_id", "blocked_id", userID, page, limit)
}

// ListBlockedBy returns the users who have blocked userID, newest first.
func (r *GormRelationshipRepository) ListBlockedBy(ctx context.Context, userID string, page, limit int) ([]domain.BlockedUser, int64, error) {
	return r.listBlockedWhere(ctx, "blocked_id", "blocker_id", userID, page, limit)
}

// GetCounts returns the stored (denormalized) counters for a user.
func (r *GormRelationshipRepository) GetCounts(ctx context.Context, userID string) (domain.FollowCounts, error) {
	return readCounts(r.db.WithContext(ctx), userID)
}

// CountEdges recomputes both counts directly from the follow edge set.
func (r *GormRelationshipRepository) CountEdges(ctx context.Context, userID string) (domain.FollowCounts, error) {
	var counts domain.FollowCounts
	err := r.db.WithContext(ctx).Model(&domain.FollowModel{}).
		Where("following_id = ?", userID).
		Count(&counts.FollowersCount).Error
	if err != nil {
		return counts, err
	}
	err = r.db.WithContext(ctx).Model(&domain.FollowModel{}).
		Where("follower_id = ?", userID).
		Count(&counts.FollowingCount).Error
	return counts, err
}

// SetCounts writes both counters to an absolute value. Idempotent; used by
// the reconciler to repair drift.
func (r *GormRelationshipRepository) SetCounts(ctx context.Context, userID string, counts domain.FollowCounts) error {
	result := r.db.WithContext(ctx).Model(&domain.UserModel{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"followers_count": counts.FollowersCount,
			"following_count": counts.FollowingCount,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		user := domain.UserModel{
			ID:             userID,
			FollowersCount: counts.FollowersCount,
			FollowingCount: counts.FollowingCount,
		}
		if err := r.db.WithContext(ctx).Create(&user).Error; err != nil && !isUniqueViolation(err) {
			return err
		}
	}
	return nil
}

// Ensure interface is satisfied at compile time.
var _ RelationshipRepository = (*GormRelationshipRepository)(nil)
