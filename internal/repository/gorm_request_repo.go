package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/pulsegram/relation-service/internal/domain"
)

// GormFollowRequestRepository implements FollowRequestRepository using GORM.
type GormFollowRequestRepository struct {
	db *gorm.DB
}

// NewGormFollowRequestRepository creates a new GORM-backed follow request repository.
func NewGormFollowRequestRepository(db *gorm.DB) *GormFollowRequestRepository {
	return &GormFollowRequestRepository{db: db}
}

// Create inserts a pending request for the (requester, target) pair. The
// partial unique index on pending rows makes concurrent creates race-safe:
// the loser sees a unique violation and reports ErrDuplicateRequest.
func (r *GormFollowRequestRepository) Create(ctx context.Context, requesterID, targetID string) (*domain.FollowRequest, error) {
	model := domain.FollowRequestModel{
		RequesterID: requesterID,
		TargetID:    targetID,
		Status:      domain.RequestStatusPending,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateRequest
		}
		return nil, err
	}
	return &domain.FollowRequest{
		ID:          model.ID,
		RequesterID: model.RequesterID,
		TargetID:    model.TargetID,
		Status:      model.Status,
		CreatedAt:   model.CreatedAt,
	}, nil
}

// HasPending checks whether a pending request exists for the pair.
func (r *GormFollowRequestRepository) HasPending(ctx context.Context, requesterID, targetID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.FollowRequestModel{}).
		Where("requester_id = ? AND target_id = ? AND status = ?", requesterID, targetID, domain.RequestStatusPending).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// transition flips a pending request owned by targetID to a terminal status
// inside tx, returning the loaded row. Missing, terminal, and foreign rows
// all surface as ErrRequestNotFound.
func transitionRequestTx(tx *gorm.DB, id uint, targetID, status string) (*domain.FollowRequestModel, error) {
	var model domain.FollowRequestModel
	err := tx.Where("id = ? AND target_id = ?", id, targetID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	// Guard the pending→terminal transition with a conditioned update so two
	// concurrent approvals have exactly one winner.
	result := tx.Model(&domain.FollowRequestModel{}).
		Where("id = ? AND status = ?", id, domain.RequestStatusPending).
		Update("status", status)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrRequestNotFound
	}
	return &model, nil
}

// Approve marks the request approved and creates the follow edge with its
// counter updates in the same transaction. Approval is the approval check:
// the edge-creation path here does not re-consult the target's privacy.
func (r *GormFollowRequestRepository) Approve(ctx context.Context, id uint, targetID string) (string, domain.FollowCounts, domain.FollowCounts, error) {
	var (
		requesterID       string
		requester, target domain.FollowCounts
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := transitionRequestTx(tx, id, targetID, domain.RequestStatusApproved)
		if err != nil {
			return err
		}
		requesterID = model.RequesterID
		requester, target, err = createFollowTx(tx, model.RequesterID, model.TargetID)
		if errors.Is(err, ErrAlreadyFollowing) {
			// Edge appeared since the request was filed; the approval still
			// lands, the edge is simply already there. Counters did not move,
			// but the caller still needs the real values for its cache.
			if requester, err = readCounts(tx, model.RequesterID); err != nil {
				return err
			}
			target, err = readCounts(tx, model.TargetID)
		}
		return err
	})
	return requesterID, requester, target, err
}

// Reject marks the pending request owned by targetID as rejected and
// returns the requester's id.
func (r *GormFollowRequestRepository) Reject(ctx context.Context, id uint, targetID string) (string, error) {
	var requesterID string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := transitionRequestTx(tx, id, targetID, domain.RequestStatusRejected)
		if err != nil {
			return err
		}
		requesterID = model.RequesterID
		return nil
	})
	return requesterID, err
}

// ListByTarget returns pending requests for targetID, newest first, with the
// requester's profile projection joined in.
func (r *GormFollowRequestRepository) ListByTarget(ctx context.Context, targetID string, page, limit int) ([]domain.FollowRequest, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	var total int64
	err := r.db.WithContext(ctx).Model(&domain.FollowRequestModel{}).
		Where("target_id = ? AND status = ?", targetID, domain.RequestStatusPending).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var rows []domain.FollowRequest
	err = r.db.WithContext(ctx).Model(&domain.FollowRequestModel{}).
		Where("follow_requests.target_id = ? AND follow_requests.status = ?", targetID, domain.RequestStatusPending).
		Select("follow_requests.id, follow_requests.requester_id, users.username AS requester_username, users.avatar_url AS requester_avatar_url, follow_requests.target_id, follow_requests.status, follow_requests.created_at").
		Joins("LEFT JOIN users ON users.id = follow_requests.requester_id").
		Order("follow_requests.created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Ensure interface is satisfied at compile time.
var _ FollowRequestRepository = (*GormFollowRequestRepository)(nil)
