package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pulsegram/relation-service/internal/domain"
	"github.com/pulsegram/relation-service/internal/service"
	pkglog "github.com/pulsegram/relation-service/pkg/log"
	"github.com/pulsegram/relation-service/pkg/middleware"
	"github.com/pulsegram/relation-service/pkg/response"
)

// Handler handles HTTP requests for the relation service.
type Handler struct {
	relationships  service.RelationshipService
	requests       service.FollowRequestService
	privacy        service.PrivacyService
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(
	relationships service.RelationshipService,
	requests service.FollowRequestService,
	privacy service.PrivacyService,
	authMiddleware *middleware.AuthMiddleware,
) *Handler {
	return &Handler{
		relationships:  relationships,
		requests:       requests,
		privacy:        privacy,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes onto the Gin engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	auth := h.authMiddleware.RequireAuth()
	{
		users := api.Group("/users")
		{
			users.POST("/:user_id/follow", auth, h.Follow)
			users.DELETE("/:user_id/follow", auth, h.Unfollow)
			users.GET("/:user_id/relationship", auth, h.GetRelationship)
			// Public: counts respect the owner's display toggles elsewhere;
			// the raw number feeds profile rendering.
			users.GET("/:user_id/followers/count", h.GetCounts)
			users.POST("/:user_id/following/status", h.BatchIsFollowing)
		}

		blocks := api.Group("/blocks", auth)
		{
			blocks.POST("", h.Block)
			blocks.DELETE("", h.Unblock)
			blocks.GET("", h.ListBlocked)
		}

		requests := api.Group("/follow-requests", auth)
		{
			requests.GET("", h.ListFollowRequests)
			requests.POST("/:id/approve", h.ApproveFollowRequest)
			requests.POST("/:id/reject", h.RejectFollowRequest)
			requests.POST("/bulk-approve", h.BulkApproveFollowRequests)
		}

		privacy := api.Group("/privacy", auth)
		{
			privacy.GET("", h.GetPrivacy)
			privacy.PUT("", h.UpdatePrivacy)
			privacy.POST("/reset", h.ResetPrivacy)
		}
	}
}

func pageParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// Follow handles POST /api/v1/users/:user_id/follow.
func (h *Handler) Follow(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	followerID := middleware.GetUserID(c)
	if followerID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	targetID := c.Param("user_id")
	if targetID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	result, err := h.relationships.Follow(ctx, followerID, targetID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSelfReference):
			response.BadRequest(c, "cannot follow yourself")
		case errors.Is(err, service.ErrBlocked), errors.Is(err, service.ErrRequestsDisabled):
			response.Forbidden(c, "cannot follow this user")
		case errors.Is(err, service.ErrAlreadyFollowing):
			response.Conflict(c, "already following")
		default:
			l.Error().Err(err).
				Str("follower_id", followerID).
				Str("target_id", targetID).
				Msg("follow failed")
			response.InternalError(c, "failed to follow user")
		}
		return
	}

	if result.Pending {
		response.Success(c, gin.H{"pending": true})
		return
	}
	response.Created(c, gin.H{
		"following_count":        result.FollowingCount,
		"target_followers_count": result.TargetFollowersCount,
	})
}

// Unfollow handles DELETE /api/v1/users/:user_id/follow.
func (h *Handler) Unfollow(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	followerID := middleware.GetUserID(c)
	if followerID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	targetID := c.Param("user_id")
	if targetID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	result, err := h.relationships.Unfollow(ctx, followerID, targetID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSelfReference):
			response.BadRequest(c, "cannot unfollow yourself")
		case errors.Is(err, service.ErrNotFollowing):
			response.NotFound(c, "not following")
		default:
			l.Error().Err(err).
				Str("follower_id", followerID).
				Str("target_id", targetID).
				Msg("unfollow failed")
			response.InternalError(c, "failed to unfollow user")
		}
		return
	}

	response.Success(c, gin.H{
		"following_count":        result.FollowingCount,
		"target_followers_count": result.TargetFollowersCount,
	})
}

// GetRelationship handles GET /api/v1/users/:user_id/relationship.
func (h *Handler) GetRelationship(c *gin.Context) {
	ctx := c.Request.Context()

	viewerID := middleware.GetUserID(c)
	if viewerID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	targetID := c.Param("user_id")
	if targetID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	rel, err := h.relationships.GetRelationship(ctx, viewerID, targetID)
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Str("target_id", targetID).Msg("get relationship failed")
		response.InternalError(c, "failed to get relationship")
		return
	}
	response.Success(c, rel)
}

// GetCounts handles GET /api/v1/users/:user_id/followers/count.
func (h *Handler) GetCounts(c *gin.Context) {
	ctx := c.Request.Context()

	userID := c.Param("user_id")
	if userID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	counts, err := h.relationships.GetCounts(ctx, userID)
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Str("user_id", userID).Msg("get counts failed")
		response.InternalError(c, "failed to get counts")
		return
	}
	response.Success(c, counts)
}

// followingStatusRequest is the request body for POST /users/:user_id/following/status.
type followingStatusRequest struct {
	TargetIDs []string `json:"target_ids" binding:"required"`
}

// BatchIsFollowing handles POST /api/v1/users/:user_id/following/status.
func (h *Handler) BatchIsFollowing(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	followerID := c.Param("user_id")
	if followerID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	var req followingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid following status request")
		response.BadRequest(c, err.Error())
		return
	}

	results, err := h.relationships.BatchIsFollowing(ctx, followerID, req.TargetIDs)
	if err != nil {
		l.Error().Err(err).Str("follower_id", followerID).Msg("batch is-following failed")
		response.InternalError(c, "failed to check following status")
		return
	}
	response.Success(c, gin.H{"results": results})
}

// blockRequest is the request body for POST /api/v1/blocks.
type blockRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Reason   string `json:"reason"`
	ReportID string `json:"report_id"`
}

// Block handles POST /api/v1/blocks.
func (h *Handler) Block(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	blockerID := middleware.GetUserID(c)
	if blockerID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req blockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid block request")
		response.BadRequest(c, err.Error())
		return
	}

	err := h.relationships.Block(ctx, blockerID, req.UserID, domain.BlockReason(req.Reason), req.ReportID)
	if err != nil {
		var invalid *service.InvalidSettingError
		switch {
		case errors.Is(err, service.ErrSelfReference):
			response.BadRequest(c, "cannot block yourself")
		case errors.As(err, &invalid):
			response.BadRequest(c, invalid.Error())
		case errors.Is(err, service.ErrAlreadyBlocked):
			response.Conflict(c, "already blocked")
		default:
			l.Error().Err(err).
				Str("blocker_id", blockerID).
				Str("target_id", req.UserID).
				Msg("block failed")
			response.InternalError(c, "failed to block user")
		}
		return
	}
	response.Created(c, gin.H{"message": "user blocked"})
}

// Unblock handles DELETE /api/v1/blocks?user_id=.
func (h *Handler) Unblock(c *gin.Context) {
	ctx := c.Request.Context()

	blockerID := middleware.GetUserID(c)
	if blockerID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	targetID := c.Query("user_id")
	if targetID == "" {
		response.BadRequest(c, "user_id is required")
		return
	}

	if err := h.relationships.Unblock(ctx, blockerID, targetID); err != nil {
		if errors.Is(err, service.ErrNotBlocked) {
			response.NotFound(c, "not blocked")
			return
		}
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).
			Str("blocker_id", blockerID).
			Str("target_id", targetID).
			Msg("unblock failed")
		response.InternalError(c, "failed to unblock user")
		return
	}
	response.Success(c, gin.H{"message": "user unblocked"})
}

// ListBlocked handles GET /api/v1/blocks.
func (h *Handler) ListBlocked(c *gin.Context) {
	ctx := c.Request.Context()

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	page, limit := pageParams(c)
	users, total, err := h.relationships.ListBlocked(ctx, userID, page, limit)
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Str("user_id", userID).Msg("list blocked failed")
		response.InternalError(c, "failed to list blocked users")
		return
	}
	response.Paginated(c, "users", users, total, page, limit)
}

// ListFollowRequests handles GET /api/v1/follow-requests.
func (h *Handler) ListFollowRequests(c *gin.Context) {
	ctx := c.Request.Context()

	targetID := middleware.GetUserID(c)
	if targetID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	page, limit := pageParams(c)
	requests, total, err := h.requests.List(ctx, targetID, page, limit)
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Str("target_id", targetID).Msg("list follow requests failed")
		response.InternalError(c, "failed to list follow requests")
		return
	}
	response.Paginated(c, "requests", requests, total, page, limit)
}

func requestIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid request id")
		return 0, false
	}
	return uint(id), true
}

// ApproveFollowRequest handles POST /api/v1/follow-requests/:id/approve.
func (h *Handler) ApproveFollowRequest(c *gin.Context) {
	ctx := c.Request.Context()

	targetID := middleware.GetUserID(c)
	if targetID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	id, ok := requestIDParam(c)
	if !ok {
		return
	}

	if _, err := h.requests.Approve(ctx, targetID, id); err != nil {
		if errors.Is(err, service.ErrRequestNotFound) {
			response.NotFound(c, "follow request not found")
			return
		}
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Uint("request_id", id).Msg("approve follow request failed")
		response.InternalError(c, "failed to approve follow request")
		return
	}
	response.Success(c, gin.H{"message": "follow request approved"})
}

// RejectFollowRequest handles POST /api/v1/follow-requests/:id/reject.
func (h *Handler) RejectFollowRequest(c *gin.Context) {
	ctx := c.Request.Context()

	targetID := middleware.GetUserID(c)
	if targetID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	id, ok := requestIDParam(c)
	if !ok {
		return
	}

	if err := h.requests.Reject(ctx, targetID, id); err != nil {
		if errors.Is(err, service.ErrRequestNotFound) {
			response.NotFound(c, "follow request not found")
			return
		}
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Uint("request_id", id).Msg("reject follow request failed")
		response.InternalError(c, "failed to reject follow request")
		return
	}
	response.Success(c, gin.H{"message": "follow request rejected"})
}

// bulkApproveRequest is the request body for POST /api/v1/follow-requests/bulk-approve.
type bulkApproveRequest struct {
	IDs []uint `json:"ids" binding:"required,min=1"`
}

// BulkApproveFollowRequests handles POST /api/v1/follow-requests/bulk-approve.
func (h *Handler) BulkApproveFollowRequests(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	targetID := middleware.GetUserID(c)
	if targetID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req bulkApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid bulk approve request")
		response.BadRequest(c, err.Error())
		return
	}

	results := h.requests.BulkApprove(ctx, targetID, req.IDs)
	response.Success(c, gin.H{"results": results})
}

// GetPrivacy handles GET /api/v1/privacy.
func (h *Handler) GetPrivacy(c *gin.Context) {
	ctx := c.Request.Context()

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	settings, err := h.privacy.Get(ctx, userID)
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Str("user_id", userID).Msg("get privacy failed")
		response.InternalError(c, "failed to get privacy settings")
		return
	}
	response.Success(c, settings)
}

// UpdatePrivacy handles PUT /api/v1/privacy. The body is the full settings
// record; unknown fields are rejected by the fixed struct binding.
func (h *Handler) UpdatePrivacy(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var settings domain.PrivacySettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		l.Warn().Err(err).Msg("invalid privacy settings payload")
		response.BadRequest(c, err.Error())
		return
	}
	settings.UserID = userID

	updated, err := h.privacy.Update(ctx, settings)
	if err != nil {
		var invalid *service.InvalidSettingError
		if errors.As(err, &invalid) {
			response.BadRequest(c, invalid.Error())
			return
		}
		l.Error().Err(err).Str("user_id", userID).Msg("update privacy failed")
		response.InternalError(c, "failed to update privacy settings")
		return
	}
	response.Success(c, updated)
}

// ResetPrivacy handles POST /api/v1/privacy/reset.
func (h *Handler) ResetPrivacy(c *gin.Context) {
	ctx := c.Request.Context()

	userID := middleware.GetUserID(c)
	if userID == "" {
		response.Unauthorized(c, "unauthorized")
		return
	}

	settings, err := h.privacy.Reset(ctx, userID)
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Str("user_id", userID).Msg("reset privacy failed")
		response.InternalError(c, "failed to reset privacy settings")
		return
	}
	response.Success(c, settings)
}
