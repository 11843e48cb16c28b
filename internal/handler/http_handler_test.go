package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pulsegram/relation-service/internal/domain"
	"github.com/pulsegram/relation-service/internal/publisher"
	"github.com/pulsegram/relation-service/internal/repository"
	"github.com/pulsegram/relation-service/internal/service"
	"github.com/pulsegram/relation-service/internal/store"
	"github.com/pulsegram/relation-service/pkg/jwt"
	"github.com/pulsegram/relation-service/pkg/middleware"
)

// memoryCounterStore stands in for Redis.
type memoryCounterStore struct {
	mu     sync.Mutex
	counts map[string]domain.FollowCounts
	scores map[string]float64
}

func newMemoryCounterStore() *memoryCounterStore {
	return &memoryCounterStore{
		counts: make(map[string]domain.FollowCounts),
		scores: make(map[string]float64),
	}
}

func (m *memoryCounterStore) GetCounts(ctx context.Context, userID string) (domain.FollowCounts, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts, ok := m.counts[userID]
	return counts, ok, nil
}

func (m *memoryCounterStore) SetCounts(ctx context.Context, userID string, counts domain.FollowCounts) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[userID] = counts
	return nil
}

func (m *memoryCounterStore) Invalidate(ctx context.Context, userIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range userIDs {
		delete(m.counts, id)
	}
	return nil
}

func (m *memoryCounterStore) RecordAccess(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[userID]++
	return nil
}

func (m *memoryCounterStore) GetTopHotKeys(ctx context.Context, n int64) ([]string, error) {
	return nil, nil
}

func (m *memoryCounterStore) ResetHotKeyScores(ctx context.Context) error { return nil }

func (m *memoryCounterStore) Close() error { return nil }

var _ store.CounterStore = (*memoryCounterStore)(nil)

const testSecret = "handler-test-secret"

type testServer struct {
	engine   *gin.Engine
	manager  *jwt.Manager
	privRepo repository.PrivacyRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.UserModel{},
		&domain.FollowModel{},
		&domain.BlockModel{},
		&domain.FollowRequestModel{},
		&domain.PrivacySettingsModel{},
	))
	require.NoError(t, db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS uidx_request_pair_pending "+
			"ON follow_requests (requester_id, target_id) WHERE status = 'pending'",
	).Error)

	relRepo := repository.NewGormRelationshipRepository(db)
	reqRepo := repository.NewGormFollowRequestRepository(db)
	privRepo := repository.NewGormPrivacyRepository(db)
	counterStore := newMemoryCounterStore()

	relationships := service.NewRelationshipService(relRepo, reqRepo, privRepo, counterStore, publisher.Noop{})
	requests := service.NewFollowRequestService(reqRepo, counterStore, publisher.Noop{})
	privacy := service.NewPrivacyService(privRepo)

	manager, err := jwt.NewManager(testSecret, "relation-service-test")
	require.NoError(t, err)

	h := NewHandler(relationships, requests, privacy, middleware.NewAuthMiddleware(manager))
	engine := gin.New()
	h.RegisterRoutes(engine)

	return &testServer{engine: engine, manager: manager, privRepo: privRepo}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := s.manager.Generate(userID, userID, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, userID))
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}

func TestFollowEndpoint(t *testing.T) {
	t.Run("follow a public user", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(t, http.MethodPost, "/api/v1/users/bob/follow", "alice", nil)
		require.Equal(t, http.StatusCreated, w.Code)

		data := decodeData(t, w)
		assert.EqualValues(t, 1, data["following_count"])
		assert.EqualValues(t, 1, data["target_followers_count"])
	})

	t.Run("requires auth", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(t, http.MethodPost, "/api/v1/users/bob/follow", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects a garbage token", func(t *testing.T) {
		s := newTestServer(t)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/bob/follow", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("self follow is a bad request", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(t, http.MethodPost, "/api/v1/users/alice/follow", "alice", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate follow conflicts", func(t *testing.T) {
		s := newTestServer(t)
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/users/bob/follow", "alice", nil).Code)
		w := s.do(t, http.MethodPost, "/api/v1/users/bob/follow", "alice", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("approval-required target reports pending", func(t *testing.T) {
		s := newTestServer(t)

		settings := domain.DefaultPrivacySettings("bob")
		settings.IsPrivate = true
		settings.RequireFollowApproval = true
		require.NoError(t, s.privRepo.Upsert(context.Background(), settings))

		w := s.do(t, http.MethodPost, "/api/v1/users/bob/follow", "alice", nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, true, data["pending"])
	})

	t.Run("blocked follow is forbidden", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(t, http.MethodPost, "/api/v1/blocks", "bob", map[string]string{"user_id": "alice"})
		require.Equal(t, http.StatusCreated, w.Code)

		w = s.do(t, http.MethodPost, "/api/v1/users/bob/follow", "alice", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestUnfollowEndpoint(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/users/bob/follow", "alice", nil).Code)

	w := s.do(t, http.MethodDelete, "/api/v1/users/bob/follow", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.EqualValues(t, 0, data["following_count"])

	// Second unfollow finds nothing.
	w = s.do(t, http.MethodDelete, "/api/v1/users/bob/follow", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRelationshipEndpoint(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/users/bob/follow", "alice", nil).Code)

	w := s.do(t, http.MethodGet, "/api/v1/users/bob/relationship", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, true, data["is_following"])
	assert.Equal(t, false, data["is_followed_by"])
	assert.Equal(t, false, data["is_mutual"])
}

func TestCountsEndpoint(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/users/bob/follow", "alice", nil).Code)

	// Counts are public, no token needed.
	w := s.do(t, http.MethodGet, "/api/v1/users/bob/followers/count", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.EqualValues(t, 1, data["followers_count"])
	assert.EqualValues(t, 0, data["following_count"])
}

func TestFollowingStatusEndpoint(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/users/bob/follow", "alice", nil).Code)

	w := s.do(t, http.MethodPost, "/api/v1/users/alice/following/status", "", map[string][]string{
		"target_ids": {"bob", "carol"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	results, ok := data["results"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, results["bob"])
	assert.Equal(t, false, results["carol"])
}

func TestBlockEndpoints(t *testing.T) {
	t.Run("block, list, unblock", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(t, http.MethodPost, "/api/v1/blocks", "alice", map[string]string{
			"user_id": "bob",
			"reason":  "spam",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		w = s.do(t, http.MethodGet, "/api/v1/blocks", "alice", nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.EqualValues(t, 1, data["total"])

		w = s.do(t, http.MethodDelete, "/api/v1/blocks?user_id=bob", "alice", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = s.do(t, http.MethodDelete, "/api/v1/blocks?user_id=bob", "alice", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid reason", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(t, http.MethodPost, "/api/v1/blocks", "alice", map[string]string{
			"user_id": "bob",
			"reason":  "grudge",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing body field", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(t, http.MethodPost, "/api/v1/blocks", "alice", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestFollowRequestEndpoints(t *testing.T) {
	makePrivate := func(t *testing.T, s *testServer, userID string) {
		settings := domain.DefaultPrivacySettings(userID)
		settings.IsPrivate = true
		settings.RequireFollowApproval = true
		require.NoError(t, s.privRepo.Upsert(context.Background(), settings))
	}

	t.Run("list and approve", func(t *testing.T) {
		s := newTestServer(t)
		makePrivate(t, s, "bob")

		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/users/bob/follow", "alice", nil).Code)

		w := s.do(t, http.MethodGet, "/api/v1/follow-requests", "bob", nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.EqualValues(t, 1, data["total"])

		requests, ok := data["requests"].([]interface{})
		require.True(t, ok)
		require.Len(t, requests, 1)
		first, ok := requests[0].(map[string]interface{})
		require.True(t, ok)
		id := int(first["id"].(float64))

		w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/follow-requests/%d/approve", id), "bob", nil)
		require.Equal(t, http.StatusOK, w.Code)

		// Edge now exists.
		w = s.do(t, http.MethodGet, "/api/v1/users/bob/relationship", "alice", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decodeData(t, w)["is_following"])
	})

	t.Run("reject", func(t *testing.T) {
		s := newTestServer(t)
		makePrivate(t, s, "bob")

		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/users/bob/follow", "alice", nil).Code)

		w := s.do(t, http.MethodGet, "/api/v1/follow-requests", "bob", nil)
		requests := decodeData(t, w)["requests"].([]interface{})
		id := int(requests[0].(map[string]interface{})["id"].(float64))

		w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/follow-requests/%d/reject", id), "bob", nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = s.do(t, http.MethodGet, "/api/v1/users/bob/relationship", "alice", nil)
		assert.Equal(t, false, decodeData(t, w)["is_following"])
	})

	t.Run("approve someone else's request", func(t *testing.T) {
		s := newTestServer(t)
		makePrivate(t, s, "bob")

		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/users/bob/follow", "alice", nil).Code)

		w := s.do(t, http.MethodGet, "/api/v1/follow-requests", "bob", nil)
		requests := decodeData(t, w)["requests"].([]interface{})
		id := int(requests[0].(map[string]interface{})["id"].(float64))

		w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/follow-requests/%d/approve", id), "mallory", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bulk approve", func(t *testing.T) {
		s := newTestServer(t)
		makePrivate(t, s, "bob")

		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/users/bob/follow", "alice", nil).Code)
		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/users/bob/follow", "carol", nil).Code)

		w := s.do(t, http.MethodGet, "/api/v1/follow-requests", "bob", nil)
		requests := decodeData(t, w)["requests"].([]interface{})
		ids := make([]uint, 0, len(requests))
		for _, r := range requests {
			ids = append(ids, uint(r.(map[string]interface{})["id"].(float64)))
		}

		w = s.do(t, http.MethodPost, "/api/v1/follow-requests/bulk-approve", "bob", map[string][]uint{"ids": ids})
		require.Equal(t, http.StatusOK, w.Code)
		results := decodeData(t, w)["results"].([]interface{})
		require.Len(t, results, 2)
		for _, r := range results {
			assert.Equal(t, true, r.(map[string]interface{})["approved"])
		}
	})

	t.Run("invalid request id", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(t, http.MethodPost, "/api/v1/follow-requests/abc/approve", "bob", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPrivacyEndpoints(t *testing.T) {
	t.Run("get returns defaults for a fresh user", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(t, http.MethodGet, "/api/v1/privacy", "alice", nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, false, data["is_private"])
		assert.Equal(t, "public", data["default_post_visibility"])
	})

	t.Run("update then reset", func(t *testing.T) {
		s := newTestServer(t)

		settings := domain.DefaultPrivacySettings("")
		settings.IsPrivate = true
		w := s.do(t, http.MethodPut, "/api/v1/privacy", "alice", settings)
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, true, data["is_private"])
		// Privacy forces approval in the same write.
		assert.Equal(t, true, data["require_follow_approval"])
		// The authenticated user owns the record regardless of the body.
		assert.Equal(t, "alice", data["user_id"])

		w = s.do(t, http.MethodPost, "/api/v1/privacy/reset", "alice", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, decodeData(t, w)["is_private"])
	})

	t.Run("invalid enum value", func(t *testing.T) {
		s := newTestServer(t)

		settings := domain.DefaultPrivacySettings("")
		settings.AllowComments = domain.PermissionLevel("besties")
		w := s.do(t, http.MethodPut, "/api/v1/privacy", "alice", settings)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
