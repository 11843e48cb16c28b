package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pulsegram/relation-service/internal/domain"
	"github.com/pulsegram/relation-service/internal/publisher"
	"github.com/pulsegram/relation-service/internal/repository"
	"github.com/pulsegram/relation-service/internal/store"
)

// memoryCounterStore is an in-process CounterStore standing in for Redis.
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
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.scores))
	for k := range m.scores {
		keys = append(keys, k)
	}
	if int64(len(keys)) > n {
		keys = keys[:n]
	}
	return keys, nil
}

func (m *memoryCounterStore) ResetHotKeyScores(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores = make(map[string]float64)
	return nil
}

func (m *memoryCounterStore) Close() error { return nil }

var _ store.CounterStore = (*memoryCounterStore)(nil)

// capturePublisher records every published event.
type capturePublisher struct {
	mu     sync.Mutex
	events []publisher.Event
}

func (p *capturePublisher) Publish(ctx context.Context, event publisher.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) last() publisher.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

var _ publisher.EventPublisher = (*capturePublisher)(nil)

// fixture wires real repositories on an in-memory database to the services
// under test, with fake cache and publisher.
type fixture struct {
	db        *gorm.DB
	store     *memoryCounterStore
	publisher *capturePublisher
	relRepo   repository.RelationshipRepository
	reqRepo   repository.FollowRequestRepository
	privRepo  repository.PrivacyRepository

	relationships RelationshipService
	requests      FollowRequestService
	privacy       PrivacyService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

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

	f := &fixture{
		db:        db,
		store:     newMemoryCounterStore(),
		publisher: &capturePublisher{},
		relRepo:   repository.NewGormRelationshipRepository(db),
		reqRepo:   repository.NewGormFollowRequestRepository(db),
		privRepo:  repository.NewGormPrivacyRepository(db),
	}
	f.relationships = NewRelationshipService(f.relRepo, f.reqRepo, f.privRepo, f.store, f.publisher)
	f.requests = NewFollowRequestService(f.reqRepo, f.store, f.publisher)
	f.privacy = NewPrivacyService(f.privRepo)
	return f
}

// makePrivate stores an approval-required configuration for userID.
func (f *fixture) makePrivate(t *testing.T, userID string) {
	t.Helper()
	settings := domain.DefaultPrivacySettings(userID)
	settings.IsPrivate = true
	settings.RequireFollowApproval = true
	require.NoError(t, f.privRepo.Upsert(context.Background(), settings))
}
