package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/pulsegram/relation-service/internal/domain"
)

const (
	countsKeyPrefix = "social:counts:"
	hotKeyScoresKey = "social:hotkey:scores"

	fieldFollowers = "followers"
	fieldFollowing = "following"
)

// CounterStore defines Redis operations for counter caching and hot key
// tracking. Counts are written through from the authoritative database values
// after each mutation, so the cache never invents a number.
type CounterStore interface {
	GetCounts(ctx context.Context, userID string) (domain.FollowCounts, bool, error)
	SetCounts(ctx context.Context, userID string, counts domain.FollowCounts) error
	Invalidate(ctx context.Context, userIDs ...string) error
	RecordAccess(ctx context.Context, userID string) error
	GetTopHotKeys(ctx context.Context, n int64) ([]string, error)
	ResetHotKeyScores(ctx context.Context) error
	Close() error
}

// RedisCounterStore implements CounterStore backed by Redis.
type RedisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore creates a new Redis-backed counter store.
func NewRedisCounterStore(address, password string, db int) (*RedisCounterStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCounterStore{client: client}, nil
}

func countsKey(userID string) string {
	return countsKeyPrefix + userID
}

// GetCounts returns the cached counters for a user.
// Returns (counts, true, nil) on hit, (zero, false, nil) on miss.
func (s *RedisCounterStore) GetCounts(ctx context.Context, userID string) (domain.FollowCounts, bool, error) {
	var counts domain.FollowCounts

	vals, err := s.client.HGetAll(ctx, countsKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return counts, false, nil
		}
		return counts, false, fmt.Errorf("redis get counts: %w", err)
	}
	followers, okFollowers := vals[fieldFollowers]
	following, okFollowing := vals[fieldFollowing]
	if !okFollowers || !okFollowing {
		return counts, false, nil
	}

	if counts.FollowersCount, err = strconv.ParseInt(followers, 10, 64); err != nil {
		return counts, false, fmt.Errorf("parse followers count: %w", err)
	}
	if counts.FollowingCount, err = strconv.ParseInt(following, 10, 64); err != nil {
		return counts, false, fmt.Errorf("parse following count: %w", err)
	}
	return counts, true, nil
}

// SetCounts writes both counters for a user.
func (s *RedisCounterStore) SetCounts(ctx context.Context, userID string, counts domain.FollowCounts) error {
	err := s.client.HSet(ctx, countsKey(userID),
		fieldFollowers, counts.FollowersCount,
		fieldFollowing, counts.FollowingCount,
	).Err()
	if err != nil {
		return fmt.Errorf("redis set counts: %w", err)
	}
	return nil
}

// Invalidate drops cached counters for the given users. Used after a block
// cascade, where the exact post-cascade counts are not returned to the caller.
func (s *RedisCounterStore) Invalidate(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = countsKey(id)
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis invalidate counts: %w", err)
	}
	return nil
}

// RecordAccess increments the access score for a user in the hot key sorted set.
func (s *RedisCounterStore) RecordAccess(ctx context.Context, userID string) error {
	err := s.client.ZIncrBy(ctx, hotKeyScoresKey, 1, userID).Err()
	if err != nil {
		return fmt.Errorf("redis record access: %w", err)
	}
	return nil
}

// GetTopHotKeys returns the top-n most accessed user IDs.
func (s *RedisCounterStore) GetTopHotKeys(ctx context.Context, n int64) ([]string, error) {
	keys, err := s.client.ZRevRange(ctx, hotKeyScoresKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get top hot keys: %w", err)
	}
	return keys, nil
}

// ResetHotKeyScores deletes the hot key scores sorted set.
func (s *RedisCounterStore) ResetHotKeyScores(ctx context.Context) error {
	err := s.client.Del(ctx, hotKeyScoresKey).Err()
	if err != nil {
		return fmt.Errorf("redis reset hot key scores: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisCounterStore) Close() error {
	return s.client.Close()
}

// Ensure interface is satisfied at compile time.
var _ CounterStore = (*RedisCounterStore)(nil)
