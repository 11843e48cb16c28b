package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsegram/relation-service/internal/publisher"
)

func TestApprove(t *testing.T) {
	ctx := context.Background()

	t.Run("approval creates the edge and caches both sides", func(t *testing.T) {
		f := newFixture(t)
		f.makePrivate(t, "bob")

		filed, err := f.relationships.Follow(ctx, "alice", "bob")
		require.NoError(t, err)
		require.True(t, filed.Pending)

		res, err := f.requests.Approve(ctx, "bob", filed.RequestID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.FollowingCount)
		assert.Equal(t, int64(1), res.TargetFollowersCount)

		rel, err := f.relationships.GetRelationship(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.True(t, rel.IsFollowing)

		counts, ok, err := f.store.GetCounts(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(1), counts.FollowersCount)

		// The requester's cached following count moves as well; approval is
		// a write on both sides of the edge.
		counts, ok, err = f.store.GetCounts(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(1), counts.FollowingCount)

		assert.Equal(t,
			[]string{publisher.EventRequestCreated, publisher.EventRequestApproved},
			f.publisher.types())
		approved := f.publisher.last()
		assert.Equal(t, "bob", approved.ActorID)
		assert.Equal(t, "alice", approved.TargetID)
	})

	t.Run("approving a stale request keeps cached counts honest", func(t *testing.T) {
		f := newFixture(t)
		f.makePrivate(t, "bob")

		filed, err := f.relationships.Follow(ctx, "alice", "bob")
		require.NoError(t, err)
		require.True(t, filed.Pending)

		// The edge appears through another path before bob gets to the
		// request, e.g. bob flipped public and alice followed directly.
		_, _, err = f.relRepo.CreateFollow(ctx, "alice", "bob")
		require.NoError(t, err)

		res, err := f.requests.Approve(ctx, "bob", filed.RequestID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.TargetFollowersCount)

		counts, ok, err := f.store.GetCounts(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(1), counts.FollowersCount)

		counts, ok, err = f.store.GetCounts(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(1), counts.FollowingCount)
	})

	t.Run("only the target may approve", func(t *testing.T) {
		f := newFixture(t)
		f.makePrivate(t, "bob")

		filed, err := f.relationships.Follow(ctx, "alice", "bob")
		require.NoError(t, err)

		_, err = f.requests.Approve(ctx, "mallory", filed.RequestID)
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})

	t.Run("unknown request", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.requests.Approve(ctx, "bob", 42)
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})
}

func TestReject(t *testing.T) {
	ctx := context.Background()

	t.Run("rejection leaves no edge and allows a fresh request", func(t *testing.T) {
		f := newFixture(t)
		f.makePrivate(t, "bob")

		filed, err := f.relationships.Follow(ctx, "alice", "bob")
		require.NoError(t, err)

		require.NoError(t, f.requests.Reject(ctx, "bob", filed.RequestID))

		rejected := f.publisher.last()
		assert.Equal(t, publisher.EventRequestRejected, rejected.Type)
		assert.Equal(t, "bob", rejected.ActorID)
		assert.Equal(t, "alice", rejected.TargetID)

		rel, err := f.relationships.GetRelationship(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.False(t, rel.IsFollowing)

		// The requester is not told they were rejected, but may try again.
		refiled, err := f.relationships.Follow(ctx, "alice", "bob")
		require.NoError(t, err)
		assert.True(t, refiled.Pending)
		assert.NotEqual(t, filed.RequestID, refiled.RequestID)
	})

	t.Run("rejecting twice", func(t *testing.T) {
		f := newFixture(t)
		f.makePrivate(t, "bob")

		filed, err := f.relationships.Follow(ctx, "alice", "bob")
		require.NoError(t, err)

		require.NoError(t, f.requests.Reject(ctx, "bob", filed.RequestID))
		err = f.requests.Reject(ctx, "bob", filed.RequestID)
		assert.ErrorIs(t, err, ErrRequestNotFound)
	})
}

func TestBulkApprove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.makePrivate(t, "bob")

	first, err := f.relationships.Follow(ctx, "alice", "bob")
	require.NoError(t, err)
	second, err := f.relationships.Follow(ctx, "carol", "bob")
	require.NoError(t, err)

	results := f.requests.BulkApprove(ctx, "bob", []uint{first.RequestID, second.RequestID, 999})
	require.Len(t, results, 3)

	assert.True(t, results[0].Approved)
	assert.True(t, results[1].Approved)
	assert.False(t, results[2].Approved)
	assert.NotEmpty(t, results[2].Error)

	// Per-item failure does not roll back the siblings.
	counts, err := f.relationships.GetCounts(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.FollowersCount)
}

func TestListRequests(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.makePrivate(t, "bob")

	_, err := f.relationships.Follow(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = f.relationships.Follow(ctx, "carol", "bob")
	require.NoError(t, err)

	rows, total, err := f.requests.List(ctx, "bob", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, rows, 2)
}
