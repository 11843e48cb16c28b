package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pulsegram/relation-service/internal/config"
	"github.com/pulsegram/relation-service/internal/repository"
	"github.com/pulsegram/relation-service/internal/store"
	pkglog "github.com/pulsegram/relation-service/pkg/log"
)

// ErrConsistency is returned when counter drift survives two repair attempts.
// That means a non-atomic write slipped through somewhere; it is logged and
// alertable, never swallowed.
var ErrConsistency = errors.New("counter drift persists after repair")

// Reconciler recomputes denormalized counters from the edge sets and repairs
// drift. It runs a periodic sweep over the hottest users and serves on-demand
// reconciliation, single-flighted per user.
type Reconciler struct {
	store  store.CounterStore
	repo   repository.RelationshipRepository
	cfg    config.ReconcilerConfig
	group  singleflight.Group
	quit   chan struct{}
	doneCh chan struct{}
}

// New creates a new Reconciler.
func New(counterStore store.CounterStore, repo repository.RelationshipRepository, cfg config.ReconcilerConfig) *Reconciler {
	return &Reconciler{
		store:  counterStore,
		repo:   repo,
		cfg:    cfg,
		quit:   make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the periodic sweep in a background goroutine.
func (r *Reconciler) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop signals the reconciler to stop and returns immediately.
// Call Done() to wait for it to exit.
func (r *Reconciler) Stop() {
	close(r.quit)
}

// Done returns a channel that is closed when the reconciler has fully stopped.
func (r *Reconciler) Done() <-chan struct{} {
	return r.doneCh
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.doneCh)

	interval := r.cfg.Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep reconciles the top-N hottest users and resets the score board.
func (r *Reconciler) sweep(ctx context.Context) {
	l := pkglog.L()
	l.Info().Msg("reconciler: starting hot-key sweep")

	topN := int64(r.cfg.TopN)
	if topN <= 0 {
		topN = 100
	}

	userIDs, err := r.store.GetTopHotKeys(ctx, topN)
	if err != nil {
		l.Error().Err(err).Msg("reconciler: failed to get top hot keys")
		return
	}
	if len(userIDs) == 0 {
		l.Info().Msg("reconciler: no hot keys to reconcile")
		return
	}

	repaired := 0
	for _, userID := range userIDs {
		drifted, err := r.ReconcileUser(ctx, userID)
		if err != nil {
			l.Error().Err(err).Str("user_id", userID).Msg("reconciler: reconcile failed")
			continue
		}
		if drifted {
			repaired++
		}
	}

	if err := r.store.ResetHotKeyScores(ctx); err != nil {
		l.Error().Err(err).Msg("reconciler: failed to reset hot key scores")
	}

	l.Info().
		Int("count", len(userIDs)).
		Int("repaired", repaired).
		Msg("reconciler: hot-key sweep complete")
}

// ReconcileUser recomputes both counters for one user from the edge sets and
// writes them back if they drifted. Concurrent calls for the same user
// collapse into one execution. Reports whether a repair was applied.
func (r *Reconciler) ReconcileUser(ctx context.Context, userID string) (bool, error) {
	v, err, _ := r.group.Do(userID, func() (interface{}, error) {
		return r.reconcileOnce(ctx, userID)
	})
	// reconcileOnce reports a repair even when it also errors (a repaired
	// write followed by a failed verification), so keep both.
	drifted, _ := v.(bool)
	return drifted, err
}

func (r *Reconciler) reconcileOnce(ctx context.Context, userID string) (bool, error) {
	l := pkglog.Ctx(ctx)

	drifted := false
	// Two attempts: a repair racing a live mutation can legitimately land on
	// a stale snapshot once. Drift surviving the second pass is a real bug.
	for attempt := 0; attempt < 2; attempt++ {
		truth, err := r.repo.CountEdges(ctx, userID)
		if err != nil {
			return drifted, fmt.Errorf("count edges for %s: %w", userID, err)
		}

		stored, err := r.repo.GetCounts(ctx, userID)
		if err != nil {
			return drifted, fmt.Errorf("get stored counts for %s: %w", userID, err)
		}

		if stored == truth {
			if drifted || attempt > 0 {
				l.Info().Str("user_id", userID).Msg("reconciler: counters repaired")
			}
			// Refresh cache from the verified values.
			if err := r.store.SetCounts(ctx, userID, truth); err != nil {
				l.Warn().Err(err).Str("user_id", userID).Msg("reconciler: failed to refresh cached counts")
			}
			return drifted, nil
		}

		drifted = true
		l.Warn().
			Str("user_id", userID).
			Int64("stored_followers", stored.FollowersCount).
			Int64("actual_followers", truth.FollowersCount).
			Int64("stored_following", stored.FollowingCount).
			Int64("actual_following", truth.FollowingCount).
			Msg("reconciler: counter drift detected")

		if err := r.repo.SetCounts(ctx, userID, truth); err != nil {
			return drifted, fmt.Errorf("set counts for %s: %w", userID, err)
		}
	}

	// Verify the final repair before declaring failure.
	truth, err := r.repo.CountEdges(ctx, userID)
	if err != nil {
		return drifted, err
	}
	stored, err := r.repo.GetCounts(ctx, userID)
	if err != nil {
		return drifted, err
	}
	if stored == truth {
		if err := r.store.SetCounts(ctx, userID, truth); err != nil {
			l.Warn().Err(err).Str("user_id", userID).Msg("reconciler: failed to refresh cached counts")
		}
		return drifted, nil
	}

	l.Error().Str("user_id", userID).Msg("reconciler: drift persists after repair")
	return drifted, fmt.Errorf("user %s: %w", userID, ErrConsistency)
}
