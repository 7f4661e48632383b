package ranking

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mrwolf/studyrank/internal/db"
	"github.com/mrwolf/studyrank/internal/reconcile"
	"github.com/mrwolf/studyrank/internal/streak"
)

// Sources returns the reconciler sources in priority order: materialized
// leaderboard, cached profile column, live recomputation from logs.
func Sources(store *db.DB, clock clockwork.Clock, loc *time.Location) []reconcile.Source {
	return []reconcile.Source{
		LeaderboardSource(store),
		ProfileSource(store),
		LiveSource(store, clock, loc),
	}
}

func LeaderboardSource(store *db.DB) reconcile.Source {
	return reconcile.SourceFunc{
		SourceName: "leaderboard",
		Fn: func(ctx context.Context, userID string) (reconcile.Sample, error) {
			e, err := store.LeaderboardEntry(ctx, userID)
			if errors.Is(err, db.ErrNotFound) {
				return reconcile.Sample{}, nil
			}
			if err != nil {
				return reconcile.Sample{}, err
			}
			return reconcile.Sample{Streak: reconcile.Some(e.StreakDays), Sum7: reconcile.Some(e.Sum7)}, nil
		},
	}
}

// ProfileSource reports only the streak; the profile carries no weekly sum.
func ProfileSource(store *db.DB) reconcile.Source {
	return reconcile.SourceFunc{
		SourceName: "profile",
		Fn: func(ctx context.Context, userID string) (reconcile.Sample, error) {
			p, err := store.GetProfile(ctx, userID)
			if err != nil {
				return reconcile.Sample{}, err
			}
			if p.CurrentStreak == nil {
				return reconcile.Sample{}, nil
			}
			return reconcile.Sample{Streak: reconcile.Some(*p.CurrentStreak)}, nil
		},
	}
}

func LiveSource(store *db.DB, clock clockwork.Clock, loc *time.Location) reconcile.Source {
	return reconcile.SourceFunc{
		SourceName: "logs",
		Fn: func(ctx context.Context, userID string) (reconcile.Sample, error) {
			st, err := Compute(ctx, store, userID, streak.Today(clock.Now(), loc))
			if err != nil {
				return reconcile.Sample{}, err
			}
			return reconcile.Sample{Streak: reconcile.Some(st.Streak), Sum7: reconcile.Some(st.Sum7)}, nil
		},
	}
}
