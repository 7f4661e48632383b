package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mrwolf/studyrank/internal/db"
	"github.com/mrwolf/studyrank/internal/logger"
	"github.com/mrwolf/studyrank/internal/streak"
)

// Refresher rebuilds the leaderboard and the cached profile columns.
type Refresher struct {
	db    *db.DB
	clock clockwork.Clock
	loc   *time.Location
	log   *logger.Logger
}

func NewRefresher(store *db.DB, clock clockwork.Clock, loc *time.Location, log *logger.Logger) *Refresher {
	return &Refresher{db: store, clock: clock, loc: loc, log: log}
}

func (r *Refresher) today() string {
	return streak.Today(r.clock.Now(), r.loc)
}

// RefreshLeaderboard recomputes every user's stats, replaces the
// materialized ranking and rewrites the cached profile streaks, so a lapsed
// streak stops showing its old value. Users whose stats fail to load are
// left out of this build and logged.
func (r *Refresher) RefreshLeaderboard(ctx context.Context) (int, error) {
	profiles, err := r.db.ListProfiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing profiles: %w", err)
	}

	today := r.today()
	rows := make([]db.LeaderboardRow, 0, len(profiles))
	for _, p := range profiles {
		st, err := Compute(ctx, r.db, p.ID, today)
		if err != nil {
			r.log.Warn("skipping user in leaderboard", "user_id", p.ID, "error", err)
			continue
		}
		rows = append(rows, db.LeaderboardRow{
			UserID:     p.ID,
			Nickname:   p.Nickname,
			Grade:      p.Grade,
			StreakDays: st.Streak,
			RankLabel:  string(st.Rank),
			Sum7:       st.Sum7,
		})
	}

	if err := r.db.ReplaceLeaderboard(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// UpdateProfileCache recomputes one user's streak into the profile columns.
func (r *Refresher) UpdateProfileCache(ctx context.Context, userID string) (Stats, error) {
	st, err := Compute(ctx, r.db, userID, r.today())
	if err != nil {
		return Stats{}, err
	}
	if err := r.db.UpdateProfileStreak(ctx, userID, st.Streak, string(st.Rank)); err != nil {
		return Stats{}, fmt.Errorf("updating profile cache: %w", err)
	}
	return st, nil
}
