// Package ranking derives streak statistics from raw logs and keeps the
// materialized leaderboard and the cached profile columns up to date.
package ranking

import (
	"context"
	"fmt"

	"github.com/mrwolf/studyrank/internal/db"
	"github.com/mrwolf/studyrank/internal/streak"
	"github.com/mrwolf/studyrank/internal/weekly"
)

type Stats struct {
	Streak int
	Sum7   int
	Rank   streak.Rank
}

// Compute recomputes a user's stats from raw logs as of today. Zero-minute
// logs do not count toward the streak.
func Compute(ctx context.Context, store *db.DB, userID, today string) (Stats, error) {
	dates, err := store.StudyDates(ctx, userID, today)
	if err != nil {
		return Stats{}, fmt.Errorf("loading study dates: %w", err)
	}
	logs, err := store.GetLogsBetween(ctx, userID, streak.AddDays(today, -(weekly.Days-1)), today)
	if err != nil {
		return Stats{}, fmt.Errorf("loading weekly logs: %w", err)
	}

	n := streak.Calc(dates, today)
	sum := 0
	for _, l := range logs {
		sum += weekly.EntryMinutes(toEntry(l))
	}
	return Stats{Streak: n, Sum7: sum, Rank: streak.RankFor(n)}, nil
}

func toEntry(l db.StudyLog) weekly.Entry {
	return weekly.Entry{Date: l.StudyDate, Subject: l.Subject, Minutes: l.Minutes, Memo: l.Memo}
}

// Entries converts logs for the weekly aggregator.
func Entries(logs []db.StudyLog) []weekly.Entry {
	out := make([]weekly.Entry, len(logs))
	for i, l := range logs {
		out[i] = toEntry(l)
	}
	return out
}
