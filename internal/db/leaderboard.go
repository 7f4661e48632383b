package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type LeaderboardRow struct {
	UserID      string
	Nickname    string
	Grade       string
	StreakDays  int
	RankLabel   string
	Sum7        int
	RefreshedAt time.Time
}

// ReplaceLeaderboard swaps the whole materialized ranking in one transaction.
// Each row's streak and rank are also written to the user's cached profile
// columns, so the two never disagree after a rebuild.
func (db *DB) ReplaceLeaderboard(ctx context.Context, rows []LeaderboardRow) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM leaderboard`); err != nil {
		return fmt.Errorf("clearing leaderboard: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO leaderboard (user_id, nickname, grade, streak_days, rank_label, sum7, refreshed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	cache, err := tx.PrepareContext(ctx, `
		UPDATE profiles SET current_streak = ?, current_rank = ? WHERE id = ?
	`)
	if err != nil {
		return err
	}
	defer cache.Close()

	ts := now()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.UserID, r.Nickname, r.Grade, r.StreakDays, r.RankLabel, r.Sum7, ts); err != nil {
			return fmt.Errorf("inserting leaderboard row %s: %w", r.UserID, err)
		}
		if _, err := cache.ExecContext(ctx, r.StreakDays, r.RankLabel, r.UserID); err != nil {
			return fmt.Errorf("updating cached streak for %s: %w", r.UserID, err)
		}
	}
	return tx.Commit()
}

// LeaderboardEntry returns the materialized row for one user
func (db *DB) LeaderboardEntry(ctx context.Context, userID string) (*LeaderboardRow, error) {
	var r LeaderboardRow
	var refreshed string
	err := db.conn.QueryRowContext(ctx, `
		SELECT user_id, nickname, grade, streak_days, rank_label, sum7, refreshed_at
		FROM leaderboard WHERE user_id = ?
	`, userID).Scan(&r.UserID, &r.Nickname, &r.Grade, &r.StreakDays, &r.RankLabel, &r.Sum7, &refreshed)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.RefreshedAt = parseTime(refreshed)
	return &r, nil
}

// Leaderboard returns the ranking, optionally filtered by grade
func (db *DB) Leaderboard(ctx context.Context, grade string, limit int) ([]LeaderboardRow, error) {
	query := `SELECT user_id, nickname, grade, streak_days, rank_label, sum7, refreshed_at FROM leaderboard WHERE 1=1`
	var args []interface{}
	if grade != "" {
		query += ` AND grade = ?`
		args = append(args, grade)
	}
	query += ` ORDER BY streak_days DESC, sum7 DESC, nickname ASC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaderboardRow
	for rows.Next() {
		var r LeaderboardRow
		var refreshed string
		if err := rows.Scan(&r.UserID, &r.Nickname, &r.Grade, &r.StreakDays, &r.RankLabel, &r.Sum7, &refreshed); err != nil {
			return nil, err
		}
		r.RefreshedAt = parseTime(refreshed)
		out = append(out, r)
	}
	return out, rows.Err()
}
