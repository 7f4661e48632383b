package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// AddPushToken registers a device token for a user. Re-registering is a no-op.
func (db *DB) AddPushToken(ctx context.Context, userID, token, platform string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO push_tokens (user_id, token, platform, created_at)
		VALUES (?, ?, ?, ?)
	`, userID, token, platform, now())
	if err != nil {
		return fmt.Errorf("inserting push token: %w", err)
	}
	return nil
}

// DeletePushToken removes a user's token
func (db *DB) DeletePushToken(ctx context.Context, userID, token string) (bool, error) {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM push_tokens WHERE user_id = ? AND token = ?`, userID, token)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}

// UsersWithTokens returns every user holding at least one push token
func (db *DB) UsersWithTokens(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT user_id FROM push_tokens ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// TokensForUsers returns the tokens of each given user
func (db *DB) TokensForUsers(ctx context.Context, userIDs []string) (map[string][]string, error) {
	tokens := make(map[string][]string)
	if len(userIDs) == 0 {
		return tokens, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(userIDs)), ",")
	args := make([]interface{}, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT user_id, token FROM push_tokens WHERE user_id IN (`+placeholders+`) ORDER BY created_at
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, tok string
		if err := rows.Scan(&id, &tok); err != nil {
			return nil, err
		}
		tokens[id] = append(tokens[id], tok)
	}
	return tokens, rows.Err()
}

// ScheduleRow is one planned reminder
type ScheduleRow struct {
	ID          int64
	UserID      string
	ScheduledAt time.Time
	WindowLabel string
	ForDate     string
	SentAt      *time.Time
}

// ScheduleExists reports whether the user already has a reminder at exactly at
func (db *DB) ScheduleExists(ctx context.Context, userID string, at time.Time) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM push_schedule WHERE user_id = ? AND scheduled_at = ?
	`, userID, at.UTC().Format(time.RFC3339)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertSchedule adds a reminder. It returns false without error when the
// user already has a row at that timestamp or for that window and day.
func (db *DB) InsertSchedule(ctx context.Context, r ScheduleRow) (bool, error) {
	result, err := db.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO push_schedule (user_id, scheduled_at, window_label, for_date)
		VALUES (?, ?, ?, ?)
	`, r.UserID, r.ScheduledAt.UTC().Format(time.RFC3339), r.WindowLabel, r.ForDate)
	if err != nil {
		return false, fmt.Errorf("inserting schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}

// DueSchedules returns unsent reminders scheduled at or before t, oldest first
func (db *DB) DueSchedules(ctx context.Context, t time.Time, limit int) ([]ScheduleRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user_id, scheduled_at, window_label, for_date, sent_at
		FROM push_schedule
		WHERE sent_at IS NULL AND scheduled_at <= ?
		ORDER BY scheduled_at ASC
		LIMIT ?
	`, t.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSchedules(rows)
}

// SchedulesForUser returns a user's reminders for a local day
func (db *DB) SchedulesForUser(ctx context.Context, userID, forDate string) ([]ScheduleRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user_id, scheduled_at, window_label, for_date, sent_at
		FROM push_schedule
		WHERE user_id = ? AND for_date = ?
		ORDER BY scheduled_at ASC
	`, userID, forDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSchedules(rows)
}

func scanSchedules(rows *sql.Rows) ([]ScheduleRow, error) {
	var out []ScheduleRow
	for rows.Next() {
		var r ScheduleRow
		var at string
		var sent sql.NullString
		if err := rows.Scan(&r.ID, &r.UserID, &at, &r.WindowLabel, &r.ForDate, &sent); err != nil {
			return nil, err
		}
		r.ScheduledAt = parseTime(at)
		if sent.Valid {
			t := parseTime(sent.String)
			r.SentAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkSent stamps a reminder as sent
func (db *DB) MarkSent(ctx context.Context, id int64, at time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE push_schedule SET sent_at = ? WHERE id = ? AND sent_at IS NULL
	`, at.UTC().Format(time.RFC3339), id)
	return err
}

// MarkUserSentForDate stamps all of a user's unsent reminders for a day as sent
func (db *DB) MarkUserSentForDate(ctx context.Context, userID, forDate string, at time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx, `
		UPDATE push_schedule SET sent_at = ?
		WHERE user_id = ? AND for_date = ? AND sent_at IS NULL
	`, at.UTC().Format(time.RFC3339), userID, forDate)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// UpsertHoliday records a holiday date
func (db *DB) UpsertHoliday(ctx context.Context, ymd, name string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO holidays (ymd, name) VALUES (?, ?)
		ON CONFLICT(ymd) DO UPDATE SET name = excluded.name
	`, ymd, name)
	return err
}

// IsHoliday reports whether ymd is in the holiday table
func (db *DB) IsHoliday(ctx context.Context, ymd string) (bool, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM holidays WHERE ymd = ?`, ymd).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}
