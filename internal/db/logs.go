package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

type StudyLog struct {
	ID        int64
	UserID    string
	StudyDate string
	Subject   string
	Minutes   int
	Memo      string
	CreatedAt time.Time
}

// SubmitStudyLog stores the day's first log. It returns ErrAlreadySubmitted
// when the user already has a log for that date.
func (db *DB) SubmitStudyLog(ctx context.Context, l StudyLog) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM study_logs WHERE user_id = ? AND study_date = ?
	`, l.UserID, l.StudyDate).Scan(&n); err != nil {
		return fmt.Errorf("checking existing log: %w", err)
	}
	if n > 0 {
		return ErrAlreadySubmitted
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO study_logs (user_id, study_date, subject, minutes, memo, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, l.UserID, l.StudyDate, l.Subject, l.Minutes, l.Memo, now())
	if isUniqueViolation(err) {
		return ErrAlreadySubmitted
	}
	if err != nil {
		return fmt.Errorf("inserting study log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadySubmitted
		}
		return fmt.Errorf("committing study log: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is sqlite rejecting a duplicate key.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// HasLogOn reports whether the user has a log for date
func (db *DB) HasLogOn(ctx context.Context, userID, date string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM study_logs WHERE user_id = ? AND study_date = ?
	`, userID, date).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetLogsBetween returns a user's logs with from <= study_date <= to, oldest first
func (db *DB) GetLogsBetween(ctx context.Context, userID, from, to string) ([]StudyLog, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, user_id, study_date, subject, minutes, memo, created_at
		FROM study_logs
		WHERE user_id = ? AND study_date >= ? AND study_date <= ?
		ORDER BY study_date ASC
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []StudyLog
	for rows.Next() {
		var l StudyLog
		var created string
		if err := rows.Scan(&l.ID, &l.UserID, &l.StudyDate, &l.Subject, &l.Minutes, &l.Memo, &created); err != nil {
			return nil, err
		}
		l.CreatedAt = parseTime(created)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// SubmittedUsersOn returns the set of users with a log for date
func (db *DB) SubmittedUsersOn(ctx context.Context, date string) (map[string]bool, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT user_id FROM study_logs WHERE study_date = ?`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	submitted := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		submitted[id] = true
	}
	return submitted, rows.Err()
}

// StudyDates returns the distinct dates up to and including to on which the
// user logged more than zero minutes.
func (db *DB) StudyDates(ctx context.Context, userID, to string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT DISTINCT study_date FROM study_logs
		WHERE user_id = ? AND study_date <= ? AND minutes > 0
		ORDER BY study_date DESC
	`, userID, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}
