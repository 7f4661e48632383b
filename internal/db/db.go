package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadySubmitted = errors.New("already submitted today")
)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
    id TEXT PRIMARY KEY,
    nickname TEXT NOT NULL,
    grade TEXT NOT NULL,
    gender TEXT NOT NULL DEFAULT 'unknown',
    target_university TEXT,
    target_faculty TEXT,
    current_streak INTEGER,          -- cached streak, NULL until first computed
    current_rank TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

-- One row per user per calendar day
CREATE TABLE IF NOT EXISTS study_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL REFERENCES profiles(id),
    study_date TEXT NOT NULL,
    subject TEXT NOT NULL,
    minutes INTEGER NOT NULL CHECK (minutes >= 0),
    memo TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    UNIQUE(user_id, study_date)
);

CREATE TABLE IF NOT EXISTS push_tokens (
    user_id TEXT NOT NULL REFERENCES profiles(id),
    token TEXT NOT NULL,
    platform TEXT NOT NULL,
    created_at TEXT NOT NULL,
    UNIQUE(user_id, token)
);

CREATE TABLE IF NOT EXISTS push_schedule (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    scheduled_at TEXT NOT NULL,      -- RFC3339, UTC
    window_label TEXT NOT NULL,
    for_date TEXT NOT NULL,          -- local calendar day the window belongs to
    sent_at TEXT,
    UNIQUE(user_id, scheduled_at),
    UNIQUE(user_id, window_label, for_date)
);

CREATE TABLE IF NOT EXISTS holidays (
    ymd TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT ''
);

-- Materialized ranking, rebuilt by the leaderboard job
CREATE TABLE IF NOT EXISTS leaderboard (
    user_id TEXT PRIMARY KEY,
    nickname TEXT NOT NULL,
    grade TEXT NOT NULL,
    streak_days INTEGER NOT NULL,
    rank_label TEXT NOT NULL,
    sum7 INTEGER NOT NULL,
    refreshed_at TEXT NOT NULL
);

-- Scheduler job tracking
CREATE TABLE IF NOT EXISTS scheduler_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    job_type TEXT NOT NULL,
    status TEXT NOT NULL,
    started_at TEXT NOT NULL,
    completed_at TEXT,
    error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_logs_date ON study_logs(study_date);
CREATE INDEX IF NOT EXISTS idx_schedule_due ON push_schedule(sent_at, scheduled_at);
CREATE INDEX IF NOT EXISTS idx_leaderboard_grade ON leaderboard(grade, streak_days DESC);
CREATE INDEX IF NOT EXISTS idx_scheduler_job ON scheduler_runs(job_type);
`

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(schema)
	if err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection is usable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// SchedulerRun tracks a scheduler job execution
type SchedulerRun struct {
	ID           int64
	JobType      string
	Status       string
	StartedAt    time.Time
	CompletedAt  *time.Time
	ErrorMessage string
}

// StartSchedulerRun records the start of a scheduler job
func (db *DB) StartSchedulerRun(ctx context.Context, jobType string) (int64, error) {
	result, err := db.conn.ExecContext(ctx, `
		INSERT INTO scheduler_runs (job_type, status, started_at)
		VALUES (?, 'running', ?)
	`, jobType, now())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// CompleteSchedulerRun marks a scheduler job as completed
func (db *DB) CompleteSchedulerRun(ctx context.Context, runID int64, errMsg string) error {
	status := "completed"
	if errMsg != "" {
		status = "failed"
	}
	_, err := db.conn.ExecContext(ctx, `
		UPDATE scheduler_runs
		SET status = ?, completed_at = ?, error_message = ?
		WHERE id = ?
	`, status, now(), errMsg, runID)
	return err
}

// GetLastSchedulerRun returns the last run for a job type
func (db *DB) GetLastSchedulerRun(ctx context.Context, jobType string) (*SchedulerRun, error) {
	var run SchedulerRun
	var startedStr string
	var completedStr, errMsg sql.NullString
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, job_type, status, started_at, completed_at, error_message
		FROM scheduler_runs
		WHERE job_type = ?
		ORDER BY id DESC
		LIMIT 1
	`, jobType).Scan(&run.ID, &run.JobType, &run.Status, &startedStr, &completedStr, &errMsg)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	run.StartedAt = parseTime(startedStr)
	if completedStr.Valid {
		t := parseTime(completedStr.String)
		run.CompletedAt = &t
	}
	run.ErrorMessage = errMsg.String
	return &run, nil
}
