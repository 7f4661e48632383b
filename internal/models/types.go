package models

import (
	"time"

	"github.com/mrwolf/studyrank/internal/weekly"
)

// SubmitRow is one subject/minutes line of a submission
type SubmitRow struct {
	Subject string `json:"subject" validate:"required,subject"`
	Minutes int    `json:"minutes" validate:"min=0,max=500"`
}

// SubmitLogRequest is the body of POST /api/v1/logs
type SubmitLogRequest struct {
	Rows []SubmitRow `json:"rows" validate:"required,min=1,max=16,dive"`
	Memo string      `json:"memo" validate:"max=500"`
}

// SubmitLogResponse is returned after a log is stored
type SubmitLogResponse struct {
	Date    string `json:"date"`
	Subject string `json:"subject"`
	Minutes int    `json:"minutes"`
	Memo    string `json:"memo"`
}

// RegisterRequest creates a profile
type RegisterRequest struct {
	Nickname         string `json:"nickname" validate:"required,min=1,max=24"`
	Grade            string `json:"grade" validate:"required,oneof=中1 中2 中3 高1 高2 高3 既卒"`
	Gender           string `json:"gender" validate:"omitempty,oneof=male female other unknown"`
	TargetUniversity string `json:"target_university" validate:"max=100"`
	TargetFaculty    string `json:"target_faculty" validate:"max=100"`
}

// ProfilePatchRequest is the body of PATCH /api/v1/me. Absent fields are unchanged.
type ProfilePatchRequest struct {
	Nickname         *string `json:"nickname" validate:"omitempty,min=1,max=24"`
	Grade            *string `json:"grade" validate:"omitempty,oneof=中1 中2 中3 高1 高2 高3 既卒"`
	Gender           *string `json:"gender" validate:"omitempty,oneof=male female other unknown"`
	TargetUniversity *string `json:"target_university" validate:"omitempty,max=100"`
	TargetFaculty    *string `json:"target_faculty" validate:"omitempty,max=100"`
}

// Profile is the public view of a profile
type Profile struct {
	ID               string    `json:"id"`
	Nickname         string    `json:"nickname"`
	Grade            string    `json:"grade"`
	Gender           string    `json:"gender"`
	TargetUniversity string    `json:"target_university,omitempty"`
	TargetFaculty    string    `json:"target_faculty,omitempty"`
	CurrentStreak    *int      `json:"current_streak"`
	CurrentRank      string    `json:"current_rank,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// RegisterResponse carries the new profile and its bearer token
type RegisterResponse struct {
	Profile Profile `json:"profile"`
	Token   string  `json:"token"`
}

// TodayResponse reports whether the caller has submitted today
type TodayResponse struct {
	Date      string `json:"date"`
	Submitted bool   `json:"submitted"`
}

// StreakResponse is the reconciled streak summary for one user.
// Null numbers mean the value is not known yet.
type StreakResponse struct {
	UserID     string `json:"user_id"`
	StreakDays *int   `json:"streak_days"`
	Sum7       *int   `json:"sum7"`
	RankLabel  string `json:"rank_label,omitempty"`
	RankTier   string `json:"rank_tier,omitempty"`
	NextRank   string `json:"next_rank,omitempty"`
	DaysToNext *int   `json:"days_to_next,omitempty"`
	Today      string `json:"today"`
}

// WeekResponse is the 7-day detail
type WeekResponse struct {
	Days      []string               `json:"days"`
	ByDate    map[string]*weekly.Day `json:"by_date"`
	Highlight *weekly.Highlight      `json:"highlight"`
}

// RankingEntry is one row of the ranking
type RankingEntry struct {
	Position   int    `json:"position"`
	UserID     string `json:"user_id"`
	Nickname   string `json:"nickname"`
	Grade      string `json:"grade"`
	StreakDays int    `json:"streak_days"`
	RankLabel  string `json:"rank_label"`
	RankTier   string `json:"rank_tier"`
	Sum7       int    `json:"sum7"`
}

// RankingResponse is returned by the ranking endpoint
type RankingResponse struct {
	Grade   string         `json:"grade,omitempty"`
	Entries []RankingEntry `json:"entries"`
}

// CalendarDay is one day of the monthly calendar
type CalendarDay struct {
	Date    string `json:"date"`
	Minutes int    `json:"minutes"`
}

// CalendarResponse is the monthly calendar
type CalendarResponse struct {
	Month string        `json:"month"`
	Days  []CalendarDay `json:"days"`
	Total int           `json:"total"`
}

// PushTokenRequest registers a device token
type PushTokenRequest struct {
	Token    string `json:"token" validate:"required,max=4096"`
	Platform string `json:"platform" validate:"omitempty,oneof=ios android web"`
}

// JobRun is the last recorded run of a scheduled job
type JobRun struct {
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// HealthResponse is returned by the health endpoint. Jobs that never ran
// are absent from Jobs.
type HealthResponse struct {
	Status  string            `json:"status"`
	DB      string            `json:"db"`
	Version string            `json:"version"`
	Jobs    map[string]JobRun `json:"jobs,omitempty"`
}

// Reminder is one scheduled reminder of the caller
type Reminder struct {
	Window      string     `json:"window"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at"`
}

// RemindersResponse lists today's reminders
type RemindersResponse struct {
	Date      string     `json:"date"`
	Reminders []Reminder `json:"reminders"`
}
