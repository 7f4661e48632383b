package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mrwolf/studyrank/internal/models"
	"github.com/mrwolf/studyrank/internal/ranking"
	"github.com/mrwolf/studyrank/internal/reconcile"
	"github.com/mrwolf/studyrank/internal/streak"
	"github.com/mrwolf/studyrank/internal/weekly"
)

const (
	defaultRankingLimit = 50
	maxRankingLimit     = 100
)

// targetUser is the {id} path parameter, or the caller on /me routes.
func targetUser(r *http.Request) string {
	if id := chi.URLParam(r, "id"); id != "" {
		return id
	}
	return GetUser(r)
}

// parsePrev reads an optional non-negative integer query parameter.
func parsePrev(r *http.Request, name string) (reconcile.Value, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return reconcile.Unknown, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return reconcile.Unknown, false
	}
	return reconcile.Some(n), true
}

// Streak handles GET /api/v1/me/streak and /api/v1/users/{id}/streak
func (h *Handlers) Streak(w http.ResponseWriter, r *http.Request) {
	userID := targetUser(r)

	prevStreak, ok := parsePrev(r, "prev_streak")
	if !ok {
		writeError(w, http.StatusBadRequest, "prev_streak must be a non-negative integer", CodeValidation)
		return
	}
	prevSum, ok := parsePrev(r, "prev_sum7")
	if !ok {
		writeError(w, http.StatusBadRequest, "prev_sum7 must be a non-negative integer", CodeValidation)
		return
	}

	if _, ok := h.requireProfile(w, r, userID); !ok {
		return
	}

	d := h.displays.Get(userID)
	d.Seed(reconcile.Snapshot{Streak: prevStreak, Sum7: prevSum})
	snap, applied := h.reconciler.Refresh(r.Context(), userID, d)
	if !applied {
		h.log.Debug("refresh superseded by a newer cycle", "user_id", userID)
	}

	resp := models.StreakResponse{
		UserID:     userID,
		StreakDays: snap.Streak.Ptr(),
		Sum7:       snap.Sum7.Ptr(),
		Today:      h.today(),
	}
	if snap.Streak.Known {
		rank := streak.RankFor(snap.Streak.N)
		next, days := streak.Next(snap.Streak.N)
		resp.RankLabel = string(rank)
		resp.RankTier = rank.Tier()
		resp.NextRank = string(next)
		resp.DaysToNext = &days
	}
	writeJSON(w, http.StatusOK, resp)
}

// Week handles GET /api/v1/me/week and /api/v1/users/{id}/week
func (h *Handlers) Week(w http.ResponseWriter, r *http.Request) {
	userID := targetUser(r)
	if _, ok := h.requireProfile(w, r, userID); !ok {
		return
	}

	today := h.today()
	days := streak.Window(today, weekly.Days)
	logs, err := h.db.GetLogsBetween(r.Context(), userID, days[0], today)
	if err != nil {
		h.internalError(w, "failed to load logs", err, "user_id", userID)
		return
	}

	summary := weekly.Aggregate(days, ranking.Entries(logs))
	writeJSON(w, http.StatusOK, models.WeekResponse{
		Days:      summary.Days,
		ByDate:    summary.ByDate,
		Highlight: weekly.PickHighlight(summary, h.rng),
	})
}

// Ranking handles GET /api/v1/ranking?grade=&limit=
func (h *Handlers) Ranking(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	grade := q.Get("grade")
	if err := h.validate.Var(grade, "omitempty,oneof=中1 中2 中3 高1 高2 高3 既卒"); err != nil {
		writeError(w, http.StatusBadRequest, "unknown grade", CodeValidation)
		return
	}

	limit := defaultRankingLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", CodeValidation)
			return
		}
		limit = min(n, maxRankingLimit)
	}

	rows, err := h.db.Leaderboard(r.Context(), grade, limit)
	if err != nil {
		h.internalError(w, "failed to load ranking", err)
		return
	}

	resp := models.RankingResponse{Grade: grade, Entries: make([]models.RankingEntry, 0, len(rows))}
	for i, row := range rows {
		rank := streak.Rank(row.RankLabel)
		if !rank.Valid() {
			rank = streak.RankFor(row.StreakDays)
		}
		resp.Entries = append(resp.Entries, models.RankingEntry{
			Position:   i + 1,
			UserID:     row.UserID,
			Nickname:   row.Nickname,
			Grade:      row.Grade,
			StreakDays: row.StreakDays,
			RankLabel:  string(rank),
			RankTier:   rank.Tier(),
			Sum7:       row.Sum7,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
