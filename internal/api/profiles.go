package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mrwolf/studyrank/internal/db"
	"github.com/mrwolf/studyrank/internal/models"
)

func toProfile(p *db.Profile) models.Profile {
	return models.Profile{
		ID:               p.ID,
		Nickname:         p.Nickname,
		Grade:            p.Grade,
		Gender:           p.Gender,
		TargetUniversity: p.TargetUniversity,
		TargetFaculty:    p.TargetFaculty,
		CurrentStreak:    p.CurrentStreak,
		CurrentRank:      p.CurrentRank,
		CreatedAt:        p.CreatedAt,
	}
}

// Register handles POST /api/v1/profiles
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Gender == "" {
		req.Gender = "unknown"
	}

	id := uuid.NewString()
	err := h.db.CreateProfile(r.Context(), db.Profile{
		ID:               id,
		Nickname:         strings.TrimSpace(req.Nickname),
		Grade:            req.Grade,
		Gender:           req.Gender,
		TargetUniversity: req.TargetUniversity,
		TargetFaculty:    req.TargetFaculty,
	})
	if err != nil {
		h.internalError(w, "failed to create profile", err)
		return
	}

	token, err := IssueToken([]byte(h.cfg.JWTSecret), id, h.clock.Now())
	if err != nil {
		h.internalError(w, "failed to issue token", err, "user_id", id)
		return
	}

	p, ok := h.requireProfile(w, r, id)
	if !ok {
		return
	}
	h.log.Info("profile registered", "user_id", id, "grade", p.Grade)
	writeJSON(w, http.StatusCreated, models.RegisterResponse{Profile: toProfile(p), Token: token})
}

// GetMe handles GET /api/v1/me
func (h *Handlers) GetMe(w http.ResponseWriter, r *http.Request) {
	p, ok := h.requireProfile(w, r, GetUser(r))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toProfile(p))
}

// PatchMe handles PATCH /api/v1/me. Only the fields of ProfilePatchRequest
// can change; unknown fields are rejected.
func (h *Handlers) PatchMe(w http.ResponseWriter, r *http.Request) {
	userID := GetUser(r)

	var req models.ProfilePatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Nickname != nil {
		trimmed := strings.TrimSpace(*req.Nickname)
		if trimmed == "" {
			writeError(w, http.StatusBadRequest, "nickname: failed required", CodeValidation)
			return
		}
		req.Nickname = &trimmed
	}

	err := h.db.UpdateProfile(r.Context(), userID, db.ProfilePatch{
		Nickname:         req.Nickname,
		Grade:            req.Grade,
		Gender:           req.Gender,
		TargetUniversity: req.TargetUniversity,
		TargetFaculty:    req.TargetFaculty,
	})
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "profile not found", CodeNotFound)
		return
	}
	if err != nil {
		h.internalError(w, "failed to update profile", err, "user_id", userID)
		return
	}

	p, ok := h.requireProfile(w, r, userID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toProfile(p))
}

// AddPushToken handles POST /api/v1/push-tokens
func (h *Handlers) AddPushToken(w http.ResponseWriter, r *http.Request) {
	userID := GetUser(r)

	var req models.PushTokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, ok := h.requireProfile(w, r, userID); !ok {
		return
	}
	if err := h.db.AddPushToken(r.Context(), userID, req.Token, req.Platform); err != nil {
		h.internalError(w, "failed to register push token", err, "user_id", userID)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

// DeletePushToken handles DELETE /api/v1/push-tokens/{token}
func (h *Handlers) DeletePushToken(w http.ResponseWriter, r *http.Request) {
	userID := GetUser(r)
	token := chi.URLParam(r, "token")

	deleted, err := h.db.DeletePushToken(r.Context(), userID, token)
	if err != nil {
		h.internalError(w, "failed to delete push token", err, "user_id", userID)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "push token not found", CodeNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reminders handles GET /api/v1/me/reminders. It lists the caller's
// reminders planned for today.
func (h *Handlers) Reminders(w http.ResponseWriter, r *http.Request) {
	userID := GetUser(r)
	today := h.today()

	rows, err := h.db.SchedulesForUser(r.Context(), userID, today)
	if err != nil {
		h.internalError(w, "failed to load reminders", err, "user_id", userID)
		return
	}

	resp := models.RemindersResponse{Date: today, Reminders: make([]models.Reminder, 0, len(rows))}
	for _, row := range rows {
		resp.Reminders = append(resp.Reminders, models.Reminder{
			Window:      row.WindowLabel,
			ScheduledAt: row.ScheduledAt,
			SentAt:      row.SentAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
