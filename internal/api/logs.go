package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mrwolf/studyrank/internal/db"
	"github.com/mrwolf/studyrank/internal/events"
	"github.com/mrwolf/studyrank/internal/models"
	"github.com/mrwolf/studyrank/internal/ranking"
	"github.com/mrwolf/studyrank/internal/streak"
	"github.com/mrwolf/studyrank/internal/weekly"
)

const (
	minTotalMinutes = 1
	maxTotalMinutes = 500
)

// SubmitLog handles POST /api/v1/logs
func (h *Handlers) SubmitLog(w http.ResponseWriter, r *http.Request) {
	userID := GetUser(r)

	var req models.SubmitLogRequest
	if !h.decode(w, r, &req) {
		return
	}

	var items []weekly.Item
	total := 0
	subject := ""
	for _, row := range req.Rows {
		if row.Minutes <= 0 {
			continue
		}
		items = append(items, weekly.Item{Subject: row.Subject, Minutes: row.Minutes})
		total += row.Minutes
		if subject == "" {
			subject = row.Subject
		}
	}
	if total < minTotalMinutes || total > maxTotalMinutes {
		writeError(w, http.StatusBadRequest, "total minutes must be between 1 and 500", CodeValidation)
		return
	}

	if _, ok := h.requireProfile(w, r, userID); !ok {
		return
	}

	log := db.StudyLog{
		UserID:    userID,
		StudyDate: h.today(),
		Subject:   subject,
		Minutes:   total,
		Memo:      weekly.BuildMemo(strings.TrimSpace(req.Memo), items),
	}
	err := h.db.SubmitStudyLog(r.Context(), log)
	if errors.Is(err, db.ErrAlreadySubmitted) {
		writeError(w, http.StatusConflict, "already submitted today", CodeAlreadySubmitted)
		return
	}
	if err != nil {
		h.internalError(w, "failed to store log", err, "user_id", userID)
		return
	}

	h.bus.Publish(events.StudySubmitted{UserID: userID, Date: log.StudyDate, Minutes: total})
	h.log.Info("study log submitted", "user_id", userID, "date", log.StudyDate, "minutes", total)

	writeJSON(w, http.StatusCreated, models.SubmitLogResponse{
		Date:    log.StudyDate,
		Subject: log.Subject,
		Minutes: log.Minutes,
		Memo:    log.Memo,
	})
}

// Today handles GET /api/v1/me/today
func (h *Handlers) Today(w http.ResponseWriter, r *http.Request) {
	userID := GetUser(r)
	today := h.today()

	submitted, err := h.db.HasLogOn(r.Context(), userID, today)
	if err != nil {
		h.internalError(w, "failed to check today's log", err, "user_id", userID)
		return
	}
	writeJSON(w, http.StatusOK, models.TodayResponse{Date: today, Submitted: submitted})
}

// Calendar handles GET /api/v1/me/calendar?month=YYYY-MM
func (h *Handlers) Calendar(w http.ResponseWriter, r *http.Request) {
	userID := GetUser(r)

	month := r.URL.Query().Get("month")
	if month == "" {
		month = h.today()[:7]
	}
	first, err := time.ParseInLocation("2006-01", month, h.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM", CodeValidation)
		return
	}
	from := first.Format(streak.DateLayout)
	to := first.AddDate(0, 1, -1).Format(streak.DateLayout)

	logs, err := h.db.GetLogsBetween(r.Context(), userID, from, to)
	if err != nil {
		h.internalError(w, "failed to load logs", err, "user_id", userID)
		return
	}
	perDay := make(map[string]int, len(logs))
	for _, e := range ranking.Entries(logs) {
		perDay[e.Date] += weekly.EntryMinutes(e)
	}

	resp := models.CalendarResponse{Month: month}
	for d := from; d <= to; d = streak.AddDays(d, 1) {
		resp.Days = append(resp.Days, models.CalendarDay{Date: d, Minutes: perDay[d]})
		resp.Total += perDay[d]
	}
	writeJSON(w, http.StatusOK, resp)
}
