package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mrwolf/studyrank/internal/config"
	"github.com/mrwolf/studyrank/internal/db"
	"github.com/mrwolf/studyrank/internal/events"
	"github.com/mrwolf/studyrank/internal/logger"
	"github.com/mrwolf/studyrank/internal/models"
	"github.com/mrwolf/studyrank/internal/ranking"
	"github.com/mrwolf/studyrank/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

// 2026-10-17 12:00 in Tokyo
var testNow = time.Date(2026, 10, 17, 3, 0, 0, 0, time.UTC)

type testEnv struct {
	server *httptest.Server
	db     *db.DB
	bus    *events.Bus
	clock  *clockwork.FakeClock
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Port:      "0",
		DBPath:    filepath.Join(t.TempDir(), "test.db"),
		Timezone:  "Asia/Tokyo",
		JWTSecret: testSecret,
		Env:       "dev",
	}

	database, err := db.Open(cfg.DBPath)
	require.NoError(t, err)

	log := logger.Nop()
	bus := events.NewBus(log)
	clock := clockwork.NewFakeClockAt(testNow)

	server := httptest.NewServer(NewRouter(cfg, database, bus, log, clock))
	t.Cleanup(func() {
		server.Close()
		bus.Close()
		database.Close()
	})

	return &testEnv{server: server, db: database, bus: bus, clock: clock}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.server.URL+path, r)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (e *testEnv) register(t *testing.T, nickname, grade string) (string, string) {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/profiles", "", models.RegisterRequest{Nickname: nickname, Grade: grade})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out models.RegisterResponse
	decodeBody(t, resp, &out)
	require.NotEmpty(t, out.Token)
	return out.Profile.ID, out.Token
}

func assertErrorCode(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	assert.Equal(t, status, resp.StatusCode)
	var body ErrorResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, code, body.Code)
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body models.HealthResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "connected", body.DB)
	assert.Equal(t, Version, body.Version)
	assert.Empty(t, body.Jobs)
}

func TestHealthReportsLastJobRuns(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	id, err := env.db.StartSchedulerRun(ctx, scheduler.JobPlan)
	require.NoError(t, err)
	require.NoError(t, env.db.CompleteSchedulerRun(ctx, id, ""))
	id, err = env.db.StartSchedulerRun(ctx, scheduler.JobDispatch)
	require.NoError(t, err)
	require.NoError(t, env.db.CompleteSchedulerRun(ctx, id, "push provider down"))

	resp := env.do(t, http.MethodGet, "/health", "", nil)
	var body models.HealthResponse
	decodeBody(t, resp, &body)

	require.Len(t, body.Jobs, 2)
	assert.Equal(t, "completed", body.Jobs[scheduler.JobPlan].Status)
	assert.Equal(t, "failed", body.Jobs[scheduler.JobDispatch].Status)
	assert.Equal(t, "push provider down", body.Jobs[scheduler.JobDispatch].Error)
	assert.NotContains(t, body.Jobs, scheduler.JobLeaderboard)
}

func TestAuthRequired(t *testing.T) {
	env := setupTestServer(t)
	id, _ := env.register(t, "taro", "高2")

	t.Run("missing header", func(t *testing.T) {
		assertErrorCode(t, env.do(t, http.MethodGet, "/api/v1/me", "", nil), http.StatusUnauthorized, CodeUnauthorized)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := IssueToken([]byte("other"), id, testNow)
		require.NoError(t, err)
		assertErrorCode(t, env.do(t, http.MethodGet, "/api/v1/me", token, nil), http.StatusUnauthorized, CodeUnauthorized)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := IssueToken([]byte(testSecret), id, testNow.Add(-TokenTTL-time.Hour))
		require.NoError(t, err)
		assertErrorCode(t, env.do(t, http.MethodGet, "/api/v1/me", token, nil), http.StatusUnauthorized, CodeUnauthorized)
	})
}

func TestRegisterAndMe(t *testing.T) {
	env := setupTestServer(t)
	id, token := env.register(t, "taro", "高2")

	resp := env.do(t, http.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var p models.Profile
	decodeBody(t, resp, &p)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, "taro", p.Nickname)
	assert.Equal(t, "unknown", p.Gender)
	assert.Nil(t, p.CurrentStreak)
}

func TestRegisterValidation(t *testing.T) {
	env := setupTestServer(t)

	tests := []struct {
		name string
		body any
		code string
	}{
		{"bad grade", models.RegisterRequest{Nickname: "taro", Grade: "小6"}, CodeValidation},
		{"long nickname", models.RegisterRequest{Nickname: strings.Repeat("あ", 25), Grade: "高1"}, CodeValidation},
		{"missing nickname", models.RegisterRequest{Grade: "高1"}, CodeValidation},
		{"bad gender", models.RegisterRequest{Nickname: "taro", Grade: "高1", Gender: "robot"}, CodeValidation},
		{"not json", "nope", CodeInvalidBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertErrorCode(t, env.do(t, http.MethodPost, "/api/v1/profiles", "", tt.body), http.StatusBadRequest, tt.code)
		})
	}

	// 24 multibyte characters is within the limit
	resp := env.do(t, http.MethodPost, "/api/v1/profiles", "", models.RegisterRequest{Nickname: strings.Repeat("あ", 24), Grade: "既卒"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestPatchMe(t *testing.T) {
	env := setupTestServer(t)
	_, token := env.register(t, "taro", "高2")

	resp := env.do(t, http.MethodPatch, "/api/v1/me", token, map[string]string{"nickname": "jiro", "target_university": "京都大学"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var p models.Profile
	decodeBody(t, resp, &p)
	assert.Equal(t, "jiro", p.Nickname)
	assert.Equal(t, "京都大学", p.TargetUniversity)
	assert.Equal(t, "高2", p.Grade)

	// fields outside the allow-list are rejected
	resp = env.do(t, http.MethodPatch, "/api/v1/me", token, map[string]any{"current_streak": 300})
	assertErrorCode(t, resp, http.StatusBadRequest, CodeInvalidBody)

	resp = env.do(t, http.MethodPatch, "/api/v1/me", token, map[string]string{"nickname": "   "})
	assertErrorCode(t, resp, http.StatusBadRequest, CodeValidation)
}

func TestSubmitLog(t *testing.T) {
	env := setupTestServer(t)
	id, token := env.register(t, "taro", "高2")

	ch, cancel := env.bus.Subscribe("test")
	defer cancel()

	req := models.SubmitLogRequest{
		Rows: []models.SubmitRow{{Subject: "数学", Minutes: 30}, {Subject: "英語", Minutes: 20}, {Subject: "国語", Minutes: 0}},
		Memo: "今日は頑張った",
	}
	resp := env.do(t, http.MethodPost, "/api/v1/logs", token, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out models.SubmitLogResponse
	decodeBody(t, resp, &out)
	assert.Equal(t, "2026-10-17", out.Date)
	assert.Equal(t, "数学", out.Subject)
	assert.Equal(t, 50, out.Minutes)
	assert.Equal(t, "今日は頑張った\n\n内訳: 数学:30分 / 英語:20分", out.Memo)

	select {
	case evt := <-ch:
		assert.Equal(t, events.StudySubmitted{UserID: id, Date: "2026-10-17", Minutes: 50}, evt)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}

	resp = env.do(t, http.MethodPost, "/api/v1/logs", token, req)
	assertErrorCode(t, resp, http.StatusConflict, CodeAlreadySubmitted)

	resp = env.do(t, http.MethodGet, "/api/v1/me/today", token, nil)
	var today models.TodayResponse
	decodeBody(t, resp, &today)
	assert.Equal(t, models.TodayResponse{Date: "2026-10-17", Submitted: true}, today)
}

func TestSubmitLogValidation(t *testing.T) {
	env := setupTestServer(t)
	_, token := env.register(t, "taro", "高2")

	tests := []struct {
		name string
		req  models.SubmitLogRequest
	}{
		{"zero total", models.SubmitLogRequest{Rows: []models.SubmitRow{{Subject: "数学", Minutes: 0}}}},
		{"over 500", models.SubmitLogRequest{Rows: []models.SubmitRow{{Subject: "数学", Minutes: 300}, {Subject: "英語", Minutes: 201}}}},
		{"unknown subject", models.SubmitLogRequest{Rows: []models.SubmitRow{{Subject: "体育", Minutes: 30}}}},
		{"negative minutes", models.SubmitLogRequest{Rows: []models.SubmitRow{{Subject: "数学", Minutes: -5}}}},
		{"no rows", models.SubmitLogRequest{Memo: "hi"}},
		{"long memo", models.SubmitLogRequest{Rows: []models.SubmitRow{{Subject: "数学", Minutes: 30}}, Memo: strings.Repeat("字", 501)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertErrorCode(t, env.do(t, http.MethodPost, "/api/v1/logs", token, tt.req), http.StatusBadRequest, CodeValidation)
		})
	}

	resp := env.do(t, http.MethodGet, "/api/v1/me/today", token, nil)
	var today models.TodayResponse
	decodeBody(t, resp, &today)
	assert.False(t, today.Submitted)
}

func seedLogs(t *testing.T, store *db.DB, userID string, days map[string]db.StudyLog) {
	t.Helper()
	for date, l := range days {
		l.UserID = userID
		l.StudyDate = date
		if l.Subject == "" {
			l.Subject = "数学"
		}
		require.NoError(t, store.SubmitStudyLog(context.Background(), l))
	}
}

func TestStreakEndpoint(t *testing.T) {
	env := setupTestServer(t)
	id, token := env.register(t, "taro", "高2")
	seedLogs(t, env.db, id, map[string]db.StudyLog{
		"2026-10-15": {Minutes: 45},
		"2026-10-16": {Minutes: 45},
		"2026-10-17": {Minutes: 45},
	})

	for _, path := range []string{"/api/v1/me/streak", "/api/v1/users/" + id + "/streak"} {
		resp := env.do(t, http.MethodGet, path, token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)

		var out models.StreakResponse
		decodeBody(t, resp, &out)
		require.NotNil(t, out.StreakDays)
		require.NotNil(t, out.Sum7)
		assert.Equal(t, 3, *out.StreakDays)
		assert.Equal(t, 135, *out.Sum7)
		assert.Equal(t, "I", out.RankLabel)
		assert.Equal(t, "I", out.RankTier)
		assert.Equal(t, "H", out.NextRank)
		require.NotNil(t, out.DaysToNext)
		assert.Equal(t, 4, *out.DaysToNext)
		assert.Equal(t, "2026-10-17", out.Today)
	}
}

func TestStreakErrors(t *testing.T) {
	env := setupTestServer(t)
	_, token := env.register(t, "taro", "高2")

	assertErrorCode(t, env.do(t, http.MethodGet, "/api/v1/users/ghost/streak", token, nil), http.StatusNotFound, CodeNotFound)
	assertErrorCode(t, env.do(t, http.MethodGet, "/api/v1/me/streak?prev_streak=abc", token, nil), http.StatusBadRequest, CodeValidation)
	assertErrorCode(t, env.do(t, http.MethodGet, "/api/v1/me/streak?prev_sum7=-1", token, nil), http.StatusBadRequest, CodeValidation)
}

func TestStreakNoActivityIsZero(t *testing.T) {
	env := setupTestServer(t)
	_, token := env.register(t, "taro", "高2")

	resp := env.do(t, http.MethodGet, "/api/v1/me/streak?prev_streak=7", token, nil)
	var out models.StreakResponse
	decodeBody(t, resp, &out)
	// the live source confirms zero, which beats the seeded value
	require.NotNil(t, out.StreakDays)
	assert.Equal(t, 0, *out.StreakDays)
	assert.Equal(t, "I", out.RankLabel)
}

func TestWeekEndpoint(t *testing.T) {
	env := setupTestServer(t)
	id, token := env.register(t, "taro", "高2")
	seedLogs(t, env.db, id, map[string]db.StudyLog{
		"2026-10-10": {Minutes: 60, Memo: "outside the window"},
		"2026-10-12": {Minutes: 50, Memo: "今日は頑張った\n\n内訳: 数学:30分 / 英語:20分"},
		"2026-10-17": {Subject: "理科", Minutes: 25},
	})

	resp := env.do(t, http.MethodGet, "/api/v1/me/week", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.WeekResponse
	decodeBody(t, resp, &out)
	require.Len(t, out.Days, 7)
	assert.Equal(t, "2026-10-11", out.Days[0])
	assert.Equal(t, "2026-10-17", out.Days[6])
	assert.Equal(t, map[string]int{"数学": 30, "英語": 20}, out.ByDate["2026-10-12"].Sums)
	assert.Equal(t, map[string]int{"理科": 25}, out.ByDate["2026-10-17"].Sums)
	assert.NotContains(t, out.ByDate, "2026-10-10")

	require.NotNil(t, out.Highlight)
	assert.Equal(t, "2026-10-12", out.Highlight.Date)
	assert.Equal(t, "今日は頑張った", out.Highlight.Memo)
}

func TestRankingEndpoint(t *testing.T) {
	env := setupTestServer(t)
	a, token := env.register(t, "aki", "高2")
	b, _ := env.register(t, "ben", "高2")
	c, _ := env.register(t, "chi", "中3")

	seedLogs(t, env.db, a, map[string]db.StudyLog{"2026-10-17": {Minutes: 30}})
	seedLogs(t, env.db, b, map[string]db.StudyLog{"2026-10-16": {Minutes: 30}, "2026-10-17": {Minutes: 30}})
	seedLogs(t, env.db, c, map[string]db.StudyLog{"2026-10-17": {Minutes: 90}})

	refresher := ranking.NewRefresher(env.db, env.clock, mustTokyo(t), logger.Nop())
	_, err := refresher.RefreshLeaderboard(context.Background())
	require.NoError(t, err)

	resp := env.do(t, http.MethodGet, "/api/v1/ranking", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out models.RankingResponse
	decodeBody(t, resp, &out)
	require.Len(t, out.Entries, 3)
	assert.Equal(t, "ben", out.Entries[0].Nickname)
	assert.Equal(t, "chi", out.Entries[1].Nickname)
	assert.Equal(t, "aki", out.Entries[2].Nickname)
	assert.Equal(t, 1, out.Entries[0].Position)
	assert.Equal(t, "I", out.Entries[0].RankTier)

	resp = env.do(t, http.MethodGet, "/api/v1/ranking?"+url.Values{"grade": {"高2"}, "limit": {"1"}}.Encode(), token, nil)
	out = models.RankingResponse{}
	decodeBody(t, resp, &out)
	require.Len(t, out.Entries, 1)
	assert.Equal(t, "ben", out.Entries[0].Nickname)

	assertErrorCode(t, env.do(t, http.MethodGet, "/api/v1/ranking?limit=0", token, nil), http.StatusBadRequest, CodeValidation)
	assertErrorCode(t, env.do(t, http.MethodGet, "/api/v1/ranking?"+url.Values{"grade": {"大1"}}.Encode(), token, nil), http.StatusBadRequest, CodeValidation)
}

func mustTokyo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	return loc
}

func TestCalendarEndpoint(t *testing.T) {
	env := setupTestServer(t)
	id, token := env.register(t, "taro", "高2")
	seedLogs(t, env.db, id, map[string]db.StudyLog{
		"2026-09-30": {Minutes: 99},
		"2026-10-01": {Minutes: 40},
		"2026-10-17": {Minutes: 50, Memo: "内訳: 数学:30分 / 英語:20分"},
	})

	resp := env.do(t, http.MethodGet, "/api/v1/me/calendar?month=2026-10", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.CalendarResponse
	decodeBody(t, resp, &out)
	assert.Equal(t, "2026-10", out.Month)
	require.Len(t, out.Days, 31)
	assert.Equal(t, models.CalendarDay{Date: "2026-10-01", Minutes: 40}, out.Days[0])
	assert.Equal(t, 50, out.Days[16].Minutes)
	assert.Equal(t, 90, out.Total)

	// defaults to the current month
	resp = env.do(t, http.MethodGet, "/api/v1/me/calendar", token, nil)
	out = models.CalendarResponse{}
	decodeBody(t, resp, &out)
	assert.Equal(t, "2026-10", out.Month)

	assertErrorCode(t, env.do(t, http.MethodGet, "/api/v1/me/calendar?month=2026-13", token, nil), http.StatusBadRequest, CodeValidation)
}

func TestPushTokens(t *testing.T) {
	env := setupTestServer(t)
	id, token := env.register(t, "taro", "高2")

	resp := env.do(t, http.MethodPost, "/api/v1/push-tokens", token, models.PushTokenRequest{Token: "device-1", Platform: "ios"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	users, err := env.db.UsersWithTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{id}, users)

	resp = env.do(t, http.MethodPost, "/api/v1/push-tokens", token, models.PushTokenRequest{Token: "device-2", Platform: "fax"})
	assertErrorCode(t, resp, http.StatusBadRequest, CodeValidation)

	resp = env.do(t, http.MethodDelete, "/api/v1/push-tokens/device-1", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/v1/push-tokens/device-1", token, nil)
	assertErrorCode(t, resp, http.StatusNotFound, CodeNotFound)
}

func TestReminders(t *testing.T) {
	env := setupTestServer(t)
	id, token := env.register(t, "taro", "高2")
	ctx := context.Background()

	// Saturday 2026-10-17, 13:xx Tokyo
	at := time.Date(2026, 10, 17, 4, 25, 0, 0, time.UTC)
	inserted, err := env.db.InsertSchedule(ctx, db.ScheduleRow{UserID: id, ScheduledAt: at, WindowLabel: "we_13_14", ForDate: "2026-10-17"})
	require.NoError(t, err)
	require.True(t, inserted)
	_, err = env.db.InsertSchedule(ctx, db.ScheduleRow{UserID: id, ScheduledAt: at.Add(24 * time.Hour), WindowLabel: "we_13_14", ForDate: "2026-10-18"})
	require.NoError(t, err)

	resp := env.do(t, http.MethodGet, "/api/v1/me/reminders", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.RemindersResponse
	decodeBody(t, resp, &out)
	assert.Equal(t, "2026-10-17", out.Date)
	require.Len(t, out.Reminders, 1)
	assert.Equal(t, "we_13_14", out.Reminders[0].Window)
	assert.True(t, at.Equal(out.Reminders[0].ScheduledAt))
	assert.Nil(t, out.Reminders[0].SentAt)
}

func TestNarrativeAnnotationsDoNotCount(t *testing.T) {
	env := setupTestServer(t)
	_, token := env.register(t, "taro", "高2")

	req := models.SubmitLogRequest{
		Rows: []models.SubmitRow{{Subject: "数学", Minutes: 60}},
		Memo: "英語:20分の予定だったけど数学だけ",
	}
	resp := env.do(t, http.MethodPost, "/api/v1/logs", token, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/me/calendar?month=2026-10", token, nil)
	var cal models.CalendarResponse
	decodeBody(t, resp, &cal)
	assert.Equal(t, 60, cal.Total)

	resp = env.do(t, http.MethodGet, "/api/v1/me/week", token, nil)
	var week models.WeekResponse
	decodeBody(t, resp, &week)
	assert.Equal(t, map[string]int{"数学": 60}, week.ByDate["2026-10-17"].Sums)
	require.NotNil(t, week.Highlight)
	assert.Equal(t, "英語:20分の予定だったけど数学だけ", week.Highlight.Memo)

	resp = env.do(t, http.MethodGet, "/api/v1/me/streak", token, nil)
	var st models.StreakResponse
	decodeBody(t, resp, &st)
	require.NotNil(t, st.Sum7)
	assert.Equal(t, 60, *st.Sum7)
}

func TestRateLimiter(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testNow)
	rl := NewRateLimiter(2, time.Minute, clock)

	assert.True(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u1"))
	assert.False(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u2"))

	clock.Advance(time.Minute + time.Second)
	assert.True(t, rl.Allow("u1"))
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := IssueToken([]byte(testSecret), "u1", testNow)
	require.NoError(t, err)

	sub, err := ParseToken([]byte(testSecret), token, func() time.Time { return testNow })
	require.NoError(t, err)
	assert.Equal(t, "u1", sub)
}
