package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/mrwolf/studyrank/internal/config"
	"github.com/mrwolf/studyrank/internal/db"
	"github.com/mrwolf/studyrank/internal/events"
	"github.com/mrwolf/studyrank/internal/logger"
	"github.com/mrwolf/studyrank/internal/models"
	"github.com/mrwolf/studyrank/internal/ranking"
	"github.com/mrwolf/studyrank/internal/reconcile"
	"github.com/mrwolf/studyrank/internal/scheduler"
	"github.com/mrwolf/studyrank/internal/streak"
	"github.com/mrwolf/studyrank/internal/weekly"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

const maxBodyBytes = 64 << 10

// Error codes
const (
	CodeInvalidBody      = "INVALID_BODY"
	CodeValidation       = "VALIDATION"
	CodeAlreadySubmitted = "ALREADY_SUBMITTED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeNotFound         = "NOT_FOUND"
	CodeInternal         = "INTERNAL"
	CodeRateLimit        = "RATE_LIMIT"
)

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// lockedRand shares one generator between requests.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

type Handlers struct {
	cfg        *config.Config
	db         *db.DB
	bus        *events.Bus
	reconciler *reconcile.Reconciler
	displays   *reconcile.Displays
	validate   *validator.Validate
	clock      clockwork.Clock
	loc        *time.Location
	rng        weekly.Intn
	log        *logger.Logger
}

func NewHandlers(cfg *config.Config, database *db.DB, bus *events.Bus, log *logger.Logger, clock clockwork.Clock) *Handlers {
	loc := cfg.Location()
	return &Handlers{
		cfg:        cfg,
		db:         database,
		bus:        bus,
		reconciler: reconcile.New(log, ranking.Sources(database, clock, loc)...),
		displays:   reconcile.NewDisplays(),
		validate:   newValidator(),
		clock:      clock,
		loc:        loc,
		rng:        &lockedRand{rng: rand.New(rand.NewSource(clock.Now().UnixNano()))},
		log:        log,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("subject", func(fl validator.FieldLevel) bool {
		return weekly.IsSubject(fl.Field().String())
	})
	return v
}

func (h *Handlers) today() string {
	return streak.Today(h.clock.Now(), h.loc)
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler may continue.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", CodeInvalidBody)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err), CodeValidation)
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Sprintf("%s: failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag())
}

func (h *Handlers) internalError(w http.ResponseWriter, msg string, err error, kv ...interface{}) {
	h.log.Error(msg, append(kv, "error", err)...)
	writeError(w, http.StatusInternalServerError, msg, CodeInternal)
}

// requireProfile loads a profile, writing a 404 when it does not exist.
func (h *Handlers) requireProfile(w http.ResponseWriter, r *http.Request, userID string) (*db.Profile, bool) {
	p, err := h.db.GetProfile(r.Context(), userID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "profile not found", CodeNotFound)
		return nil, false
	}
	if err != nil {
		h.internalError(w, "failed to load profile", err, "user_id", userID)
		return nil, false
	}
	return p, true
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := models.HealthResponse{
		Status:  "ok",
		DB:      h.checkDB(r.Context()),
		Version: Version,
	}
	if resp.DB != "connected" {
		resp.Status = "degraded"
	} else {
		resp.Jobs = h.lastRuns(r.Context())
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusOK, resp)
}

// lastRuns reports the most recent run of each scheduled job.
func (h *Handlers) lastRuns(ctx context.Context) map[string]models.JobRun {
	runs := make(map[string]models.JobRun, len(scheduler.Jobs))
	for _, job := range scheduler.Jobs {
		run, err := h.db.GetLastSchedulerRun(ctx, job)
		if errors.Is(err, db.ErrNotFound) {
			continue
		}
		if err != nil {
			h.log.Warn("loading last job run failed", "job", job, "error", err)
			continue
		}
		runs[job] = models.JobRun{
			Status:      run.Status,
			StartedAt:   run.StartedAt,
			CompletedAt: run.CompletedAt,
			Error:       run.ErrorMessage,
		}
	}
	return runs
}

func (h *Handlers) checkDB(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "connected"
}
