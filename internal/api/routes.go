package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/mrwolf/studyrank/internal/config"
	"github.com/mrwolf/studyrank/internal/db"
	"github.com/mrwolf/studyrank/internal/events"
	"github.com/mrwolf/studyrank/internal/logger"
)

func NewRouter(cfg *config.Config, database *db.DB, bus *events.Bus, log *logger.Logger, clock clockwork.Clock) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(log))

	handlers := NewHandlers(cfg, database, bus, log, clock)
	secret := []byte(cfg.JWTSecret)

	// Public endpoints
	r.Get("/health", handlers.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(JSONContentType)

		r.With(RateLimitMiddleware(NewRateLimiter(10, time.Hour, clock))).
			Post("/profiles", handlers.Register)

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(secret, clock))

			r.With(RateLimitMiddleware(NewRateLimiter(10, time.Minute, clock))).
				Post("/logs", handlers.SubmitLog)

			r.Get("/me", handlers.GetMe)
			r.Patch("/me", handlers.PatchMe)
			r.Get("/me/today", handlers.Today)
			r.Get("/me/streak", handlers.Streak)
			r.Get("/me/week", handlers.Week)
			r.Get("/me/calendar", handlers.Calendar)
			r.Get("/me/reminders", handlers.Reminders)

			r.Get("/users/{id}/streak", handlers.Streak)
			r.Get("/users/{id}/week", handlers.Week)

			r.Get("/ranking", handlers.Ranking)

			r.Post("/push-tokens", handlers.AddPushToken)
			r.Delete("/push-tokens/{token}", handlers.DeletePushToken)
		})
	})

	return r
}
