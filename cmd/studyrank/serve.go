package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrwolf/studyrank/internal/api"
	"github.com/mrwolf/studyrank/internal/events"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the job scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve()
		},
	}
}

func (a *app) serve() error {
	log := a.log
	log.Info("starting studyrank", "version", api.Version, "timezone", a.cfg.Timezone)

	bus := events.NewBus(log)
	subCtx, stopSubs := context.WithCancel(context.Background())
	var subs sync.WaitGroup
	a.subscribe(subCtx, bus, &subs)

	router := api.NewRouter(a.cfg, a.db, bus, log, a.clock)

	if err := a.scheduler.Start(); err != nil {
		stopSubs()
		return err
	}

	addr := ":" + a.cfg.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-done:
		log.Info("shutting down gracefully")
	case runErr = <-serverErr:
		log.Error("server error", "error", runErr)
	}

	// Give ongoing requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("http server shutdown error", "error", err)
	}

	log.Info("stopping scheduler")
	if err := a.scheduler.Stop(); err != nil {
		log.Error("scheduler shutdown error", "error", err)
	}

	bus.Close()
	stopSubs()
	subs.Wait()

	log.Info("shutdown complete")
	return runErr
}

// subscribe wires the submission side effects: the cached profile streak
// and suppression of the day's remaining reminders.
func (a *app) subscribe(ctx context.Context, bus *events.Bus, wg *sync.WaitGroup) {
	profiles, _ := bus.Subscribe("profile-cache")
	reminders, _ := bus.Subscribe("reminder-suppressor")

	wg.Add(2)
	go func() {
		defer wg.Done()
		events.Consume(ctx, profiles, func(evt events.StudySubmitted) {
			st, err := a.refresher.UpdateProfileCache(ctx, evt.UserID)
			if err != nil {
				a.log.Warn("profile cache update failed", "user_id", evt.UserID, "error", err)
				return
			}
			a.log.Debug("profile cache updated", "user_id", evt.UserID, "streak", st.Streak, "rank", string(st.Rank))
		})
	}()
	go func() {
		defer wg.Done()
		events.Consume(ctx, reminders, func(evt events.StudySubmitted) {
			n, err := a.dispatcher.Suppress(ctx, evt.UserID, evt.Date)
			if err != nil {
				a.log.Warn("reminder suppression failed", "user_id", evt.UserID, "error", err)
				return
			}
			if n > 0 {
				a.log.Debug("reminders suppressed", "user_id", evt.UserID, "count", n)
			}
		})
	}()
}
