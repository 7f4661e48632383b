package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/mrwolf/studyrank/internal/config"
	"github.com/mrwolf/studyrank/internal/db"
	"github.com/mrwolf/studyrank/internal/logger"
	"github.com/mrwolf/studyrank/internal/notify"
	"github.com/mrwolf/studyrank/internal/ranking"
	"github.com/mrwolf/studyrank/internal/scheduler"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "studyrank",
		Short:         "Study streak tracking service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		newServeCmd(),
		newJobCmd(scheduler.JobPlan, "Create today's reminder schedule rows"),
		newJobCmd(scheduler.JobDispatch, "Send reminders that are due"),
		newJobCmd(scheduler.JobLeaderboard, "Rebuild the materialized ranking"),
		newTokenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the components shared by every command.
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *db.DB
	clock      clockwork.Clock
	planner    *notify.Planner
	dispatcher *notify.Dispatcher
	refresher  *ranking.Refresher
	scheduler  *scheduler.Scheduler
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := loadHolidays(ctx, cfg, database, log); err != nil {
		database.Close()
		return nil, err
	}

	var pusher notify.Pusher = notify.LogPusher{Log: log}
	if cfg.PushKey != "" {
		pusher = notify.NewFCMClient(cfg.PushURL, cfg.PushKey)
	} else {
		log.Warn("STUDYRANK_PUSH_KEY not set, reminders are logged instead of sent")
	}

	clock := clockwork.NewRealClock()
	loc := cfg.Location()
	a := &app{
		cfg:        cfg,
		log:        log,
		db:         database,
		clock:      clock,
		planner:    notify.NewPlanner(database, clock, loc, rand.New(rand.NewSource(time.Now().UnixNano())), log),
		dispatcher: notify.NewDispatcher(database, pusher, clock, log),
		refresher:  ranking.NewRefresher(database, clock, loc, log),
	}

	a.scheduler, err = scheduler.New(database, a.planner, a.dispatcher, a.refresher, log, scheduler.Config{
		Location:            loc,
		Clock:               clock,
		LeaderboardInterval: cfg.LeaderboardInterval,
		DispatchInterval:    cfg.DispatchInterval,
	})
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}
	return a, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.Error("database close error", "error", err)
	}
	a.log.Sync()
}

func loadHolidays(ctx context.Context, cfg *config.Config, database *db.DB, log *logger.Logger) error {
	holidays, err := config.LoadHolidays(cfg.HolidaysFile)
	if err != nil {
		return fmt.Errorf("loading holidays: %w", err)
	}
	for _, h := range holidays {
		if err := database.UpsertHoliday(ctx, h.Date, h.Name); err != nil {
			return fmt.Errorf("storing holiday %s: %w", h.Date, err)
		}
	}
	if len(holidays) > 0 {
		log.Info("holidays loaded", "count", len(holidays), "file", cfg.HolidaysFile)
	}
	return nil
}

// newJobCmd runs one scheduler job and exits, for use from an external cron.
func newJobCmd(job, short string) *cobra.Command {
	return &cobra.Command{
		Use:   job,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.scheduler.RunOnce(ctx, job)
		},
	}
}
