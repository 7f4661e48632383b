package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/mrwolf/studyrank/internal/db"
	"github.com/mrwolf/studyrank/internal/logger"
	"github.com/mrwolf/studyrank/internal/notify"
	"github.com/mrwolf/studyrank/internal/ranking"
)

// Job names, also used as scheduler_runs.job_type.
const (
	JobPlan        = "plan-notifications"
	JobDispatch    = "dispatch-notifications"
	JobLeaderboard = "refresh-leaderboard"
)

// Jobs lists every job name.
var Jobs = []string{JobPlan, JobDispatch, JobLeaderboard}

// Scheduler manages scheduled jobs
type Scheduler struct {
	scheduler  gocron.Scheduler
	db         *db.DB
	planner    *notify.Planner
	dispatcher *notify.Dispatcher
	refresher  *ranking.Refresher
	log        *logger.Logger
	cfg        Config
}

// Config holds scheduler configuration
type Config struct {
	Location            *time.Location
	Clock               clockwork.Clock
	LeaderboardInterval time.Duration
	DispatchInterval    time.Duration
}

// New creates a new scheduler
func New(database *db.DB, planner *notify.Planner, dispatcher *notify.Dispatcher, refresher *ranking.Refresher, log *logger.Logger, cfg Config) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	s, err := gocron.NewScheduler(gocron.WithLocation(cfg.Location), gocron.WithClock(cfg.Clock))
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		scheduler:  s,
		db:         database,
		planner:    planner,
		dispatcher: dispatcher,
		refresher:  refresher,
		log:        log,
		cfg:        cfg,
	}, nil
}

// Start registers all jobs and starts the scheduler
func (s *Scheduler) Start() error {
	// Plan the day's reminders right after local midnight
	_, err := s.scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, 0))),
		gocron.NewTask(s.task(JobPlan, 2*time.Minute)),
		gocron.WithName(JobPlan),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	_, err = s.scheduler.NewJob(
		gocron.DurationJob(s.cfg.DispatchInterval),
		gocron.NewTask(s.task(JobDispatch, s.cfg.DispatchInterval)),
		gocron.WithName(JobDispatch),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	_, err = s.scheduler.NewJob(
		gocron.DurationJob(s.cfg.LeaderboardInterval),
		gocron.NewTask(s.task(JobLeaderboard, 5*time.Minute)),
		gocron.WithName(JobLeaderboard),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return err
	}

	s.scheduler.Start()
	s.log.Info("scheduler started",
		"timezone", s.cfg.Location.String(),
		"dispatch_interval", s.cfg.DispatchInterval.String(),
		"leaderboard_interval", s.cfg.LeaderboardInterval.String())
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) task(job string, timeout time.Duration) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.RunOnce(ctx, job); err != nil {
			s.log.Error("job failed", "job", job, "error", err)
		}
	}
}

// RunOnce executes one job immediately and records the run.
func (s *Scheduler) RunOnce(ctx context.Context, job string) error {
	log := s.log.With("job", job)
	runID, err := s.db.StartSchedulerRun(ctx, job)
	if err != nil {
		return fmt.Errorf("recording run start: %w", err)
	}

	jobErr := s.run(ctx, job)

	errMsg := ""
	if jobErr != nil {
		errMsg = jobErr.Error()
	}
	if err := s.db.CompleteSchedulerRun(context.WithoutCancel(ctx), runID, errMsg); err != nil {
		log.Warn("recording run completion failed", "run_id", runID, "error", err)
	}
	if jobErr == nil {
		log.Debug("job completed", "run_id", runID)
	}
	return jobErr
}

func (s *Scheduler) run(ctx context.Context, job string) error {
	switch job {
	case JobPlan:
		_, err := s.planner.Plan(ctx)
		return err
	case JobDispatch:
		_, err := s.dispatcher.Dispatch(ctx)
		return err
	case JobLeaderboard:
		n, err := s.refresher.RefreshLeaderboard(ctx)
		if err == nil {
			s.log.Debug("leaderboard refreshed", "rows", n)
		}
		return err
	default:
		return fmt.Errorf("unknown job %q", job)
	}
}
