package notify

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mrwolf/studyrank/internal/db"
	"github.com/mrwolf/studyrank/internal/logger"
	"github.com/mrwolf/studyrank/internal/streak"
)

// PlanResult summarizes one planner run.
type PlanResult struct {
	Date      string
	OffDay    bool
	Users     int
	Submitted int
	Created   int
	Skipped   int
}

// Planner assigns each eligible user one random reminder time inside each
// of the day's windows.
type Planner struct {
	db    *db.DB
	clock clockwork.Clock
	loc   *time.Location
	log   *logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewPlanner(store *db.DB, clock clockwork.Clock, loc *time.Location, rng *rand.Rand, log *logger.Logger) *Planner {
	return &Planner{db: store, clock: clock, loc: loc, rng: rng, log: log}
}

func (p *Planner) pick(w Window) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return w.Start + p.rng.Intn(w.End-w.Start)
}

// Plan creates today's reminder rows for users holding a push token who
// have not submitted yet. A user never gets two rows at the same instant
// or two rows for the same window on the same day, so re-running is safe.
func (p *Planner) Plan(ctx context.Context) (PlanResult, error) {
	today := streak.Today(p.clock.Now(), p.loc)
	res := PlanResult{Date: today}

	weekend, err := IsWeekend(today)
	if err != nil {
		return res, err
	}
	holiday, err := p.db.IsHoliday(ctx, today)
	if err != nil {
		return res, fmt.Errorf("checking holiday: %w", err)
	}
	res.OffDay = weekend || holiday
	windows := WindowsFor(res.OffDay)

	submitted, err := p.db.SubmittedUsersOn(ctx, today)
	if err != nil {
		return res, fmt.Errorf("loading submissions: %w", err)
	}
	users, err := p.db.UsersWithTokens(ctx)
	if err != nil {
		return res, fmt.Errorf("loading token holders: %w", err)
	}
	res.Users = len(users)

	for _, uid := range users {
		if submitted[uid] {
			res.Submitted++
			continue
		}
		for _, w := range windows {
			at, err := At(today, p.pick(w), p.loc)
			if err != nil {
				return res, err
			}

			exists, err := p.db.ScheduleExists(ctx, uid, at)
			if err != nil {
				return res, fmt.Errorf("checking schedule for %s: %w", uid, err)
			}
			if exists {
				res.Skipped++
				continue
			}

			inserted, err := p.db.InsertSchedule(ctx, db.ScheduleRow{
				UserID:      uid,
				ScheduledAt: at,
				WindowLabel: w.Label,
				ForDate:     today,
			})
			if err != nil {
				return res, err
			}
			if inserted {
				res.Created++
			} else {
				res.Skipped++
			}
		}
	}

	p.log.Info("planned reminders",
		"date", res.Date, "off_day", res.OffDay, "users", res.Users,
		"submitted", res.Submitted, "created", res.Created, "skipped", res.Skipped)
	return res, nil
}
