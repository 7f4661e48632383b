package notify

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mrwolf/studyrank/internal/db"
	"github.com/mrwolf/studyrank/internal/logger"
)

const dispatchBatch = 1000

// DispatchResult summarizes one dispatch run.
type DispatchResult struct {
	Due        int
	Sent       int
	Suppressed int
	Failed     int
}

// Dispatcher sends reminders that have come due. Delivery is
// fire-and-forget: a row is marked sent whatever the provider reports.
type Dispatcher struct {
	db     *db.DB
	pusher Pusher
	clock  clockwork.Clock
	log    *logger.Logger
}

func NewDispatcher(store *db.DB, pusher Pusher, clock clockwork.Clock, log *logger.Logger) *Dispatcher {
	return &Dispatcher{db: store, pusher: pusher, clock: clock, log: log}
}

func (d *Dispatcher) Dispatch(ctx context.Context) (DispatchResult, error) {
	var res DispatchResult
	now := d.clock.Now()

	due, err := d.db.DueSchedules(ctx, now, dispatchBatch)
	if err != nil {
		return res, fmt.Errorf("loading due reminders: %w", err)
	}
	res.Due = len(due)
	if len(due) == 0 {
		return res, nil
	}

	seen := make(map[string]bool)
	var ids []string
	for _, s := range due {
		if !seen[s.UserID] {
			seen[s.UserID] = true
			ids = append(ids, s.UserID)
		}
	}
	tokens, err := d.db.TokensForUsers(ctx, ids)
	if err != nil {
		return res, fmt.Errorf("loading tokens: %w", err)
	}

	submittedByDate := make(map[string]map[string]bool)
	for _, s := range due {
		submitted, ok := submittedByDate[s.ForDate]
		if !ok {
			submitted, err = d.db.SubmittedUsersOn(ctx, s.ForDate)
			if err != nil {
				return res, fmt.Errorf("loading submissions for %s: %w", s.ForDate, err)
			}
			submittedByDate[s.ForDate] = submitted
		}

		userTokens := tokens[s.UserID]
		if len(userTokens) > 0 && !submitted[s.UserID] {
			if err := d.pusher.Send(ctx, userTokens, Reminder); err != nil {
				res.Failed++
				d.log.Warn("push delivery failed", "schedule_id", s.ID, "user_id", s.UserID, "error", err)
			} else {
				res.Sent++
			}
		} else {
			res.Suppressed++
		}

		if err := d.db.MarkSent(ctx, s.ID, d.clock.Now()); err != nil {
			return res, fmt.Errorf("marking reminder %d sent: %w", s.ID, err)
		}
	}

	d.log.Info("dispatched reminders", "due", res.Due, "sent", res.Sent, "suppressed", res.Suppressed, "failed", res.Failed)
	return res, nil
}

// Suppress marks the user's remaining reminders for date as sent, so a
// user who just submitted is not reminded again.
func (d *Dispatcher) Suppress(ctx context.Context, userID, date string) (int64, error) {
	return d.db.MarkUserSentForDate(ctx, userID, date, d.clock.Now())
}
