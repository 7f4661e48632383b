package reconcile

import (
	"context"
	"sync"

	"github.com/mrwolf/studyrank/internal/logger"
	"golang.org/x/sync/errgroup"
)

// Sample is what one source reports for a user.
type Sample struct {
	Streak Value
	Sum7   Value
}

// Source is one origin of candidate values.
type Source interface {
	Name() string
	Fetch(ctx context.Context, userID string) (Sample, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc struct {
	SourceName string
	Fn         func(ctx context.Context, userID string) (Sample, error)
}

// Name returns SourceName.
func (s SourceFunc) Name() string { return s.SourceName }

// Fetch calls Fn.
func (s SourceFunc) Fetch(ctx context.Context, userID string) (Sample, error) {
	return s.Fn(ctx, userID)
}

// Snapshot is the displayed state of one user.
type Snapshot struct {
	Streak Value
	Sum7   Value
}

// Reconciler queries its sources concurrently and reduces their samples.
// Sources are listed in priority order.
type Reconciler struct {
	sources []Source
	log     *logger.Logger
}

// New returns a Reconciler over sources, highest priority first.
func New(log *logger.Logger, sources ...Source) *Reconciler {
	return &Reconciler{sources: sources, log: log}
}

// Collect fetches from every source in parallel and waits for all of them
// to settle. A failing source yields an all-unknown sample in its slot.
func (r *Reconciler) Collect(ctx context.Context, userID string) []Sample {
	samples := make([]Sample, len(r.sources))
	var g errgroup.Group
	for i, src := range r.sources {
		g.Go(func() error {
			s, err := src.Fetch(ctx, userID)
			if err != nil {
				r.log.Warn("source unavailable", "source", src.Name(), "user_id", userID, "error", err)
				return nil
			}
			samples[i] = s
			return nil
		})
	}
	_ = g.Wait()
	return samples
}

// Refresh runs one cycle for d: it takes a ticket, collects, and commits.
// The returned snapshot is whatever d shows afterwards; applied is false
// when a newer cycle superseded this one.
func (r *Reconciler) Refresh(ctx context.Context, userID string, d *Display) (Snapshot, bool) {
	t := d.Begin()
	samples := r.Collect(ctx, userID)
	return d.Commit(t, samples)
}

// Ticket identifies one refresh cycle.
type Ticket struct {
	seq uint64
}

// Display holds the currently shown values for one user. Only the most
// recently issued ticket may change them.
type Display struct {
	mu     sync.Mutex
	issued uint64
	shown  Snapshot
}

// Begin issues a new ticket, superseding every earlier one.
func (d *Display) Begin() Ticket {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.issued++
	return Ticket{seq: d.issued}
}

// Seed sets fields that are still unknown, e.g. from a client's last value.
func (d *Display) Seed(s Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.shown.Streak.Known {
		d.shown.Streak = s.Streak
	}
	if !d.shown.Sum7.Known {
		d.shown.Sum7 = s.Sum7
	}
}

// Current returns the shown values.
func (d *Display) Current() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shown
}

// Commit reduces samples and applies the result if t is still the latest
// ticket. Stale results are discarded.
func (d *Display) Commit(t Ticket, samples []Sample) (Snapshot, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t.seq != d.issued {
		return d.shown, false
	}

	streaks := make([]Value, len(samples))
	sums := make([]Value, len(samples))
	for i, s := range samples {
		streaks[i] = s.Streak
		sums[i] = s.Sum7
	}
	d.shown = Snapshot{
		Streak: Choose(streaks, d.shown.Streak),
		Sum7:   Choose(sums, d.shown.Sum7),
	}
	return d.shown, true
}

// Displays keeps one Display per user for the life of the process.
type Displays struct {
	mu sync.Mutex
	m  map[string]*Display
}

func NewDisplays() *Displays {
	return &Displays{m: make(map[string]*Display)}
}

// Get returns the user's Display, creating it on first use.
func (ds *Displays) Get(userID string) *Display {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	d, ok := ds.m[userID]
	if !ok {
		d = &Display{}
		ds.m[userID] = d
	}
	return d
}
