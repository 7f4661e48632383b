// Package events is the in-process channel between the submission handler
// and the components that react to a completed submission.
package events

import (
	"context"
	"sync"

	"github.com/mrwolf/studyrank/internal/logger"
)

// StudySubmitted is published after a day's log has been stored.
type StudySubmitted struct {
	UserID  string
	Date    string
	Minutes int
}

const defaultBuffer = 64

type subscriber struct {
	name string
	ch   chan StudySubmitted
}

// Bus fans each published event out to every subscriber. Publish never
// blocks: a subscriber whose buffer is full misses the event, which is
// logged.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
	closed bool
	log    *logger.Logger
}

func NewBus(log *logger.Logger) *Bus {
	return &Bus{subs: make(map[int]*subscriber), log: log}
}

// Subscribe registers a named subscriber. The returned cancel function
// unregisters it and closes its channel.
func (b *Bus) Subscribe(name string) (<-chan StudySubmitted, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan StudySubmitted, defaultBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = &subscriber{name: name, ch: ch}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if s, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(s.ch)
			}
		})
	}
}

// Publish delivers evt to all current subscribers.
func (b *Bus) Publish(evt StudySubmitted) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		select {
		case s.ch <- evt:
		default:
			b.log.Warn("event dropped, subscriber buffer full", "subscriber", s.name, "user_id", evt.UserID)
		}
	}
}

// Close unregisters every subscriber and closes their channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, s := range b.subs {
		close(s.ch)
		delete(b.subs, id)
	}
	b.closed = true
}

// Consume calls fn for each event on ch until ch closes or ctx is done.
func Consume(ctx context.Context, ch <-chan StudySubmitted, fn func(StudySubmitted)) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			fn(evt)
		}
	}
}
