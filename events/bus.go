// Package events carries run progress notifications from the runner to
// observers: the websocket stream, and optionally a Redis channel for
// external consumers.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates event payloads.
type Kind string

const (
	KindJobStatus     Kind = "job_status"
	KindAttemptStatus Kind = "attempt_status"
	KindStep          Kind = "step"
)

// Event is one progress notification. Fields beyond Kind and JobID are
// populated per kind.
type Event struct {
	Kind      Kind      `json:"kind"`
	JobID     uuid.UUID `json:"job_id"`
	AttemptID uuid.UUID `json:"attempt_id,omitempty"`
	Step      int       `json:"step,omitempty"`
	Status    string    `json:"status,omitempty"`
	Thought   string    `json:"thought,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus fans events out to subscribers. Publish never blocks the runner: slow
// subscribers lose events rather than stall a run.
type Bus interface {
	Publish(ctx context.Context, e Event)
	// Subscribe registers a new subscriber. The returned cancel function
	// must be called when the subscriber goes away.
	Subscribe() (<-chan Event, func())
	Close() error
}

const subscriberBuffer = 64

// MemoryBus is the in-process Bus implementation.
type MemoryBus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]chan Event)}
}

// Publish delivers e to every live subscriber, dropping it for subscribers
// whose buffer is full.
func (b *MemoryBus) Publish(_ context.Context, e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a buffered subscriber channel.
func (b *MemoryBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close shuts the bus down and closes all subscriber channels.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	return nil
}
