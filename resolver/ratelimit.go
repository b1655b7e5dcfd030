package resolver

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time for the limiter so tests can drive it with a fake.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SlidingWindowLimiter enforces at most limit calls per rolling window.
// When the window is full, Wait blocks until the oldest call ages out.
//
// The grounding service enforces a hard quota and rejects callers that
// exceed it, so this limiter must sit in front of every call; there is no
// bypass path.
type SlidingWindowLimiter struct {
	limit  int
	window time.Duration
	clock  Clock

	mu    sync.Mutex
	calls []time.Time
}

// NewSlidingWindowLimiter creates a limiter. A nil clock uses SystemClock.
func NewSlidingWindowLimiter(limit int, window time.Duration, clock Clock) *SlidingWindowLimiter {
	if clock == nil {
		clock = SystemClock{}
	}
	return &SlidingWindowLimiter{
		limit:  limit,
		window: window,
		clock:  clock,
		calls:  make([]time.Time, 0, limit),
	}
}

// Wait blocks until a call slot is available, then records the call.
func (l *SlidingWindowLimiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.clock.Now()
		l.evict(now)

		if len(l.calls) < l.limit {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return nil
		}

		wait := l.calls[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if err := l.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Pending returns how many calls currently occupy the window.
func (l *SlidingWindowLimiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(l.clock.Now())
	return len(l.calls)
}

// evict drops calls older than the window. Caller holds l.mu.
func (l *SlidingWindowLimiter) evict(now time.Time) {
	cut := 0
	for cut < len(l.calls) && now.Sub(l.calls[cut]) >= l.window {
		cut++
	}
	if cut > 0 {
		l.calls = append(l.calls[:0], l.calls[cut:]...)
	}
}
