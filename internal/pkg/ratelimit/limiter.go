// Package ratelimit implements a sliding-window call limiter.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"zenith/internal/pkg/errs"
)

const pollInterval = 100 * time.Millisecond

// Limiter permits a call only while fewer than maxCalls timestamps remain
// within the trailing period.
type Limiter struct {
	mu       sync.Mutex
	maxCalls int
	period   time.Duration
	calls    []time.Time
	hits     int64
	blocks   int64
	nowFn    func() time.Time
}

// Stats is a point-in-time view for the status endpoint.
type Stats struct {
	Hits     int64 `json:"hits"`
	Blocks   int64 `json:"blocks"`
	InWindow int   `json:"in_window"`
	MaxCalls int   `json:"max_calls"`
}

func NewLimiter(maxCalls int, period time.Duration) *Limiter {
	if maxCalls <= 0 {
		maxCalls = 1
	}
	return &Limiter{
		maxCalls: maxCalls,
		period:   period,
		nowFn:    time.Now,
	}
}

// Allow records and permits the call if the window has room.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	l.prune(now)
	if len(l.calls) < l.maxCalls {
		l.calls = append(l.calls, now)
		l.hits++
		return true
	}
	l.blocks++
	return false
}

// Wait polls Allow until permitted, the timeout elapses, or ctx is
// canceled. Returns errs.ErrRateLimited on timeout.
func (l *Limiter) Wait(ctx context.Context, timeout time.Duration) error {
	deadline := l.nowFn().Add(timeout)
	for {
		if l.Allow() {
			return nil
		}
		if l.nowFn().After(deadline) {
			return errs.ErrRateLimited
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.nowFn())
	return Stats{
		Hits:     l.hits,
		Blocks:   l.blocks,
		InWindow: len(l.calls),
		MaxCalls: l.maxCalls,
	}
}

// prune drops timestamps that fell out of the window. Caller holds mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.period)
	kept := l.calls[:0]
	for _, t := range l.calls {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.calls = kept
}
