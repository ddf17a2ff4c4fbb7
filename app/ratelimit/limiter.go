// Package ratelimit implements the per-key sliding one-hour request window.
//
// The limiter logic is independent of where request timestamps live: the
// MemoryStore keeps them in process memory and only limits a single
// instance, while the SQLStore keeps them in MySQL so that several gateway
// instances share one window per key. Swapping stores does not change the
// Limiter interface.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// DefaultWindow is the width of the sliding window.
const DefaultWindow = time.Hour

var ErrEmptyIdentifier = errors.New("rate limit identifier cannot be empty")

// Result describes one check-and-record decision.
type Result struct {
	Allowed bool
	Limit   int
	// Count is the number of requests in the window after the decision,
	// including the current one when it was allowed.
	Count      int
	RetryAfter time.Duration
}

// Limiter decides whether one more request for identifier fits under limit.
// Implementations must be safe for concurrent use.
type Limiter interface {
	Allow(ctx context.Context, identifier string, limit int) (Result, error)
}

// Store persists request timestamps per identifier.
//
// Hit must prune timestamps older than now-window, compare the remaining
// count against limit and, when strictly below it, append now. The three
// steps are one atomic operation with respect to other Hit calls for the
// same identifier.
type Store interface {
	Hit(ctx context.Context, identifier string, limit int, window time.Duration, now time.Time) (count int, allowed bool, err error)
	Reset(ctx context.Context, identifier string) error
	Sweep(ctx context.Context, before time.Time) (int, error)
	Close() error
}

type SlidingWindowLimiter struct {
	store  Store
	window time.Duration
	now    func() time.Time
}

type Option func(*SlidingWindowLimiter)

func WithWindow(window time.Duration) Option {
	return func(l *SlidingWindowLimiter) {
		if window > 0 {
			l.window = window
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *SlidingWindowLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

func NewSlidingWindowLimiter(store Store, opts ...Option) *SlidingWindowLimiter {
	l := &SlidingWindowLimiter{
		store:  store,
		window: DefaultWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *SlidingWindowLimiter) Allow(ctx context.Context, identifier string, limit int) (Result, error) {
	if identifier == "" {
		return Result{}, ErrEmptyIdentifier
	}

	count, allowed, err := l.store.Hit(ctx, identifier, limit, l.window, l.now())
	if err != nil {
		return Result{}, err
	}

	result := Result{Allowed: allowed, Limit: limit, Count: count}
	if !allowed {
		result.RetryAfter = l.window
	}
	return result, nil
}

func (l *SlidingWindowLimiter) Window() time.Duration {
	return l.window
}

// Reset forgets all recorded requests for identifier.
func (l *SlidingWindowLimiter) Reset(ctx context.Context, identifier string) error {
	return l.store.Reset(ctx, identifier)
}

// RunSweeper evicts idle windows every interval until ctx is done.
func (l *SlidingWindowLimiter) RunSweeper(ctx context.Context, interval time.Duration, onSweep func(removed int, err error)) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := l.store.Sweep(ctx, l.now().Add(-l.window))
			if onSweep != nil {
				onSweep(removed, err)
			}
		}
	}
}

var (
	_ Limiter = (*SlidingWindowLimiter)(nil)
	_ Store   = (*MemoryStore)(nil)
	_ Store   = (*SQLStore)(nil)
)
