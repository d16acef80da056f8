// Package ratelimit provides the sliding-window request limiter applied to
// assistant calls.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultWindow is the length of the sliding window.
const DefaultWindow = time.Minute

// Option configures a SlidingWindow.
type Option func(*SlidingWindow)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *SlidingWindow) { l.now = now }
}

// WithWindow overrides the window length.
func WithWindow(d time.Duration) Option {
	return func(l *SlidingWindow) {
		if d > 0 {
			l.window = d
		}
	}
}

// SlidingWindow admits at most limit requests in any trailing window.
// Rejected requests are not recorded and are never queued. A non-positive
// limit admits everything.
type SlidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events []time.Time // ascending
	now    func() time.Time
}

// New creates a SlidingWindow admitting limit requests per window.
func New(limit int, opts ...Option) *SlidingWindow {
	l := &SlidingWindow{
		limit:  limit,
		window: DefaultWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow prunes timestamps older than the window and, if fewer than limit
// remain, records the current time and returns true.
func (l *SlidingWindow) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)
	if l.limit > 0 && len(l.events) >= l.limit {
		return false
	}
	l.events = append(l.events, now)
	return true
}

// Count returns the number of admitted requests still inside the window.
func (l *SlidingWindow) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.events)
}

// RetryAfter returns how long until the next request would be admitted,
// or 0 if one would be admitted now.
func (l *SlidingWindow) RetryAfter() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)
	if l.limit <= 0 || len(l.events) < l.limit {
		return 0
	}
	oldest := l.events[len(l.events)-l.limit]
	return oldest.Add(l.window).Sub(now)
}

// Limit returns the configured ceiling.
func (l *SlidingWindow) Limit() int {
	return l.limit
}

// Window returns the window length.
func (l *SlidingWindow) Window() time.Duration {
	return l.window
}

// Reset forgets every recorded request.
func (l *SlidingWindow) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

// prune drops events whose age has reached the window length.
func (l *SlidingWindow) prune(now time.Time) {
	i := 0
	for i < len(l.events) && now.Sub(l.events[i]) >= l.window {
		i++
	}
	if i > 0 {
		l.events = append(l.events[:0], l.events[i:]...)
	}
}
