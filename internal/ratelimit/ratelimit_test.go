package ratelimit

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestAllow_UpToLimit(t *testing.T) {
	clock := newFakeClock()
	l := New(3, WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("request %d rejected, want allowed", i+1)
		}
	}
	if l.Allow() {
		t.Error("request over the limit was allowed")
	}
	if got := l.Count(); got != 3 {
		t.Errorf("Count: got %d, want 3 (rejections must not be recorded)", got)
	}
}

func TestAllow_WindowSlides(t *testing.T) {
	clock := newFakeClock()
	l := New(2, WithClock(clock.Now))

	l.Allow()
	clock.Advance(20 * time.Second)
	l.Allow()
	if l.Allow() {
		t.Fatal("third request inside the window was allowed")
	}

	// First request leaves the window at t=60s.
	clock.Advance(40 * time.Second)
	if !l.Allow() {
		t.Fatal("request after the oldest expired was rejected")
	}
	if l.Allow() {
		t.Error("window should be full again")
	}

	if got := l.RetryAfter(); got != 20*time.Second {
		t.Errorf("RetryAfter: got %v, want 20s", got)
	}
}

func TestAllow_NoWindowEverExceedsLimit(t *testing.T) {
	clock := newFakeClock()
	const limit = 5
	l := New(limit, WithClock(clock.Now))

	var admitted []time.Time
	for i := 0; i < 400; i++ {
		if l.Allow() {
			admitted = append(admitted, clock.Now())
		}
		clock.Advance(time.Duration(i%7+1) * 1500 * time.Millisecond)
	}

	for i := range admitted {
		inWindow := 0
		for j := i; j < len(admitted) && admitted[j].Sub(admitted[i]) < time.Minute; j++ {
			inWindow++
		}
		if inWindow > limit {
			t.Fatalf("window starting at %v admitted %d requests, limit %d", admitted[i], inWindow, limit)
		}
	}
}

func TestRetryAfter_ZeroWhenOpen(t *testing.T) {
	l := New(1)
	if got := l.RetryAfter(); got != 0 {
		t.Errorf("RetryAfter on empty limiter: got %v, want 0", got)
	}
}

func TestReset(t *testing.T) {
	l := New(1)
	l.Allow()
	if l.Allow() {
		t.Fatal("second request should be rejected")
	}
	l.Reset()
	if !l.Allow() {
		t.Error("request after Reset was rejected")
	}
}

func TestNonPositiveLimitAdmitsAll(t *testing.T) {
	l := New(0)
	for i := 0; i < 100; i++ {
		if !l.Allow() {
			t.Fatalf("request %d rejected with limit 0", i)
		}
	}
}

func TestConcurrentAllow(t *testing.T) {
	l := New(50)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 50 {
		t.Errorf("allowed: got %d, want 50", allowed)
	}
}

func TestAccessors(t *testing.T) {
	l := New(7, WithWindow(30*time.Second))
	if l.Limit() != 7 {
		t.Errorf("Limit: got %d, want 7", l.Limit())
	}
	if l.Window() != 30*time.Second {
		t.Errorf("Window: got %v, want 30s", l.Window())
	}
}
