package llm

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, reset time.Duration, halfOpenMax int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(threshold, reset, halfOpenMax)
	cb.now = clock.Now
	return cb, clock
}

func TestCB_ClosedToOpen(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Second, 1)

	if cb.State() != BreakerClosed {
		t.Fatalf("initial state: got %v, want closed", cb.State())
	}
	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != BreakerClosed {
		t.Fatalf("after 2 failures: got %v, want closed", cb.State())
	}
	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Fatalf("after 3 failures: got %v, want open", cb.State())
	}
	if cb.Allow() {
		t.Fatal("open breaker should reject calls")
	}
}

func TestCB_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Second, 1)
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	if cb.State() != BreakerClosed {
		t.Errorf("non-consecutive failures tripped the breaker")
	}
}

func TestCB_OpenToHalfOpenToClosed(t *testing.T) {
	cb, clock := newTestBreaker(1, 30*time.Second, 2)
	cb.RecordFailure()

	clock.Advance(29 * time.Second)
	if cb.Allow() {
		t.Fatal("breaker allowed a call before the reset timeout")
	}

	clock.Advance(time.Second)
	if !cb.Allow() {
		t.Fatal("breaker should allow a probe after the reset timeout")
	}
	if cb.State() != BreakerHalfOpen {
		t.Fatalf("state: got %v, want half-open", cb.State())
	}

	cb.RecordSuccess()
	if cb.State() != BreakerHalfOpen {
		t.Fatalf("one success of two: got %v, want half-open", cb.State())
	}
	cb.RecordSuccess()
	if cb.State() != BreakerClosed {
		t.Fatalf("state: got %v, want closed", cb.State())
	}
}

func TestCB_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Second, 1)
	cb.RecordFailure()
	clock.Advance(time.Second)
	cb.Allow()
	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Errorf("state: got %v, want open", cb.State())
	}
}

func TestBreakerRegistry(t *testing.T) {
	r := NewBreakerRegistry(1, time.Minute, 1)
	a := r.Get(ModelOpus)
	if r.Get(ModelOpus) != a {
		t.Error("Get should return the same breaker for one model")
	}
	if r.Get(ModelHaiku) == a {
		t.Error("different models must not share a breaker")
	}

	a.RecordFailure()
	states := r.States()
	if states["opus"] != "open" || states["haiku"] != "closed" {
		t.Errorf("States: got %v", states)
	}
}
