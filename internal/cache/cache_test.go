package cache

import (
	"fmt"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Fake clock
// ---------------------------------------------------------------------------

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(t *testing.T, ttl time.Duration, max int) (*ResponseCache, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	c, err := New(ttl, max, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, clock
}

// ---------------------------------------------------------------------------
// Fingerprint tests
// ---------------------------------------------------------------------------

func TestFingerprint_Deterministic(t *testing.T) {
	p := Params{MaxTokens: 2000, Temperature: 0.3}
	a := Fingerprint("claude-3-5-sonnet-20241022", "analyze these clients", p)
	b := Fingerprint("claude-3-5-sonnet-20241022", "analyze these clients", p)
	if a != b {
		t.Errorf("same inputs gave different fingerprints: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length: got %d, want 64", len(a))
	}
}

func TestFingerprint_Normalization(t *testing.T) {
	p := Params{MaxTokens: 1500, Temperature: 0.2}
	base := Fingerprint("m", "line one\nline two", p)
	variants := []string{
		"  line one\nline two  ",
		"line one\r\nline two",
		"\n\tline one\r\nline two\n",
	}
	for _, v := range variants {
		if got := Fingerprint("m", v, p); got != base {
			t.Errorf("Fingerprint(%q) differs from normalized prompt", v)
		}
	}
}

func TestFingerprint_DistinguishesFields(t *testing.T) {
	p := Params{MaxTokens: 1500, Temperature: 0.2}
	base := Fingerprint("m", "prompt", p)
	others := map[string]string{
		"model":       Fingerprint("n", "prompt", p),
		"prompt":      Fingerprint("m", "prompt!", p),
		"max tokens":  Fingerprint("m", "prompt", Params{MaxTokens: 1501, Temperature: 0.2}),
		"temperature": Fingerprint("m", "prompt", Params{MaxTokens: 1500, Temperature: 0.3}),
		"separator":   Fingerprint("mp", "rompt", p),
	}
	for name, fp := range others {
		if fp == base {
			t.Errorf("changing %s did not change the fingerprint", name)
		}
	}
}

// ---------------------------------------------------------------------------
// ResponseCache tests
// ---------------------------------------------------------------------------

func TestNew_RejectsNonPositiveMax(t *testing.T) {
	if _, err := New(time.Hour, 0); err == nil {
		t.Error("expected error for max entries 0")
	}
}

func TestLookup_HitAndMiss(t *testing.T) {
	c, _ := newTestCache(t, time.Hour, 10)

	if _, ok := c.Lookup("absent"); ok {
		t.Error("Lookup on empty cache should miss")
	}
	c.Store("fp", "response")
	got, ok := c.Lookup("fp")
	if !ok || got != "response" {
		t.Errorf("Lookup: got (%q, %v), want (response, true)", got, ok)
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 {
		t.Errorf("Stats: got hits=%d misses=%d, want 1/1", s.Hits, s.Misses)
	}
	if s.HitRate() != 0.5 {
		t.Errorf("HitRate: got %v, want 0.5", s.HitRate())
	}
}

func TestLookup_ExpiredIsMissAndRemoved(t *testing.T) {
	c, clock := newTestCache(t, time.Hour, 10)
	c.Store("fp", "response")

	clock.Advance(time.Hour)
	if _, ok := c.Lookup("fp"); !ok {
		t.Error("entry exactly at TTL should still be valid")
	}

	clock.Advance(time.Second)
	if _, ok := c.Lookup("fp"); ok {
		t.Error("entry older than TTL should miss")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not removed: Len=%d", c.Len())
	}
}

func TestStore_EvictsOldestCreated(t *testing.T) {
	c, clock := newTestCache(t, time.Hour, 3)
	for i := 0; i < 3; i++ {
		c.Store(fmt.Sprintf("fp%d", i), fmt.Sprintf("r%d", i))
		clock.Advance(time.Second)
	}

	// A lookup must not protect fp0 from eviction.
	if _, ok := c.Lookup("fp0"); !ok {
		t.Fatal("fp0 should be present")
	}

	c.Store("fp3", "r3")
	if c.Len() != 3 {
		t.Errorf("Len: got %d, want 3", c.Len())
	}
	if _, ok := c.Lookup("fp0"); ok {
		t.Error("oldest entry fp0 should have been evicted")
	}
	for _, fp := range []string{"fp1", "fp2", "fp3"} {
		if _, ok := c.Lookup(fp); !ok {
			t.Errorf("%s should still be present", fp)
		}
	}
	if ev := c.Stats().Evictions; ev != 1 {
		t.Errorf("Evictions: got %d, want 1", ev)
	}
}

func TestStore_OverwriteIsLastWriteWins(t *testing.T) {
	c, clock := newTestCache(t, time.Hour, 2)
	c.Store("a", "first")
	clock.Advance(time.Second)
	c.Store("b", "b")
	clock.Advance(time.Second)
	c.Store("a", "second")

	if got, _ := c.Lookup("a"); got != "second" {
		t.Errorf("Lookup a: got %q, want second", got)
	}
	if c.Len() != 2 {
		t.Errorf("Len: got %d, want 2", c.Len())
	}

	// Rewriting "a" renewed its creation time, so "b" is now the oldest.
	c.Store("c", "c")
	if _, ok := c.Lookup("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Lookup("a"); !ok {
		t.Error("a should have survived")
	}
}

func TestStore_NeverExceedsMax(t *testing.T) {
	c, _ := newTestCache(t, time.Hour, 5)
	for i := 0; i < 50; i++ {
		c.Store(fmt.Sprintf("fp%d", i), "r")
		if c.Len() > 5 {
			t.Fatalf("Len %d exceeds max after %d stores", c.Len(), i+1)
		}
	}
}

func TestClear(t *testing.T) {
	c, _ := newTestCache(t, time.Hour, 5)
	c.Store("a", "1")
	c.Store("b", "2")
	c.Lookup("a")

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear: got %d, want 0", c.Len())
	}
	s := c.Stats()
	if s.MaxEntries != 5 {
		t.Errorf("MaxEntries: got %d, want 5", s.MaxEntries)
	}
	if s.Hits != 1 {
		t.Errorf("Clear should keep counters: hits=%d", s.Hits)
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c, clock := newTestCache(t, 0, 5)
	c.Store("a", "1")
	clock.Advance(1000 * time.Hour)
	if _, ok := c.Lookup("a"); !ok {
		t.Error("zero TTL entry expired")
	}
}
