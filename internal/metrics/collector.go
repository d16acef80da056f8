// Package metrics keeps process-wide assistant counters and exposes them as
// a JSON snapshot and in Prometheus format.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Answer sources, matching the request log.
const (
	SourceLive     = "live"
	SourceCache    = "cache"
	SourceFallback = "fallback"
)

// Collector tracks assistant activity with atomic counters. Per-model
// attempt counts live in a small mutex-guarded map.
type Collector struct {
	liveAnswers     int64
	cacheAnswers    int64
	fallbackAnswers int64
	throttled       int64

	tokensIn  int64
	tokensOut int64
	// Stored as uint64 via math.Float64bits.
	costUSD uint64

	// Latency sums in nanoseconds, per answer source.
	liveLatency     int64
	cacheLatency    int64
	fallbackLatency int64

	activeAsks int64

	mu       sync.Mutex
	attempts map[AttemptKey]int64

	startTime time.Time
}

// AttemptKey labels one model attempt counter.
type AttemptKey struct {
	Model   string
	Outcome string
}

// AttemptCount is one entry of Stats.Attempts.
type AttemptCount struct {
	Model   string `json:"model"`
	Outcome string `json:"outcome"`
	Count   int64  `json:"count"`
}

// Stats is a point-in-time snapshot of the collector.
type Stats struct {
	Uptime          string         `json:"uptime"`
	TotalAsks       int64          `json:"total_asks"`
	LiveAnswers     int64          `json:"live_answers"`
	CacheAnswers    int64          `json:"cache_answers"`
	FallbackAnswers int64          `json:"fallback_answers"`
	Throttled       int64          `json:"throttled"`
	TokensIn        int64          `json:"tokens_in"`
	TokensOut       int64          `json:"tokens_out"`
	CostUSD         float64        `json:"cost_usd"`
	CacheHitRate    float64        `json:"cache_hit_rate"`
	ActiveAsks      int64          `json:"active_asks"`
	Attempts        []AttemptCount `json:"attempts"`
}

// NewCollector creates a Collector with zeroed counters.
func NewCollector() *Collector {
	return &Collector{
		attempts:  make(map[AttemptKey]int64),
		startTime: time.Now(),
	}
}

// RecordAnswer counts an answered ask by source.
func (c *Collector) RecordAnswer(source string, latency time.Duration, tokensIn int) {
	atomic.AddInt64(&c.tokensIn, int64(tokensIn))
	switch source {
	case SourceLive:
		atomic.AddInt64(&c.liveAnswers, 1)
		atomic.AddInt64(&c.liveLatency, int64(latency))
	case SourceCache:
		atomic.AddInt64(&c.cacheAnswers, 1)
		atomic.AddInt64(&c.cacheLatency, int64(latency))
	case SourceFallback:
		atomic.AddInt64(&c.fallbackAnswers, 1)
		atomic.AddInt64(&c.fallbackLatency, int64(latency))
	}
}

// RecordThrottled counts an ask rejected by the rate limiter.
func (c *Collector) RecordThrottled() {
	atomic.AddInt64(&c.throttled, 1)
}

// RecordAttempt counts one model attempt and, on success, its output
// tokens and cost.
func (c *Collector) RecordAttempt(model, outcome string, tokensOut int, costUSD float64) {
	c.mu.Lock()
	c.attempts[AttemptKey{Model: model, Outcome: outcome}]++
	c.mu.Unlock()

	atomic.AddInt64(&c.tokensOut, int64(tokensOut))
	if costUSD != 0 {
		addFloat64(&c.costUSD, costUSD)
	}
}

// IncrementActive marks an ask as in flight.
func (c *Collector) IncrementActive() {
	atomic.AddInt64(&c.activeAsks, 1)
}

// DecrementActive marks an in-flight ask as finished.
func (c *Collector) DecrementActive() {
	atomic.AddInt64(&c.activeAsks, -1)
}

// Attempts returns the attempt counters sorted by model then outcome.
func (c *Collector) Attempts() []AttemptCount {
	c.mu.Lock()
	out := make([]AttemptCount, 0, len(c.attempts))
	for k, n := range c.attempts {
		out = append(out, AttemptCount{Model: k.Model, Outcome: k.Outcome, Count: n})
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Model != out[j].Model {
			return out[i].Model < out[j].Model
		}
		return out[i].Outcome < out[j].Outcome
	})
	return out
}

// Stats returns a snapshot of every counter.
func (c *Collector) Stats() *Stats {
	live := atomic.LoadInt64(&c.liveAnswers)
	cached := atomic.LoadInt64(&c.cacheAnswers)
	fallback := atomic.LoadInt64(&c.fallbackAnswers)
	throttled := atomic.LoadInt64(&c.throttled)

	var hitRate float64
	if answered := live + cached + fallback; answered > 0 {
		hitRate = float64(cached) / float64(answered) * 100
	}

	return &Stats{
		Uptime:          formatDuration(time.Since(c.startTime)),
		TotalAsks:       live + cached + fallback + throttled,
		LiveAnswers:     live,
		CacheAnswers:    cached,
		FallbackAnswers: fallback,
		Throttled:       throttled,
		TokensIn:        atomic.LoadInt64(&c.tokensIn),
		TokensOut:       atomic.LoadInt64(&c.tokensOut),
		CostUSD:         loadFloat64(&c.costUSD),
		CacheHitRate:    hitRate,
		ActiveAsks:      atomic.LoadInt64(&c.activeAsks),
		Attempts:        c.Attempts(),
	}
}

// addFloat64 atomically adds delta to the float64 stored in addr.
func addFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		newVal := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(addr, old, math.Float64bits(newVal)) {
			return
		}
	}
}

func loadInt(addr *int64) int64 {
	return atomic.LoadInt64(addr)
}

func loadFloat64(addr *uint64) float64 {
	return math.Float64frombits(atomic.LoadUint64(addr))
}

// formatDuration renders d compactly, e.g. "2d 5h 32m".
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Round(time.Second).String()
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
