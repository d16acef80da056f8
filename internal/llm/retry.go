package llm

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the attempts made against a single model and shapes
// the delay between them.
type RetryPolicy struct {
	MaxAttempts         int
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultRetryPolicy makes three attempts with delays starting at one
// second and doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:         3,
		InitialInterval:     time.Second,
		MaxInterval:         8 * time.Second,
		Multiplier:          2,
		RandomizationFactor: 0.5,
	}
}

// Attempts returns MaxAttempts, never less than one.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// NewBackOff returns a fresh delay schedule for one model. It yields
// backoff.Stop once Attempts()-1 delays have been handed out.
func (p RetryPolicy) NewBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	}
	b.RandomizationFactor = p.RandomizationFactor
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(p.Attempts()-1))
}

// Delay picks the wait before the next attempt: the scheduled delay, raised
// to the server's Retry-After hint but never past MaxInterval.
func (p RetryPolicy) Delay(scheduled, retryAfter time.Duration) time.Duration {
	d := scheduled
	if retryAfter > d {
		d = retryAfter
	}
	if p.MaxInterval > 0 && d > p.MaxInterval {
		d = p.MaxInterval
	}
	return d
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepWithContext sleeps for d, returning ctx.Err() if the context ends
// first.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryAfterDuration parses Retry-After as seconds or an HTTP date.
func retryAfterDuration(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	ra := resp.Header.Get("Retry-After")
	if ra == "" {
		return 0
	}
	if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(ra); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
