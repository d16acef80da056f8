package llm

import (
	"context"
	"fmt"
	"time"
)

// Outcome classifies a model call.
type Outcome int

const (
	// OutcomeSuccess carries response text.
	OutcomeSuccess Outcome = iota
	// OutcomeRetryable is a transient failure worth retrying on the same model.
	OutcomeRetryable
	// OutcomeFatal is a permanent failure; the model should be skipped.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Request is a single-turn completion request.
type Request struct {
	Model       Model
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Usage is the token accounting reported by the API.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Result is the outcome of one call. Text is set only on success, Reason
// only on failure.
type Result struct {
	Outcome    Outcome
	Text       string
	Reason     string
	StatusCode int
	// RetryAfter is the server-suggested wait before retrying, if any.
	RetryAfter time.Duration
	Usage      Usage
}

// Success returns a successful Result.
func Success(text string) Result {
	return Result{Outcome: OutcomeSuccess, Text: text}
}

// Retryable returns a transient failure Result.
func Retryable(reason string) Result {
	return Result{Outcome: OutcomeRetryable, Reason: reason}
}

// Fatal returns a permanent failure Result.
func Fatal(reason string) Result {
	return Result{Outcome: OutcomeFatal, Reason: reason}
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Outcome == OutcomeSuccess }

func (r Result) String() string {
	if r.OK() {
		return "success"
	}
	if r.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", r.Outcome, r.StatusCode, r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Outcome, r.Reason)
}

// Caller performs a single completion attempt. Implementations never
// retry internally; the caller decides based on the Outcome.
type Caller interface {
	Complete(ctx context.Context, req Request) Result
}

// CallerFunc adapts a function to the Caller interface.
type CallerFunc func(ctx context.Context, req Request) Result

// Complete calls f(ctx, req).
func (f CallerFunc) Complete(ctx context.Context, req Request) Result {
	return f(ctx, req)
}
