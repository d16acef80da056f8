package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/allaspectsdev/legalsmart/internal/llm"
	"github.com/allaspectsdev/legalsmart/internal/store"
)

// ThirteenClients returns thirteen clients aged 25 to 70. Six of them are
// aged within [30, 50].
func ThirteenClients() []store.NewClient {
	ages := []int{25, 28, 30, 33, 37, 40, 45, 50, 51, 55, 60, 65, 70}
	issues := []string{"Family Law", "Criminal Law", "Real Estate", "Labor Law"}
	out := make([]store.NewClient, len(ages))
	for i, age := range ages {
		out[i] = store.NewClient{
			Name:       fmt.Sprintf("Client %02d", i+1),
			Age:        age,
			LegalIssue: issues[i%len(issues)],
		}
	}
	return out
}

// CallRecord is one call seen by a FakeCaller.
type CallRecord struct {
	Model  llm.Model
	Prompt string
}

// FakeCaller is a scripted llm.Caller. Each model answers from its own
// queue of results; once a queue is drained the model keeps returning its
// last result, or Default when it had none.
type FakeCaller struct {
	Default llm.Result
	// Delay, when set, is waited before answering, honouring ctx.
	Delay time.Duration

	mu      sync.Mutex
	scripts map[llm.Model][]llm.Result
	calls   []CallRecord
}

// NewFakeCaller returns a FakeCaller whose unscripted models fail with a
// retryable error.
func NewFakeCaller() *FakeCaller {
	return &FakeCaller{
		Default: llm.Retryable("service overloaded"),
		scripts: make(map[llm.Model][]llm.Result),
	}
}

// Script appends results for m.
func (f *FakeCaller) Script(m llm.Model, results ...llm.Result) *FakeCaller {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[m] = append(f.scripts[m], results...)
	return f
}

// Complete implements llm.Caller.
func (f *FakeCaller) Complete(ctx context.Context, req llm.Request) llm.Result {
	if f.Delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(f.Delay):
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, CallRecord{Model: req.Model, Prompt: req.Prompt})
	if ctx.Err() != nil {
		return llm.Fatal(ctx.Err().Error())
	}

	queue := f.scripts[req.Model]
	switch len(queue) {
	case 0:
		return f.Default
	case 1:
		return queue[0]
	default:
		f.scripts[req.Model] = queue[1:]
		return queue[0]
	}
}

// Calls returns every call made so far.
func (f *FakeCaller) Calls() []CallRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CallRecord(nil), f.calls...)
}

// CallCount returns the number of calls made so far.
func (f *FakeCaller) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// ModelsCalled returns the model of every call, in order.
func (f *FakeCaller) ModelsCalled() []llm.Model {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.Model, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Model
	}
	return out
}

// Sleeps records the delays requested by retry loops without waiting.
type Sleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

// Sleep implements llm.Sleeper. It returns ctx.Err() when ctx is done.
func (s *Sleeps) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

// Delays returns the recorded delays.
func (s *Sleeps) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}
