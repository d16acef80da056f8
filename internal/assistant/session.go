// Package assistant answers questions about the client table with a hosted
// model. Each Session applies the request policy: a sliding-window rate
// check, a response cache, bounded retries per model along a descending
// capability chain, and finally a local summary that needs no API.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/allaspectsdev/legalsmart/internal/cache"
	"github.com/allaspectsdev/legalsmart/internal/llm"
	"github.com/allaspectsdev/legalsmart/internal/metrics"
	"github.com/allaspectsdev/legalsmart/internal/ratelimit"
	"github.com/allaspectsdev/legalsmart/internal/store"
	"github.com/allaspectsdev/legalsmart/internal/tokenizer"
	"github.com/allaspectsdev/legalsmart/internal/tracing"
)

// Answer sources.
const (
	SourceLive     = store.SourceLive
	SourceCache    = store.SourceCache
	SourceFallback = store.SourceFallback
)

// Ask kinds, recorded in the request log.
const (
	KindAsk      = "ask"
	KindAnalyze  = "analyze"
	KindQuestion = "question"
)

// ClientSource lists client records.
type ClientSource interface {
	ListClients(ctx context.Context, f store.ClientFilter) ([]store.Client, error)
}

// RequestRecorder persists the request log.
type RequestRecorder interface {
	InsertRequest(ctx context.Context, r *store.RequestLog) error
}

// TokenCounter estimates prompt sizes.
type TokenCounter interface {
	CountTokens(text string) int
}

// modelIDer is implemented by callers that remap catalogue API ids.
type modelIDer interface {
	ModelID(m llm.Model) string
}

// GenerationParams are the sampling parameters of one kind of ask.
type GenerationParams struct {
	MaxTokens   int
	Temperature float64
}

// Options are the per-session policy settings.
type Options struct {
	CacheTTL          time.Duration
	CacheMaxEntries   int
	RequestsPerMinute int
	Window            time.Duration
	Retry             llm.RetryPolicy
	DefaultModel      llm.Model
	Language          string
	Analysis          GenerationParams
	Question          GenerationParams
}

// DefaultOptions returns the stock policy: one hour TTL, 100 cache
// entries, 50 asks per minute and three attempts per model.
func DefaultOptions() Options {
	return Options{
		CacheTTL:          time.Hour,
		CacheMaxEntries:   100,
		RequestsPerMinute: 50,
		Window:            ratelimit.DefaultWindow,
		Retry:             llm.DefaultRetryPolicy(),
		DefaultModel:      llm.ModelSonnet,
		Language:          "Hebrew",
		Analysis:          GenerationParams{MaxTokens: 2000, Temperature: 0.3},
		Question:          GenerationParams{MaxTokens: 1500, Temperature: 0.2},
	}
}

// Deps are the collaborators shared by every session.
type Deps struct {
	// Caller is nil when no API credential is configured; every ask then
	// goes straight to the local summary.
	Caller   llm.Caller
	Clients  ClientSource
	Requests RequestRecorder
	Tokens   TokenCounter
	Breakers *llm.BreakerRegistry
	Metrics  *metrics.Collector
	Logger   zerolog.Logger
	Sleep    llm.Sleeper
	Now      func() time.Time
}

// Query is one ask.
type Query struct {
	Kind        string
	Prompt      string
	Model       llm.Model
	MaxTokens   int
	Temperature float64
}

// Answer is the result of an ask.
type Answer struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	// Model is the catalogue key of the model that answered, empty for the
	// local summary.
	Model     string        `json:"model,omitempty"`
	Attempts  int           `json:"attempts"`
	Latency   time.Duration `json:"latency_ns"`
	Notice    string        `json:"notice,omitempty"`
	SessionID string        `json:"session_id"`
}

// SessionStats is the sidebar view of one session.
type SessionStats struct {
	SessionID      string      `json:"session_id"`
	Cache          cache.Stats `json:"cache"`
	CacheTTL       string      `json:"cache_ttl"`
	RecentRequests int         `json:"recent_requests"`
	RequestLimit   int         `json:"request_limit"`
	Window         string      `json:"window"`
	AIEnabled      bool        `json:"ai_enabled"`
}

// Session owns one user's cache and rate limiter. Asks on a session are
// serialized.
type Session struct {
	id   string
	opts Options
	deps Deps

	mu      sync.Mutex
	cache   *cache.ResponseCache
	limiter *ratelimit.SlidingWindow
	log     zerolog.Logger
}

// NewSession creates a session with its own cache and limiter.
func NewSession(id string, opts Options, deps Deps) (*Session, error) {
	if deps.Clients == nil {
		return nil, fmt.Errorf("assistant: client source is required")
	}
	if id == "" {
		id = uuid.NewString()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewCollector()
	}
	if deps.Sleep == nil {
		deps.Sleep = llm.SleepWithContext
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if !opts.DefaultModel.Valid() {
		opts.DefaultModel = llm.ModelSonnet
	}

	c, err := cache.New(opts.CacheTTL, opts.CacheMaxEntries, cache.WithClock(deps.Now))
	if err != nil {
		return nil, fmt.Errorf("assistant: %w", err)
	}

	return &Session{
		id:      id,
		opts:    opts,
		deps:    deps,
		cache:   c,
		limiter: ratelimit.New(opts.RequestsPerMinute, ratelimit.WithWindow(opts.Window), ratelimit.WithClock(deps.Now)),
		log:     deps.Logger.With().Str("session", id).Logger(),
	}, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// AIEnabled reports whether a model caller is configured.
func (s *Session) AIEnabled() bool { return s.deps.Caller != nil }

// DefaultModel returns the model tried first when a query names none.
func (s *Session) DefaultModel() llm.Model { return s.opts.DefaultModel }

// Stats returns the session's cache and limiter counters.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		SessionID:      s.id,
		Cache:          s.cache.Stats(),
		CacheTTL:       s.cache.TTL().String(),
		RecentRequests: s.limiter.Count(),
		RequestLimit:   s.limiter.Limit(),
		Window:         s.limiter.Window().String(),
		AIEnabled:      s.AIEnabled(),
	}
}

// ClearCache drops every cached response of this session.
func (s *Session) ClearCache() {
	s.cache.Clear()
}

// Ask answers q. It returns a *ThrottleError when the rate limit is hit and
// ErrEmptyPrompt for a blank prompt; in every other case it returns an
// Answer, falling back to the local summary when no model succeeds.
func (s *Session) Ask(ctx context.Context, q Query) (*Answer, error) {
	if strings.TrimSpace(q.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	if !q.Model.Valid() {
		q.Model = s.opts.DefaultModel
	}
	if q.Kind == "" {
		q.Kind = KindAsk
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.deps.Metrics.IncrementActive()
	defer s.deps.Metrics.DecrementActive()

	ctx, span := tracing.StartAskSpan(ctx, s.id, q.Kind, q.Model.String())
	defer span.End()

	start := s.deps.Now()

	if !s.limiter.Allow() {
		err := &ThrottleError{
			Limit:      s.limiter.Limit(),
			Window:     s.limiter.Window(),
			RetryAfter: s.limiter.RetryAfter(),
		}
		s.deps.Metrics.RecordThrottled()
		tracing.RecordError(ctx, err)
		s.log.Info().Str("kind", q.Kind).Dur("retry_after", err.RetryAfter).Msg("ask throttled")
		s.record(ctx, q, store.RequestLog{Source: store.SourceThrottled, Model: q.Model.String(), ErrorMessage: err.Error()}, start)
		return nil, err
	}

	tokensIn := s.countTokens(q.Prompt)
	fp := cache.Fingerprint(s.modelID(q.Model), q.Prompt, cache.Params{MaxTokens: q.MaxTokens, Temperature: q.Temperature})

	if text, ok := s.cache.Lookup(fp); ok {
		ans := &Answer{Text: text, Source: SourceCache, Model: q.Model.String()}
		return s.finish(ctx, q, ans, start, tokensIn, 0), nil
	}

	var (
		attempts int
		notice   string
	)
	if s.deps.Caller == nil {
		notice = "AI service is not configured; showing the local summary"
	} else {
		var lastFailure string
		for _, m := range llm.Chain(q.Model) {
			if s.deps.Breakers != nil && !s.deps.Breakers.Get(m).Allow() {
				s.log.Debug().Str("model", m.String()).Msg("circuit breaker open, skipping model")
				continue
			}

			res, n, cost := s.callModel(ctx, m, q)
			attempts += n
			if res.OK() {
				s.cache.Store(fp, res.Text)
				ans := &Answer{Text: res.Text, Source: SourceLive, Model: m.String(), Attempts: attempts}
				if m != q.Model {
					ans.Notice = fmt.Sprintf("answered by fallback model %s", m.Info().DisplayName)
				}
				return s.finish(ctx, q, ans, start, tokensIn, cost), nil
			}
			lastFailure = m.String() + ": " + res.String()

			if ctx.Err() != nil {
				break
			}
		}
		notice = "AI service unavailable; showing the local summary"
		if lastFailure != "" {
			s.log.Warn().Int("attempts", attempts).Str("last_failure", lastFailure).Msg("all models failed, using local summary")
		} else {
			s.log.Warn().Msg("every model circuit is open, using local summary")
		}
	}

	ans := &Answer{
		Text:     s.localSummary(ctx),
		Source:   SourceFallback,
		Attempts: attempts,
		Notice:   notice,
	}
	return s.finish(ctx, q, ans, start, tokensIn, 0), nil
}

// callModel runs the bounded retry loop against one model. It returns the
// last result, how many attempts were made, and the estimated cost of a
// successful call.
func (s *Session) callModel(ctx context.Context, m llm.Model, q Query) (llm.Result, int, float64) {
	var breaker *llm.CircuitBreaker
	if s.deps.Breakers != nil {
		breaker = s.deps.Breakers.Get(m)
	}
	bo := s.opts.Retry.NewBackOff()

	attempts := 0
	for {
		attempts++
		actx, span := tracing.StartModelSpan(ctx, m.String(), attempts)
		res := s.deps.Caller.Complete(actx, llm.Request{
			Model:       m,
			Prompt:      q.Prompt,
			MaxTokens:   q.MaxTokens,
			Temperature: q.Temperature,
		})
		tracing.SetOutcome(actx, res.Outcome.String(), res.StatusCode, res.Reason)
		span.End()

		if res.OK() {
			if breaker != nil {
				breaker.RecordSuccess()
			}
			cost := tokenizer.EstimateCost(s.modelID(m), res.Usage.InputTokens, res.Usage.OutputTokens)
			s.deps.Metrics.RecordAttempt(m.String(), res.Outcome.String(), res.Usage.OutputTokens, cost)
			return res, attempts, cost
		}

		s.deps.Metrics.RecordAttempt(m.String(), res.Outcome.String(), 0, 0)
		// A cancelled caller says nothing about the model's health.
		if breaker != nil && ctx.Err() == nil {
			breaker.RecordFailure()
		}

		if res.Outcome == llm.OutcomeFatal {
			s.log.Warn().Str("model", m.String()).Int("status", res.StatusCode).Str("reason", res.Reason).Msg("permanent model error, trying next model")
			return res, attempts, 0
		}

		next := bo.NextBackOff()
		if next == backoff.Stop {
			s.log.Warn().Str("model", m.String()).Int("attempts", attempts).Msg("retries exhausted, trying next model")
			return res, attempts, 0
		}
		if breaker != nil && !breaker.Allow() {
			s.log.Warn().Str("model", m.String()).Msg("circuit breaker opened, trying next model")
			return res, attempts, 0
		}

		delay := s.opts.Retry.Delay(next, res.RetryAfter)
		s.log.Warn().Str("model", m.String()).Int("attempt", attempts).Int("status", res.StatusCode).Dur("delay", delay).Msg("transient model error, retrying")
		if err := s.deps.Sleep(ctx, delay); err != nil {
			return res, attempts, 0
		}
	}
}

// localSummary renders the summary of the current client table. Reads use
// a context detached from cancellation so a cancelled ask still gets an
// answer.
func (s *Session) localSummary(ctx context.Context) string {
	clients, err := s.deps.Clients.ListClients(context.WithoutCancel(ctx), store.ClientFilter{})
	if err != nil {
		s.log.Error().Err(err).Msg("loading clients for local summary")
		return "Client data is currently unavailable, so no summary could be produced."
	}
	return Summarize(clients).Text()
}

func (s *Session) finish(ctx context.Context, q Query, ans *Answer, start time.Time, tokensIn int, cost float64) *Answer {
	ans.SessionID = s.id
	ans.Latency = s.deps.Now().Sub(start)

	s.deps.Metrics.RecordAnswer(ans.Source, ans.Latency, tokensIn)
	tracing.SetAnswerAttributes(ctx, ans.Source, ans.Model, ans.Attempts)
	s.log.Info().
		Str("kind", q.Kind).
		Str("source", ans.Source).
		Str("model", ans.Model).
		Int("attempts", ans.Attempts).
		Dur("latency", ans.Latency).
		Msg("ask answered")

	entry := store.RequestLog{
		Model:    ans.Model,
		Source:   ans.Source,
		Attempts: ans.Attempts,
		TokensIn: int64(tokensIn),
		CostUSD:  cost,
	}
	if ans.Source == SourceFallback {
		entry.ErrorMessage = ans.Notice
	}
	s.record(ctx, q, entry, start)
	return ans
}

func (s *Session) record(ctx context.Context, q Query, entry store.RequestLog, start time.Time) {
	if s.deps.Requests == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.Timestamp = start.UTC().Format(time.RFC3339)
	entry.SessionID = s.id
	entry.Kind = q.Kind
	entry.LatencyMs = s.deps.Now().Sub(start).Milliseconds()
	if err := s.deps.Requests.InsertRequest(context.WithoutCancel(ctx), &entry); err != nil {
		s.log.Warn().Err(err).Msg("failed to record request")
	}
}

func (s *Session) countTokens(text string) int {
	if s.deps.Tokens == nil {
		return 0
	}
	return s.deps.Tokens.CountTokens(text)
}

func (s *Session) modelID(m llm.Model) string {
	if ider, ok := s.deps.Caller.(modelIDer); ok {
		return ider.ModelID(m)
	}
	return m.ID()
}
