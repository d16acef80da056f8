package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/allaspectsdev/legalsmart/internal/assistant"
	"github.com/allaspectsdev/legalsmart/internal/config"
	"github.com/allaspectsdev/legalsmart/internal/llm"
	"github.com/allaspectsdev/legalsmart/internal/metrics"
	"github.com/allaspectsdev/legalsmart/internal/store"
	"github.com/allaspectsdev/legalsmart/internal/tokenizer"
	"github.com/allaspectsdev/legalsmart/internal/vault"
)

// KeyResolver looks up the API key named by a key reference.
type KeyResolver interface {
	ResolveKeyRef(keyRef string) (string, error)
}

// Services are the long-lived components shared by the API server and the
// one-shot CLI commands.
type Services struct {
	Store     *store.Store
	Collector *metrics.Collector
	Breakers  *llm.BreakerRegistry
	Sessions  *assistant.Registry
	// Caller is nil when no API key could be resolved.
	Caller llm.Caller
}

// AssistantOptions maps the configuration onto session options.
func AssistantOptions(cfg *config.Config) assistant.Options {
	opts := assistant.DefaultOptions()
	opts.CacheTTL = cfg.Cache.TTL()
	opts.CacheMaxEntries = cfg.Cache.MaxEntries
	opts.RequestsPerMinute = cfg.RateLimit.RequestsPerMinute
	if w := cfg.RateLimit.Window(); w > 0 {
		opts.Window = w
	}
	opts.Retry = cfg.Resilience.RetryPolicy()
	opts.DefaultModel = cfg.Model()
	if cfg.Assistant.Language != "" {
		opts.Language = cfg.Assistant.Language
	}
	if cfg.Assistant.AnalysisMaxTokens > 0 {
		opts.Analysis.MaxTokens = cfg.Assistant.AnalysisMaxTokens
	}
	opts.Analysis.Temperature = cfg.Assistant.AnalysisTemperature
	if cfg.Assistant.QuestionMaxTokens > 0 {
		opts.Question.MaxTokens = cfg.Assistant.QuestionMaxTokens
	}
	opts.Question.Temperature = cfg.Assistant.QuestionTemperature
	return opts
}

// NewCaller resolves the configured API key and builds the Anthropic
// client. A missing key is not an error: the assistant then answers from
// the local summary only, and the returned Caller is nil.
func NewCaller(cfg *config.Config, keys KeyResolver, logger zerolog.Logger) (llm.Caller, error) {
	if keys == nil {
		keys = vault.New()
	}
	apiKey, err := keys.ResolveKeyRef(cfg.Anthropic.KeyRef)
	if err != nil {
		logger.Warn().Err(err).Str("key_ref", cfg.Anthropic.KeyRef).
			Msg("anthropic api key unavailable; assistant will use the local summary")
		return nil, nil
	}
	client, err := llm.NewAnthropicClient(llm.AnthropicOptions{
		APIKey:     apiKey,
		BaseURL:    cfg.Anthropic.APIBase,
		APIVersion: cfg.Anthropic.APIVersion,
		Timeout:    cfg.Anthropic.TimeoutDuration(),
		ModelIDs:   cfg.ModelIDs(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating anthropic client: %w", err)
	}
	return client, nil
}

// OpenServices opens the store, seeding the sample clients when
// configured, and wires the assistant registry around it.
func OpenServices(ctx context.Context, cfg *config.Config, keys KeyResolver, logger zerolog.Logger) (*Services, error) {
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	logger.Info().Str("db_path", st.Path()).Msg("store opened")

	if cfg.Database.SeedSamples {
		n, err := st.SeedSampleClients(ctx)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("seeding sample clients: %w", err)
		}
		if n > 0 {
			logger.Info().Int("clients", n).Msg("sample clients seeded")
		}
	}

	caller, err := NewCaller(cfg, keys, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	svc := &Services{
		Store:     st,
		Collector: metrics.NewCollector(),
		Caller:    caller,
	}
	if cfg.Resilience.CBEnabled {
		svc.Breakers = llm.NewBreakerRegistry(
			cfg.Resilience.CBFailureThreshold,
			time.Duration(cfg.Resilience.CBResetTimeoutSec)*time.Second,
			cfg.Resilience.CBHalfOpenMax,
		)
	}

	deps := assistant.Deps{
		Caller:   caller,
		Clients:  st,
		Requests: st,
		Tokens:   newTokenizer(cfg.Assistant.TokenEstimator),
		Breakers: svc.Breakers,
		Metrics:  svc.Collector,
		Logger:   logger,
	}
	svc.Sessions, err = assistant.NewRegistry(cfg.Server.MaxSessions, AssistantOptions(cfg), deps)
	if err != nil {
		st.Close()
		return nil, err
	}
	return svc, nil
}

func newTokenizer(estimator string) *tokenizer.Tokenizer {
	if estimator == config.TokenEstimatorHeuristic {
		return tokenizer.NewHeuristic()
	}
	return tokenizer.New()
}

// Close releases the store.
func (s *Services) Close() error {
	return s.Store.Close()
}
