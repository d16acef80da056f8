package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/allaspectsdev/legalsmart/internal/llm"
	"github.com/allaspectsdev/legalsmart/internal/store"
)

// Analyze asks model for a full analysis of the current client table.
func (s *Session) Analyze(ctx context.Context, model llm.Model) (*Answer, error) {
	clients, err := s.deps.Clients.ListClients(ctx, store.ClientFilter{})
	if err != nil {
		return nil, fmt.Errorf("assistant: analyze: %w", err)
	}
	return s.Ask(ctx, Query{
		Kind:        KindAnalyze,
		Prompt:      AnalysisPrompt(clients, s.opts.Language),
		Model:       model,
		MaxTokens:   s.opts.Analysis.MaxTokens,
		Temperature: s.opts.Analysis.Temperature,
	})
}

// AskQuestion answers a free-text question about the client table.
// A blank question returns ErrEmptyQuestion without counting against the
// rate limit.
func (s *Session) AskQuestion(ctx context.Context, question string, model llm.Model) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	clients, err := s.deps.Clients.ListClients(ctx, store.ClientFilter{})
	if err != nil {
		return nil, fmt.Errorf("assistant: question: %w", err)
	}
	return s.Ask(ctx, Query{
		Kind:        KindQuestion,
		Prompt:      QuestionPrompt(question, clients, s.opts.Language),
		Model:       model,
		MaxTokens:   s.opts.Question.MaxTokens,
		Temperature: s.opts.Question.Temperature,
	})
}

// QuickSummary returns the local summary without contacting any model or
// touching the rate limiter.
func (s *Session) QuickSummary(ctx context.Context) (Summary, error) {
	clients, err := s.deps.Clients.ListClients(ctx, store.ClientFilter{})
	if err != nil {
		return Summary{}, fmt.Errorf("assistant: summary: %w", err)
	}
	return Summarize(clients), nil
}

// ResetLimiter forgets every recorded ask of this session.
func (s *Session) ResetLimiter() {
	s.limiter.Reset()
}
