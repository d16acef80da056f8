package store

import (
	"context"
	"fmt"
	"time"
)

// Request log sources.
const (
	SourceLive      = "live"
	SourceCache     = "cache"
	SourceFallback  = "fallback"
	SourceThrottled = "throttled"
)

// RequestLog is one assistant request as recorded in ai_requests.
type RequestLog struct {
	ID           string  `json:"id"`
	Timestamp    string  `json:"timestamp"`
	SessionID    string  `json:"session_id"`
	Kind         string  `json:"kind"`
	Model        string  `json:"model"`
	Source       string  `json:"source"`
	Attempts     int     `json:"attempts"`
	TokensIn     int64   `json:"tokens_in"`
	LatencyMs    int64   `json:"latency_ms"`
	CostUSD      float64 `json:"cost_usd"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

// RequestStats aggregates the request log from a point in time.
type RequestStats struct {
	TotalRequests  int64   `json:"total_requests"`
	Live           int64   `json:"live"`
	CacheHits      int64   `json:"cache_hits"`
	Fallbacks      int64   `json:"fallbacks"`
	Throttled      int64   `json:"throttled"`
	TotalTokensIn  int64   `json:"total_tokens_in"`
	TotalCostUSD   float64 `json:"total_cost_usd"`
	AvgLiveLatency float64 `json:"avg_live_latency_ms"`
}

// InsertRequest appends r to the request log. The caller supplies the id.
func (s *Store) InsertRequest(ctx context.Context, r *RequestLog) error {
	_, err := s.writer.ExecContext(ctx, `
		INSERT INTO ai_requests (
			id, timestamp, session_id, kind, model, source,
			attempts, tokens_in, latency_ms, cost_usd, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Timestamp, r.SessionID, r.Kind, r.Model, r.Source,
		r.Attempts, r.TokensIn, r.LatencyMs, r.CostUSD, r.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("store: insert request: %w", err)
	}
	return nil
}

// ListRequests returns a page of the request log, newest first.
func (s *Store) ListRequests(ctx context.Context, limit, offset int) ([]RequestLog, error) {
	rows, err := s.reader.QueryContext(ctx, `
		SELECT id, timestamp, session_id, kind, model, source,
		       attempts, tokens_in, latency_ms, cost_usd, error_message
		FROM ai_requests
		ORDER BY timestamp DESC, id ASC
		LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list requests: %w", err)
	}
	defer rows.Close()

	results := []RequestLog{}
	for rows.Next() {
		var r RequestLog
		if err := rows.Scan(
			&r.ID, &r.Timestamp, &r.SessionID, &r.Kind, &r.Model, &r.Source,
			&r.Attempts, &r.TokensIn, &r.LatencyMs, &r.CostUSD, &r.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("store: scan request row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list requests iteration: %w", err)
	}
	return results, nil
}

// GetRequestStats aggregates every request whose timestamp is >= since.
func (s *Store) GetRequestStats(ctx context.Context, since time.Time) (*RequestStats, error) {
	sinceStr := since.UTC().Format(time.RFC3339)
	stats := &RequestStats{}

	err := s.reader.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN source = 'live' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN source = 'cache' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN source = 'fallback' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN source = 'throttled' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(tokens_in), 0),
			COALESCE(SUM(cost_usd), 0.0),
			COALESCE(AVG(CASE WHEN source = 'live' THEN latency_ms END), 0.0)
		FROM ai_requests
		WHERE timestamp >= ?`, sinceStr,
	).Scan(
		&stats.TotalRequests,
		&stats.Live,
		&stats.CacheHits,
		&stats.Fallbacks,
		&stats.Throttled,
		&stats.TotalTokensIn,
		&stats.TotalCostUSD,
		&stats.AvgLiveLatency,
	)
	if err != nil {
		return nil, fmt.Errorf("store: get request stats: %w", err)
	}
	return stats, nil
}
