package config

import (
	"fmt"
	"strings"

	"github.com/allaspectsdev/legalsmart/internal/llm"
)

// validate checks the Config for invalid or out-of-range values.
// It returns a combined error if any checks fail.
func validate(cfg *Config) error {
	var errs []string

	// Server validation
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be between 1 and 65535, got %d", cfg.Server.Port))
	}
	if !isValidEnum(cfg.Server.LogLevel, ValidLogLevels) {
		errs = append(errs, fmt.Sprintf("server.log_level must be one of %v, got %q", ValidLogLevels, cfg.Server.LogLevel))
	}
	if cfg.Server.DataDir == "" {
		errs = append(errs, "server.data_dir must not be empty")
	}
	if cfg.Server.ReadTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.read_timeout must be non-negative, got %d", cfg.Server.ReadTimeout))
	}
	if cfg.Server.WriteTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.write_timeout must be non-negative, got %d", cfg.Server.WriteTimeout))
	}
	if cfg.Server.IdleTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.idle_timeout must be non-negative, got %d", cfg.Server.IdleTimeout))
	}
	if cfg.Server.MaxBodySize < 0 {
		errs = append(errs, fmt.Sprintf("server.max_body_size must be non-negative, got %d", cfg.Server.MaxBodySize))
	}
	if cfg.Server.MaxSessions < 1 {
		errs = append(errs, fmt.Sprintf("server.max_sessions must be at least 1, got %d", cfg.Server.MaxSessions))
	}

	// Database validation
	if cfg.Database.RetentionDays < 1 {
		errs = append(errs, fmt.Sprintf("database.retention_days must be at least 1, got %d", cfg.Database.RetentionDays))
	}

	// Anthropic validation
	if cfg.Anthropic.APIBase == "" {
		errs = append(errs, "anthropic.api_base must not be empty")
	}
	if cfg.Anthropic.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("anthropic.timeout must be non-negative, got %d", cfg.Anthropic.Timeout))
	}
	for key := range cfg.Anthropic.ModelIDs {
		if _, err := llm.ParseModel(key); err != nil {
			errs = append(errs, fmt.Sprintf("anthropic.model_ids has unknown model %q", key))
		}
	}

	// Assistant validation
	if _, err := llm.ParseModel(cfg.Assistant.DefaultModel); err != nil {
		errs = append(errs, fmt.Sprintf("assistant.default_model %q is not a known model", cfg.Assistant.DefaultModel))
	}
	if strings.TrimSpace(cfg.Assistant.Language) == "" {
		errs = append(errs, "assistant.language must not be empty")
	}
	if !isValidEnum(cfg.Assistant.TokenEstimator, ValidTokenEstimators) {
		errs = append(errs, fmt.Sprintf("assistant.token_estimator %q is invalid; must be one of %v", cfg.Assistant.TokenEstimator, ValidTokenEstimators))
	}
	if cfg.Assistant.AnalysisMaxTokens < 1 {
		errs = append(errs, fmt.Sprintf("assistant.analysis_max_tokens must be positive, got %d", cfg.Assistant.AnalysisMaxTokens))
	}
	if cfg.Assistant.QuestionMaxTokens < 1 {
		errs = append(errs, fmt.Sprintf("assistant.question_max_tokens must be positive, got %d", cfg.Assistant.QuestionMaxTokens))
	}
	for name, temp := range map[string]float64{
		"assistant.analysis_temperature": cfg.Assistant.AnalysisTemperature,
		"assistant.question_temperature": cfg.Assistant.QuestionTemperature,
	} {
		if temp < 0 || temp > 1 {
			errs = append(errs, fmt.Sprintf("%s must be between 0 and 1, got %.2f", name, temp))
		}
	}

	// Cache validation
	if cfg.Cache.TTLSeconds < 0 {
		errs = append(errs, fmt.Sprintf("cache.ttl_seconds must be non-negative, got %d", cfg.Cache.TTLSeconds))
	}
	if cfg.Cache.MaxEntries < 1 {
		errs = append(errs, fmt.Sprintf("cache.max_entries must be at least 1, got %d", cfg.Cache.MaxEntries))
	}

	// Rate limit validation
	if cfg.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Sprintf("rate_limit.requests_per_minute must be non-negative, got %d", cfg.RateLimit.RequestsPerMinute))
	}
	if cfg.RateLimit.WindowSeconds < 1 {
		errs = append(errs, fmt.Sprintf("rate_limit.window_seconds must be at least 1, got %d", cfg.RateLimit.WindowSeconds))
	}

	// Resilience validation
	if cfg.Resilience.RetryMaxAttempts < 1 {
		errs = append(errs, fmt.Sprintf("resilience.retry_max_attempts must be at least 1, got %d", cfg.Resilience.RetryMaxAttempts))
	}
	if cfg.Resilience.RetryBaseDelayMs < 0 {
		errs = append(errs, fmt.Sprintf("resilience.retry_base_delay_ms must be non-negative, got %d", cfg.Resilience.RetryBaseDelayMs))
	}
	if cfg.Resilience.RetryMaxDelayMs < 0 {
		errs = append(errs, fmt.Sprintf("resilience.retry_max_delay_ms must be non-negative, got %d", cfg.Resilience.RetryMaxDelayMs))
	}
	if cfg.Resilience.CBFailureThreshold < 1 {
		errs = append(errs, fmt.Sprintf("resilience.cb_failure_threshold must be at least 1, got %d", cfg.Resilience.CBFailureThreshold))
	}
	if cfg.Resilience.CBResetTimeoutSec <= 0 {
		errs = append(errs, fmt.Sprintf("resilience.cb_reset_timeout_seconds must be positive, got %d", cfg.Resilience.CBResetTimeoutSec))
	}
	if cfg.Resilience.CBHalfOpenMax < 1 {
		errs = append(errs, fmt.Sprintf("resilience.cb_half_open_max_calls must be at least 1, got %d", cfg.Resilience.CBHalfOpenMax))
	}

	// Tracing validation
	if cfg.Tracing.Enabled {
		if !isValidEnum(cfg.Tracing.Exporter, ValidTracingExporters) {
			errs = append(errs, fmt.Sprintf("tracing.exporter must be one of %v, got %q", ValidTracingExporters, cfg.Tracing.Exporter))
		}
		if cfg.Tracing.ServiceName == "" {
			errs = append(errs, "tracing.service_name must not be empty when tracing is enabled")
		}
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_rate must be between 0 and 1, got %f", cfg.Tracing.SampleRate))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// isValidEnum returns true if val is in the allowed list (case-insensitive).
func isValidEnum(val string, allowed []string) bool {
	lower := strings.ToLower(val)
	for _, a := range allowed {
		if strings.ToLower(a) == lower {
			return true
		}
	}
	return false
}
