package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/allaspectsdev/legalsmart/internal/llm"
)

// configPtr holds the current config for thread-safe access.
var configPtr atomic.Pointer[Config]

// loadedConfigFile stores the path of the config file used by the last successful Load.
var loadedConfigFile atomic.Value

// Get returns the current Config. It is safe for concurrent use.
// If no config has been loaded yet, it returns the default config.
func Get() *Config {
	if c := configPtr.Load(); c != nil {
		return c
	}
	d := DefaultConfig()
	configPtr.Store(d)
	return d
}

// set stores a new Config atomically.
func set(cfg *Config) {
	configPtr.Store(cfg)
}

// Config is the top-level configuration for LegalSmart.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     toml:"server"`
	Database   DatabaseConfig   `mapstructure:"database"   toml:"database"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"  toml:"anthropic"`
	Assistant  AssistantConfig  `mapstructure:"assistant"  toml:"assistant"`
	Cache      CacheConfig      `mapstructure:"cache"      toml:"cache"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit" toml:"rate_limit"`
	Resilience ResilienceConfig `mapstructure:"resilience" toml:"resilience"`
	Tracing    TracingConfig    `mapstructure:"tracing"    toml:"tracing"`
}

// ServerConfig holds the HTTP server and process settings.
type ServerConfig struct {
	BindAddress  string `mapstructure:"bind_address"  toml:"bind_address"`
	Port         int    `mapstructure:"port"          toml:"port"`
	LogLevel     string `mapstructure:"log_level"     toml:"log_level"`
	DataDir      string `mapstructure:"data_dir"      toml:"data_dir"`
	ReadTimeout  int    `mapstructure:"read_timeout"  toml:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout" toml:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"  toml:"idle_timeout"`
	MaxBodySize  int64  `mapstructure:"max_body_size" toml:"max_body_size"`
	MaxSessions  int    `mapstructure:"max_sessions"  toml:"max_sessions"`
}

// Addr returns the host:port the API listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.Port)
}

// DatabaseConfig controls the SQLite client database.
type DatabaseConfig struct {
	// Path defaults to legal_clients.db inside the data directory.
	Path          string `mapstructure:"path"           toml:"path"`
	SeedSamples   bool   `mapstructure:"seed_samples"   toml:"seed_samples"`
	RetentionDays int    `mapstructure:"retention_days" toml:"retention_days"`
}

// AnthropicConfig describes the model API.
type AnthropicConfig struct {
	APIBase    string `mapstructure:"api_base"    toml:"api_base"`
	APIVersion string `mapstructure:"api_version" toml:"api_version"`
	KeyRef     string `mapstructure:"key_ref"     toml:"key_ref"`
	Timeout    int    `mapstructure:"timeout"     toml:"timeout"` // seconds
	// ModelIDs overrides the API identifier of catalogue keys.
	ModelIDs map[string]string `mapstructure:"model_ids" toml:"model_ids"`
}

// TimeoutDuration returns the request timeout as a time.Duration.
func (a AnthropicConfig) TimeoutDuration() time.Duration {
	if a.Timeout <= 0 {
		return DefaultAnthropicTimeout * time.Second
	}
	return time.Duration(a.Timeout) * time.Second
}

// AssistantConfig controls prompts and sampling.
type AssistantConfig struct {
	DefaultModel        string  `mapstructure:"default_model"        toml:"default_model"`
	Language            string  `mapstructure:"language"             toml:"language"`
	AnalysisMaxTokens   int     `mapstructure:"analysis_max_tokens"  toml:"analysis_max_tokens"`
	AnalysisTemperature float64 `mapstructure:"analysis_temperature" toml:"analysis_temperature"`
	QuestionMaxTokens   int     `mapstructure:"question_max_tokens"  toml:"question_max_tokens"`
	QuestionTemperature float64 `mapstructure:"question_temperature" toml:"question_temperature"`
	// TokenEstimator is "tiktoken" or "heuristic". The tiktoken encoding is
	// downloaded on first use; "heuristic" never touches the network.
	TokenEstimator string `mapstructure:"token_estimator" toml:"token_estimator"`
}

// CacheConfig controls the per-session response cache.
type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds" toml:"ttl_seconds"`
	MaxEntries int `mapstructure:"max_entries" toml:"max_entries"`
}

// TTL returns the entry lifetime. Zero disables expiry.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RateLimitConfig controls the per-session sliding window.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute" toml:"requests_per_minute"`
	WindowSeconds     int `mapstructure:"window_seconds"      toml:"window_seconds"`
}

// Window returns the window length.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// ResilienceConfig controls retry, circuit breaker, and related resilience settings.
type ResilienceConfig struct {
	RetryMaxAttempts   int  `mapstructure:"retry_max_attempts"       toml:"retry_max_attempts"`
	RetryBaseDelayMs   int  `mapstructure:"retry_base_delay_ms"      toml:"retry_base_delay_ms"`
	RetryMaxDelayMs    int  `mapstructure:"retry_max_delay_ms"       toml:"retry_max_delay_ms"`
	CBEnabled          bool `mapstructure:"circuit_breaker_enabled"  toml:"circuit_breaker_enabled"`
	CBFailureThreshold int  `mapstructure:"cb_failure_threshold"     toml:"cb_failure_threshold"`
	CBResetTimeoutSec  int  `mapstructure:"cb_reset_timeout_seconds" toml:"cb_reset_timeout_seconds"`
	CBHalfOpenMax      int  `mapstructure:"cb_half_open_max_calls"   toml:"cb_half_open_max_calls"`
}

// RetryPolicy converts the retry settings for the llm package.
func (r ResilienceConfig) RetryPolicy() llm.RetryPolicy {
	p := llm.DefaultRetryPolicy()
	p.MaxAttempts = r.RetryMaxAttempts
	if r.RetryBaseDelayMs > 0 {
		p.InitialInterval = time.Duration(r.RetryBaseDelayMs) * time.Millisecond
	}
	if r.RetryMaxDelayMs > 0 {
		p.MaxInterval = time.Duration(r.RetryMaxDelayMs) * time.Millisecond
	}
	return p
}

// TracingConfig controls OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"      toml:"enabled"`
	Exporter    string  `mapstructure:"exporter"     toml:"exporter"`     // "stdout", "otlp-grpc", "otlp-http"
	Endpoint    string  `mapstructure:"endpoint"     toml:"endpoint"`     // e.g. "localhost:4317"
	ServiceName string  `mapstructure:"service_name" toml:"service_name"` // defaults to "legalsmart"
	SampleRate  float64 `mapstructure:"sample_rate"  toml:"sample_rate"`  // 0.0 to 1.0
	Insecure    bool    `mapstructure:"insecure"     toml:"insecure"`     // skip TLS for dev
}

// DatabasePath returns the resolved SQLite file path.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Server.DataDir, DefaultDatabaseFilename)
}

// Model returns the parsed default model.
func (c *Config) Model() llm.Model {
	m, err := llm.ParseModel(c.Assistant.DefaultModel)
	if err != nil {
		return llm.ModelSonnet
	}
	return m
}

// ModelIDs returns the parsed model id overrides. Unknown keys are
// rejected by validation and skipped here.
func (c *Config) ModelIDs() map[llm.Model]string {
	out := make(map[llm.Model]string, len(c.Anthropic.ModelIDs))
	for k, id := range c.Anthropic.ModelIDs {
		if m, err := llm.ParseModel(k); err == nil && id != "" {
			out[m] = id
		}
	}
	return out
}

// envAliases are the bare variable names older deployments set. Each is
// consulted after the LEGALSMART_ prefixed name.
var envAliases = map[string][]string{
	"cache.ttl_seconds":              {"CACHE_TTL"},
	"cache.max_entries":              {"MAX_CACHE_ENTRIES"},
	"rate_limit.requests_per_minute": {"MAX_REQUESTS_PER_MINUTE"},
}

// Load reads configuration from disk with the following precedence:
//  1. Environment variables (LEGALSMART_ prefix, _ as separator, plus the
//     bare aliases in envAliases), including those set by a .env file in
//     the working directory
//  2. The file at explicitPath if non-empty
//  3. ~/.legalsmart/legalsmart.toml
//  4. ./legalsmart.toml
//  5. Built-in defaults
//
// The loaded config is validated and stored in the global atomic pointer.
func Load(explicitPath string) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("toml")

	// Set all defaults from the default config so viper knows every key.
	setViperDefaults(v)

	// Environment variable overlay: LEGALSMART_SERVER_PORT etc.
	v.SetEnvPrefix("LEGALSMART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, aliases := range envAliases {
		names := append([]string{"LEGALSMART_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, aliases...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	// Determine which file(s) to read.
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".legalsmart"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("legalsmart")
	}

	if err := v.ReadInConfig(); err != nil {
		// If no config file exists we still proceed with defaults + env.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Store the resolved config file path.
	if cf := v.ConfigFileUsed(); cf != "" {
		if _, err := os.Stat(cf); err == nil {
			loadedConfigFile.Store(cf)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Expand ~ in paths.
	cfg.Server.DataDir = expandHome(cfg.Server.DataDir)
	cfg.Database.Path = expandHome(cfg.Database.Path)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	set(cfg)
	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from each existing file into the
// process environment. Variables already set are left untouched; missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// DefaultConfigPath returns ~/.legalsmart/legalsmart.toml.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(homeDir, ".legalsmart", DefaultConfigFilename), nil
}

// InitConfig writes the default configuration to path, or to
// DefaultConfigPath when path is empty. An existing file is not
// overwritten; created reports whether a file was written.
func InitConfig(path string) (written string, created bool, err error) {
	if path == "" {
		if path, err = DefaultConfigPath(); err != nil {
			return "", false, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return path, false, fmt.Errorf("creating config directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	}

	data, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return path, false, fmt.Errorf("marshalling default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return path, false, fmt.Errorf("writing config: %w", err)
	}
	return path, true, nil
}

// ExportConfig writes the current config to the given path in TOML format.
func ExportConfig(path string) error {
	data, err := toml.Marshal(Get())
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ConfigFilePath returns the path of the config file that was loaded, or
// empty if no file was found.
func ConfigFilePath() string {
	if v, ok := loadedConfigFile.Load().(string); ok {
		return v
	}
	return ""
}

// setViperDefaults registers every known key with viper so that env var binding
// works for all fields even when no config file is present.
func setViperDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// Server
	v.SetDefault("server.bind_address", d.Server.BindAddress)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.log_level", d.Server.LogLevel)
	v.SetDefault("server.data_dir", d.Server.DataDir)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.max_body_size", d.Server.MaxBodySize)
	v.SetDefault("server.max_sessions", d.Server.MaxSessions)

	// Database
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.seed_samples", d.Database.SeedSamples)
	v.SetDefault("database.retention_days", d.Database.RetentionDays)

	// Anthropic
	v.SetDefault("anthropic.api_base", d.Anthropic.APIBase)
	v.SetDefault("anthropic.api_version", d.Anthropic.APIVersion)
	v.SetDefault("anthropic.key_ref", d.Anthropic.KeyRef)
	v.SetDefault("anthropic.timeout", d.Anthropic.Timeout)

	// Assistant
	v.SetDefault("assistant.default_model", d.Assistant.DefaultModel)
	v.SetDefault("assistant.language", d.Assistant.Language)
	v.SetDefault("assistant.analysis_max_tokens", d.Assistant.AnalysisMaxTokens)
	v.SetDefault("assistant.analysis_temperature", d.Assistant.AnalysisTemperature)
	v.SetDefault("assistant.question_max_tokens", d.Assistant.QuestionMaxTokens)
	v.SetDefault("assistant.question_temperature", d.Assistant.QuestionTemperature)
	v.SetDefault("assistant.token_estimator", d.Assistant.TokenEstimator)

	// Cache
	v.SetDefault("cache.ttl_seconds", d.Cache.TTLSeconds)
	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)

	// Rate limit
	v.SetDefault("rate_limit.requests_per_minute", d.RateLimit.RequestsPerMinute)
	v.SetDefault("rate_limit.window_seconds", d.RateLimit.WindowSeconds)

	// Resilience
	v.SetDefault("resilience.retry_max_attempts", d.Resilience.RetryMaxAttempts)
	v.SetDefault("resilience.retry_base_delay_ms", d.Resilience.RetryBaseDelayMs)
	v.SetDefault("resilience.retry_max_delay_ms", d.Resilience.RetryMaxDelayMs)
	v.SetDefault("resilience.circuit_breaker_enabled", d.Resilience.CBEnabled)
	v.SetDefault("resilience.cb_failure_threshold", d.Resilience.CBFailureThreshold)
	v.SetDefault("resilience.cb_reset_timeout_seconds", d.Resilience.CBResetTimeoutSec)
	v.SetDefault("resilience.cb_half_open_max_calls", d.Resilience.CBHalfOpenMax)

	// Tracing
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.insecure", d.Tracing.Insecure)
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
