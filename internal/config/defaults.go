package config

// DefaultBindAddress is the default bind address (localhost only for security).
const DefaultBindAddress = "127.0.0.1"

// DefaultPort is the default port for the API server.
const DefaultPort = 8501

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "info"

// DefaultDataDir is the default data directory (before tilde expansion).
const DefaultDataDir = "~/.legalsmart"

// DefaultConfigFilename is the name of the config file.
const DefaultConfigFilename = "legalsmart.toml"

// DefaultDatabaseFilename is the SQLite file created in the data directory.
const DefaultDatabaseFilename = "legal_clients.db"

// DefaultRetentionDays is the default request log retention in days.
const DefaultRetentionDays = 30

// DefaultReadTimeout is the default HTTP server read timeout in seconds.
const DefaultReadTimeout = 10

// DefaultWriteTimeout is the default HTTP server write timeout in seconds.
// Set high enough to cover a full fallback chain with backoff.
const DefaultWriteTimeout = 300

// DefaultIdleTimeout is the default HTTP server idle timeout in seconds.
const DefaultIdleTimeout = 120

// DefaultMaxBodySize is the default maximum request body size in bytes (1 MB).
const DefaultMaxBodySize = 1 << 20

// DefaultMaxSessions bounds the number of live assistant sessions.
const DefaultMaxSessions = 1024

// DefaultAnthropicAPIBase is the Messages API origin.
const DefaultAnthropicAPIBase = "https://api.anthropic.com"

// DefaultAnthropicAPIVersion is sent as the anthropic-version header.
const DefaultAnthropicAPIVersion = "2023-06-01"

// DefaultAnthropicKeyRef points at the keyring entry holding the API key.
const DefaultAnthropicKeyRef = "keyring://legalsmart/anthropic"

// DefaultAnthropicTimeout is the per-call timeout in seconds.
const DefaultAnthropicTimeout = 60

// DefaultModel is the catalogue key tried first.
const DefaultModel = "sonnet"

// DefaultLanguage is the language answers are requested in.
const DefaultLanguage = "Hebrew"

// DefaultCacheTTL is the default response cache TTL in seconds.
const DefaultCacheTTL = 3600

// DefaultCacheMaxEntries is the default response cache size.
const DefaultCacheMaxEntries = 100

// DefaultRequestsPerMinute is the default per-session ask ceiling.
const DefaultRequestsPerMinute = 50

// DefaultRateWindow is the default sliding window length in seconds.
const DefaultRateWindow = 60

// DefaultRetryMaxAttempts is the default maximum number of attempts per model.
const DefaultRetryMaxAttempts = 3

// DefaultRetryBaseDelayMs is the default base delay for exponential backoff in milliseconds.
const DefaultRetryBaseDelayMs = 1000

// DefaultRetryMaxDelayMs is the default maximum delay for exponential backoff in milliseconds.
const DefaultRetryMaxDelayMs = 8000

// DefaultCBFailureThreshold is the default number of consecutive failures before opening the circuit.
const DefaultCBFailureThreshold = 5

// DefaultCBResetTimeout is the default circuit breaker reset timeout in seconds.
const DefaultCBResetTimeout = 60

// DefaultCBHalfOpenMax is the default number of successful calls in half-open state to close the circuit.
const DefaultCBHalfOpenMax = 1

// DefaultTracingExporter is the default tracing exporter type.
const DefaultTracingExporter = "otlp-grpc"

// DefaultTracingEndpoint is the default OTLP collector endpoint.
const DefaultTracingEndpoint = "localhost:4317"

// DefaultTracingServiceName is the default service name for traces.
const DefaultTracingServiceName = "legalsmart"

// DefaultTracingSampleRate is the default sampling rate (1.0 = 100%).
const DefaultTracingSampleRate = 1.0

// ValidLogLevels lists the allowed log level values.
var ValidLogLevels = []string{"trace", "debug", "info", "warn", "error", "fatal"}

// Token estimator names.
const (
	TokenEstimatorTiktoken  = "tiktoken"
	TokenEstimatorHeuristic = "heuristic"
)

// ValidTokenEstimators lists the allowed assistant.token_estimator values.
var ValidTokenEstimators = []string{TokenEstimatorTiktoken, TokenEstimatorHeuristic}

// ValidTracingExporters lists the supported span exporters.
var ValidTracingExporters = []string{"stdout", "otlp-grpc", "otlp-http"}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddress:  DefaultBindAddress,
			Port:         DefaultPort,
			LogLevel:     DefaultLogLevel,
			DataDir:      DefaultDataDir,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
			MaxBodySize:  DefaultMaxBodySize,
			MaxSessions:  DefaultMaxSessions,
		},
		Database: DatabaseConfig{
			Path:          "",
			SeedSamples:   true,
			RetentionDays: DefaultRetentionDays,
		},
		Anthropic: AnthropicConfig{
			APIBase:    DefaultAnthropicAPIBase,
			APIVersion: DefaultAnthropicAPIVersion,
			KeyRef:     DefaultAnthropicKeyRef,
			Timeout:    DefaultAnthropicTimeout,
			ModelIDs:   map[string]string{},
		},
		Assistant: AssistantConfig{
			DefaultModel:        DefaultModel,
			Language:            DefaultLanguage,
			AnalysisMaxTokens:   2000,
			AnalysisTemperature: 0.3,
			QuestionMaxTokens:   1500,
			QuestionTemperature: 0.2,
			TokenEstimator:      TokenEstimatorTiktoken,
		},
		Cache: CacheConfig{
			TTLSeconds: DefaultCacheTTL,
			MaxEntries: DefaultCacheMaxEntries,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: DefaultRequestsPerMinute,
			WindowSeconds:     DefaultRateWindow,
		},
		Resilience: ResilienceConfig{
			RetryMaxAttempts:   DefaultRetryMaxAttempts,
			RetryBaseDelayMs:   DefaultRetryBaseDelayMs,
			RetryMaxDelayMs:    DefaultRetryMaxDelayMs,
			CBEnabled:          true,
			CBFailureThreshold: DefaultCBFailureThreshold,
			CBResetTimeoutSec:  DefaultCBResetTimeout,
			CBHalfOpenMax:      DefaultCBHalfOpenMax,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    DefaultTracingExporter,
			Endpoint:    DefaultTracingEndpoint,
			ServiceName: DefaultTracingServiceName,
			SampleRate:  DefaultTracingSampleRate,
			Insecure:    false,
		},
	}
}
