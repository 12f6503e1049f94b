// Package config loads runtime configuration from the environment: one
// struct per concern, a Load() entry point, getEnv helpers with defaults,
// and range validation of the numeric settings.
package config

import (
	"os"
	"strconv"
	"time"

	"sitegen/internal/errors"
)

// Config is the complete application configuration.
type Config struct {
	Database    DatabaseConfig
	Explanation ExplanationConfig
	Operations  OperationsConfig
	Server      ServerConfig
	Generation  GenerationConfig
}

// DatabaseConfig holds the optional run-history database connection.
// An empty URL is valid: RunRepository becomes a nil-DB no-op.
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// ExplanationConfig configures the remote explanation tier. An empty
// APIKey disables the remote tier: ExplanationService falls back to
// template-only.
type ExplanationConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	CacheTTL    time.Duration
}

// OperationsConfig holds concurrency, rate, token, and time budgets.
type OperationsConfig struct {
	IsochroneConcurrency   int64
	ExplanationConcurrency int64
	IsochroneRatePerMin    int
	ExplanationRatePerMin  int
	TokenBudget            int64
	RequestTimeout         time.Duration
	MaxExecutionTime       time.Duration
	MemoryLimitMB          int64
}

// ServerConfig holds any CLI/env-level server settings. The core
// generation pipeline needs none of these; they exist for cmd/ wrappers.
type ServerConfig struct {
	Port string
}

// GenerationConfig holds pipeline-level defaults that are not already
// part of the per-request JSON payload.
type GenerationConfig struct {
	GridResolution  int
	DefaultSeed     int64
	WorkbookPath    string
}

// Load reads configuration from the environment. Nothing here is
// required: every field has a safe zero-value default, because a
// generation run can proceed entirely from its JSON request.
func Load() (*Config, error) {
	cfg := &Config{
		Database:    loadDatabaseConfig(),
		Explanation: loadExplanationConfig(),
		Operations:  loadOperationsConfig(),
		Server:      loadServerConfig(),
		Generation:  loadGenerationConfig(),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:     getEnvOrDefault("DATABASE_URL", ""),
		SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
	}
}

func loadExplanationConfig() ExplanationConfig {
	return ExplanationConfig{
		APIKey:      getEnvOrDefault("OPENAI_API_KEY", ""),
		Model:       getEnvOrDefault("EXPLANATION_MODEL", "gpt-4o-mini"),
		BaseURL:     getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		Timeout:     getEnvDurationOrDefault("EXPLANATION_TIMEOUT", 10*time.Second),
		Temperature: 0,
		MaxTokens:   getEnvIntOrDefault("EXPLANATION_MAX_TOKENS", 256),
		CacheTTL:    getEnvDurationOrDefault("EXPLANATION_CACHE_TTL", 24*time.Hour),
	}
}

func loadOperationsConfig() OperationsConfig {
	return OperationsConfig{
		IsochroneConcurrency:   int64(getEnvIntOrDefault("ISOCHRONE_CONCURRENCY", 10)),
		ExplanationConcurrency: int64(getEnvIntOrDefault("EXPLANATION_CONCURRENCY", 5)),
		IsochroneRatePerMin:    getEnvIntOrDefault("ISOCHRONE_RATE_PER_MIN", 300),
		ExplanationRatePerMin:  getEnvIntOrDefault("EXPLANATION_RATE_PER_MIN", 60),
		TokenBudget:            int64(getEnvIntOrDefault("TOKEN_BUDGET", 20000)),
		RequestTimeout:         getEnvDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		MaxExecutionTime:       getEnvDurationOrDefault("MAX_EXECUTION_TIME", 10*time.Minute),
		MemoryLimitMB:          int64(getEnvIntOrDefault("MEMORY_LIMIT_MB", 2048)),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port: getEnvOrDefault("PORT", "8080"),
	}
}

func loadGenerationConfig() GenerationConfig {
	return GenerationConfig{
		GridResolution: getEnvIntOrDefault("GRID_RESOLUTION", 9),
		DefaultSeed:    int64(getEnvIntOrDefault("DEFAULT_SEED", 1)),
		WorkbookPath:   getEnvOrDefault("WORKBOOK_PATH", ""),
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Generation.GridResolution < 0 || cfg.Generation.GridResolution > 15 {
		return errors.ConfigInvalid("GRID_RESOLUTION must be an h3 resolution between 0 and 15")
	}
	if cfg.Operations.TokenBudget < 0 {
		return errors.ConfigInvalid("TOKEN_BUDGET must not be negative")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
