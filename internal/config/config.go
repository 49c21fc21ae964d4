package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds runtime settings for the recommendation service.
// Values come from the environment; main loads .env first via godotenv.
type Config struct {
	Port        string
	Environment string

	LogLevel string
	LogFile  string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Recommendation tuning
	MaxRecommendations  int
	MaxPageSize         int
	DefaultPageSize     int
	ColdStartThreshold  int
	SimilarityThreshold float64
	TrendingWindow      time.Duration
	RequestTimeout      time.Duration
	CacheTTL            time.Duration
	TrendingCacheTTL    time.Duration
	CFMatrixTTL         time.Duration
	CFNeighbors         int
	EmbeddingDim        int
	ModelVersion        string

	// Optional remote learned scorer
	ScorerURL     string
	ScorerTimeout time.Duration

	// Tracing
	OTelEnabled      bool
	OTelEndpoint     string
	OTelSamplingRate float64

	// Rate limiting
	RateLimitPerMinute int
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8787"),
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),

		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:  getEnvOrDefault("LOG_FILE", "server.log"),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		MaxRecommendations:  getEnvInt("MAX_RECOMMENDATIONS", 50),
		MaxPageSize:         getEnvInt("MAX_PAGE_SIZE", 100),
		DefaultPageSize:     getEnvInt("DEFAULT_PAGE_SIZE", 20),
		ColdStartThreshold:  getEnvInt("COLD_START_THRESHOLD", 5),
		SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", 0.3),
		TrendingWindow:      getEnvDuration("TRENDING_WINDOW", 7*24*time.Hour),
		RequestTimeout:      getEnvDuration("RECOMMENDATION_TIMEOUT", 2*time.Second),
		CacheTTL:            time.Duration(getEnvInt("CACHE_TTL", 3600)) * time.Second,
		TrendingCacheTTL:    getEnvDuration("TRENDING_CACHE_TTL", 5*time.Minute),
		CFMatrixTTL:         getEnvDuration("CF_MATRIX_TTL", 10*time.Minute),
		CFNeighbors:         getEnvInt("CF_NEIGHBORS", 50),
		EmbeddingDim:        getEnvInt("EMBEDDING_DIM", 128),
		ModelVersion:        getEnvOrDefault("MODEL_VERSION", "v1.0"),

		ScorerURL:     os.Getenv("SCORER_URL"),
		ScorerTimeout: getEnvDuration("SCORER_TIMEOUT", 500*time.Millisecond),

		OTelEnabled:      getEnvOrDefault("OTEL_ENABLED", "false") == "true",
		OTelEndpoint:     getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		OTelSamplingRate: getEnvFloat("OTEL_SAMPLING_RATE", 1.0),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 600),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.MaxPageSize < 1 {
		return fmt.Errorf("MAX_PAGE_SIZE must be positive, got %d", c.MaxPageSize)
	}
	if c.DefaultPageSize < 1 || c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("DEFAULT_PAGE_SIZE must be in [1, %d], got %d", c.MaxPageSize, c.DefaultPageSize)
	}
	if c.MaxRecommendations < 1 {
		return fmt.Errorf("MAX_RECOMMENDATIONS must be positive, got %d", c.MaxRecommendations)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in [0, 1], got %v", c.SimilarityThreshold)
	}
	if c.EmbeddingDim < 1 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	return nil
}

// Default returns the configuration used when no environment is set.
// Tests and the CLI build on it.
func Default() *Config {
	return &Config{
		Port:                "8787",
		Environment:         "development",
		LogLevel:            "info",
		RedisPort:           "6379",
		MaxRecommendations:  50,
		MaxPageSize:         100,
		DefaultPageSize:     20,
		ColdStartThreshold:  5,
		SimilarityThreshold: 0.3,
		TrendingWindow:      7 * 24 * time.Hour,
		RequestTimeout:      2 * time.Second,
		CacheTTL:            time.Hour,
		TrendingCacheTTL:    5 * time.Minute,
		CFMatrixTTL:         10 * time.Minute,
		CFNeighbors:         50,
		EmbeddingDim:        128,
		ModelVersion:        "v1.0",
		ScorerTimeout:       500 * time.Millisecond,
		OTelSamplingRate:    1.0,
		RateLimitPerMinute:  600,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("90s") or bare seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
