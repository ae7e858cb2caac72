package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration

	// Import
	ImportConcurrency int
	DefaultIssuer     string

	// Parser diagnostics
	ParserDebugUnmatched bool
	ParserDebugMax       int

	// Installment grouping policy
	InstallmentValueTolerance decimal.Decimal
	InstallmentMinDays        int
	InstallmentMaxDays        int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Store (PostgREST)
	StoreURL        string
	StoreAnonKey    string
	StoreServiceKey string

	// Auth (bearer tokens on mutating endpoints)
	JWTSecret string
}

// Load reads configuration from environment variables with defaults.
// Malformed installment policy values are a hard error: the grouping engine
// must never run with a silently substituted tolerance or window.
func Load() (*Config, error) {
	tolerance, err := getEnvDecimalStrict("INSTALLMENT_VALUE_TOLERANCE", "0.50")
	if err != nil {
		return nil, err
	}
	minDays, err := getEnvIntStrict("INSTALLMENT_MIN_DAYS", 20)
	if err != nil {
		return nil, err
	}
	maxDays, err := getEnvIntStrict("INSTALLMENT_MAX_DAYS", 38)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),

		ImportConcurrency: getEnvInt("IMPORT_CONCURRENCY", 4),
		DefaultIssuer:     getEnv("DEFAULT_ISSUER", "Banco do Brasil"),

		ParserDebugUnmatched: getEnv("PARSER_DEBUG_UNMATCHED", "false") == "true",
		ParserDebugMax:       getEnvInt("PARSER_DEBUG_MAX", 40),

		InstallmentValueTolerance: tolerance,
		InstallmentMinDays:        minDays,
		InstallmentMaxDays:        maxDays,

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		StoreURL:        getEnv("STORE_URL", ""),
		StoreAnonKey:    getEnv("STORE_ANON_KEY", ""),
		StoreServiceKey: getEnv("STORE_SERVICE_ROLE_KEY", ""),

		JWTSecret: getEnv("JWT_SECRET", "financas-default-dev-secret-change-me"),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvIntStrict(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return i, nil
}

func getEnvDecimalStrict(key, fallback string) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: invalid decimal %q", key, v)
	}
	return d, nil
}
