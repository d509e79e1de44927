package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string // default: 8080

	// Database
	PostgresDSN string

	// Store
	RedisAddr string

	// Operator-owned provider credentials. Premium variants are optional
	// higher-limit keys served to premium-tier tenants.
	MasterOpenAIKey     string
	MasterAnthropicKey  string
	PremiumOpenAIKey    string
	PremiumAnthropicKey string

	// Observability
	OTELExporterType     string // "stdout" or "otlp"
	OTELExporterEndpoint string // default: "localhost:4317"

	// Rate Limiting
	DefaultRateLimitRPM int64 // requests per minute, default: 600
}

func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		MasterOpenAIKey:      os.Getenv("MASTER_OPENAI_API_KEY"),
		MasterAnthropicKey:   os.Getenv("MASTER_ANTHROPIC_API_KEY"),
		PremiumOpenAIKey:     os.Getenv("PREMIUM_OPENAI_API_KEY"),
		PremiumAnthropicKey:  os.Getenv("PREMIUM_ANTHROPIC_API_KEY"),
		OTELExporterType:     getEnv("OTEL_EXPORTER_TYPE", "stdout"),
		OTELExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
	}

	rpmStr := getEnv("DEFAULT_RATE_LIMIT_RPM", "600")
	rpm, err := strconv.ParseInt(rpmStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_RATE_LIMIT_RPM: %w", err)
	}
	cfg.DefaultRateLimitRPM = rpm

	// Validation
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required")
	}

	return cfg, nil
}

// OperatorKeys returns the operator-owned credential table keyed by provider
// name, with "_premium" suffixed entries for the tier-elevated keys. Empty
// values are omitted so a missing env var reads as "not configured".
func (c *Config) OperatorKeys() map[string]string {
	all := map[string]string{
		"openai":            c.MasterOpenAIKey,
		"anthropic":         c.MasterAnthropicKey,
		"openai_premium":    c.PremiumOpenAIKey,
		"anthropic_premium": c.PremiumAnthropicKey,
	}
	keys := make(map[string]string, len(all))
	for name, val := range all {
		if val != "" {
			keys[name] = val
		}
	}
	return keys
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
