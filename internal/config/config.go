package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type StoreBackend string

const (
	StoreBackendPostgres StoreBackend = "postgres"
	StoreBackendREST     StoreBackend = "rest"
)

type Config struct {
	Port                 int      `env:"PORT" envDefault:"8080"`
	DatabaseURL          string   `env:"DATABASE_URL"`
	SupabaseURL          string   `env:"SUPABASE_URL"`
	SupabaseServiceKey   string   `env:"SUPABASE_SERVICE_KEY"`
	RedisURL             string   `env:"REDIS_URL"`
	EncryptionKey        string   `env:"ENCRYPTION_KEY"`
	APIKeyHash           string   `env:"API_KEY_HASH"`
	CORSAllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	LoginRateLimitPerMin int      `env:"LOGIN_RATE_LIMIT_PER_MIN" envDefault:"10"`
	PreviewLimit         int      `env:"PREVIEW_LIMIT" envDefault:"10"`
	MaxDialogs           int      `env:"MAX_DIALOGS" envDefault:"500"`
	LogLevel             string   `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// StoreBackend picks the session store. A direct database connection wins
// over the REST gateway when both are configured.
func (c *Config) StoreBackend() StoreBackend {
	if c.DatabaseURL != "" {
		return StoreBackendPostgres
	}
	return StoreBackendREST
}

func (c *Config) Validate(isProduction bool) error {
	if c.DatabaseURL == "" && (c.SupabaseURL == "" || c.SupabaseServiceKey == "") {
		return fmt.Errorf("either DATABASE_URL or both SUPABASE_URL and SUPABASE_SERVICE_KEY must be set")
	}

	if c.APIKeyHash != "" {
		if !strings.HasPrefix(c.APIKeyHash, "$2a$") &&
			!strings.HasPrefix(c.APIKeyHash, "$2b$") &&
			!strings.HasPrefix(c.APIKeyHash, "$2y$") {
			return fmt.Errorf("API_KEY_HASH must be a bcrypt hash (generate with: go run scripts/hash-api-key.go <key>)")
		}
	}

	if c.EncryptionKey != "" {
		key, err := hex.DecodeString(c.EncryptionKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("ENCRYPTION_KEY must be 64 hex characters (generate with: openssl rand -hex 32)")
		}
	}

	if c.PreviewLimit <= 0 {
		return fmt.Errorf("PREVIEW_LIMIT must be positive")
	}
	if c.MaxDialogs <= 0 {
		return fmt.Errorf("MAX_DIALOGS must be positive")
	}
	if c.LoginRateLimitPerMin <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT_PER_MIN must be positive")
	}

	if isProduction {
		if c.APIKeyHash == "" {
			log.Warn().Msg("API_KEY_HASH is empty in production: endpoints are open to any caller")
		}
		if c.EncryptionKey == "" {
			log.Warn().Msg("ENCRYPTION_KEY is empty in production: session tokens are stored in plain text")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
