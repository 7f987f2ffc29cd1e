// Package config loads service configuration from the environment.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/layer-3/beatauth/core"
)

type Config struct {
	Port     string `env:"PORT,      default=9000"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	SIWE      SIWEConfig
	Session   SessionConfig
	Redis     RedisConfig
	Mongo     MongoConfig
	RateLimit RateLimitConfig

	// SuperAdminAddresses is the break-glass allowlist. Read once at startup.
	SuperAdminAddresses []string `env:"SUPER_ADMIN_ADDRESSES"`

	// JWTSigningKey is a hex-encoded P-256 private scalar. A throwaway key
	// is generated when empty outside production.
	JWTSigningKey string `env:"JWT_SIGNING_KEY"`

	EventsEnabled bool `env:"EVENTS_ENABLED, default=true"`
}

type SIWEConfig struct {
	Domain    string `env:"SIWE_DOMAIN,    default=localhost:3000"`
	URI       string `env:"SIWE_URI,       default=http://localhost:3000"`
	ChainID   int64  `env:"SIWE_CHAIN_ID,  default=1"`
	Statement string `env:"SIWE_STATEMENT, default=Sign in to the beat marketplace."`
}

type SessionConfig struct {
	NonceTTL           time.Duration `env:"NONCE_TTL,            default=5m"`
	SessionTTL         time.Duration `env:"SESSION_TTL,          default=24h"`
	StoreRetryInterval time.Duration `env:"STORE_RETRY_INTERVAL, default=200ms"`
}

type RedisConfig struct {
	URL string `env:"REDIS_URL, default=redis://localhost:6379/0"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=beatauth"`
}

type RateLimitConfig struct {
	RPS   float64 `env:"RATE_LIMIT_RPS,   default=2"`
	Burst int     `env:"RATE_LIMIT_BURST, default=10"`
}

// Load reads configuration from process environment variables.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration through an arbitrary lookuper.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Allowlist materializes the super-admin list.
func (c *Config) Allowlist() core.Allowlist {
	return core.NewAllowlist(c.SuperAdminAddresses...)
}

// Production reports whether the service runs in production mode.
func (c *Config) Production() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	if c.Session.NonceTTL <= 0 || c.Session.SessionTTL <= 0 {
		return fmt.Errorf("config: NONCE_TTL and SESSION_TTL must be positive")
	}
	if c.SIWE.Domain == "" {
		return fmt.Errorf("config: SIWE_DOMAIN is required")
	}
	if c.Production() && c.JWTSigningKey == "" {
		return fmt.Errorf("config: JWT_SIGNING_KEY is required in production")
	}
	return nil
}
