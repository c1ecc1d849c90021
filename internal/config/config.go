// Package config loads engine settings from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every setting the engine reads at startup. Credentials have
// no defaults.
type Config struct {
	Port        string `env:"PORT" envDefault:"5339"`
	DatabaseURL string `env:"DATABASE_URL"` // optional; lesion-table games are disabled without it

	APIAuthToken   string   `env:"API_AUTH_TOKEN"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	RateLimitPerMin int `env:"RATE_LIMIT_PER_MIN" envDefault:"30"`
	RateLimitBurst  int `env:"RATE_LIMIT_BURST" envDefault:"10"`

	MaxPlayers      int `env:"MAX_PLAYERS" envDefault:"64"`
	MaxSamples      int `env:"MAX_SAMPLES" envDefault:"100000"`
	MaxCoalitions   int `env:"MAX_COALITIONS" envDefault:"250000"` // bound on (players+1) * samples
	MaxReplicates   int `env:"MAX_REPLICATES" envDefault:"32"`
	DefaultPoolSize int `env:"DEFAULT_POOL_SIZE" envDefault:"-1"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects limits the API cannot honor.
func (c *Config) Validate() error {
	if c.MaxPlayers < 1 {
		return fmt.Errorf("MAX_PLAYERS must be >= 1, got %d", c.MaxPlayers)
	}
	if c.MaxSamples < 1 {
		return fmt.Errorf("MAX_SAMPLES must be >= 1, got %d", c.MaxSamples)
	}
	if c.MaxCoalitions < 1 {
		return fmt.Errorf("MAX_COALITIONS must be >= 1, got %d", c.MaxCoalitions)
	}
	if c.MaxReplicates < 1 {
		return fmt.Errorf("MAX_REPLICATES must be >= 1, got %d", c.MaxReplicates)
	}
	if c.DefaultPoolSize < -1 {
		return fmt.Errorf("DEFAULT_POOL_SIZE must be >= -1, got %d", c.DefaultPoolSize)
	}
	if c.RateLimitPerMin < 1 || c.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit must be positive, got %d/min burst %d", c.RateLimitPerMin, c.RateLimitBurst)
	}
	return nil
}
