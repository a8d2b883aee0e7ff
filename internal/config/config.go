package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                   int    `env:"PORT" envDefault:"8080"`
	AppEnv                 string `env:"APP_ENV" envDefault:"development"`
	DatabaseURL            string `env:"DATABASE_URL,required"`
	RedisURL               string `env:"REDIS_URL"`
	LogLevel               string `env:"LOG_LEVEL" envDefault:"info"`
	AutoMigrate            bool   `env:"AUTO_MIGRATE" envDefault:"true"`
	PairingTTLSeconds      int    `env:"PAIRING_TTL_SECONDS" envDefault:"600"`
	PairingPollIntervalMs  int    `env:"PAIRING_POLL_INTERVAL_MS" envDefault:"3000"`
	PairingCodeLength      int    `env:"PAIRING_CODE_LENGTH" envDefault:"7"`
	PairingBaseURL         string `env:"PAIRING_BASE_URL" envDefault:"http://localhost:8080/pair"`
	SweepIntervalSeconds   int    `env:"SWEEP_INTERVAL_SECONDS" envDefault:"300"`
	TokenSecret            string `env:"TOKEN_SECRET,required"`
	TokenTTLHours          int    `env:"TOKEN_TTL_HOURS" envDefault:"720"`
	TokenIssuer            string `env:"TOKEN_ISSUER" envDefault:"quoteboard"`
	ApproveRateLimitPerMin int    `env:"APPROVE_RATE_LIMIT_PER_MIN" envDefault:"10"`
	CreateRateLimitPerMin  int    `env:"CREATE_RATE_LIMIT_PER_MIN" envDefault:"20"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

func (c *Config) PairingTTL() time.Duration {
	return time.Duration(c.PairingTTLSeconds) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PairingPollIntervalMs) * time.Millisecond
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// AllowedOrigins lists the browser origins allowed to call the API. It
// defaults to the origin of PAIRING_BASE_URL, where the approval page lives.
func (c *Config) AllowedOrigins() []string {
	if len(c.CORSAllowedOrigins) > 0 {
		return c.CORSAllowedOrigins
	}
	u, err := url.Parse(c.PairingBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return []string{u.Scheme + "://" + u.Host}
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) Validate(isProduction bool) error {
	if c.PairingCodeLength < MinPairingCodeLength || c.PairingCodeLength > MaxPairingCodeLength {
		return fmt.Errorf("PAIRING_CODE_LENGTH must be between %d and %d", MinPairingCodeLength, MaxPairingCodeLength)
	}
	if c.PairingTTLSeconds <= 0 {
		return fmt.Errorf("PAIRING_TTL_SECONDS must be positive")
	}
	if c.PairingPollIntervalMs <= 0 {
		return fmt.Errorf("PAIRING_POLL_INTERVAL_MS must be positive")
	}
	if c.PollInterval() >= c.PairingTTL() {
		return fmt.Errorf("PAIRING_POLL_INTERVAL_MS must be shorter than PAIRING_TTL_SECONDS")
	}
	if c.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_SECONDS must be positive")
	}
	if c.TokenTTLHours <= 0 {
		return fmt.Errorf("TOKEN_TTL_HOURS must be positive")
	}

	if isProduction {
		if err := validateSecret("TOKEN_SECRET", c.TokenSecret); err != nil {
			return err
		}
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required in production: rate limits must be shared across replicas")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if strings.HasPrefix(c.PairingBaseURL, "http://") {
			log.Warn().Msg("PAIRING_BASE_URL is not https in production: phones will be sent to an insecure page")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
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
