package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                 int    `env:"PORT" envDefault:"8080"`
	DatabaseURL          string `env:"DATABASE_URL,required"`
	RedisURL             string `env:"REDIS_URL,required"`
	SessionSecret        string `env:"SESSION_SECRET,required"`
	SessionTTLSeconds    int    `env:"SESSION_TTL_SECONDS" envDefault:"259200"`
	ResetTokenTTLSeconds int    `env:"RESET_TOKEN_TTL_SECONDS" envDefault:"3600"`
	BcryptCost           int    `env:"BCRYPT_COST" envDefault:"10"`
	MaxConcurrentHashes  int    `env:"MAX_CONCURRENT_HASHES" envDefault:"4"`
	SMTPHost             string `env:"SMTP_HOST"`
	SMTPPort             int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser             string `env:"SMTP_USER"`
	SMTPPassword         string `env:"SMTP_PASSWORD"`
	EmailFrom            string `env:"EMAIL_FROM"`
	ResetLinkBaseURL     string `env:"RESET_LINK_BASE_URL" envDefault:"http://localhost:8080/reset-password"`
	LogLevel             string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func (c *Config) ResetTokenTTL() time.Duration {
	return time.Duration(c.ResetTokenTTLSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.BcryptCost < MinBcryptCost || c.BcryptCost > MaxBcryptCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", MinBcryptCost, MaxBcryptCost)
	}
	if c.SessionTTLSeconds <= 0 {
		return fmt.Errorf("SESSION_TTL_SECONDS must be positive")
	}
	if c.ResetTokenTTLSeconds <= 0 {
		return fmt.Errorf("RESET_TOKEN_TTL_SECONDS must be positive")
	}
	if c.MaxConcurrentHashes <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_HASHES must be positive")
	}

	if isProduction {
		if err := validateSecret("SESSION_SECRET", c.SessionSecret); err != nil {
			return err
		}
		if c.SMTPHost == "" {
			log.Warn().Msg("SMTP_HOST is empty in production: password reset emails will not be delivered")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
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
