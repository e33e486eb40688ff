// Package config loads runtime settings from the environment. A .env
// file is honored when present; real environment variables win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	DatabaseDSN string

	// SigningSecret signs session tokens (HS256). Must be at least 32
	// characters.
	SigningSecret string
	// SessionTTL bounds both the token expiry and the session row
	// expiry; the cookie max-age matches it.
	SessionTTL time.Duration
	// RequireApproval gates login on admin approval of the account.
	// Single policy switch for the whole service.
	RequireApproval bool

	// Production toggles Secure cookies.
	Production bool

	AllowedOrigins string
}

const defaultSessionTTL = 7 * 24 * time.Hour

// Load reads the environment, applying .env first if one exists.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("loading .env file: %w", err)
		}
	}

	required := []string{
		"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB",
		"POSTGRES_HOST", "POSTGRES_PORT", "SERVER_PORT",
	}
	for _, env := range required {
		if os.Getenv(env) == "" {
			return nil, fmt.Errorf("environment variable %s must be set", env)
		}
	}
	secret := os.Getenv("SIGNING_SECRET")
	if len(secret) < 32 {
		return nil, fmt.Errorf("SIGNING_SECRET must be at least 32 characters")
	}

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("POSTGRES_HOST"), os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"), os.Getenv("POSTGRES_DB"),
		os.Getenv("POSTGRES_PORT"))

	cfg := &Config{
		ServerPort:      os.Getenv("SERVER_PORT"),
		DatabaseDSN:     dsn,
		SigningSecret:   secret,
		SessionTTL:      defaultSessionTTL,
		RequireApproval: true,
		Production:      os.Getenv("APP_ENV") == "production",
		AllowedOrigins:  os.Getenv("ALLOWED_ORIGINS"),
	}

	if v := os.Getenv("SESSION_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl <= 0 {
			return nil, fmt.Errorf("SESSION_TTL must be a positive duration: %q", v)
		}
		cfg.SessionTTL = ttl
	}
	if v := os.Getenv("REQUIRE_APPROVAL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("REQUIRE_APPROVAL must be a boolean: %q", v)
		}
		cfg.RequireApproval = b
	}

	return cfg, nil
}
