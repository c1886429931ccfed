package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	AuthJWTSecret      string
	AuthIssuer         string
	AuthAudience       string
	CORSAllowedOrigins []string

	CartTTL             time.Duration
	MaxBookingDays      int
	AvailabilityTTL     time.Duration
	IdempotencyTTL      time.Duration
	BookingLockTTL      time.Duration
	BookingRateWindow   time.Duration
	BookingRateMax      int
	NotifyEmailEnabled  bool
	NotifyEmailFrom     string
	TaskQueueName       string
	MaxRequestBodyBytes int64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		AuthJWTSecret:      k.String("AUTH_JWT_SECRET"),
		AuthIssuer:         strings.TrimSpace(k.String("AUTH_JWT_ISSUER")),
		AuthAudience:       strings.TrimSpace(k.String("AUTH_JWT_AUDIENCE")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		CartTTL:             parseDuration(k.String("CART_TTL"), "336h"),
		MaxBookingDays:      parseInt(k.String("MAX_BOOKING_DAYS"), 14),
		AvailabilityTTL:     parseDuration(k.String("AVAILABILITY_CACHE_TTL"), "30s"),
		IdempotencyTTL:      parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		BookingLockTTL:      parseDuration(k.String("BOOKING_LOCK_TTL"), "10s"),
		BookingRateWindow:   parseDuration(k.String("BOOKING_RATE_WINDOW"), "1m"),
		BookingRateMax:      parseInt(k.String("BOOKING_RATE_MAX"), 10),
		NotifyEmailEnabled:  parseBool(k.String("NOTIFY_EMAIL_ENABLED")),
		NotifyEmailFrom:     valueOrDefault(k.String("NOTIFY_EMAIL_FROM"), "noreply@illusia.fi"),
		TaskQueueName:       valueOrDefault(k.String("TASK_QUEUE_NAME"), "default"),
		MaxRequestBodyBytes: int64(parseInt(k.String("MAX_REQUEST_BODY_BYTES"), 1<<20)),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.AuthJWTSecret == "" {
		return nil, errors.New("AUTH_JWT_SECRET is required")
	}
	if cfg.MaxBookingDays <= 0 {
		return nil, errors.New("MAX_BOOKING_DAYS must be positive")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	var parsed int
	if _, err := fmt.Sscanf(trimmed, "%d", &parsed); err != nil {
		return fallback
	}
	return parsed
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
