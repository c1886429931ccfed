package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/illusia-ry-organization/illusia-ry/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"DATABASE_URL":    "postgres://localhost/illusia",
		"REDIS_URL":       "redis://localhost:6379/0",
		"AUTH_JWT_SECRET": "secret",
		"PORT":            "",
		"CART_TTL":        "",
	})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 14, cfg.MaxBookingDays)
	require.Equal(t, 336*time.Hour, cfg.CartTTL)
	require.Equal(t, 30*time.Second, cfg.AvailabilityTTL)
}

func TestLoadRequiresSecrets(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"DATABASE_URL":    "postgres://localhost/illusia",
		"REDIS_URL":       "",
		"AUTH_JWT_SECRET": "secret",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "REDIS_URL")
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"DATABASE_URL":         "postgres://localhost/illusia",
		"REDIS_URL":            "redis://localhost:6379/0",
		"AUTH_JWT_SECRET":      "secret",
		"MAX_BOOKING_DAYS":     "7",
		"PORT":                 "9090",
		"CORS_ALLOWED_ORIGINS": "https://illusia.fi, https://staging.illusia.fi",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 7, cfg.MaxBookingDays)
	require.Equal(t, []string{"https://illusia.fi", "https://staging.illusia.fi"}, cfg.CORSAllowedOrigins)
}
