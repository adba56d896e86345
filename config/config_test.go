package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8099", cfg.Server.Port)
	require.Equal(t, 15*time.Minute, cfg.JWT.AccessExpiry)
	require.Equal(t, "mysql", cfg.Database.Driver)
	require.Equal(t, int64(10000000), cfg.Treasury.OpeningCredits)
	require.False(t, cfg.IsProduction())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("PAYMENT_SESSION_EXPIRY", "45m")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	require.Equal(t, 45*time.Minute, cfg.Payment.SessionExpiry)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "lots")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse env:")
}
