package auth

import (
	"testing"
	"time"

	"memberhub/config"

	"github.com/stretchr/testify/require"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		AccessSecret:  "access",
		RefreshSecret: "refresh",
		AccessExpiry:  time.Minute,
		RefreshExpiry: time.Hour,
		Issuer:        "memberhub",
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	tok, err := GenerateAccessToken(cfg, 42, "a@example.test", "premium")
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, tok)
	require.NoError(t, err)
	require.Equal(t, uint(42), claims.AccountID)
	require.Equal(t, "premium", claims.Role)
	require.Equal(t, "42", claims.Subject)
}

func TestParseAccessTokenRejects(t *testing.T) {
	cfg := testJWTConfig()

	refresh, err := GenerateRefreshToken(cfg, 42)
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, refresh)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired := *cfg
	expired.AccessExpiry = -time.Minute
	tok, err := GenerateAccessToken(&expired, 1, "", "user")
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	other := *cfg
	other.Issuer = "someone-else"
	tok, err = GenerateAccessToken(&other, 1, "", "user")
	require.NoError(t, err)
	_, err = ParseAccessToken(cfg, tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseAccessToken(cfg, "not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}
