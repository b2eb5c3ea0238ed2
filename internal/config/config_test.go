package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/codeassist-auth/internal/config"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	t.Setenv("AUTH_TOKEN_TTL_SECONDS", "")
	t.Setenv("SESSION_TOKEN_TTL_SECONDS", "")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_PORT", "")
	t.Setenv("PORT", "")

	c := config.New()
	require.Equal(t, 24*time.Hour, c.GetAuthTokenTTL())
	require.Equal(t, time.Hour, c.GetSessionTokenTTL())
	require.Equal(t, "localhost:6379", c.GetStoreAddr())
	require.Equal(t, ":8080", c.GetPort())
}

func TestConfig_FromEnvironment(t *testing.T) {
	t.Setenv("AUTH_TOKEN_TTL_SECONDS", "120")
	t.Setenv("SESSION_TOKEN_TTL_SECONDS", "30")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_OP_TIMEOUT_MS", "250")
	t.Setenv("PORT", ":9000")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	c := config.New()
	require.Equal(t, 2*time.Minute, c.GetAuthTokenTTL())
	require.Equal(t, 30*time.Second, c.GetSessionTokenTTL())
	require.Equal(t, "cache.internal:6380", c.GetStoreAddr())
	require.Equal(t, 250*time.Millisecond, c.GetStoreOpTimeout())
	require.Equal(t, ":9000", c.GetPort())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://b.example"))
	require.False(t, c.GetAllowedOrigins().IsAllowedOrigin("https://c.example"))
}

func TestConfig_InvalidTTLFallsBack(t *testing.T) {
	t.Setenv("AUTH_TOKEN_TTL_SECONDS", "soon")
	t.Setenv("SESSION_TOKEN_TTL_SECONDS", "-5")

	c := config.New()
	require.Equal(t, 24*time.Hour, c.GetAuthTokenTTL())
	require.Equal(t, time.Hour, c.GetSessionTokenTTL())
}
