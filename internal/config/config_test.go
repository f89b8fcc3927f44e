package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "access")
	t.Setenv("JWT_REFRESH_SECRET", "refresh")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9009", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 168*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, "access", cfg.Auth.AccessSecret)
	assert.Equal(t, "refresh", cfg.Auth.RefreshSecret)
	assert.Equal(t, "dms.audit", cfg.Audit.Queue)
	assert.True(t, cfg.Cache.MethodSet()["GET"])
}

func TestLoadMissingSecret(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "")
	t.Setenv("JWT_REFRESH_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_ACCESS_SECRET"))
	require.NoError(t, os.Unsetenv("JWT_REFRESH_SECRET"))

	_, err := Load()
	assert.Error(t, err)
}

func TestEnvironmentFlags(t *testing.T) {
	assert.True(t, Config{Env: "Production"}.IsProduction())
	assert.False(t, Config{Env: "development"}.IsProduction())
	assert.True(t, Config{Env: "development"}.IsDevelopment())
}

func TestRateLimitNormalize(t *testing.T) {
	c := RateLimitConfig{Capacity: 0, RefillTokens: 0, RefillInterval: 0, TTL: time.Second}
	c.normalize()

	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, time.Second, c.RefillInterval)
	assert.Equal(t, 5*time.Second, c.TTL)
}

func TestRedisAddress(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: "6380", Addr: "x:1"}.Address())
	assert.Equal(t, "x:1", RedisConfig{Addr: "x:1"}.Address())
}
