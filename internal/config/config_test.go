package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seijin4ka/CostNavigator-sub000/internal/config"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/costnavigator")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "EST", cfg.ReferencePrefix)
	require.Equal(t, 5, cfg.ReferenceMaxAttempts)
	require.Equal(t, 25*time.Millisecond, cfg.ReferenceRetryDelay)
	require.Equal(t, 200*time.Millisecond, cfg.SlowQueryThreshold)
	require.Equal(t, "direct", cfg.DefaultPartnerSlug)
	require.True(t, cfg.MigrationsAutoRun)
	require.False(t, cfg.NotifyEnabled)
	require.Nil(t, cfg.CORSAllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", ":9090")
	t.Setenv("ESTIMATE_REFERENCE_PREFIX", "cn")
	t.Setenv("ESTIMATE_REFERENCE_MAX_ATTEMPTS", "3")
	t.Setenv("PAGINATION_DEFAULT_LIMIT", "500")
	t.Setenv("PAGINATION_MAX_LIMIT", "50")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("MIGRATIONS_AUTO_RUN", "off")
	t.Setenv("CATALOG_CACHE_TTL", "not-a-duration")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, "CN", cfg.ReferencePrefix)
	require.Equal(t, 3, cfg.ReferenceMaxAttempts)
	require.Equal(t, 50, cfg.DefaultPageLimit)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.False(t, cfg.MigrationsAutoRun)
	require.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
}

func TestLoadReportsEveryMissingSetting(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("JWT_SECRET", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("ESTIMATE_REFERENCE_MAX_ATTEMPTS", "0")

	_, err := config.Load()
	require.ErrorContains(t, err, "JWT_SECRET is required")
	require.ErrorContains(t, err, "REDIS_URL is required")
	require.ErrorContains(t, err, "ESTIMATE_REFERENCE_MAX_ATTEMPTS")
}
