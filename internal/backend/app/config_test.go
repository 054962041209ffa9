package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"ASKBAR_ISSUER", "ASKBAR_AUDIENCE", "ASKBAR_KEY_FILE", "PORT", "HOUSEKEEPING_INTERVAL", "METRICS_ENABLED"} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	require.Equal(t, "askbar-identity", cfg.Issuer)
	require.Equal(t, []string{"askbar"}, cfg.Audience)
	require.Empty(t, cfg.KeyFile)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, time.Hour, cfg.HousekeepingInterval)
	require.True(t, cfg.MetricsEnabled)
	require.Equal(t, 10, cfg.Limits.Auth.RequestsPerWindow)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ASKBAR_ISSUER", "https://id.askbar.test")
	t.Setenv("ASKBAR_AUDIENCE", " web, cli ,,")
	t.Setenv("PORT", "9090")
	t.Setenv("HOUSEKEEPING_INTERVAL", "15")
	t.Setenv("SHUTDOWN_GRACE_PERIOD", "2s")
	t.Setenv("ASKBAR_ACCESS_TTL", "garbage")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("RATELIMIT_AUTH_REQUESTS", "3")

	cfg := LoadConfig()
	require.Equal(t, "https://id.askbar.test", cfg.Issuer)
	require.Equal(t, []string{"web", "cli"}, cfg.Audience)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 15*time.Minute, cfg.HousekeepingInterval)
	require.Equal(t, 2*time.Second, cfg.ShutdownGracePeriod)
	require.Equal(t, 15*time.Minute, cfg.AccessTTL)
	require.False(t, cfg.MetricsEnabled)
	require.Equal(t, 3, cfg.Limits.Auth.RequestsPerWindow)
}
