package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useConfigFile(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if body != "" {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	t.Setenv("CONFIG_FILE", path)
}

func TestDefaults(t *testing.T) {
	useConfigFile(t, "")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 6000, cfg.PRPC.DefaultPort)
	assert.Equal(t, "v1.16.14", cfg.Scoring.CurrentVersion)
	assert.False(t, cfg.Scoring.StableIdentities)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 30*time.Second, cfg.RefreshIntervalDuration())
	assert.Equal(t, time.Hour, cfg.BaselineTTLDuration())
}

func TestLayering(t *testing.T) {
	useConfigFile(t, `{"server":{"port":9000,"host":"127.0.0.1"},"prpc":{"max_retries":7},"geoip":{"locations_path":"/data/locations.json"}}`)
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("SEED_NODES", " 1.2.3.4:6000 , 5.6.7.8:6000")
	t.Setenv("STABLE_IDENTITIES", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_ENABLED", "0")
	t.Setenv("CACHE_TTL", "not-a-number")

	cfg, err := Load([]string{"-port", "9200"})
	require.NoError(t, err)

	// flag > env > file > defaults
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 7, cfg.PRPC.MaxRetries)
	assert.Equal(t, "/data/locations.json", cfg.GeoIP.LocationsPath)

	assert.Equal(t, []string{"1.2.3.4:6000", "5.6.7.8:6000"}, cfg.Server.SeedNodes)
	assert.True(t, cfg.Scoring.StableIdentities)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 60, cfg.Cache.TTL)
}

func TestBrokenConfigFileKeepsDefaults(t *testing.T) {
	useConfigFile(t, `{not json`)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}
