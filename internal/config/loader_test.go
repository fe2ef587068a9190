package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilerelay/tilerelay/internal/iiif"
	"github.com/tilerelay/tilerelay/internal/relay"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Zero(t, cfg.Server.WriteTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)

	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 2, cfg.Fetch.Retries)
	assert.Equal(t, 500*time.Millisecond, cfg.Fetch.RetryWaitMin)

	assert.Equal(t, relay.DefaultMaxHops, cfg.Relay.MaxHops)
	assert.Zero(t, cfg.Relay.Timeout)
	assert.Equal(t, relay.DefaultMaxBodyBytes, cfg.Relay.MaxBodyBytes)
	assert.Equal(t, []string{"*"}, cfg.Relay.CORSOrigins)

	assert.Equal(t, 512, cfg.IIIF.DefaultTileWidth)
	assert.True(t, cfg.IIIF.ProbeEnabled)
	assert.Empty(t, cfg.IIIF.HostRewrites)

	assert.Same(t, cfg, GetConfig())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
relay:
  max_hops: 5
  timeout: 15s
  cors_origins:
    - https://viewer.example.net
iiif:
  default_tile_width: 256
  host_rewrites:
    - from: images.example.org/iiif
      to: cdn.example.org/iiif
`), 0o600))

	v := newViper(t)
	ConfigureSources(v, path)
	used, err := ReadFile(v)
	require.NoError(t, err)
	assert.Equal(t, path, used)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Relay.MaxHops)
	assert.Equal(t, 15*time.Second, cfg.Relay.Timeout)
	assert.Equal(t, []string{"https://viewer.example.net"}, cfg.Relay.CORSOrigins)
	assert.Equal(t, 256, cfg.IIIF.DefaultTileWidth)
	assert.Equal(t, []iiif.HostRewrite{{From: "images.example.org/iiif", To: "cdn.example.org/iiif"}}, cfg.IIIF.HostRewrites)
}

func TestReadFileMissingIsNotAnError(t *testing.T) {
	v := newViper(t)
	v.AddConfigPath(t.TempDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	used, err := ReadFile(v)
	require.NoError(t, err)
	assert.Empty(t, used)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TILERELAY_PORT", "7070")
	t.Setenv("TILERELAY_RELAY_MAX_HOPS", "1")
	t.Setenv("TILERELAY_RELAY_TIMEOUT", "2s")
	t.Setenv("TILERELAY_LOG_LEVEL", "debug")
	t.Setenv("TILERELAY_IIIF_PROBE_ENABLED", "false")

	v := newViper(t)
	require.NoError(t, ApplyEnvOverrides(v))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 1, cfg.Relay.MaxHops)
	assert.Equal(t, 2*time.Second, cfg.Relay.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.IIIF.ProbeEnabled)
}

func TestValidate(t *testing.T) {
	v := newViper(t)
	v.Set("relay.max_hops", -1)
	v.Set("iiif.default_tile_width", 0)

	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay.max_hops")
	assert.Contains(t, err.Error(), "iiif.default_tile_width")
}

func TestOptionsConversion(t *testing.T) {
	cfg, err := Load(newViper(t))
	require.NoError(t, err)

	fo := cfg.Fetch.Options()
	assert.Equal(t, cfg.Fetch.Timeout, fo.Timeout)
	assert.Equal(t, "tilerelay", fo.UserAgent)

	ro := cfg.Relay.Options()
	assert.Equal(t, cfg.Relay.MaxHops, ro.MaxHops)
	assert.Equal(t, cfg.Relay.MaxBodyBytes, ro.MaxBodyBytes)
}
