package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/tilerelay/tilerelay/internal/relay"
)

const (
	// AppName names the config directory and the binary.
	AppName = "tilerelay"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "TILERELAY_"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// EnvVarSpec maps one environment variable onto a config path.
type EnvVarSpec = gfconfig.EnvVarSpec

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("health.enabled", true)

	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.retries", 2)
	v.SetDefault("fetch.retry_wait_min", "500ms")
	v.SetDefault("fetch.retry_wait_max", "5s")
	v.SetDefault("fetch.user_agent", AppName)
	v.SetDefault("fetch.rate_limit", 0)

	v.SetDefault("relay.max_hops", relay.DefaultMaxHops)
	v.SetDefault("relay.timeout", "0s")
	v.SetDefault("relay.rate_limit", 0)
	v.SetDefault("relay.max_body_bytes", relay.DefaultMaxBodyBytes)
	v.SetDefault("relay.cors_origins", []string{"*"})

	v.SetDefault("iiif.default_tile_width", 512)
	v.SetDefault("iiif.host_rewrites", []map[string]string{})
	v.SetDefault("iiif.probe_enabled", true)
	v.SetDefault("iiif.resolve_timeout", "60s")
}

// ConfigureSources points v at cfgFile, or at the XDG config directory and
// ./config when cfgFile is empty.
func ConfigureSources(v *viper.Viper, cfgFile string) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		return
	}
	if dir := gfconfig.GetAppConfigDir(AppName); dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// ReadFile reads the configured file. A missing file is not an error when
// no explicit path was given.
func ReadFile(v *viper.Viper) (string, error) {
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	switch {
	case err == nil:
		return v.ConfigFileUsed(), nil
	case errors.As(err, &notFound):
		return "", nil
	default:
		return "", fmt.Errorf("read config: %w", err)
	}
}

// EnvSpecs lists the supported TILERELAY_* variables.
func EnvSpecs() []EnvVarSpec {
	p := EnvPrefix
	str, num, flag := gfconfig.EnvString, gfconfig.EnvInt, gfconfig.EnvBool
	return []EnvVarSpec{
		{Name: p + "HOST", Path: []string{"server", "host"}, Type: str},
		{Name: p + "PORT", Path: []string{"server", "port"}, Type: num},
		{Name: p + "READ_TIMEOUT", Path: []string{"server", "read_timeout"}, Type: str},
		{Name: p + "WRITE_TIMEOUT", Path: []string{"server", "write_timeout"}, Type: str},
		{Name: p + "IDLE_TIMEOUT", Path: []string{"server", "idle_timeout"}, Type: str},
		{Name: p + "SHUTDOWN_TIMEOUT", Path: []string{"server", "shutdown_timeout"}, Type: str},

		{Name: p + "LOG_LEVEL", Path: []string{"logging", "level"}, Type: str},

		{Name: p + "METRICS_ENABLED", Path: []string{"metrics", "enabled"}, Type: flag},
		{Name: p + "METRICS_PORT", Path: []string{"metrics", "port"}, Type: num},
		{Name: p + "HEALTH_ENABLED", Path: []string{"health", "enabled"}, Type: flag},

		{Name: p + "FETCH_TIMEOUT", Path: []string{"fetch", "timeout"}, Type: str},
		{Name: p + "FETCH_RETRIES", Path: []string{"fetch", "retries"}, Type: num},
		{Name: p + "FETCH_USER_AGENT", Path: []string{"fetch", "user_agent"}, Type: str},
		{Name: p + "FETCH_RATE_LIMIT", Path: []string{"fetch", "rate_limit"}, Type: str},

		{Name: p + "RELAY_MAX_HOPS", Path: []string{"relay", "max_hops"}, Type: num},
		{Name: p + "RELAY_TIMEOUT", Path: []string{"relay", "timeout"}, Type: str},
		{Name: p + "RELAY_RATE_LIMIT", Path: []string{"relay", "rate_limit"}, Type: str},
		{Name: p + "RELAY_CORS_ORIGINS", Path: []string{"relay", "cors_origins"}, Type: str},

		{Name: p + "IIIF_DEFAULT_TILE_WIDTH", Path: []string{"iiif", "default_tile_width"}, Type: num},
		{Name: p + "IIIF_PROBE_ENABLED", Path: []string{"iiif", "probe_enabled"}, Type: flag},
		{Name: p + "IIIF_RESOLVE_TIMEOUT", Path: []string{"iiif", "resolve_timeout"}, Type: str},
	}
}

// ApplyEnvOverrides merges the set TILERELAY_* variables over file values.
func ApplyEnvOverrides(v *viper.Viper) error {
	overrides, err := gfconfig.LoadEnvOverrides(EnvSpecs())
	if err != nil {
		return fmt.Errorf("load environment overrides: %w", err)
	}
	if len(overrides) == 0 {
		return nil
	}
	return v.MergeConfigMap(overrides)
}

// Load decodes v into a Config, validates it and stores it as current.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Relay.MaxHops < 0 {
		problems = append(problems, "relay.max_hops must not be negative")
	}
	if c.Relay.RateLimit < 0 || c.Fetch.RateLimit < 0 {
		problems = append(problems, "rate limits must not be negative")
	}
	if c.Fetch.Retries < 0 {
		problems = append(problems, "fetch.retries must not be negative")
	}
	if c.IIIF.DefaultTileWidth <= 0 {
		problems = append(problems, "iiif.default_tile_width must be positive")
	}
	for i, rw := range c.IIIF.HostRewrites {
		if strings.TrimSpace(rw.From) == "" {
			problems = append(problems, fmt.Sprintf("iiif.host_rewrites[%d].from is empty", i))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigPath returns the XDG path of the user config file.
func DefaultConfigPath() string {
	dir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(dir) == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}
