// Package config holds the typed tilerelay configuration and loads it from
// defaults, an optional YAML file and TILERELAY_* environment variables.
package config

import (
	"time"

	"github.com/tilerelay/tilerelay/internal/fetch"
	"github.com/tilerelay/tilerelay/internal/iiif"
	"github.com/tilerelay/tilerelay/internal/relay"
)

// Config represents the complete application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Relay   RelayConfig   `mapstructure:"relay"`
	IIIF    IIIFConfig    `mapstructure:"iiif"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `mapstructure:"level"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Port is the exporter port; /metrics on the main port proxies to it.
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// FetchConfig tunes manifest and page retrieval.
type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	Retries      int           `mapstructure:"retries"`
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
	UserAgent    string        `mapstructure:"user_agent"`
	RateLimit    float64       `mapstructure:"rate_limit"`
}

// Options converts to fetch.Options.
func (c FetchConfig) Options() fetch.Options {
	return fetch.Options{
		Timeout:      c.Timeout,
		Retries:      c.Retries,
		RetryWaitMin: c.RetryWaitMin,
		RetryWaitMax: c.RetryWaitMax,
		UserAgent:    c.UserAgent,
		RateLimit:    c.RateLimit,
	}
}

// RelayConfig tunes the CORS relay.
type RelayConfig struct {
	MaxHops      int           `mapstructure:"max_hops"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// Options converts to relay.Options.
func (c RelayConfig) Options() relay.Options {
	return relay.Options{
		MaxHops:      c.MaxHops,
		Timeout:      c.Timeout,
		RateLimit:    c.RateLimit,
		MaxBodyBytes: c.MaxBodyBytes,
	}
}

// IIIFConfig tunes manifest location and interpretation.
type IIIFConfig struct {
	DefaultTileWidth int `mapstructure:"default_tile_width"`
	// HostRewrites are applied after the built-in table.
	HostRewrites   []iiif.HostRewrite `mapstructure:"host_rewrites"`
	ProbeEnabled   bool               `mapstructure:"probe_enabled"`
	ResolveTimeout time.Duration      `mapstructure:"resolve_timeout"`
}
