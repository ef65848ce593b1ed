// Package config loads and validates the agent configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingEndpoint is returned when no controller endpoint is
// configured. Session start refuses to proceed without one.
var ErrMissingEndpoint = errors.New("config: controller endpoint is required")

// DefaultHeartbeatInterval keeps the connection alive under typical
// idle-connection timeouts of intermediary infrastructure.
const DefaultHeartbeatInterval = 25 * time.Second

// Config is the full agent configuration.
type Config struct {
	// Endpoint is the controller WebSocket URL (ws:// or wss://).
	Endpoint string `yaml:"endpoint"`
	// AppID identifies the hosting application to the controller.
	AppID string `yaml:"app_id"`
	// HTTPBase is the controller's HTTP base URL, used for the fetch
	// task's proxy fallback (<base>/proxy?url=...). Optional.
	HTTPBase string `yaml:"http_base"`

	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	LogLevel          string        `yaml:"log_level"`

	Fetch FetchConfig `yaml:"fetch"`
	Trace TraceConfig `yaml:"trace"`
}

// FetchConfig tunes the fetch task runner.
type FetchConfig struct {
	PreviewMaxBytes int           `yaml:"preview_max_bytes"`
	Timeout         time.Duration `yaml:"timeout"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
}

// TraceConfig tunes OpenTelemetry export. Empty endpoint disables it.
type TraceConfig struct {
	Endpoint string `yaml:"endpoint"` // OTLP/HTTP collector, host:port
	Insecure bool   `yaml:"insecure"`
}

// Default returns a config with every tunable at its documented default.
func Default() *Config {
	return &Config{
		AppID:             "outpost",
		HeartbeatInterval: DefaultHeartbeatInterval,
		LogLevel:          "info",
		Fetch: FetchConfig{
			PreviewMaxBytes: 1024,
			Timeout:         30 * time.Second,
			CacheTTL:        time.Minute,
		},
	}
}

// Load reads a YAML config file, applies defaults and environment
// overrides, and validates the result. A missing file is not an error;
// env-only configuration is supported.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OUTPOST_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("OUTPOST_APP_ID"); v != "" {
		c.AppID = v
	}
	if v := os.Getenv("OUTPOST_HTTP_BASE"); v != "" {
		c.HTTPBase = v
	}
	if v := os.Getenv("OUTPOST_TRACE_ENDPOINT"); v != "" {
		c.Trace.Endpoint = v
	}
	if v := os.Getenv("OUTPOST_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) applyDefaults() {
	if c.AppID == "" {
		c.AppID = "outpost"
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Fetch.PreviewMaxBytes <= 0 {
		c.Fetch.PreviewMaxBytes = 1024
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.CacheTTL <= 0 {
		c.Fetch.CacheTTL = time.Minute
	}
}

// Validate checks the parts of the config that must be right before a
// session can start.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return ErrMissingEndpoint
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("config: invalid endpoint %q: %w", c.Endpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("config: endpoint %q must use ws:// or wss://", c.Endpoint)
	}
	if c.HTTPBase != "" {
		if _, err := url.Parse(c.HTTPBase); err != nil {
			return fmt.Errorf("config: invalid http_base %q: %w", c.HTTPBase, err)
		}
	}
	return nil
}
