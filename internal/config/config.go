// Package config handles mould client configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order. An explicit
// path (from the --config flag) is checked first, by FindConfig. Then: ./mould.yaml,
// ~/.config/mould/config.yaml, /etc/mould/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"mould.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "mould", "config.yaml"))
	}

	paths = append(paths, "/etc/mould/config.yaml")
	return paths
}

// searchPathsFunc is indirected so tests can substitute a hermetic
// search order instead of the real filesystem paths.
var searchPathsFunc = DefaultSearchPaths

// FindConfig locates a config file. If explicit is non-empty, it must
// exist. Otherwise, searches searchPathsFunc and returns the first path
// that exists. Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	paths := searchPathsFunc()
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", paths)
}

// Config holds all mouldcli configuration.
type Config struct {
	Endpoint EndpointConfig `yaml:"endpoint"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	LogLevel string         `yaml:"log_level"`
}

// EndpointConfig defines the WebSocket server this client dials.
type EndpointConfig struct {
	// URL is the ws:// or wss:// address of the server.
	URL string `yaml:"url"`
	// HandshakeTimeoutSec bounds the WebSocket upgrade handshake.
	HandshakeTimeoutSec int `yaml:"handshake_timeout_sec"`
	// InsecureSkipVerify disables TLS certificate verification for wss://
	// endpoints. Intended for local development against self-signed certs.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// DefaultsConfig defines the (service, action) pair and per-request
// timeout used when a CLI invocation does not override them.
type DefaultsConfig struct {
	Service           string `yaml:"service"`
	Action            string `yaml:"action"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
}

// MetricsConfig defines the optional Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// Configured reports whether an endpoint URL has been set.
func (c EndpointConfig) Configured() bool {
	return c.URL != ""
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates the
// result. After Load returns successfully, all fields are usable
// without additional nil/empty checks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g. ${MOULD_ENDPOINT}). A
	// convenience for container deployments; putting values directly in
	// the config file remains the recommended approach.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
// Called automatically by Load. After this, callers can read any field
// without checking for empty strings or zero values.
func (c *Config) applyDefaults() {
	if c.Endpoint.HandshakeTimeoutSec == 0 {
		c.Endpoint.HandshakeTimeoutSec = 10
	}
	if c.Defaults.RequestTimeoutSec == 0 {
		c.Defaults.RequestTimeoutSec = 30
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9090
	}
}

// Validate checks that the configuration is internally consistent. It
// runs after applyDefaults, so it can assume defaults are populated.
// Returns an error describing the first problem found, or nil.
func (c *Config) Validate() error {
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port %d out of range (1-65535)", c.Metrics.Port)
	}
	if c.Endpoint.HandshakeTimeoutSec < 1 {
		return fmt.Errorf("endpoint.handshake_timeout_sec must be positive, got %d", c.Endpoint.HandshakeTimeoutSec)
	}
	if c.Defaults.RequestTimeoutSec < 1 {
		return fmt.Errorf("defaults.request_timeout_sec must be positive, got %d", c.Defaults.RequestTimeoutSec)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// Default returns a default configuration suitable for local development
// against a server listening on localhost. All defaults are already
// applied.
func Default() *Config {
	cfg := &Config{
		Endpoint: EndpointConfig{URL: "ws://localhost:8765/mould"},
	}
	cfg.applyDefaults()
	return cfg
}
