// Package config resolves adapter configuration. Environment variables are
// the source of truth; an optional YAML file provides a base that env vars
// override. Configuration is read-only after startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds the adapter's runtime settings.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// AINodeURL is the base URL of the AI jury service (required).
	AINodeURL string `yaml:"ai_node_url"`

	IPFSGatewayURL    string `yaml:"ipfs_gateway_url"`
	PinningServiceURL string `yaml:"ipfs_pinning_service"`
	PinningKey        string `yaml:"ipfs_pinning_key"`

	RevealTTLSeconds       int `yaml:"reveal_ttl_seconds"`
	RequestDeadlineSeconds int `yaml:"request_deadline_seconds"`
	AITimeoutSeconds       int `yaml:"ai_timeout_seconds"`

	MaxInflightRequests int    `yaml:"max_inflight_requests"`
	WorkDir             string `yaml:"work_dir"`
	LogLevel            string `yaml:"log_level"`
}

// Default returns the baseline configuration before file and env overrides.
func Default() *Config {
	return &Config{
		Host:                   "0.0.0.0",
		Port:                   8080,
		IPFSGatewayURL:         "https://ipfs.io",
		RevealTTLSeconds:       600,
		RequestDeadlineSeconds: 120,
		AITimeoutSeconds:       90,
		MaxInflightRequests:    32,
		WorkDir:                filepath.Join(os.TempDir(), "verdikta"),
		LogLevel:               "info",
	}
}

// Load builds the effective configuration: defaults, then the optional YAML
// file at path (may be empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config file: %w", err)
		}
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Host, "HOST")
	setString(&c.AINodeURL, "AI_NODE_URL")
	setString(&c.IPFSGatewayURL, "IPFS_GATEWAY_URL")
	setString(&c.PinningServiceURL, "IPFS_PINNING_SERVICE")
	setString(&c.PinningKey, "IPFS_PINNING_KEY")
	setString(&c.WorkDir, "WORK_DIR")
	setString(&c.LogLevel, "LOG_LEVEL")

	for _, v := range []struct {
		dst *int
		key string
	}{
		{&c.Port, "PORT"},
		{&c.RevealTTLSeconds, "REVEAL_TTL_SECONDS"},
		{&c.RequestDeadlineSeconds, "REQUEST_DEADLINE_SECONDS"},
		{&c.AITimeoutSeconds, "AI_TIMEOUT_SECONDS"},
		{&c.MaxInflightRequests, "MAX_INFLIGHT_REQUESTS"},
	} {
		if err := setInt(v.dst, v.key); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects configurations the adapter cannot run with.
func (c *Config) Validate() error {
	if c.AINodeURL == "" {
		return fmt.Errorf("AI_NODE_URL is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RevealTTLSeconds <= 0 {
		return fmt.Errorf("REVEAL_TTL_SECONDS must be positive")
	}
	if c.RequestDeadlineSeconds <= 0 {
		return fmt.Errorf("REQUEST_DEADLINE_SECONDS must be positive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RevealTTL is the lifetime of commit records; slightly larger than the
// on-chain aggregator's response timeout.
func (c *Config) RevealTTL() time.Duration {
	return time.Duration(c.RevealTTLSeconds) * time.Second
}

// RequestDeadline is the authoritative per-request deadline.
func (c *Config) RequestDeadline() time.Duration {
	return time.Duration(c.RequestDeadlineSeconds) * time.Second
}

// AITimeout bounds a single jury service call.
func (c *Config) AITimeout() time.Duration {
	return time.Duration(c.AITimeoutSeconds) * time.Second
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
