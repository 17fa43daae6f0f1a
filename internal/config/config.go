// Package config provides configuration management for the lookup daemon.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"time"
)

// ListenerMode defines the operational mode for a listener.
type ListenerMode string

const (
	// ModePlain accepts plaintext attribute-protocol connections.
	ModePlain ListenerMode = "plain"
	// ModeTLS wraps every accepted connection in TLS immediately.
	ModeTLS ListenerMode = "tls"
)

// FileConfig is the top-level wrapper for the shared configuration file.
// This allows the lookup daemon and related tools to share a single
// config file.
type FileConfig struct {
	Lookupd Config `toml:"lookupd"`
}

// Config holds the complete lookup daemon configuration.
type Config struct {
	Hostname  string           `toml:"hostname"`
	LogLevel  string           `toml:"log_level"`
	Listeners []ListenerConfig `toml:"listeners"`
	TLS       TLSConfig        `toml:"tls"`
	Limits    LimitsConfig     `toml:"limits"`
	Timeouts  TimeoutsConfig   `toml:"timeouts"`
	Metrics   MetricsConfig    `toml:"metrics"`
	Redis     RedisConfig      `toml:"redis"`
	Tables    []TableConfig    `toml:"tables"`
	Proxy     ProxyConfig      `toml:"proxy"`
}

// ListenerConfig defines settings for a single listener.
type ListenerConfig struct {
	Address string       `toml:"address"`
	Mode    ListenerMode `toml:"mode"`
}

// TLSConfig holds TLS certificate and version settings.
type TLSConfig struct {
	CertFile   string `toml:"cert_file"`
	KeyFile    string `toml:"key_file"`
	MinVersion string `toml:"min_version"`
}

// LimitsConfig defines resource limits for the daemon.
type LimitsConfig struct {
	// LineLength bounds one protocol line; a base64 field may be at
	// most twice this long.
	LineLength int `toml:"line_length"`
}

// TimeoutsConfig defines timeout durations.
type TimeoutsConfig struct {
	Connection string `toml:"connection"`
	Request    string `toml:"request"`
}

// MetricsConfig holds configuration for Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// RedisConfig holds connection settings for the Redis table backend.
type RedisConfig struct {
	Address  string `toml:"address"`
	DB       int    `toml:"db"`
	Password string `toml:"password"`
}

// TableConfig defines one lookup table served to clients.
type TableConfig struct {
	Name      string `toml:"name"`
	KeyPrefix string `toml:"key_prefix"`
}

// ProxyConfig holds settings for the pass-through SMTP proxy client.
type ProxyConfig struct {
	Address  string `toml:"address"`
	Timeout  string `toml:"timeout"`
	EhloName string `toml:"ehlo_name"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// Default returns a Config with sensible default values.
func Default() Config {
	return Config{
		Hostname: "localhost",
		LogLevel: "info",
		Listeners: []ListenerConfig{
			{Address: "127.0.0.1:10025", Mode: ModePlain},
		},
		TLS: TLSConfig{
			MinVersion: "1.2",
		},
		Limits: LimitsConfig{
			LineLength: 2048,
		},
		Timeouts: TimeoutsConfig{
			Connection: "5m",
			Request:    "1m",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9100",
			Path:    "/metrics",
		},
		Redis: RedisConfig{
			Address: "127.0.0.1:6379",
		},
	}
}

// Validate checks that the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.Hostname == "" {
		return errors.New("hostname is required")
	}

	if len(c.Listeners) == 0 {
		return errors.New("at least one listener is required")
	}

	for i, l := range c.Listeners {
		if l.Address == "" {
			return fmt.Errorf("listener %d: address is required", i)
		}
		if !isValidMode(l.Mode) {
			return fmt.Errorf("listener %d: invalid mode %q", i, l.Mode)
		}
		if l.Mode == ModeTLS && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
			return fmt.Errorf("listener %d: TLS mode requires cert_file and key_file", i)
		}
	}

	if c.Limits.LineLength <= 0 {
		return errors.New("line_length must be positive")
	}

	if c.Timeouts.Connection != "" {
		if _, err := time.ParseDuration(c.Timeouts.Connection); err != nil {
			return fmt.Errorf("invalid connection timeout: %w", err)
		}
	}

	if c.Timeouts.Request != "" {
		if _, err := time.ParseDuration(c.Timeouts.Request); err != nil {
			return fmt.Errorf("invalid request timeout: %w", err)
		}
	}

	if c.TLS.MinVersion != "" {
		if _, ok := minTLSVersions[c.TLS.MinVersion]; !ok {
			return fmt.Errorf("invalid TLS min_version %q (valid: 1.0, 1.1, 1.2, 1.3)", c.TLS.MinVersion)
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return errors.New("metrics address is required when metrics are enabled")
		}
		if c.Metrics.Path == "" {
			return errors.New("metrics path is required when metrics are enabled")
		}
	}

	seen := make(map[string]bool, len(c.Tables))
	for i, t := range c.Tables {
		if t.Name == "" {
			return fmt.Errorf("table %d: name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("table %d: duplicate name %q", i, t.Name)
		}
		seen[t.Name] = true
	}

	if c.Proxy.Timeout != "" {
		if _, err := time.ParseDuration(c.Proxy.Timeout); err != nil {
			return fmt.Errorf("invalid proxy timeout: %w", err)
		}
	}

	return nil
}

// MinTLSVersion returns the crypto/tls constant for the configured minimum TLS version.
// Returns tls.VersionTLS12 if not configured or invalid.
func (c *TLSConfig) MinTLSVersion() uint16 {
	if v, ok := minTLSVersions[c.MinVersion]; ok {
		return v
	}
	return tls.VersionTLS12
}

// ConnectionTimeout returns the connection timeout as a time.Duration.
// Returns 5 minutes if not configured or invalid.
func (c *TimeoutsConfig) ConnectionTimeout() time.Duration {
	if c.Connection == "" {
		return 5 * time.Minute
	}
	d, err := time.ParseDuration(c.Connection)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// RequestTimeout returns the per-request timeout as a time.Duration.
// Returns 1 minute if not configured or invalid.
func (c *TimeoutsConfig) RequestTimeout() time.Duration {
	if c.Request == "" {
		return 1 * time.Minute
	}
	d, err := time.ParseDuration(c.Request)
	if err != nil {
		return 1 * time.Minute
	}
	return d
}

// ProxyTimeout returns the proxy I/O timeout as a time.Duration.
// Returns 100 seconds, the conventional SMTP command timeout, if not
// configured or invalid.
func (c *ProxyConfig) ProxyTimeout() time.Duration {
	if c.Timeout == "" {
		return 100 * time.Second
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 100 * time.Second
	}
	return d
}

var minTLSVersions = map[string]uint16{
	"1.0": tls.VersionTLS10,
	"1.1": tls.VersionTLS11,
	"1.2": tls.VersionTLS12,
	"1.3": tls.VersionTLS13,
}

func isValidMode(m ListenerMode) bool {
	switch m {
	case ModePlain, ModeTLS:
		return true
	default:
		return false
	}
}
