package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// DefaultRelayServer is used when no relay is configured anywhere.
const DefaultRelayServer = "http://127.0.0.1:8255/"

// Config holds runtime settings for the xfer CLI.
type Config struct {
	RelayServer       string        `env:"RELAY_SERVER"`
	NoConfirm         bool          `env:"NOCONFIRM"`
	DownloadDirectory string        `env:"DOWNLOAD_DIRECTORY"`
	Retries           uint64        `env:"RETRIES"`
	RetryBackoff      time.Duration `env:"RETRY_BACKOFF"`
	LogLevel          string        `env:"LOG_LEVEL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.RelayServer = DefaultRelayServer
	c.NoConfirm = false
	c.DownloadDirectory = ""
	c.Retries = 3
	c.RetryBackoff = 200 * time.Millisecond
	c.LogLevel = "warn"
}

// Validate checks values that would otherwise fail late, mid-transfer.
func (c *Config) Validate() error {
	u, err := url.Parse(c.RelayServer)
	if err != nil {
		return fmt.Errorf("relay server: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("relay server %q: scheme must be http or https", c.RelayServer)
	}
	if u.Host == "" {
		return fmt.Errorf("relay server %q: missing host", c.RelayServer)
	}
	if c.RetryBackoff < 0 {
		return errors.New("retry backoff must not be negative")
	}
	return nil
}

// IsDefaultRelay reports whether the configured relay is the built-in one.
func (c *Config) IsDefaultRelay() bool {
	return c.RelayServer == DefaultRelayServer
}

// LoadConfig builds a Config from defaults, the JSON file at jsonPath (if
// not empty) and XFER_CLIENT_* environment variables, in that order.
// Command-line flags are applied on top by the CLI.
func LoadConfig(jsonPath string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, jsonPath); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
