package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophxfer/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations use
// timex.Duration so they may be written as "200ms" or as nanoseconds.
type JsonConfig struct {
	RelayServer       string         `json:"relay_server"`
	NoConfirm         bool           `json:"noconfirm"`
	DownloadDirectory string         `json:"download_directory"`
	Retries           uint64         `json:"retries"`
	RetryBackoff      timex.Duration `json:"retry_backoff"`
	LogLevel          string         `json:"log_level"`
}

func toJson(c *Config) JsonConfig {
	return JsonConfig{
		RelayServer:       c.RelayServer,
		NoConfirm:         c.NoConfirm,
		DownloadDirectory: c.DownloadDirectory,
		Retries:           c.Retries,
		RetryBackoff:      timex.Duration{Duration: c.RetryBackoff},
		LogLevel:          c.LogLevel,
	}
}

func (jc JsonConfig) apply(c *Config) {
	c.RelayServer = jc.RelayServer
	c.NoConfirm = jc.NoConfirm
	c.DownloadDirectory = jc.DownloadDirectory
	c.Retries = jc.Retries
	c.RetryBackoff = jc.RetryBackoff.Duration
	c.LogLevel = jc.LogLevel
}

// parseJson overlays cfg with the file at path. Keys missing from the file
// keep their current values.
func parseJson(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	jc := toJson(cfg)
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	jc.apply(cfg)
	return nil
}
