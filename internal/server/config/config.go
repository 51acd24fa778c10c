// Package config handles configuration for the relay, layering defaults,
// an optional JSON file, the environment and command-line flags.
package config

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophxfer/internal/sizex"
	"github.com/dmitrijs2005/gophxfer/internal/timex"
	"github.com/dustin/go-humanize"
)

const (
	BlobBackendFS = "fs"
	BlobBackendS3 = "s3"

	RecordIndexSidecar  = "sidecar"
	RecordIndexPostgres = "postgres"

	MinTTL = time.Minute
	MaxTTL = 31 * 24 * time.Hour
)

// Config holds runtime settings for the relay.
//
// Fields:
//   - Address / GRPCAddress: bind addresses for the HTTP API and the health service.
//   - DataDir: root of staging files and of the fs blob and sidecar backends.
//   - MaxSize / TTL: per-transfer limits announced on /configuration.
//   - RateLimit / RateWindow: transfer creations allowed per origin and window; 0 disables.
//   - RedisAddr: shared counter store for the rate limit; empty keeps counters in memory.
//   - BlobBackend / RecordIndex: storage backend selection.
//   - DeleteTokenSecret: HMAC secret for delete tokens; empty means a per-process random secret.
type Config struct {
	Address       string         `env:"ADDRESS"`
	GRPCAddress   string         `env:"GRPC_ADDRESS"`
	DataDir       string         `env:"DATA_DIR"`
	MaxSize       sizex.ByteSize `env:"MAX_SIZE"`
	TTL           time.Duration  `env:"TTL"`
	ReapInterval  time.Duration  `env:"REAP_INTERVAL"`
	BurnAfterRead bool           `env:"BURN_AFTER_READ"`

	RateLimit  int           `env:"RATE_LIMIT"`
	RateWindow time.Duration `env:"RATE_WINDOW"`
	RedisAddr  string        `env:"REDIS_ADDR"`
	TrustProxy bool          `env:"TRUST_PROXY"`

	BlobBackend    string `env:"BLOB_BACKEND"`
	S3AccessKey    string `env:"S3_ACCESS_KEY"`
	S3SecretKey    string `env:"S3_SECRET_KEY"`
	S3Bucket       string `env:"S3_BUCKET"`
	S3Region       string `env:"S3_REGION"`
	S3BaseEndpoint string `env:"S3_BASE_ENDPOINT"`

	RecordIndex string `env:"RECORD_INDEX"`
	DatabaseDSN string `env:"DATABASE_DSN"`

	DeleteTokenSecret string `env:"DELETE_TOKEN_SECRET"`

	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.Address = "127.0.0.1:8255"
	c.GRPCAddress = "127.0.0.1:8256"
	c.DataDir = "data"
	c.MaxSize = 50 * humanize.MByte
	c.TTL = time.Hour
	c.ReapInterval = time.Minute
	c.BurnAfterRead = false
	c.RateLimit = 0
	c.RateWindow = time.Minute
	c.BlobBackend = BlobBackendFS
	c.S3Bucket = "gophxfer"
	c.S3Region = "us-east-1"
	c.RecordIndex = RecordIndexSidecar
	c.LogLevel = "info"
	c.LogFormat = "json"
}

// Normalize clamps the TTL into [MinTTL, MaxTTL] and reports whether it
// had to.
func (c *Config) Normalize() bool {
	ttl := timex.Clamp(c.TTL, MinTTL, MaxTTL)
	changed := ttl != c.TTL
	c.TTL = ttl
	return changed
}

// Validate checks the combinations LoadConfig cannot fix up on its own.
func (c *Config) Validate() error {
	if c.MaxSize == 0 {
		return fmt.Errorf("config: max size must be positive")
	}
	if c.ReapInterval <= 0 {
		return fmt.Errorf("config: reap interval must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("config: rate limit must not be negative")
	}
	if c.RateLimit > 0 && c.RateWindow <= 0 {
		return fmt.Errorf("config: rate window must be positive")
	}
	switch c.BlobBackend {
	case BlobBackendFS:
	case BlobBackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("config: s3 backend needs a bucket")
		}
	default:
		return fmt.Errorf("config: unknown blob backend %q", c.BlobBackend)
	}
	switch c.RecordIndex {
	case RecordIndexSidecar:
	case RecordIndexPostgres:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("config: postgres index needs a database DSN")
		}
	default:
		return fmt.Errorf("config: unknown record index %q", c.RecordIndex)
	}
	return nil
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
