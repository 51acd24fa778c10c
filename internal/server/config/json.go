package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophxfer/internal/flagx"
	"github.com/dmitrijs2005/gophxfer/internal/sizex"
	"github.com/dmitrijs2005/gophxfer/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations accept "90s" or
// integer nanoseconds and sizes accept "50MB" or a plain byte count.
//
// parseJson seeds it from the current Config before unmarshalling, so keys
// missing from the file keep their earlier value.
type JsonConfig struct {
	Address           string         `json:"address"`
	GRPCAddress       string         `json:"grpc_address"`
	DataDir           string         `json:"data_dir"`
	MaxSize           sizex.ByteSize `json:"max_size"`
	TTL               timex.Duration `json:"ttl"`
	ReapInterval      timex.Duration `json:"reap_interval"`
	BurnAfterRead     bool           `json:"burn_after_read"`
	RateLimit         int            `json:"rate_limit"`
	RateWindow        timex.Duration `json:"rate_window"`
	RedisAddr         string         `json:"redis_addr"`
	TrustProxy        bool           `json:"trust_proxy"`
	BlobBackend       string         `json:"blob_backend"`
	S3AccessKey       string         `json:"s3_access_key"`
	S3SecretKey       string         `json:"s3_secret_key"`
	S3Bucket          string         `json:"s3_bucket"`
	S3Region          string         `json:"s3_region"`
	S3BaseEndpoint    string         `json:"s3_base_endpoint"`
	RecordIndex       string         `json:"record_index"`
	DatabaseDSN       string         `json:"database_dsn"`
	DeleteTokenSecret string         `json:"delete_token_secret"`
	LogLevel          string         `json:"log_level"`
	LogFormat         string         `json:"log_format"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		Address:           c.Address,
		GRPCAddress:       c.GRPCAddress,
		DataDir:           c.DataDir,
		MaxSize:           c.MaxSize,
		TTL:               timex.Duration{Duration: c.TTL},
		ReapInterval:      timex.Duration{Duration: c.ReapInterval},
		BurnAfterRead:     c.BurnAfterRead,
		RateLimit:         c.RateLimit,
		RateWindow:        timex.Duration{Duration: c.RateWindow},
		RedisAddr:         c.RedisAddr,
		TrustProxy:        c.TrustProxy,
		BlobBackend:       c.BlobBackend,
		S3AccessKey:       c.S3AccessKey,
		S3SecretKey:       c.S3SecretKey,
		S3Bucket:          c.S3Bucket,
		S3Region:          c.S3Region,
		S3BaseEndpoint:    c.S3BaseEndpoint,
		RecordIndex:       c.RecordIndex,
		DatabaseDSN:       c.DatabaseDSN,
		DeleteTokenSecret: c.DeleteTokenSecret,
		LogLevel:          c.LogLevel,
		LogFormat:         c.LogFormat,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.Address = j.Address
	c.GRPCAddress = j.GRPCAddress
	c.DataDir = j.DataDir
	c.MaxSize = j.MaxSize
	c.TTL = j.TTL.Duration
	c.ReapInterval = j.ReapInterval.Duration
	c.BurnAfterRead = j.BurnAfterRead
	c.RateLimit = j.RateLimit
	c.RateWindow = j.RateWindow.Duration
	c.RedisAddr = j.RedisAddr
	c.TrustProxy = j.TrustProxy
	c.BlobBackend = j.BlobBackend
	c.S3AccessKey = j.S3AccessKey
	c.S3SecretKey = j.S3SecretKey
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.RecordIndex = j.RecordIndex
	c.DatabaseDSN = j.DatabaseDSN
	c.DeleteTokenSecret = j.DeleteTokenSecret
	c.LogLevel = j.LogLevel
	c.LogFormat = j.LogFormat
}

// parseJson overlays the JSON file named by -c or -config onto config.
// Without either flag nothing is loaded. An unreadable file or invalid JSON
// panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}
