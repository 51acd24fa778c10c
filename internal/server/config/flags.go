package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/gophxfer/internal/flagx"
)

var flagNames = []string{
	"-a", "-g", "-d", "-m", "-t", "-r", "-b", "-l", "-w", "-redis", "-trust-proxy",
	"-blob", "-s3-access-key", "-s3-secret-key", "-s3-bucket", "-s3-region", "-s3-endpoint",
	"-index", "-dsn", "-k", "-log-level", "-log-format",
}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string       HTTP bind address (e.g., "127.0.0.1:8255")
//	-g string       gRPC health bind address
//	-d string       data directory
//	-m size         maximum transfer size (e.g., "50MB")
//	-t duration     transfer lifetime (e.g., "1h")
//	-r duration     reaper interval
//	-b              delete transfers after the first complete download
//	-l int          transfer creations per origin and window (0 disables)
//	-w duration     rate limit window
//	-redis string   redis address for shared rate limit counters
//	-trust-proxy    take the client address from X-Forwarded-For
//	-blob string    blob backend: fs or s3
//	-s3-*           S3 credentials, bucket, region and endpoint
//	-index string   record index: sidecar or postgres
//	-dsn string     PostgreSQL DSN
//	-k string       delete token secret
//	-log-level, -log-format
//
// os.Args is first filtered with flagx.FilterArgs so that -c, -config and
// -envfile, which are handled earlier, do not trip the parser.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], flagNames)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.Address, "a", config.Address, "address and port to serve HTTP on")
	fs.StringVar(&config.GRPCAddress, "g", config.GRPCAddress, "address and port to serve gRPC health on")
	fs.StringVar(&config.DataDir, "d", config.DataDir, "data directory")
	fs.Var(&config.MaxSize, "m", "maximum transfer size")
	fs.DurationVar(&config.TTL, "t", config.TTL, "transfer lifetime")
	fs.DurationVar(&config.ReapInterval, "r", config.ReapInterval, "reaper interval")
	fs.BoolVar(&config.BurnAfterRead, "b", config.BurnAfterRead, "delete a transfer after its first complete download")
	fs.IntVar(&config.RateLimit, "l", config.RateLimit, "transfer creations per origin and window, 0 disables")
	fs.DurationVar(&config.RateWindow, "w", config.RateWindow, "rate limit window")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address for rate limit counters")
	fs.BoolVar(&config.TrustProxy, "trust-proxy", config.TrustProxy, "trust X-Forwarded-For")

	fs.StringVar(&config.BlobBackend, "blob", config.BlobBackend, "blob backend (fs, s3)")
	fs.StringVar(&config.S3AccessKey, "s3-access-key", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "s3-secret-key", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "s3-bucket", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "s3-region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "s3-endpoint", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.RecordIndex, "index", config.RecordIndex, "record index (sidecar, postgres)")
	fs.StringVar(&config.DatabaseDSN, "dsn", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.DeleteTokenSecret, "k", config.DeleteTokenSecret, "delete token secret")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format (json, text)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
