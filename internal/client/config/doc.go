// Package config loads runtime configuration for the xfer CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c/--config.
//  3. XFER_CLIENT_* environment variables.
//  4. Command-line flags, applied by the cli package.
//
// # JSON schema
//
//	{
//	  "relay_server": "https://xfer.example.org/",
//	  "noconfirm": false,
//	  "download_directory": "/home/me/Downloads",
//	  "retries": 3,
//	  "retry_backoff": "200ms",
//	  "log_level": "warn"
//	}
//
// # Environment
//
//	XFER_CLIENT_RELAY_SERVER, XFER_CLIENT_NOCONFIRM,
//	XFER_CLIENT_DOWNLOAD_DIRECTORY, XFER_CLIENT_RETRIES,
//	XFER_CLIENT_RETRY_BACKOFF, XFER_CLIENT_LOG_LEVEL
package config
