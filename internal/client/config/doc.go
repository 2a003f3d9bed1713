// Package config loads runtime configuration for the registry CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. CHOIR_* environment variables (see parseEnv).
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   registry server URL
//	-d string   local database path
//	-i int      online status check interval (seconds)
//	-o string   download directory for exported reports
//	-l string   log level
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be either strings like "3s"
// or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "db_path": "choir.db",
//	  "online_check_interval": "3s",
//	  "retry_base": "1s",
//	  "retry_max": "10m",
//	  "s3": {"bucket": "choir-reports", "region": "eu-west-1"}
//	}
//
// # Environment
//
//	CHOIR_SERVER_URL, CHOIR_DB_PATH, CHOIR_ONLINE_CHECK_INTERVAL,
//	CHOIR_DOWNLOAD_DIR, CHOIR_RETRY_BASE, CHOIR_RETRY_MAX,
//	CHOIR_LOG_FORMAT, CHOIR_LOG_LEVEL,
//	CHOIR_S3_BUCKET, CHOIR_S3_PREFIX, CHOIR_S3_REGION, CHOIR_S3_ENDPOINT,
//	CHOIR_S3_ACCESS_KEY, CHOIR_S3_SECRET_KEY
package config
