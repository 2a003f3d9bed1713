package config

import "time"

// S3Config selects the bucket that receives exported reports. An empty
// Bucket keeps exports on the local disk.
type S3Config struct {
	Bucket    string `env:"BUCKET"`
	Prefix    string `env:"PREFIX"`
	Region    string `env:"REGION"`
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
}

// Config holds runtime settings for the registry CLI.
//
// ServerURL is normally the edge proxy, not the backend itself.
type Config struct {
	ServerURL           string        `env:"SERVER_URL"`
	DBPath              string        `env:"DB_PATH"`
	OnlineCheckInterval time.Duration `env:"ONLINE_CHECK_INTERVAL"`
	DownloadDir         string        `env:"DOWNLOAD_DIR"`
	RetryBase           time.Duration `env:"RETRY_BASE"`
	RetryMax            time.Duration `env:"RETRY_MAX"`
	LogFormat           string        `env:"LOG_FORMAT"`
	LogLevel            string        `env:"LOG_LEVEL"`
	S3                  S3Config      `envPrefix:"S3_"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DBPath = "choir.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.DownloadDir = "."
	c.RetryBase = time.Second
	c.RetryMax = 10 * time.Minute
	c.LogFormat = "slog"
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
