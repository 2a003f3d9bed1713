// Package config loads runtime configuration for the edge proxy.
//
// Sources, later ones winning: built-in defaults, an optional JSON file
// (-c or -config), CHOIR_EDGE_* environment variables, command-line flags.
//
// Supported flags
//
//	-a string   listen address of the proxy
//	-o string   upstream origin URL
//	-g string   listen address of the gRPC health service (empty disables it)
//	-b string   cache backend: sqlite, postgres, redis, ristretto, bigcache
//	-d string   cache DSN (sqlite path or postgres URL)
//	-l string   log level
package config

import (
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dmitrijs2005/choirsync/internal/flagx"
	"github.com/dmitrijs2005/choirsync/internal/timex"
)

const EnvPrefix = "CHOIR_EDGE_"

// Cache backends.
const (
	BackendSQLite    = "sqlite"
	BackendPostgres  = "postgres"
	BackendRedis     = "redis"
	BackendRistretto = "ristretto"
	BackendBigcache  = "bigcache"
)

type Config struct {
	ListenAddr string `env:"LISTEN_ADDR"`
	Origin     string `env:"ORIGIN"`
	HealthAddr string `env:"HEALTH_ADDR"`

	CacheBackend  string `env:"CACHE_BACKEND"`
	CacheDSN      string `env:"CACHE_DSN"`
	CacheCodec    string `env:"CACHE_CODEC"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`
	// MemoryMB bounds the in-memory backends.
	MemoryMB int `env:"MEMORY_MB"`

	OfflineFlag      bool     `env:"OFFLINE_FLAG"`
	OfflineMessage   string   `env:"OFFLINE_MESSAGE"`
	BypassPrefixes   []string `env:"BYPASS_PREFIXES" envSeparator:","`
	BuildAssetPrefix string   `env:"BUILD_ASSET_PREFIX"`

	ProbeInterval time.Duration `env:"PROBE_INTERVAL"`
	// ProbePath is requested on the origin to decide connectivity.
	ProbePath       string        `env:"PROBE_PATH"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`

	LogFormat string `env:"LOG_FORMAT"`
	LogLevel  string `env:"LOG_LEVEL"`
}

// LoadDefaults populates c with sensible defaults. Bypass prefixes are left
// empty, which selects the interceptor's built-in list.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8080"
	c.Origin = "http://127.0.0.1:3000"
	c.HealthAddr = ":8081"
	c.CacheBackend = BackendSQLite
	c.CacheDSN = "edge-cache.db"
	c.CacheCodec = "cbor"
	c.RedisAddr = "127.0.0.1:6379"
	c.MemoryMB = 64
	c.OfflineFlag = true
	c.BuildAssetPrefix = "/_next/"
	c.ProbeInterval = 5 * time.Second
	c.ProbePath = "/api/health"
	c.ShutdownTimeout = 10 * time.Second
	c.LogFormat = "slog"
	c.LogLevel = "info"
}

func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}

// JsonConfig is the on-disk form. Pointers tell a missing key from a
// zero value.
type JsonConfig struct {
	ListenAddr       *string         `json:"listen_addr"`
	Origin           *string         `json:"origin"`
	HealthAddr       *string         `json:"health_addr"`
	CacheBackend     *string         `json:"cache_backend"`
	CacheDSN         *string         `json:"cache_dsn"`
	CacheCodec       *string         `json:"cache_codec"`
	RedisAddr        *string         `json:"redis_addr"`
	RedisPassword    *string         `json:"redis_password"`
	RedisDB          *int            `json:"redis_db"`
	MemoryMB         *int            `json:"memory_mb"`
	OfflineFlag      *bool           `json:"offline_flag"`
	OfflineMessage   *string         `json:"offline_message"`
	BypassPrefixes   []string        `json:"bypass_prefixes"`
	BuildAssetPrefix *string         `json:"build_asset_prefix"`
	ProbeInterval    *timex.Duration `json:"probe_interval"`
	ProbePath        *string         `json:"probe_path"`
	ShutdownTimeout  *timex.Duration `json:"shutdown_timeout"`
	LogFormat        *string         `json:"log_format"`
	LogLevel         *string         `json:"log_level"`
}

func parseJson(cfg *Config) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	set(&cfg.ListenAddr, jc.ListenAddr)
	set(&cfg.Origin, jc.Origin)
	set(&cfg.HealthAddr, jc.HealthAddr)
	set(&cfg.CacheBackend, jc.CacheBackend)
	set(&cfg.CacheDSN, jc.CacheDSN)
	set(&cfg.CacheCodec, jc.CacheCodec)
	set(&cfg.RedisAddr, jc.RedisAddr)
	set(&cfg.RedisPassword, jc.RedisPassword)
	set(&cfg.RedisDB, jc.RedisDB)
	set(&cfg.MemoryMB, jc.MemoryMB)
	set(&cfg.OfflineFlag, jc.OfflineFlag)
	set(&cfg.OfflineMessage, jc.OfflineMessage)
	if jc.BypassPrefixes != nil {
		cfg.BypassPrefixes = jc.BypassPrefixes
	}
	set(&cfg.BuildAssetPrefix, jc.BuildAssetPrefix)
	if jc.ProbeInterval != nil {
		cfg.ProbeInterval = jc.ProbeInterval.Duration
	}
	set(&cfg.ProbePath, jc.ProbePath)
	if jc.ShutdownTimeout != nil {
		cfg.ShutdownTimeout = jc.ShutdownTimeout.Duration
	}
	set(&cfg.LogFormat, jc.LogFormat)
	set(&cfg.LogLevel, jc.LogLevel)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func parseEnv(cfg *Config) {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		panic(err)
	}
}

func parseFlags(cfg *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.StringVar(&cfg.ListenAddr, "a", cfg.ListenAddr, "proxy listen address")
	fs.StringVar(&cfg.Origin, "o", cfg.Origin, "upstream origin URL")
	fs.StringVar(&cfg.HealthAddr, "g", cfg.HealthAddr, "gRPC health listen address")
	fs.StringVar(&cfg.CacheBackend, "b", cfg.CacheBackend, "cache backend")
	fs.StringVar(&cfg.CacheDSN, "d", cfg.CacheDSN, "cache DSN")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := flagx.ParseOwned(fs, os.Args[1:]); err != nil {
		panic(err)
	}
}
