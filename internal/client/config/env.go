package config

import (
	"github.com/caarlos0/env/v11"
)

// EnvPrefix precedes every variable read by parseEnv.
const EnvPrefix = "CHOIR_"

// parseEnv overlays cfg with CHOIR_* variables. Unset variables leave the
// current value alone. Durations use time.ParseDuration syntax.
func parseEnv(cfg *Config) {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		panic(err)
	}
}
