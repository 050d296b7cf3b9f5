package config

import (
	"github.com/caarlos0/env/v11"
)

// parseEnv overlays Config with RECDOCS_* environment variables. Unset
// variables leave the current values untouched. Durations use Go syntax
// ("90s", "15m").
func parseEnv(cfg *Config) {
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}
}
