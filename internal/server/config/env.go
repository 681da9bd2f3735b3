package config

import (
	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// parseEnv overlays values from the process environment. A .env file in the
// working directory is loaded first when present; variables that are
// already set are not overridden by it. Unset variables leave the current
// values untouched.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
