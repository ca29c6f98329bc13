//go:build !js || !wasm

package config

import (
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// envProvider reads the process environment, keeping only configuration keys.
func envProvider() koanf.Provider {
	return env.Provider("", ".", envKey)
}
