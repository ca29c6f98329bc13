//go:build js && wasm

package config

import (
	"strings"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"

	"github.com/dvcrn/cloudflare-api-proxy/internal/env"
)

// envProvider reads Workers bindings. Bindings cannot be listed, so OTP
// secret names must be declared in OTP_KEYS (comma separated).
func envProvider() koanf.Provider {
	keys := append([]string{}, knownKeys...)
	if names, ok := env.Get("OTP_KEYS"); ok {
		for _, name := range strings.Split(names, ",") {
			if name = strings.TrimSpace(name); name != "" {
				keys = append(keys, otpPrefix+name)
			}
		}
	}

	values := make(map[string]interface{})
	for name, value := range env.Collect(keys...) {
		if key := envKey(name); key != "" {
			values[key] = value
		}
	}
	return confmap.Provider(values, ".")
}
