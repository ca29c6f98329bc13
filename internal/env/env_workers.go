//go:build js && wasm

package env

import "github.com/syumai/workers/cloudflare"

// Get reads key from the Workers environment bindings (vars and secrets).
func Get(key string) (string, bool) {
	value := cloudflare.Getenv(key)
	if value == "" {
		return "", false
	}
	return value, true
}

// GetOrDefault returns the value of key, or fallback when it is unset.
func GetOrDefault(key, fallback string) string {
	if value, ok := Get(key); ok {
		return value
	}
	return fallback
}

// Collect returns the non-empty values of the given keys. Workers bindings
// cannot be enumerated, so callers must name every key they need.
func Collect(keys ...string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if value, ok := Get(key); ok {
			out[key] = value
		}
	}
	return out
}
