//go:build !js || !wasm

package env

import "os"

// Get returns the value of key and whether it was set to something non-empty.
func Get(key string) (string, bool) {
	value := os.Getenv(key)
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

// Collect returns the non-empty values of the given keys.
func Collect(keys ...string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if value, ok := Get(key); ok {
			out[key] = value
		}
	}
	return out
}
