// Package config loads the service configuration with koanf.
//
// Precedence, lowest to highest: built-in defaults, an optional YAML file,
// environment variables, command-line flags. Keys are the lower-cased
// environment variable names (CLOUDFLARE_API_TOKEN -> cloudflare_api_token);
// OTP_<NAME> variables are collected under the "otp" map.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/dvcrn/cloudflare-api-proxy/internal/cloudflare"
	"github.com/dvcrn/cloudflare-api-proxy/internal/electron"
)

// otpPrefix marks environment variables holding TOTP secrets.
const otpPrefix = "OTP_"

// DefaultPublicPrefixes are the /api paths reachable without a bearer token.
var DefaultPublicPrefixes = []string{"/api/auth/login", "/api/auth/password", "/api/d1/admin"}

// knownKeys are the environment variables read into the config.
var knownKeys = []string{
	"PORT",
	"CLOUDFLARE_API_TOKEN",
	"CLOUDFLARE_ACCOUNT_ID",
	"CLOUDFLARE_DATABASE_ID",
	"CLOUDFLARE_KV_NAMESPACE_ID",
	"CLOUDFLARE_API_BASE_URL",
	"JWT_SECRET_KEY",
	"JWT_ALGORITHM",
	"JWT_ACCESS_TOKEN_EXPIRE_MINUTES",
	"SWAGGER_USERNAME",
	"SWAGGER_PASSWORD",
	"D1_ADMIN_TOKEN",
	"AUTH_PUBLIC_PREFIXES",
	"ELECTRON_RPC_URL",
}

// Config is the fully resolved service configuration.
type Config struct {
	Port string `koanf:"port"`

	CloudflareAPIToken      string `koanf:"cloudflare_api_token"`
	CloudflareAccountID     string `koanf:"cloudflare_account_id"`
	CloudflareDatabaseID    string `koanf:"cloudflare_database_id"`
	CloudflareKVNamespaceID string `koanf:"cloudflare_kv_namespace_id"`
	CloudflareAPIBaseURL    string `koanf:"cloudflare_api_base_url"`

	JWTSecretKey                string `koanf:"jwt_secret_key"`
	JWTAlgorithm                string `koanf:"jwt_algorithm"`
	JWTAccessTokenExpireMinutes int    `koanf:"jwt_access_token_expire_minutes"`

	SwaggerUsername string `koanf:"swagger_username"`
	SwaggerPassword string `koanf:"swagger_password"`

	D1AdminToken       string `koanf:"d1_admin_token"`
	AuthPublicPrefixes string `koanf:"auth_public_prefixes"`
	ElectronRPCURL     string `koanf:"electron_rpc_url"`

	OTP map[string]string `koanf:"otp"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"port":                            "8000",
		"cloudflare_api_base_url":         cloudflare.DefaultAPIBaseURL,
		"jwt_algorithm":                   "HS256",
		"jwt_access_token_expire_minutes": 30,
		"swagger_username":                "admin",
		"swagger_password":                "admin888",
		"auth_public_prefixes":            strings.Join(DefaultPublicPrefixes, ","),
		"electron_rpc_url":                electron.DefaultRPCURL,
	}
}

// Load resolves the configuration. cfgFile may be empty; flags may be nil.
// Only flags the user explicitly set override lower layers.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	if err := k.Load(envProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

// envKey maps an environment variable name to its config key, or "" when the
// variable is not part of the configuration.
func envKey(name string) string {
	if strings.HasPrefix(name, otpPrefix) && len(name) > len(otpPrefix) {
		return "otp." + strings.ToLower(strings.TrimPrefix(name, otpPrefix))
	}
	for _, known := range knownKeys {
		if name == known {
			return strings.ToLower(name)
		}
	}
	return ""
}

// Credentials returns the Cloudflare credentials.
func (c *Config) Credentials() cloudflare.Credentials {
	return cloudflare.Credentials{
		AccountID:   c.CloudflareAccountID,
		DatabaseID:  c.CloudflareDatabaseID,
		NamespaceID: c.CloudflareKVNamespaceID,
		APIToken:    c.CloudflareAPIToken,
	}
}

// PublicPrefixes splits AuthPublicPrefixes.
func (c *Config) PublicPrefixes() []string {
	var out []string
	for _, p := range strings.Split(c.AuthPublicPrefixes, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// TokenTTL is the access token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTAccessTokenExpireMinutes) * time.Minute
}
