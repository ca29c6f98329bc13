package server

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/dvcrn/cloudflare-api-proxy/internal/auth"
	"github.com/dvcrn/cloudflare-api-proxy/internal/cloudflare"
	"github.com/dvcrn/cloudflare-api-proxy/internal/config"
	"github.com/dvcrn/cloudflare-api-proxy/internal/electron"
	serverhttp "github.com/dvcrn/cloudflare-api-proxy/internal/http"
	"github.com/dvcrn/cloudflare-api-proxy/internal/logger"
	"github.com/dvcrn/cloudflare-api-proxy/internal/otp"
)

// FromConfig wires a Server from cfg. httpClient carries both Cloudflare and
// Electron traffic.
func FromConfig(cfg *config.Config, httpClient serverhttp.HTTPClient) (*Server, error) {
	gateway, err := cloudflare.NewClient(cfg.Credentials(),
		cloudflare.WithBaseURL(cfg.CloudflareAPIBaseURL),
		cloudflare.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, err
	}

	secret := cfg.JWTSecretKey
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return nil, err
		}
		logger.Get().Warn().Msg("JWT_SECRET_KEY not set, using a random secret; tokens will not survive a restart")
	}

	issuer, err := auth.NewIssuer(secret, cfg.JWTAlgorithm, cfg.TokenTTL())
	if err != nil {
		return nil, err
	}

	if cfg.D1AdminToken == "" {
		logger.Get().Info().Msg("D1_ADMIN_TOKEN not set, /api/d1/admin is disabled")
	}

	gen := otp.NewGenerator(cfg.OTP)
	logger.Get().Debug().Strs("otp_tokens", gen.Names()).Msg("Loaded OTP secrets")

	return NewServer(Options{
		Gateway:         gateway,
		Tokens:          issuer,
		OTP:             gen,
		Electron:        electron.NewClient(cfg.ElectronRPCURL, httpClient),
		SwaggerUsername: cfg.SwaggerUsername,
		SwaggerPassword: cfg.SwaggerPassword,
		AdminToken:      cfg.D1AdminToken,
		PublicPrefixes:  cfg.PublicPrefixes(),
	}), nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
