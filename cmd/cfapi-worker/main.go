//go:build js && wasm

package main

import (
	"net/http"

	"github.com/syumai/workers"

	"github.com/dvcrn/cloudflare-api-proxy/internal/config"
	serverhttp "github.com/dvcrn/cloudflare-api-proxy/internal/http"
	"github.com/dvcrn/cloudflare-api-proxy/internal/logger"
	"github.com/dvcrn/cloudflare-api-proxy/internal/server"
)

var handler http.Handler

func init() {
	cfg, err := config.Load("", nil)
	if err != nil {
		logger.Get().Error().Err(err).Msg("Failed to load configuration")
		handler = unavailable(err)
		return
	}

	srv, err := server.FromConfig(cfg, serverhttp.NewHTTPClient())
	if err != nil {
		logger.Get().Error().Err(err).Msg("Failed to create server")
		handler = unavailable(err)
		return
	}
	handler = srv
}

// unavailable answers every request with 500 so misconfiguration shows up in
// responses and logs instead of a crashed worker.
func unavailable(err error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"500","errMsg":"Server not configured"}`))
	})
}

func main() {
	// Serve using workers - it handles all the HTTP server setup
	workers.Serve(handler)
}
