package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/dvcrn/cloudflare-api-proxy/internal/auth"
	"github.com/dvcrn/cloudflare-api-proxy/internal/cloudflare"
	"github.com/dvcrn/cloudflare-api-proxy/internal/logger"
	"github.com/dvcrn/cloudflare-api-proxy/internal/metrics"
	"github.com/dvcrn/cloudflare-api-proxy/internal/otp"
)

const shutdownTimeout = 5 * time.Second

// Gateway is the subset of the Cloudflare client the handlers use.
type Gateway interface {
	D1Query(ctx context.Context, sql string, params []any) (*cloudflare.D1Result, error)
	D1Exec(ctx context.Context, sql string, params []any) (*cloudflare.D1Result, error)
	KVGet(ctx context.Context, key string) (string, bool, error)
	KVPut(ctx context.Context, key, value string) (bool, error)
	KVDelete(ctx context.Context, key string) (bool, error)
}

// RPC forwards calls to the Electron browser.
type RPC interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// Options carries the server dependencies.
type Options struct {
	Gateway  Gateway
	Tokens   *auth.Issuer
	OTP      *otp.Generator
	Electron RPC

	SwaggerUsername string
	SwaggerPassword string
	// AdminToken guards /api/d1/admin; empty disables the endpoint.
	AdminToken     string
	PublicPrefixes []string
}

// Server represents the API server with its dependencies
type Server struct {
	gateway  Gateway
	tokens   *auth.Issuer
	otp      *otp.Generator
	electron RPC

	swaggerUser    string
	swaggerPass    string
	adminToken     string
	publicPrefixes []string

	router chi.Router
}

// NewServer creates a new server instance
func NewServer(opts Options) *Server {
	s := &Server{
		gateway:        opts.Gateway,
		tokens:         opts.Tokens,
		otp:            opts.OTP,
		electron:       opts.Electron,
		swaggerUser:    opts.SwaggerUsername,
		swaggerPass:    opts.SwaggerPassword,
		adminToken:     opts.AdminToken,
		publicPrefixes: opts.PublicPrefixes,
	}
	if s.otp == nil {
		s.otp = otp.NewGenerator(nil)
	}
	s.setupRoutes()

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(
		loggingMiddleware,
		metricsMiddleware,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}),
	)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger", http.StatusTemporaryRedirect)
	})
	r.With(s.basicAuth).Get("/swagger", s.swaggerHandler)
	r.Get("/openapi.json", s.openAPIHandler)
	r.Get("/healthz", s.healthHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.bearerAuth)

		r.Route("/d1", func(r chi.Router) {
			r.Use(formBody)
			r.Post("/query", s.d1QueryHandler)
			r.Post("/exec", s.d1ExecHandler)
			r.Post("/admin", s.d1AdminHandler)
		})

		r.Route("/kv", func(r chi.Router) {
			r.Use(formBody)
			r.Post("/get", s.kvGetHandler)
			r.Post("/put", s.kvPutHandler)
			r.Post("/delete", s.kvDeleteHandler)
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(s.basicAuth).Get("/login", s.loginHandler)
			r.Get("/me", s.meHandler)
		})

		r.Route("/utils", func(r chi.Router) {
			r.With(formBody).Post("/otp", s.otpHandler)
			r.Get("/password/gen", s.passwordGenHandler)
			r.Get("/password/verify", s.passwordVerifyHandler)
		})

		r.Route("/electron", s.electronRoutes)
	})

	s.router = r
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		logger.Get().Info().Msgf("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Get().Info().Msg("Shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
