package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dvcrn/cloudflare-api-proxy/internal/cloudflare"
	"github.com/dvcrn/cloudflare-api-proxy/internal/logger"
	"github.com/dvcrn/cloudflare-api-proxy/internal/metrics"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	uidKey
)

const requestIDHeader = "X-Request-ID"

// maxFormBytes fits a fully percent-encoded KV value plus the other fields.
const maxFormBytes = 3*cloudflare.MaxValueBytes + 1<<20

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// UIDFromContext returns the uid of the authenticated caller.
func UIDFromContext(ctx context.Context) (int64, bool) {
	uid, ok := ctx.Value(uidKey).(int64)
	return uid, ok
}

// loggingMiddleware tags each request with an id and logs it
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, id))

		logger.Get().Info().
			Str("request_id", id).
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Str("remote_addr", r.RemoteAddr).
			Msg("Incoming request")

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Get().Info().
			Str("request_id", id).
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Finished request")
	})
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.ObserveRequest(route, r.Method, status, time.Since(start))
	})
}

// bearerAuth requires a valid access token on every path outside the public
// prefixes. The verified uid is stored in the request context.
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range s.publicPrefixes {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		if s.tokens == nil {
			logger.Get().Error().Msg("Token issuer not configured")
			writeError(w, http.StatusInternalServerError, "Authentication not configured")
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		// Expect "Bearer <token>" format, case-insensitive
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			logger.Get().Warn().
				Str("method", r.Method).
				Str("url", r.RequestURI).
				Str("remote_addr", r.RemoteAddr).
				Msg("Invalid Authorization header format")
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "Invalid Authorization header format")
			return
		}

		uid, err := s.tokens.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			logger.Get().Warn().Err(err).Str("url", r.RequestURI).Msg("Rejected bearer token")
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, "Invalid token: "+err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), uidKey, uid)))
	})
}

// basicAuth checks HTTP Basic credentials against the swagger account.
func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || s.swaggerUser == "" ||
			subtle.ConstantTimeCompare([]byte(user), []byte(s.swaggerUser)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(s.swaggerPass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="cfapi"`)
			writeError(w, http.StatusUnauthorized, "Incorrect username or password")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// formBody parses the request form up front so handlers can read fields with
// FormValue. A body over maxFormBytes is answered with 413.
func formBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

		err := r.ParseMultipartForm(maxFormBytes)
		if errors.Is(err, http.ErrNotMultipart) {
			err = nil
		}

		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		case err != nil:
			logger.Get().Debug().Err(err).Str("path", r.URL.Path).Msg("Failed to parse form")
			writeError(w, http.StatusBadRequest, "invalid form body: "+err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}
