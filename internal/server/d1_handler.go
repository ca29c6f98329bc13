package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dvcrn/cloudflare-api-proxy/internal/cloudflare"
	"github.com/dvcrn/cloudflare-api-proxy/internal/logger"
	"github.com/dvcrn/cloudflare-api-proxy/internal/password"
)

const resetPasswordSQL = "UPDATE users SET password = ?"

type d1Func func(ctx context.Context, sql string, params []any) (*cloudflare.D1Result, error)

func (s *Server) d1QueryHandler(w http.ResponseWriter, r *http.Request) {
	s.runD1(w, r, s.gateway.D1Query)
}

func (s *Server) d1ExecHandler(w http.ResponseWriter, r *http.Request) {
	s.runD1(w, r, s.gateway.D1Exec)
}

func (s *Server) runD1(w http.ResponseWriter, r *http.Request, run d1Func) {
	sql := r.FormValue("sql")
	if strings.TrimSpace(sql) == "" {
		writeError(w, http.StatusBadRequest, "sql cannot be empty")
		return
	}

	params, err := cloudflare.ParseParams(r.FormValue("params"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logger.Get().Debug().Str("sql", sql).Int("params", len(params)).Msg("Running D1 statement")

	res, err := run(r.Context(), sql, params)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	writeOK(w, res)
}

// d1AdminHandler resets every user's password. It is reachable without a
// bearer token and guarded by the admin token instead.
func (s *Server) d1AdminHandler(w http.ResponseWriter, r *http.Request) {
	if s.adminToken == "" {
		logger.Get().Error().Msg("D1_ADMIN_TOKEN not set")
		writeError(w, http.StatusInternalServerError, "Admin API not configured")
		return
	}

	if subtle.ConstantTimeCompare([]byte(r.FormValue("token")), []byte(s.adminToken)) != 1 {
		logger.Get().Warn().Str("remote_addr", r.RemoteAddr).Msg("Invalid admin token")
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	pwd := r.FormValue("password")
	if pwd == "" {
		writeError(w, http.StatusBadRequest, "password cannot be empty")
		return
	}

	hash, err := password.Hash(pwd)
	if err != nil {
		writeInternal(w, r, err)
		return
	}

	res, err := s.gateway.D1Exec(r.Context(), resetPasswordSQL, []any{hash})
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	writeOK(w, res)
}

// writeGatewayError maps local validation failures to 400 and everything else
// to 500.
func (s *Server) writeGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	if cloudflare.IsValidation(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeInternal(w, r, err)
}
