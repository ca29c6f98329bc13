package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/dvcrn/cloudflare-api-proxy/internal/logger"
	"github.com/dvcrn/cloudflare-api-proxy/internal/otp"
	"github.com/dvcrn/cloudflare-api-proxy/internal/password"
)

type otpResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	OTP     string `json:"otp"`
}

func (s *Server) otpHandler(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("token_index")
	if strings.TrimSpace(name) == "" {
		writeError(w, http.StatusBadRequest, "token_index cannot be empty")
		return
	}

	code, err := s.otp.Code(name)
	switch {
	case errors.Is(err, otp.ErrUnknownToken):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, otp.ErrInvalidSecret):
		logger.Get().Error().Err(err).Str("token_index", name).Msg("Configured OTP secret is invalid")
		writeError(w, http.StatusBadRequest, "Invalid TOKEN format: "+err.Error())
		return
	case err != nil:
		writeInternal(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, otpResponse{
		Status:  "200",
		Message: "OTP generated successfully",
		OTP:     code,
	})
}

func (s *Server) passwordGenHandler(w http.ResponseWriter, r *http.Request) {
	pwd := r.URL.Query().Get("password")
	if pwd == "" {
		writeError(w, http.StatusBadRequest, "password cannot be empty")
		return
	}

	hash, err := password.Hash(pwd)
	if err != nil {
		writeInternal(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"password":        hash,
		"password_base64": quote(hash),
	})
}

func (s *Server) passwordVerifyHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pwd, hash := q.Get("password"), q.Get("password_hash")
	if pwd == "" || hash == "" {
		writeError(w, http.StatusBadRequest, "password and password_hash are required")
		return
	}

	ok, err := password.Verify(pwd, hash)
	if err != nil {
		logger.Get().Debug().Err(err).Msg("Password hash could not be verified")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"result": ok})
}

// quote percent-encodes s for use in a URL, leaving "/" intact.
func quote(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "%2F", "/")
}
