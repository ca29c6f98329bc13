package server

import (
	"net/http"
	"time"
)

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Expire      time.Time `json:"expire"`
	// AccessTokenExpires is the token lifetime in seconds.
	AccessTokenExpires int64 `json:"access_token_expires"`
}

// loginHandler issues an access token for the admin account (uid 1).
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if s.tokens == nil {
		writeError(w, http.StatusInternalServerError, "Authentication not configured")
		return
	}

	token, expires, err := s.tokens.Issue(1)
	if err != nil {
		writeInternal(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:        token,
		TokenType:          "bearer",
		Expire:             expires.UTC(),
		AccessTokenExpires: int64(s.tokens.TTL() / time.Second),
	})
}

func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := UIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"uid": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"uid": uid})
}
