package server

import (
	"net/http"
	"strings"
)

func (s *Server) kvGetHandler(w http.ResponseWriter, r *http.Request) {
	key := r.FormValue("key")
	if strings.TrimSpace(key) == "" {
		writeError(w, http.StatusBadRequest, "key cannot be empty")
		return
	}

	value, found, err := s.gateway.KVGet(r.Context(), key)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	if !found {
		writeOK(w, nil)
		return
	}
	writeOK(w, value)
}

func (s *Server) kvPutHandler(w http.ResponseWriter, r *http.Request) {
	key := r.FormValue("key")
	if strings.TrimSpace(key) == "" {
		writeError(w, http.StatusBadRequest, "key cannot be empty")
		return
	}
	value := r.FormValue("value")
	if strings.TrimSpace(value) == "" {
		writeError(w, http.StatusBadRequest, "value cannot be empty")
		return
	}

	ok, err := s.gateway.KVPut(r.Context(), key, value)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	writeOK(w, ok)
}

func (s *Server) kvDeleteHandler(w http.ResponseWriter, r *http.Request) {
	key := r.FormValue("key")
	if strings.TrimSpace(key) == "" {
		writeError(w, http.StatusBadRequest, "key cannot be empty")
		return
	}

	ok, err := s.gateway.KVDelete(r.Context(), key)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	writeOK(w, ok)
}
