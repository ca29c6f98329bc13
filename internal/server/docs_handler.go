package server

import (
	_ "embed"
	"net/http"
)

//go:embed static/swagger.html
var swaggerPage []byte

//go:embed static/openapi.json
var openAPIDoc []byte

func (s *Server) swaggerHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(swaggerPage)
}

func (s *Server) openAPIHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(openAPIDoc)
}
