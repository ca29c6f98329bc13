package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dvcrn/cloudflare-api-proxy/internal/logger"
)

const internalErrorMsg = "Internal server error"

// errorEnvelope is the failure shape of every /api response.
type errorEnvelope struct {
	Status string `json:"status"`
	ErrMsg string `json:"errMsg"`
}

// okEnvelope is the success shape. Body is always present, possibly null.
type okEnvelope struct {
	Status string `json:"status"`
	Body   any    `json:"body"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Get().Error().Err(err).Msg("Failed to encode response")
	}
}

func writeOK(w http.ResponseWriter, body any) {
	writeJSON(w, http.StatusOK, okEnvelope{Status: "200", Body: body})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorEnvelope{Status: strconv.Itoa(status), ErrMsg: msg})
}

// writeInternal logs err and answers 500 without leaking details.
func writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	logger.Get().Error().
		Err(err).
		Str("request_id", requestID(r.Context())).
		Str("path", r.URL.Path).
		Msg("Request failed")
	writeError(w, http.StatusInternalServerError, internalErrorMsg)
}
