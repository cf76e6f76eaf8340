package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/counselhub/inbox-sync/internal/inbox"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeEngineError maps the engine's failure taxonomy onto HTTP statuses:
// validation 400, authorization 401 (the UI prompts re-authentication),
// network 502 (retryable by user action).
func writeEngineError(w http.ResponseWriter, err error) {
	if errors.Is(err, inbox.ErrSuperseded) {
		writeError(w, http.StatusConflict, "superseded by a newer refresh")
		return
	}
	kind, ok := inbox.KindOf(err)
	if !ok {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	switch kind {
	case inbox.KindValidation:
		writeError(w, http.StatusBadRequest, err.Error())
	case inbox.KindAuthorization:
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}
