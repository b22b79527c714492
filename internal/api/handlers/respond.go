package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nikhilbhutani/videgen/internal/apperr"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps a stage error to its status. Only the client-safe message
// is written; the cause has already been logged by the stage.
func writeError(w http.ResponseWriter, err error, fallback string) {
	writeMessage(w, apperr.Status(err), apperr.PublicMessage(err, fallback))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeMessage(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	writeMessage(w, http.StatusBadRequest, "invalid request body")
	return false
}
