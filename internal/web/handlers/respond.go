package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// errorBody is the shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// logSafe drops CR and LF so client-supplied text cannot forge log lines.
func logSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, s)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("writing response failed", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}
